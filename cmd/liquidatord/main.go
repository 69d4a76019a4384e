package main

import (
	"log"

	"stablecore/services/liquidator"
)

func main() {
	if err := liquidator.Main(); err != nil {
		log.Fatalf("liquidatord: %v", err)
	}
}
