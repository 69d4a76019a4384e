package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a native module has been halted by governance.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects a state mutation when the owning module is paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
