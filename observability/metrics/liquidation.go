package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LiquidationMetrics aggregates the counters and gauges exported by the
// liquidation engine and its scanner.
type LiquidationMetrics struct {
	executed         *prometheus.CounterVec
	rejected         *prometheus.CounterVec
	scans            prometheus.Counter
	flagged          prometheus.Gauge
	protocolAttempts *prometheus.CounterVec
	scanCursor       prometheus.Gauge
}

var (
	liquidationOnce     sync.Once
	liquidationRegistry *LiquidationMetrics
)

// Liquidation returns the process-wide liquidation metrics, registering them
// on first use.
func Liquidation() *LiquidationMetrics {
	liquidationOnce.Do(func() {
		liquidationRegistry = &LiquidationMetrics{
			executed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "liquidation_executed_total",
				Help: "Count of committed liquidations by settlement route.",
			}, []string{"route"}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "liquidation_rejected_total",
				Help: "Count of rejected liquidation requests by reason.",
			}, []string{"reason"}),
			scans: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "liquidation_scans_total",
				Help: "Number of completed position scan cycles.",
			}),
			flagged: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "liquidation_flagged_positions",
				Help: "Unhealthy positions flagged by the most recent scan.",
			}),
			protocolAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "liquidation_protocol_attempts_total",
				Help: "Protocol self-liquidation attempts by outcome.",
			}, []string{"outcome"}),
			scanCursor: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "liquidation_scan_cursor",
				Help: "Current offset of the batch scan cursor.",
			}),
		}
		prometheus.MustRegister(
			liquidationRegistry.executed,
			liquidationRegistry.rejected,
			liquidationRegistry.scans,
			liquidationRegistry.flagged,
			liquidationRegistry.protocolAttempts,
			liquidationRegistry.scanCursor,
		)
	})
	return liquidationRegistry
}

func (m *LiquidationMetrics) ObserveExecuted(route string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.executed.WithLabelValues(route).Inc()
}

func (m *LiquidationMetrics) ObserveRejected(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *LiquidationMetrics) ObserveScan(flagged int) {
	if m == nil {
		return
	}
	m.scans.Inc()
	m.flagged.Set(float64(flagged))
}

func (m *LiquidationMetrics) ObserveProtocolAttempt(success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.protocolAttempts.WithLabelValues(outcome).Inc()
}

func (m *LiquidationMetrics) SetScanCursor(offset uint64) {
	if m == nil {
		return
	}
	m.scanCursor.Set(float64(offset))
}
