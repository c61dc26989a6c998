// Package metrics exposes Prometheus collectors for scan cycles.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pluginsync/pkg/models"
)

var (
	// scanCyclesTotal counts completed cycles by outcome
	scanCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pluginsync_scan_cycles_total",
		Help: "Total scan cycles by status",
	}, []string{"status"})

	// scanCycleDuration tracks how long a full cycle takes
	scanCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pluginsync_scan_cycle_duration_seconds",
		Help:    "Scan cycle duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
	})

	// pluginsInstalled is the plugin count of each machine's latest report
	pluginsInstalled = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pluginsync_plugins_installed",
		Help: "Plugins in each machine's latest report",
	}, []string{"machine"})

	// pendingUpdates is the number of actions each machine needs, by reason
	pendingUpdates = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pluginsync_pending_updates",
		Help: "Pending plugin updates per machine and reason",
	}, []string{"machine", "reason"})

	// lastCycleTimestamp is the unix time of the last successful cycle
	lastCycleTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pluginsync_last_cycle_timestamp_seconds",
		Help: "Unix time of the last successful scan cycle",
	})
)

const (
	StatusSuccess   = "success"
	StatusNoReports = "no_reports"
	StatusError     = "error"
)

// ObserveCycle records one finished cycle.
func ObserveCycle(status string, duration time.Duration) {
	scanCyclesTotal.WithLabelValues(status).Inc()
	scanCycleDuration.Observe(duration.Seconds())
	if status != StatusError {
		lastCycleTimestamp.SetToCurrentTime()
	}
}

// ObserveInventory replaces the per-machine gauges with the latest state.
func ObserveInventory(reports map[string]models.Report, summary *models.UpdateSummary) {
	pluginsInstalled.Reset()
	for machine, report := range reports {
		pluginsInstalled.WithLabelValues(machine).Set(float64(len(report.PluginMap())))
	}

	pendingUpdates.Reset()
	if summary == nil {
		return
	}
	for _, machine := range summary.Machines {
		counts := map[models.UpdateReason]int{
			models.ReasonMissing:        0,
			models.ReasonOutdated:       0,
			models.ReasonUnknownVersion: 0,
		}
		for _, entry := range summary.UpdatesFor(machine) {
			counts[entry.Reason]++
		}
		for reason, count := range counts {
			pendingUpdates.WithLabelValues(machine, string(reason)).Set(float64(count))
		}
	}
}
