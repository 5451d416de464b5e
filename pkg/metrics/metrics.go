package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flotilla-dev/flotilla/pkg/model"
)

var (
	// Convergence loop metrics
	ConvergencePassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flotilla_convergence_passes_total",
			Help: "Total number of convergence passes by outcome",
		},
		[]string{"outcome"},
	)

	ConvergenceOverrunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flotilla_convergence_overruns_total",
			Help: "Total number of convergence passes that ran longer than the pass interval",
		},
	)

	ConvergenceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flotilla_convergence_duration_seconds",
			Help:    "Duration of a full convergence pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	DiscoveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flotilla_discovery_duration_seconds",
			Help:    "Duration of local state discovery in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ChangesAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flotilla_changes_applied_total",
			Help: "Total number of state changes executed by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	PlannedChanges = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flotilla_planned_changes",
			Help: "Number of changes in the most recent convergence plan",
		},
	)

	// Observed state metrics
	ApplicationsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flotilla_applications_running",
			Help: "Number of applications observed running on this node",
		},
	)

	ApplicationsNotRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flotilla_applications_not_running",
			Help: "Number of applications observed present but not running on this node",
		},
	)

	ManifestationsLocal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flotilla_manifestations_local",
			Help: "Number of dataset manifestations on this node by role",
		},
		[]string{"role"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ConvergencePassesTotal)
	prometheus.MustRegister(ConvergenceOverrunsTotal)
	prometheus.MustRegister(ConvergenceDuration)
	prometheus.MustRegister(DiscoveryDuration)
	prometheus.MustRegister(ChangesAppliedTotal)
	prometheus.MustRegister(PlannedChanges)
	prometheus.MustRegister(ApplicationsRunning)
	prometheus.MustRegister(ApplicationsNotRunning)
	prometheus.MustRegister(ManifestationsLocal)
}

// ObserveNodeState updates the observed-state gauges from a discovery result.
func ObserveNodeState(state model.NodeState) {
	ApplicationsRunning.Set(float64(len(state.Running)))
	ApplicationsNotRunning.Set(float64(len(state.NotRunning)))

	primary, replica := 0, 0
	for _, m := range state.Manifestations {
		if m.Primary {
			primary++
		} else {
			replica++
		}
	}
	ManifestationsLocal.WithLabelValues("primary").Set(float64(primary))
	ManifestationsLocal.WithLabelValues("replica").Set(float64(replica))
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
