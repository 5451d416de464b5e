/*
Package metrics provides Prometheus instrumentation for the Flotilla agent.

All metrics are registered on the default registry at init time and exposed
via Handler(). Metric names carry the flotilla_ prefix.

# Metrics

Convergence loop:
  - flotilla_convergence_passes_total{outcome}: passes by outcome
    (converged, changed, failed)
  - flotilla_convergence_overruns_total: passes that outlasted the interval
  - flotilla_convergence_duration_seconds: full pass duration
  - flotilla_discovery_duration_seconds: local discovery duration
  - flotilla_changes_applied_total{kind,outcome}: changes executed
  - flotilla_planned_changes: size of the most recent plan

Observed state:
  - flotilla_applications_running
  - flotilla_applications_not_running
  - flotilla_manifestations_local{role}: primary vs replica counts

# Usage

Timing an operation:

	timer := metrics.NewTimer()
	state, err := deployer.Discover(ctx)
	timer.ObserveDuration(metrics.DiscoveryDuration)

Exposing metrics:

	http.Handle("/metrics", metrics.Handler())

# See Also

  - pkg/agent for where these metrics are recorded
*/
package metrics
