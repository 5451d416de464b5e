package agent

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/flotilla-dev/flotilla/pkg/convergence"
	"github.com/flotilla-dev/flotilla/pkg/events"
	"github.com/flotilla-dev/flotilla/pkg/log"
	"github.com/flotilla-dev/flotilla/pkg/metrics"
	"github.com/flotilla-dev/flotilla/pkg/model"
	"github.com/flotilla-dev/flotilla/pkg/state"
)

// DefaultInterval is the default time between convergence passes.
const DefaultInterval = 10 * time.Second

// Reporter records this node's observed state so other components (and, via
// a shared store, other nodes) can see it.
type Reporter interface {
	SaveNodeState(state model.NodeState) error
}

// Config carries the agent's collaborators and tuning knobs.
type Config struct {
	Hostname string
	Deployer *convergence.Deployer
	Runner   *convergence.Runner
	Source   state.Source
	Reporter Reporter
	Broker   *events.Broker

	// Interval between passes; DefaultInterval when zero.
	Interval time.Duration
}

// Agent runs the convergence loop for one node: observe local state, diff
// it against the desired configuration, and execute the resulting plan.
// Passes are strictly serialized; a trigger that arrives mid-pass schedules
// exactly one follow-up pass.
type Agent struct {
	hostname string
	deployer *convergence.Deployer
	runner   *convergence.Runner
	source   state.Source
	reporter Reporter
	broker   *events.Broker
	interval time.Duration
	logger   zerolog.Logger

	triggerCh chan struct{}
}

// New creates an agent from the given configuration.
func New(cfg Config) (*Agent, error) {
	if cfg.Hostname == "" {
		return nil, &model.ValidationError{Field: "hostname", Reason: "must not be empty"}
	}
	if cfg.Deployer == nil || cfg.Runner == nil || cfg.Source == nil {
		return nil, &model.ValidationError{Field: "agent", Reason: "deployer, runner and source are required"}
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Agent{
		hostname:  cfg.Hostname,
		deployer:  cfg.Deployer,
		runner:    cfg.Runner,
		source:    cfg.Source,
		reporter:  cfg.Reporter,
		broker:    cfg.Broker,
		interval:  interval,
		logger:    log.WithComponent("agent").With().Str("hostname", cfg.Hostname).Logger(),
		triggerCh: make(chan struct{}, 1),
	}, nil
}

// Trigger requests an immediate convergence pass. It never blocks; triggers
// arriving while a pass is queued or running coalesce into one.
func (a *Agent) Trigger() {
	select {
	case a.triggerCh <- struct{}{}:
	default:
	}
}

// Run executes convergence passes until ctx is cancelled. The first pass
// starts immediately.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info().Dur("interval", a.interval).Msg("Starting convergence loop")

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.converge(ctx)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("Stopping convergence loop")
			return ctx.Err()
		case <-ticker.C:
			a.converge(ctx)
		case <-a.triggerCh:
			a.converge(ctx)
		}
	}
}

// converge performs one pass. Failures mark the pass failed but never stop
// the loop; the next pass retries from freshly observed state.
func (a *Agent) converge(ctx context.Context) {
	timer := metrics.NewTimer()
	a.publish(events.EventPassStarted, "convergence pass started", nil)

	outcome := a.pass(ctx)

	elapsed := timer.Duration()
	timer.ObserveDuration(metrics.ConvergenceDuration)
	metrics.ConvergencePassesTotal.WithLabelValues(outcome).Inc()

	if elapsed > a.interval {
		metrics.ConvergenceOverrunsTotal.Inc()
		a.logger.Warn().
			Dur("elapsed", elapsed).
			Dur("interval", a.interval).
			Msg("Convergence pass overran the loop interval")
		a.publish(events.EventPassOverran,
			fmt.Sprintf("convergence pass took %s, interval is %s", elapsed, a.interval), nil)
	}
}

func (a *Agent) pass(ctx context.Context) string {
	discoveryTimer := metrics.NewTimer()
	observed, err := a.deployer.Discover(ctx)
	discoveryTimer.ObserveDuration(metrics.DiscoveryDuration)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to discover local state")
		a.publish(events.EventPassFailed, "local state discovery failed: "+err.Error(), nil)
		return "failed"
	}
	metrics.ObserveNodeState(observed)

	if a.reporter != nil {
		if err := a.reporter.SaveNodeState(observed); err != nil {
			// Reporting is best effort; convergence proceeds on the
			// fresh local observation either way.
			a.logger.Warn().Err(err).Msg("Failed to report node state")
		}
	}

	desired, err := a.source.Desired(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to load desired configuration")
		a.publish(events.EventPassFailed, "desired configuration unavailable: "+err.Error(), nil)
		return "failed"
	}

	cluster, err := a.source.Observed(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to load observed cluster state")
		a.publish(events.EventPassFailed, "observed cluster state unavailable: "+err.Error(), nil)
		return "failed"
	}
	// The local snapshot from this pass supersedes whatever the source
	// last recorded for this node.
	cluster = cluster.UpdateNodeState(observed)

	plan, err := a.deployer.CalculateChanges(desired, cluster)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to calculate changes")
		a.publish(events.EventPassFailed, "change calculation failed: "+err.Error(), nil)
		return "failed"
	}
	metrics.PlannedChanges.Set(float64(plan.Len()))

	if plan.Empty() {
		a.logger.Debug().Msg("Node has converged")
		a.publish(events.EventPassCompleted, "node has converged", nil)
		return "converged"
	}

	a.logger.Info().Int("changes", plan.Len()).Msg("Executing convergence plan")
	result := a.runner.Run(ctx, plan)

	for _, change := range result.Changes {
		kind := changeKind(change.Change)
		if change.Err != nil {
			metrics.ChangesAppliedTotal.WithLabelValues(kind, "failure").Inc()
			a.publish(events.EventChangeFailed, change.Change.String()+": "+change.Err.Error(),
				map[string]string{"kind": kind})
			continue
		}
		metrics.ChangesAppliedTotal.WithLabelValues(kind, "success").Inc()
		a.publish(events.EventChangeApplied, change.Change.String(),
			map[string]string{"kind": kind})
	}

	if result.Failed() {
		failures := len(result.Failures())
		a.logger.Warn().
			Int("failed", failures).
			Int("total", plan.Len()).
			Msg("Convergence pass finished with failures")
		a.publish(events.EventPassFailed,
			fmt.Sprintf("%d of %d changes failed", failures, plan.Len()),
			map[string]string{"failed": strconv.Itoa(failures)})
		return "failed"
	}

	a.logger.Info().Int("changes", plan.Len()).Msg("Convergence pass applied all changes")
	a.publish(events.EventPassCompleted,
		fmt.Sprintf("applied %d changes", plan.Len()),
		map[string]string{"changes": strconv.Itoa(plan.Len())})
	return "changed"
}

func (a *Agent) publish(eventType events.EventType, message string, metadata map[string]string) {
	if a.broker == nil {
		return
	}
	a.broker.Publish(&events.Event{
		Type:     eventType,
		Hostname: a.hostname,
		Message:  message,
		Metadata: metadata,
	})
}

func changeKind(change convergence.StateChange) string {
	switch change.(type) {
	case convergence.StartApplication:
		return "start_application"
	case convergence.StopApplication:
		return "stop_application"
	case convergence.CreateManifestation:
		return "create_manifestation"
	case convergence.DeleteManifestation:
		return "delete_manifestation"
	case convergence.HandoffManifestation:
		return "handoff_manifestation"
	default:
		return "unknown"
	}
}
