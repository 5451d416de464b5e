package convergence

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/flotilla-dev/flotilla/pkg/log"
)

// ChangeResult records the outcome of one change.
type ChangeResult struct {
	Change StateChange
	Err    error
}

// Result records the outcomes of a whole plan, in plan order.
type Result struct {
	Changes []ChangeResult
}

// Failed reports whether any change in the pass failed.
func (r Result) Failed() bool {
	for _, c := range r.Changes {
		if c.Err != nil {
			return true
		}
	}
	return false
}

// Failures returns the failed changes in plan order.
func (r Result) Failures() []ChangeResult {
	var out []ChangeResult
	for _, c := range r.Changes {
		if c.Err != nil {
			out = append(out, c)
		}
	}
	return out
}

// Runner executes convergence plans. The phase order computed by the engine
// is a correctness requirement: the runner never starts a phase before every
// change of the previous one has finished. Within a phase, changes are
// independent and run with bounded concurrency. A change failure is recorded
// and the rest of the plan still runs; the next convergence pass recomputes
// a fresh plan from fresh observations, which retries whatever is still
// unconverged.
type Runner struct {
	deployer    *Deployer
	concurrency int
	logger      zerolog.Logger
}

// NewRunner creates a runner with the given per-phase concurrency bound.
// Concurrency below one means serial execution.
func NewRunner(deployer *Deployer, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		deployer:    deployer,
		concurrency: concurrency,
		logger:      log.WithComponent("runner"),
	}
}

// Run executes the plan and returns the per-change outcomes in plan order.
func (r *Runner) Run(ctx context.Context, plan Plan) Result {
	var result Result
	for _, phase := range plan.Phases() {
		result.Changes = append(result.Changes, r.runPhase(ctx, phase)...)
	}
	return result
}

func (r *Runner) runPhase(ctx context.Context, phase []StateChange) []ChangeResult {
	results := make([]ChangeResult, len(phase))

	if r.concurrency == 1 || len(phase) == 1 {
		for i, change := range phase {
			results[i] = ChangeResult{Change: change, Err: r.runChange(ctx, change)}
		}
		return results
	}

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for i, change := range phase {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = ChangeResult{Change: change, Err: r.runChange(ctx, change)}
		}()
	}
	wg.Wait()

	return results
}

func (r *Runner) runChange(ctx context.Context, change StateChange) error {
	r.logger.Info().
		Str("change", change.String()).
		Strs("datasets", change.Datasets()).
		Strs("applications", change.Applications()).
		Msg("applying change")

	if err := change.Run(ctx, r.deployer); err != nil {
		r.logger.Error().
			Err(err).
			Str("change", change.String()).
			Msg("change failed")
		return err
	}
	return nil
}
