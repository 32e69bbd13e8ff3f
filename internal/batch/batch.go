// Package batch executes several schedules concurrently, one engine per
// schedule. Schedules in a batch are independent: each gets its own result
// store and its own copy of the initial state, and a failure in one does not
// stop the others.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/qsched/internal/engine"
	"github.com/san-kum/qsched/internal/results"
	"github.com/san-kum/qsched/internal/schedule"
)

// Outcome is the complete record of one schedule's run.
type Outcome struct {
	Schedule  *schedule.Schedule
	Status    engine.Status
	Results   *results.Store
	FinalTime float64
	Err       error
}

// Factory builds the engine for one schedule. The batch calls it once per
// schedule so engines are never shared across goroutines.
type Factory func(s *schedule.Schedule) *engine.Engine

// Runner runs batches with a bounded degree of parallelism.
type Runner struct {
	factory Factory
	limit   int
}

// New returns a Runner. limit <= 0 means one goroutine per schedule.
func New(factory Factory, limit int) *Runner {
	return &Runner{factory: factory, limit: limit}
}

// Run executes every schedule and returns one Outcome per schedule, in the
// input order. initial must not be mutated by routines; state transforms
// return fresh values, so sharing the starting point is safe. The returned
// error is the first schedule error in input order, with every Outcome still
// populated so callers can inspect partial results.
func (r *Runner) Run(ctx context.Context, schedules []*schedule.Schedule, initial any) ([]Outcome, error) {
	outcomes := make([]Outcome, len(schedules))

	g, ctx := errgroup.WithContext(ctx)
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}
	for i, s := range schedules {
		i, s := i, s
		g.Go(func() error {
			eng := r.factory(s)
			store, _, err := eng.Run(ctx, initial)
			outcomes[i] = Outcome{
				Schedule:  s,
				Status:    eng.Status(),
				Results:   store,
				FinalTime: eng.Time(),
				Err:       err,
			}
			// Errors are reported per outcome, not through the group,
			// so sibling schedules keep running.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	for _, o := range outcomes {
		if o.Err != nil {
			return outcomes, o.Err
		}
	}
	return outcomes, nil
}
