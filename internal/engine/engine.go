// Package engine executes a validated schedule step by step, threading the
// evolving numeric state and collecting observables.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/san-kum/qsched/internal/results"
	"github.com/san-kum/qsched/internal/routine"
	"github.com/san-kum/qsched/internal/schedule"
)

// Propagator advances a state from t to t+dt. Supplied by the numeric
// backend; invoked only for steps that declare advance_time.
type Propagator func(state any, t, dt float64) (any, error)

// StepEvent describes one completed schedule step.
type StepEvent struct {
	Index     int
	Total     int
	Routine   string
	Time      float64
	ResultKey string
	Result    any
}

// Observer receives an event after each completed step.
type Observer interface {
	OnStep(ev StepEvent)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev StepEvent)

func (f ObserverFunc) OnStep(ev StepEvent) { f(ev) }

// Engine executes one schedule. It exclusively owns the current state while
// running; the state is replaced, never mutated, after each state-producing
// step so every version is a distinct value.
type Engine struct {
	sched     *schedule.Schedule
	reg       *routine.Registry
	prop      Propagator
	ext       []any
	observers []Observer
	logger    *slog.Logger
	startTime float64

	mu     sync.Mutex
	status Status
	time   float64
}

// Option customizes an engine instance.
type Option func(*Engine)

// WithPropagator supplies the backend's time propagator.
func WithPropagator(p Propagator) Option {
	return func(e *Engine) { e.prop = p }
}

// WithExternalArgs supplies the fixed positional arguments bound after the
// state on every invocation (system parameters and the like).
func WithExternalArgs(ext ...any) Option {
	return func(e *Engine) { e.ext = ext }
}

// WithStartTime overrides the schedule's configured start time.
func WithStartTime(t float64) Option {
	return func(e *Engine) {
		e.startTime = t
	}
}

// WithObserver registers a per-step observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithLogger sets the progress logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New constructs an idle engine for a schedule that has already passed
// schedule.Validate against reg.
func New(sched *schedule.Schedule, reg *routine.Registry, opts ...Option) *Engine {
	e := &Engine{
		sched:     sched,
		reg:       reg,
		logger:    slog.Default(),
		startTime: sched.StartTime,
		status:    StatusIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Time returns the current system time counter.
func (e *Engine) Time() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.time
}

// Run executes every step in order, starting from initial. It returns the
// result store, the final state, and the first unrecoverable error. On
// failure or cancellation the store holds every result computed before the
// aborting step; partial progress is never discarded.
func (e *Engine) Run(ctx context.Context, initial any) (*results.Store, any, error) {
	if err := e.transition(StatusRunning); err != nil {
		return nil, nil, ErrAlreadyRunning
	}

	store := results.New()
	state := initial
	t := e.startTime
	e.setTime(t)
	total := len(e.sched.Steps)

	for i, step := range e.sched.Steps {
		// Cancellation is checked between steps only; routines are
		// opaque and always run to completion.
		if err := ctx.Err(); err != nil {
			e.mustTransition(StatusCancelled)
			return store, state, &CancelledError{Step: i, Err: err}
		}

		args, kwargs, err := e.resolveArgs(i, step, store)
		if err != nil {
			e.mustTransition(StatusFailed)
			return store, state, err
		}

		out, err := e.reg.Invoke(ctx, i, step.Name, state, e.ext, args, kwargs)
		if err != nil {
			// Cancellation that lands after the per-step check above is
			// still a cancellation, not a routine failure.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				e.mustTransition(StatusCancelled)
				return store, state, &CancelledError{Step: i, Err: err}
			}
			e.mustTransition(StatusFailed)
			return store, state, err
		}

		if step.ProducesState {
			state = out
		}
		if step.ResultKey != "" {
			store.Put(step.ResultKey, out)
		}

		if step.AdvanceTime != nil {
			dt := *step.AdvanceTime
			if e.prop == nil {
				e.mustTransition(StatusFailed)
				return store, state, &PropagatorError{Step: i, Time: t, Err: ErrNoPropagator}
			}
			next, propErr := e.prop(state, t, dt)
			if propErr != nil {
				e.mustTransition(StatusFailed)
				return store, state, &PropagatorError{Step: i, Time: t, Err: propErr}
			}
			state = next
			t += dt
			e.setTime(t)
		}

		e.logger.Debug("step complete",
			"schedule", e.sched.Label,
			"step", i+1,
			"of", total,
			"routine", step.Name,
			"time", t,
			"result_key", step.ResultKey)

		ev := StepEvent{
			Index:     i,
			Total:     total,
			Routine:   step.Name,
			Time:      t,
			ResultKey: step.ResultKey,
			Result:    out,
		}
		for _, o := range e.observers {
			o.OnStep(ev)
		}
	}

	e.mustTransition(StatusCompleted)
	return store, state, nil
}

// resolveArgs substitutes result-store references in the step's arguments.
func (e *Engine) resolveArgs(idx int, step schedule.Step, store *results.Store) ([]any, map[string]any, error) {
	// Arguments are copied before substitution so the schedule itself stays
	// immutable and a re-run resolves against its own store.
	var args []any
	if step.Args != nil {
		args = make([]any, len(step.Args))
		copy(args, step.Args)
		for i, a := range args {
			if key, ok := schedule.RefKey(a); ok {
				v, found := store.Get(key)
				if !found {
					return nil, nil, &ReferenceError{Step: idx, Key: key}
				}
				args[i] = v
			}
		}
	}

	var kwargs map[string]any
	if step.Kwargs != nil {
		kwargs = make(map[string]any, len(step.Kwargs))
		for name, v := range step.Kwargs {
			if key, ok := schedule.RefKey(v); ok {
				stored, found := store.Get(key)
				if !found {
					return nil, nil, &ReferenceError{Step: idx, Key: key}
				}
				kwargs[name] = stored
				continue
			}
			kwargs[name] = v
		}
	}
	return args, kwargs, nil
}

func (e *Engine) setTime(t float64) {
	e.mu.Lock()
	e.time = t
	e.mu.Unlock()
}

// mustTransition is used for transitions that cannot fail by construction.
func (e *Engine) mustTransition(to Status) {
	if err := e.transition(to); err != nil {
		panic(err)
	}
}
