package routine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/san-kum/qsched/internal/cache"
)

// Registry maintains the known routines. Registration happens before a run
// begins; the registry is treated as immutable while schedules execute,
// though it may be shared across concurrent engines.
type Registry struct {
	mu       sync.RWMutex
	routines map[string]Routine
	cache    *cache.Cache
	logger   *slog.Logger
}

// Option customizes a registry instance.
type Option func(*Registry)

// WithCache injects the cache service consulted for cachable routines.
// Without a cache every invocation computes.
func WithCache(c *cache.Cache) Option {
	return func(r *Registry) { r.cache = c }
}

// WithLogger sets the logger used for cache-degradation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		routines: make(map[string]Routine),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a routine. A name can be registered at most once.
func (r *Registry) Register(rt Routine) error {
	if err := rt.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.routines[rt.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRoutine, rt.Name)
	}
	r.routines[rt.Name] = rt
	return nil
}

// Resolve returns the routine registered under name.
func (r *Registry) Resolve(name string) (Routine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.routines[name]
	if !ok {
		return Routine{}, fmt.Errorf("%w: %s", ErrUnknownRoutine, name)
	}
	return rt, nil
}

// Names returns the sorted registered routine names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.routines))
	for name := range r.routines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke resolves name and calls it with the fixed context prefix (state,
// external arguments) followed by the step's free-form arguments. Cachable
// routines consult the cache first; any cache-key failure degrades to an
// uncached call. Failures from the routine itself are returned as
// *ExecutionError carrying the routine name and step index. A cancelled ctx
// stops Invoke before the routine runs; routines themselves are opaque and
// never interrupted.
func (r *Registry) Invoke(ctx context.Context, step int, name string, state any, ext []any, args []any, kwargs map[string]any) (any, error) {
	rt, err := r.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("step %d: %w", step, err)
	}

	call := func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return r.call(rt, step, state, ext, args, kwargs)
	}

	if !rt.Cachable || r.cache == nil {
		return call()
	}

	key, keyErr := r.cacheKey(rt, state, ext, args, kwargs)
	if keyErr != nil {
		r.logger.Warn("cache degraded to uncached call",
			"routine", name, "step", step, "reason", keyErr)
		return call()
	}

	v, _, err := r.cache.GetOrCompute(key, call)
	return v, err
}

func (r *Registry) cacheKey(rt Routine, state any, ext []any, args []any, kwargs map[string]any) (cache.Key, error) {
	fingerprint := ""
	if rt.StateDependent {
		f, ok := state.(cache.Fingerprinter)
		if !ok {
			return "", fmt.Errorf("%w: state %T has no fingerprint", cache.ErrUnkeyable, state)
		}
		fingerprint = f.Fingerprint()
	}
	return cache.NewKey(rt.Name, fingerprint, ext, args, kwargs)
}

// call runs the routine, converting panics and errors into *ExecutionError.
func (r *Registry) call(rt Routine, step int, state any, ext []any, args []any, kwargs map[string]any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &ExecutionError{Routine: rt.Name, Step: step, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	out, callErr := rt.Fn(state, ext, args, kwargs)
	if callErr != nil {
		return nil, &ExecutionError{Routine: rt.Name, Step: step, Err: callErr}
	}
	return out, nil
}
