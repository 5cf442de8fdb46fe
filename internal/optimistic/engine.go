package optimistic

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Resolver receives the temporary id outcomes of finished mutations.
type Resolver interface {
	Resolve(tempID, realID string)
	Abandon(tempID string)
}

// Engine runs mutations against one snapshot store.
type Engine[V any] struct {
	store  Store[V]
	ids    Resolver
	logger *slog.Logger
}

// NewEngine creates an engine over store. ids may be nil when no mutation
// mints temporary ids.
func NewEngine[V any](store Store[V], ids Resolver, logger *slog.Logger) *Engine[V] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine[V]{store: store, ids: ids, logger: logger}
}

// Store returns the engine's snapshot store.
func (e *Engine[V]) Store() Store[V] {
	return e.store
}

// Options parameterize a mutation. Speculate and Commit must be pure: they get
// the current snapshot and return a new one without modifying their input.
type Options[V, Vars, R any] struct {
	Name string

	// Remote performs the call against the remote store.
	Remote func(ctx context.Context, vars Vars) (R, error)

	// Speculate computes the snapshot assuming the call succeeds. Returning
	// false leaves the cache untouched.
	Speculate func(cur V, vars Vars) (V, bool)

	// Commit merges the remote result into the current snapshot. Optional; the
	// speculative snapshot stands when nil.
	Commit func(cur V, result R, vars Vars) V

	// Resolve maps the temporary ids carried by vars to the real ids in result.
	Resolve func(result R, vars Vars) map[string]string

	// TempIDs lists the temporary ids this call would resolve. They are
	// abandoned when the call fails.
	TempIDs func(vars Vars) []string
}

// Mutation is a reusable speculate/remote/commit pipeline.
type Mutation[V, Vars, R any] struct {
	engine *Engine[V]
	opts   Options[V, Vars, R]
}

func NewMutation[V, Vars, R any](e *Engine[V], opts Options[V, Vars, R]) *Mutation[V, Vars, R] {
	if opts.Remote == nil {
		panic(fmt.Sprintf("optimistic: mutation %q has no Remote", opts.Name))
	}
	return &Mutation[V, Vars, R]{engine: e, opts: opts}
}

// Snapshot is a cache entry captured before a speculative write.
type Snapshot[V any] struct {
	Value   V
	Present bool
}

// Capture reads the current snapshot for key without changing it.
func (e *Engine[V]) Capture(key Key) Snapshot[V] {
	v, ok := e.store.Get(key)
	return Snapshot[V]{Value: v, Present: ok}
}

// Restore writes snap back verbatim, removing the key if it was absent.
func (e *Engine[V]) Restore(key Key, snap Snapshot[V]) {
	e.store.Update(key, func(V, bool) (V, bool) {
		return snap.Value, snap.Present
	})
}

// Start speculates and dispatches in one step.
func (m *Mutation[V, Vars, R]) Start(ctx context.Context, key Key, vars Vars) *Call[R] {
	return m.Dispatch(ctx, key, vars, m.Speculate(key, vars))
}

// Speculate writes the speculative snapshot for vars and returns what the cache
// held before. The read and the write happen atomically.
func (m *Mutation[V, Vars, R]) Speculate(key Key, vars Vars) Snapshot[V] {
	var before Snapshot[V]
	m.engine.store.Update(key, func(cur V, ok bool) (V, bool) {
		before = Snapshot[V]{Value: cur, Present: ok}
		if m.opts.Speculate == nil || !ok {
			return cur, ok
		}
		next, changed := m.opts.Speculate(cur, vars)
		if !changed {
			return cur, ok
		}
		return next, true
	})
	return before
}

// Dispatch sends the remote call on its own goroutine. On success Commit runs
// against the snapshot current at that moment and the temporary ids resolve;
// on failure rollback is restored verbatim.
func (m *Mutation[V, Vars, R]) Dispatch(ctx context.Context, key Key, vars Vars, rollback Snapshot[V]) *Call[R] {
	call := newCall[R]()
	go func() {
		result, err := m.remote(ctx, key, vars)
		if err != nil {
			m.rollback(key, vars, rollback, err)
			call.complete(result, fmt.Errorf("%s: %w", m.opts.Name, err))
			return
		}
		m.commit(key, vars, result)
		call.complete(result, nil)
	}()
	return call
}

func (m *Mutation[V, Vars, R]) remote(ctx context.Context, key Key, vars Vars) (R, error) {
	ctx, span := tracer.Start(ctx, "optimistic."+m.opts.Name, trace.WithAttributes(
		attribute.String(mutationName, m.opts.Name),
		attribute.String("cache.key", key.String()),
	))
	defer span.End()

	start := time.Now()
	result, err := m.opts.Remote(ctx, vars)
	measureRemote(ctx, m.opts.Name, key, err == nil, time.Since(start))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (m *Mutation[V, Vars, R]) commit(key Key, vars Vars, result R) {
	if m.opts.Commit != nil {
		m.engine.store.Update(key, func(cur V, ok bool) (V, bool) {
			if !ok {
				return cur, false
			}
			return m.opts.Commit(cur, result, vars), true
		})
	}
	m.engine.logger.Debug("mutation committed", "mutation", m.opts.Name, "key", key.String())

	// Resolution replays queued work, which re-enters the store.
	if m.opts.Resolve == nil || m.engine.ids == nil {
		return
	}
	resolved := m.opts.Resolve(result, vars)
	for _, tempID := range slices.Sorted(maps.Keys(resolved)) {
		m.engine.ids.Resolve(tempID, resolved[tempID])
	}
}

func (m *Mutation[V, Vars, R]) rollback(key Key, vars Vars, snap Snapshot[V], cause error) {
	m.engine.Restore(key, snap)
	m.engine.logger.Warn("mutation rolled back",
		"mutation", m.opts.Name,
		"key", key.String(),
		"error", cause,
	)
	if m.opts.TempIDs == nil || m.engine.ids == nil {
		return
	}
	for _, tempID := range m.opts.TempIDs(vars) {
		m.engine.ids.Abandon(tempID)
	}
}
