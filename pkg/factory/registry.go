package factory

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/factory/pkg/telemetry"
)

// DefineFunc registers a factory. It is the entry point handed to definition
// loaders.
type DefineFunc func(name string, modelName ...string) *Factory

// Registry maps factory names to factories.
type Registry struct {
	// mu protects factories, order and store.
	mu sync.RWMutex

	// factories maps factory name to its latest definition.
	factories map[string]*Factory

	// order keeps first-definition order for Names.
	order []string

	// store receives records from Create.
	store ModelStore

	logger  zerolog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore sets the model store used by Create.
func WithStore(store ModelStore) Option {
	return func(r *Registry) {
		r.store = store
	}
}

// WithLogger sets the logger for registry and factory events.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger.With().Str("component", "factory").Logger()
	}
}

// WithMetrics records builds, creates and errors on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithTracer sets the tracer used for Create spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) {
		r.tracer = t
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		factories: make(map[string]*Factory),
		logger:    zerolog.Nop(),
		tracer:    otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Define creates a factory and registers it under name, replacing any
// existing definition. Without a model name the factory name is used.
func (r *Registry) Define(name string, modelName ...string) *Factory {
	return r.define(name, firstNonEmpty(modelName), "")
}

// Definer returns a DefineFunc whose factories default to defaultModel when
// no model name is given. Such a default still yields to a parent's model.
func (r *Registry) Definer(defaultModel string) DefineFunc {
	return func(name string, modelName ...string) *Factory {
		return r.define(name, firstNonEmpty(modelName), defaultModel)
	}
}

func (r *Registry) define(name, modelName, defaultModel string) *Factory {
	f := newFactory(r, name, modelName, defaultModel)

	r.mu.Lock()
	_, replaced := r.factories[name]
	if !replaced {
		r.order = append(r.order, name)
	}
	r.factories[name] = f
	count := len(r.factories)
	r.mu.Unlock()

	r.metrics.SetDefinitions(count)
	r.logger.Debug().
		Str("factory", name).
		Str("model", f.modelID).
		Bool("replaced", replaced).
		Msg("factory defined")

	return f
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (*Factory, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		err := NewUndefinedFactoryError(name)
		r.metrics.RecordError(string(err.Kind))
		return nil, err
	}
	return f, nil
}

// Build resolves name and builds it.
func (r *Registry) Build(name string, overrides Attrs, opts ...CallOption) (Attrs, error) {
	f, err := r.Lookup(name)
	if err != nil {
		newCallConfig(opts).deliverAttrs(nil, err)
		return nil, err
	}
	return f.Build(overrides, opts...)
}

// Create resolves name and creates a record. An unknown name fails before
// the store is touched.
func (r *Registry) Create(ctx context.Context, name string, overrides Attrs, opts ...CallOption) (Record, error) {
	f, err := r.Lookup(name)
	if err != nil {
		newCallConfig(opts).deliverRecord(nil, err)
		return nil, err
	}
	return f.Create(ctx, overrides, opts...)
}

// CreateAsync resolves name and starts an asynchronous create.
func (r *Registry) CreateAsync(ctx context.Context, name string, overrides Attrs) *Pending {
	f, err := r.Lookup(name)
	if err != nil {
		p := newPending()
		p.resolve(nil, err)
		return p
	}
	return f.CreateAsync(ctx, overrides)
}

// Names returns registered names in first-definition order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered factories.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// Reset removes every factory. The store and instrumentation are kept.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.factories = make(map[string]*Factory)
	r.order = nil
	r.mu.Unlock()

	r.metrics.SetDefinitions(0)
	r.logger.Debug().Msg("registry reset")
}

// SetStore replaces the model store used by Create.
func (r *Registry) SetStore(store ModelStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store = store
}

// Store returns the current model store, which may be nil.
func (r *Registry) Store() ModelStore {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store
}
