package factory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/factory/pkg/telemetry"
)

const instrumentationName = "github.com/openfroyo/factory/pkg/factory"

var nopLogger = zerolog.Nop()

// Factory is a named attribute template for one logical model.
type Factory struct {
	mu sync.RWMutex

	name      string
	modelName string
	modelID   string

	// explicitModel is set when define received a model name. Only factories
	// without one take over their parent's model.
	explicitModel  bool
	modelInherited bool

	attrs    *Table
	seq      *Sequences
	registry *Registry

	// err holds a failed Parent call; Build and Create return it.
	err error
}

// New creates a factory that is not registered anywhere. Parent always fails
// on such a factory and Create reports the store as unavailable.
func New(name string, modelName ...string) *Factory {
	return newFactory(nil, name, firstNonEmpty(modelName), "")
}

func newFactory(reg *Registry, name, modelName, defaultModel string) *Factory {
	f := &Factory{
		name:     name,
		attrs:    NewTable(),
		seq:      NewSequences(),
		registry: reg,
	}

	switch {
	case modelName != "":
		f.modelName = modelName
		f.explicitModel = true
	case defaultModel != "":
		f.modelName = defaultModel
	default:
		f.modelName = name
	}
	f.modelID = ModelID(f.modelName)

	return f
}

// Name returns the registry key.
func (f *Factory) Name() string {
	return f.name
}

// ModelName returns the model name as given, or as adopted from a parent.
func (f *Factory) ModelName() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.modelName
}

// ModelID returns the canonical model id used for store lookups.
func (f *Factory) ModelID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.modelID
}

// Attributes returns the attribute names in definition order.
func (f *Factory) Attributes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.attrs.Names()
}

// Attribute returns the slot stored under name.
func (f *Factory) Attribute(name string) (Value, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.attrs.Get(name)
}

// Sequences returns the factory's counters. Counters inherited from a parent
// are the parent's cells.
func (f *Factory) Sequences() *Sequences {
	return f.seq
}

// Err returns the error recorded by a failed Parent call.
func (f *Factory) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

// Attr sets an attribute and returns f for chaining.
func (f *Factory) Attr(name string, value any, opts ...AttrOption) *Factory {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := f.attrs.Set(name, value, opts...)
	if v.Kind() == ValueSequenced {
		// A sequenced attribute counts on its own cell whether Parent ran
		// before or after it.
		f.seq.Own(name)
	}
	return f
}

// Parent adopts the attributes and counters of the named factory and returns f
// for chaining. A lookup failure is kept and returned by Build and Create.
func (f *Factory) Parent(name string) *Factory {
	if _, err := f.ParentE(name); err != nil {
		f.mu.Lock()
		if f.err == nil {
			f.err = err
		}
		f.mu.Unlock()
	}
	return f
}

// ParentE is Parent with the lookup error returned directly.
func (f *Factory) ParentE(name string) (*Factory, error) {
	if f.registry == nil {
		return f, NewUndefinedFactoryError(name)
	}

	parent, err := f.registry.Lookup(name)
	if err != nil {
		return f, err
	}
	if parent == f {
		return f, nil
	}

	f.adopt(parent)

	log := f.logger()
	log.Debug().
		Str("factory", f.name).
		Str("parent", name).
		Str("model", f.ModelID()).
		Msg("factory adopted parent")

	return f, nil
}

func (f *Factory) adopt(parent *Factory) {
	parent.mu.RLock()
	defer parent.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.attrs.Merge(parent.attrs)
	f.seq.Adopt(parent.seq)

	if !f.explicitModel && !f.modelInherited {
		f.modelName = parent.modelName
		f.modelID = parent.modelID
		f.modelInherited = true
	}
}

// Build evaluates the factory's attributes merged with overrides. It performs
// no I/O; it fails only on a recorded Parent error or a failing GeneratorE.
func (f *Factory) Build(overrides Attrs, opts ...CallOption) (Attrs, error) {
	call := newCallConfig(opts)

	attrs, err := f.evaluate(overrides)
	if err == nil {
		f.metrics().RecordBuild(f.name)
	}

	call.deliverAttrs(attrs, err)
	return attrs, err
}

// Create evaluates the attributes like Build and persists them through the
// registry's model store. Store and model checks run before evaluation, so a
// rejected call does not advance any sequence.
func (f *Factory) Create(ctx context.Context, overrides Attrs, opts ...CallOption) (Record, error) {
	call := newCallConfig(opts)

	rec, err := f.create(ctx, overrides)

	call.deliverRecord(rec, err)
	return rec, err
}

// CreateAsync evaluates the attributes immediately, in call order, and runs
// only the store call in the background.
func (f *Factory) CreateAsync(ctx context.Context, overrides Attrs) *Pending {
	p := newPending()

	store, attrs, err := f.prepare(overrides)
	if err != nil {
		p.resolve(nil, err)
		return p
	}

	go func() {
		rec, err := f.persist(ctx, store, attrs)
		p.resolve(rec, err)
	}()

	return p
}

func (f *Factory) create(ctx context.Context, overrides Attrs) (Record, error) {
	store, attrs, err := f.prepare(overrides)
	if err != nil {
		return nil, err
	}
	return f.persist(ctx, store, attrs)
}

// prepare checks the store and model binding, then evaluates.
func (f *Factory) prepare(overrides Attrs) (ModelStore, Attrs, error) {
	modelID := f.ModelID()

	store := f.store()
	if store == nil || !store.Ready() {
		err := NewStoreUnavailableError("").WithFactory(f.name).WithModel(modelID)
		f.metrics().RecordError(string(err.Kind))
		return nil, nil, err
	}

	if !store.HasModel(modelID) {
		err := NewUnknownModelError(modelID).WithFactory(f.name)
		f.metrics().RecordError(string(err.Kind))
		return nil, nil, err
	}

	attrs, err := f.evaluate(overrides)
	if err != nil {
		return nil, nil, err
	}
	return store, attrs, nil
}

func (f *Factory) persist(ctx context.Context, store ModelStore, attrs Attrs) (Record, error) {
	modelID := f.ModelID()
	log := f.logger()

	ctx, span := f.tracer().Start(ctx, "factory.create", trace.WithAttributes(
		attribute.String("factory.name", f.name),
		attribute.String("factory.model", modelID),
		attribute.Int("factory.attributes", len(attrs)),
	))
	defer span.End()

	start := time.Now()
	rec, err := store.CreateRecord(ctx, modelID, attrs)
	elapsed := time.Since(start)

	if err != nil {
		err = classifyStoreError(f.name, modelID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.metrics().RecordCreate(f.name, "error", elapsed)
		f.metrics().RecordError(string(kindOf(err)))
		log.Error().
			Err(err).
			Str("factory", f.name).
			Str("model", modelID).
			Msg("record creation failed")
		return nil, err
	}

	f.metrics().RecordCreate(f.name, "ok", elapsed)
	log.Debug().
		Str("factory", f.name).
		Str("model", modelID).
		Dur("duration", elapsed).
		Msg("record created")

	return rec, nil
}

// evaluate resolves a snapshot of the table outside the lock, so generators
// may call back into the registry.
func (f *Factory) evaluate(overrides Attrs) (Attrs, error) {
	f.mu.RLock()
	if f.err != nil {
		err := f.err
		f.mu.RUnlock()
		return nil, err
	}
	table := f.attrs.clone()
	f.mu.RUnlock()

	attrs, err := table.Evaluate(f.seq, overrides)
	if err != nil {
		var fe *FactoryError
		if errors.As(err, &fe) {
			fe.WithFactory(f.name)
		}
		f.metrics().RecordError(string(kindOf(err)))
		return nil, err
	}
	return attrs, nil
}

// classifyStoreError keeps store-reported availability and model errors as
// they are and wraps everything else as a store operation failure.
func classifyStoreError(factoryName, modelID string, err error) error {
	var fe *FactoryError
	if errors.As(err, &fe) && (fe.Kind == KindStoreUnavailable || fe.Kind == KindUnknownModel) {
		classified := *fe
		classified.WithFactory(factoryName).WithModel(modelID)
		return &classified
	}
	return NewStoreOperationError(factoryName, modelID, err)
}

func (f *Factory) store() ModelStore {
	if f.registry == nil {
		return nil
	}
	return f.registry.Store()
}

func (f *Factory) logger() *zerolog.Logger {
	if f.registry == nil {
		return &nopLogger
	}
	return &f.registry.logger
}

func (f *Factory) metrics() *telemetry.Metrics {
	if f.registry == nil {
		return nil
	}
	return f.registry.metrics
}

func (f *Factory) tracer() trace.Tracer {
	if f.registry == nil || f.registry.tracer == nil {
		return otel.Tracer(instrumentationName)
	}
	return f.registry.tracer
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
