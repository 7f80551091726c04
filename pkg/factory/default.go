package factory

import (
	"context"
	"sync"
)

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry, creating it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Define registers a factory in the default registry.
func Define(name string, modelName ...string) *Factory {
	return Default().Define(name, modelName...)
}

// Build builds a factory from the default registry.
func Build(name string, overrides Attrs, opts ...CallOption) (Attrs, error) {
	return Default().Build(name, overrides, opts...)
}

// Create creates a record through the default registry.
func Create(ctx context.Context, name string, overrides Attrs, opts ...CallOption) (Record, error) {
	return Default().Create(ctx, name, overrides, opts...)
}

// SetStore sets the model store of the default registry.
func SetStore(store ModelStore) {
	Default().SetStore(store)
}

// Reset clears the default registry between test runs.
func Reset() {
	Default().Reset()
}
