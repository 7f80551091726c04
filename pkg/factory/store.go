package factory

import "context"

// Record is a persisted attribute set as returned by a ModelStore.
type Record map[string]any

// ModelStore persists evaluated attributes. Implementations live outside the
// core; see package stores.
type ModelStore interface {
	// Ready reports whether the store can accept records.
	Ready() bool

	// HasModel reports whether modelID is bound to a model.
	HasModel(modelID string) bool

	// CreateRecord persists attrs for modelID. Unknown models should fail
	// with an error matching ErrUnknownModel, a closed store with one
	// matching ErrModelStoreUnavailable.
	CreateRecord(ctx context.Context, modelID string, attrs Attrs) (Record, error)
}
