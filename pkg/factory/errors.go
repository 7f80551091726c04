package factory

import (
	"errors"
	"fmt"
)

// ErrorKind classifies factory failures. None of them are retried.
type ErrorKind string

const (
	// KindUndefinedFactory means a name was not found in the registry.
	KindUndefinedFactory ErrorKind = "undefined_factory"

	// KindStoreUnavailable means Create ran without a ready model store.
	KindStoreUnavailable ErrorKind = "store_unavailable"

	// KindUnknownModel means the model id has no bound model in the store.
	KindUnknownModel ErrorKind = "unknown_model"

	// KindStoreOperation means the store rejected the record. Err holds the cause.
	KindStoreOperation ErrorKind = "store_operation"

	// KindGenerator means a dynamic attribute returned an error.
	KindGenerator ErrorKind = "generator"
)

// FactoryError is a classified factory failure.
// nolint:revive // FactoryError reads better than Error at call sites
type FactoryError struct {
	// Kind is the failure class.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable message.
	Message string `json:"message"`

	// Factory is the factory name involved, if any.
	Factory string `json:"factory,omitempty"`

	// Model is the canonical model id involved, if any.
	Model string `json:"model,omitempty"`

	// Attribute is the attribute whose generator failed, if any.
	Attribute string `json:"attribute,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Sentinels for errors.Is. Matching compares Kind only.
var (
	ErrUndefinedFactory      = &FactoryError{Kind: KindUndefinedFactory, Message: "factory is undefined"}
	ErrModelStoreUnavailable = &FactoryError{Kind: KindStoreUnavailable, Message: "model store is not available"}
	ErrUnknownModel          = &FactoryError{Kind: KindUnknownModel, Message: "model is undefined"}
	ErrStoreOperation        = &FactoryError{Kind: KindStoreOperation, Message: "model store operation failed"}
	ErrGenerator             = &FactoryError{Kind: KindGenerator, Message: "attribute generator failed"}
)

// Error implements the error interface.
func (e *FactoryError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)

	switch {
	case e.Factory != "" && e.Model != "":
		msg += fmt.Sprintf(" (factory=%s, model=%s)", e.Factory, e.Model)
	case e.Factory != "":
		msg += fmt.Sprintf(" (factory=%s)", e.Factory)
	case e.Model != "":
		msg += fmt.Sprintf(" (model=%s)", e.Model)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *FactoryError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a FactoryError of the same kind.
func (e *FactoryError) Is(target error) bool {
	t, ok := target.(*FactoryError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithFactory sets the factory name when it is not already known.
func (e *FactoryError) WithFactory(name string) *FactoryError {
	if e.Factory == "" {
		e.Factory = name
	}
	return e
}

// WithModel sets the model id when it is not already known.
func (e *FactoryError) WithModel(modelID string) *FactoryError {
	if e.Model == "" {
		e.Model = modelID
	}
	return e
}

// NewUndefinedFactoryError reports a registry miss for name.
func NewUndefinedFactoryError(name string) *FactoryError {
	return &FactoryError{
		Kind:    KindUndefinedFactory,
		Message: fmt.Sprintf("factory %q is undefined", name),
		Factory: name,
	}
}

// NewStoreUnavailableError reports a missing or closed model store.
func NewStoreUnavailableError(reason string) *FactoryError {
	msg := "model store is not available"
	if reason != "" {
		msg += ": " + reason
	}
	return &FactoryError{
		Kind:    KindStoreUnavailable,
		Message: msg,
	}
}

// NewUnknownModelError reports a model id the store does not know.
func NewUnknownModelError(modelID string) *FactoryError {
	return &FactoryError{
		Kind:    KindUnknownModel,
		Message: fmt.Sprintf("model %q is undefined", modelID),
		Model:   modelID,
	}
}

// NewStoreOperationError wraps a store failure, keeping err inspectable.
func NewStoreOperationError(factoryName, modelID string, err error) *FactoryError {
	return &FactoryError{
		Kind:    KindStoreOperation,
		Message: "failed to create record",
		Factory: factoryName,
		Model:   modelID,
		Err:     err,
	}
}

// NewGeneratorError wraps a generator failure for attribute.
func NewGeneratorError(attribute string, err error) *FactoryError {
	return &FactoryError{
		Kind:      KindGenerator,
		Message:   fmt.Sprintf("attribute %q generator failed", attribute),
		Attribute: attribute,
		Err:       err,
	}
}

// IsUndefinedFactory reports whether err is an undefined-factory failure.
func IsUndefinedFactory(err error) bool {
	return errors.Is(err, ErrUndefinedFactory)
}

// IsStoreUnavailable reports whether err is a store-unavailable failure.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrModelStoreUnavailable)
}

// IsUnknownModel reports whether err is an unknown-model failure.
func IsUnknownModel(err error) bool {
	return errors.Is(err, ErrUnknownModel)
}

// IsStoreOperation reports whether err is a wrapped store failure.
func IsStoreOperation(err error) bool {
	return errors.Is(err, ErrStoreOperation)
}

// kindOf returns the kind of the outermost FactoryError in err's chain.
func kindOf(err error) ErrorKind {
	var fe *FactoryError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
