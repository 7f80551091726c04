package stores

import (
	"context"
	"time"

	"github.com/openfroyo/factory/pkg/factory"
)

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is a factory.ModelStore that can also bind and list models.
type Store interface {
	factory.ModelStore

	// BindModel registers name and returns its canonical model id. Binding
	// an already bound model is a no-op.
	BindModel(ctx context.Context, name string) (string, error)

	// Models returns the bound model ids in sorted order.
	Models(ctx context.Context) ([]string, error)

	// Records returns the records of modelID in insertion order.
	Records(ctx context.Context, modelID string) ([]factory.Record, error)

	// Count returns the number of records of modelID.
	Count(ctx context.Context, modelID string) (int, error)

	// Truncate deletes every record of modelID and keeps the binding.
	Truncate(ctx context.Context, modelID string) error

	// Close releases the store. A closed store is no longer Ready.
	Close() error
}

// Config selects and configures a store.
type Config struct {
	// Driver is one of memory, sqlite or postgres.
	Driver string `mapstructure:"driver" validate:"required,oneof=memory sqlite postgres"`

	// DSN is the SQLite path or the Postgres connection string.
	DSN string `mapstructure:"dsn" validate:"required_unless=Driver memory"`

	// Models are bound when the store is opened.
	Models []string `mapstructure:"models"`

	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// recordIDKey is the attribute a store fills in when attrs carry no id.
const recordIDKey = "id"

// newRecord copies attrs into a record, adding rowID under "id" when the
// attributes do not define one.
func newRecord(attrs factory.Attrs, rowID string) factory.Record {
	rec := make(factory.Record, len(attrs)+1)
	for k, v := range attrs {
		rec[k] = v
	}
	if _, ok := rec[recordIDKey]; !ok {
		rec[recordIDKey] = rowID
	}
	return rec
}
