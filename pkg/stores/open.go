package stores

import (
	"context"
	"fmt"
)

// Open creates, initializes and migrates the store selected by cfg, then
// binds cfg.Models.
func Open(ctx context.Context, cfg Config) (Store, error) {
	store, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	for _, name := range cfg.Models {
		if _, err := store.BindModel(ctx, name); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to bind model %q: %w", name, err)
		}
	}
	return store, nil
}

func open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil

	case DriverSQLite:
		s, err := NewSQLiteStore(cfg)
		if err != nil {
			return nil, err
		}
		if err := s.Init(ctx); err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil

	case DriverPostgres:
		s, err := NewPostgresStore(cfg)
		if err != nil {
			return nil, err
		}
		if err := s.Init(ctx); err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}
