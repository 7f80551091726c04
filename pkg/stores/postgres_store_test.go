package stores

import (
	"context"
	"os"
	"testing"

	"github.com/openfroyo/factory/pkg/factory"
)

// Postgres tests need a live server; set FACTORY_POSTGRES_DSN to run them.
func postgresDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("FACTORY_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FACTORY_POSTGRES_DSN not set")
	}
	return dsn
}

func TestPostgresStore_Rebind(t *testing.T) {
	s, err := NewPostgresStore(Config{DSN: "postgres://localhost/factory"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	got := s.rebind("INSERT INTO t (a, b) VALUES (?, ?)")
	if got != "INSERT INTO t (a, b) VALUES ($1, $2)" {
		t.Fatalf("unexpected rebind: %s", got)
	}
	if s.Ready() {
		t.Fatal("store should not be ready before Init")
	}
}

func TestPostgresStore_CreateAndList(t *testing.T) {
	dsn := postgresDSN(t)
	ctx := context.Background()

	store, err := Open(ctx, Config{Driver: DriverPostgres, DSN: dsn})
	if err != nil {
		t.Fatalf("failed to open postgres store: %v", err)
	}
	defer store.Close()

	id, err := store.BindModel(ctx, "FactoryTestModel")
	if err != nil {
		t.Fatalf("failed to bind model: %v", err)
	}

	before, err := store.Records(ctx, id)
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}

	if _, err := store.CreateRecord(ctx, id, factory.Attrs{"name": "ada", "n": 1}); err != nil {
		t.Fatalf("failed to create record: %v", err)
	}

	after, err := store.Records(ctx, id)
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	if len(after) != len(before)+1 {
		t.Fatalf("expected one more record, got %d -> %d", len(before), len(after))
	}
	if last := after[len(after)-1]; last["name"] != "ada" {
		t.Fatalf("unexpected record %v", last)
	}
}
