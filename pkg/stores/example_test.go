package stores_test

import (
	"context"
	"fmt"
	"log"

	"github.com/openfroyo/factory/pkg/factory"
	"github.com/openfroyo/factory/pkg/stores"
)

// ExampleOpen opens an in-memory SQLite store and creates records through a
// registry.
func ExampleOpen() {
	ctx := context.Background()

	store, err := stores.Open(ctx, stores.Config{
		Driver: stores.DriverSQLite,
		DSN:    ":memory:",
		Models: []string{"User"},
	})
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	reg := factory.NewRegistry(factory.WithStore(store))
	reg.Define("user", "User").Attr("email", "user%d@example.com", factory.AutoIncrement(true))

	for i := 0; i < 2; i++ {
		if _, err := reg.Create(ctx, "user", nil); err != nil {
			log.Fatal(err)
		}
	}

	records, _ := store.Records(ctx, "user")
	for _, rec := range records {
		fmt.Println(rec["email"])
	}
	// Output:
	// user1@example.com
	// user2@example.com
}
