package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openfroyo/factory/pkg/stores"
	"github.com/openfroyo/factory/pkg/telemetry"
)

func newCreateCommand() *cobra.Command {
	var (
		sets     []string
		count    int
		truncate bool
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create records in the configured model store",
		Long: `Create builds attributes like build and persists them in the store
selected by the store settings. The factory's model is bound before the
first record is created.`,
		Example: `  # Create two posts in a SQLite file
  FACTORY_STORE_DRIVER=sqlite FACTORY_STORE_DSN=./dev.db factory create post -n 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			overrides, err := parseOverrides(sets)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := newSession(nil)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			if _, err := s.load(ctx); err != nil {
				return err
			}

			f, err := s.registry.Lookup(args[0])
			if err != nil {
				return err
			}

			store, err := stores.Open(ctx, s.cfg.Store)
			if err != nil {
				return fmt.Errorf("failed to open %s store: %w", s.cfg.Store.Driver, err)
			}
			defer func() {
				if err := store.Close(); err != nil {
					s.log.Warn().Err(err).Msg("failed to close store")
				}
			}()

			modelID, err := store.BindModel(ctx, f.ModelName())
			if err != nil {
				return fmt.Errorf("failed to bind model %q: %w", f.ModelName(), err)
			}
			if truncate {
				if err := store.Truncate(ctx, modelID); err != nil {
					return err
				}
			}
			s.registry.SetStore(store)

			ctx, span := s.tel.Tracer.Start(ctx, "cli.create",
				attribute.String("factory.name", args[0]),
				attribute.Int("count", count),
			)
			defer span.End()

			for i := 0; i < count; i++ {
				rec, err := s.registry.Create(ctx, args[0], overrides)
				if err != nil {
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), rec); err != nil {
					return err
				}
			}

			s.log.Info().
				Str("factory", args[0]).
				Str("model", f.ModelID()).
				Str("driver", s.cfg.Store.Driver).
				Int("records", count).
				Str("trace_id", telemetry.TraceID(ctx)).
				Msg("records created")
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "override an attribute (key=value, repeatable)")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of records to create")
	cmd.Flags().BoolVar(&truncate, "truncate", false, "delete the model's existing records first")

	return cmd
}
