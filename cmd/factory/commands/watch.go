package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Reload definitions whenever a file changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(args)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			return s.watch(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	return cmd
}

func newMetricsCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "metrics [dir]",
		Short: "Serve Prometheus metrics while watching definitions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(args)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			if listen != "" {
				s.cfg.Telemetry.Metrics.ListenAddress = listen
			}
			if !s.cfg.Telemetry.Metrics.Enabled {
				return fmt.Errorf("metrics are disabled in the configuration")
			}
			metricsCfg := s.cfg.Telemetry.Metrics
			s.log.Info().
				Str("address", metricsCfg.ListenAddress).
				Str("path", metricsCfg.Path).
				Msg("serving metrics")

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return s.tel.Metrics.ServeOn(ctx, metricsCfg.ListenAddress)
			})
			g.Go(func() error {
				return s.watch(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "metrics listen address (default from config)")

	return cmd
}

// watch loads the directory once, then reloads it on change until ctx is
// done.
func (s *session) watch(ctx context.Context, out, errOut io.Writer) error {
	count, err := s.load(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "loaded %d files, %d factories\n", count, s.registry.Len())

	return s.loader.Watch(ctx, s.cfg.FactoriesDir, func(count int, err error) {
		if err != nil {
			fmt.Fprintf(errOut, "reload failed: %v\n", err)
			return
		}
		fmt.Fprintf(out, "reloaded %d files, %d factories\n", count, s.registry.Len())
	})
}
