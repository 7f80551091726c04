package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBuildCommand() *cobra.Command {
	var (
		sets  []string
		count int
	)

	cmd := &cobra.Command{
		Use:   "build <name>",
		Short: "Build attribute maps without persisting them",
		Example: `  # Build one user
  factory build user

  # Build three admins with a fixed role
  factory build admin --count 3 --set role=owner`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			overrides, err := parseOverrides(sets)
			if err != nil {
				return err
			}

			s, err := newSession(nil)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			if _, err := s.load(cmd.Context()); err != nil {
				return err
			}

			for i := 0; i < count; i++ {
				attrs, err := s.registry.Build(args[0], overrides)
				if err != nil {
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), attrs); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "override an attribute (key=value, repeatable)")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of attribute maps to build")

	return cmd
}
