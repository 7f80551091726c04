package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/factory/pkg/policy"
)

func newValidateCommand() *cobra.Command {
	var (
		build     bool
		policyDir string
	)

	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Load definition files and report problems",
		Long: `Validate loads every definition file in the directory and resolves
parent links. With --build every factory is also built once, which runs
its generators. With --policy the built attributes are checked against the
Rego policies in that directory; violations with severity error fail the
command.`,
		Example: `  # Check definitions and lint their output
  factory validate --policy ./policies ./test/factories`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(args)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			count, err := s.load(cmd.Context())
			if err != nil {
				return err
			}

			if policyDir != "" {
				return s.checkPolicies(cmd, policyDir, count)
			}

			if build {
				for _, name := range s.registry.Names() {
					if _, err := s.registry.Build(name, nil); err != nil {
						return fmt.Errorf("factory %q: %w", name, err)
					}
				}
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]int{
					"files":     count,
					"factories": s.registry.Len(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d files, %d factories: ok\n", count, s.registry.Len())
			return nil
		},
	}

	cmd.Flags().BoolVar(&build, "build", false, "build every factory once")
	cmd.Flags().StringVar(&policyDir, "policy", "", "directory of Rego policies to check built attributes against")

	return cmd
}

func (s *session) checkPolicies(cmd *cobra.Command, dir string, files int) error {
	engine := policy.NewEngine(s.log)
	if _, err := engine.LoadDir(cmd.Context(), dir); err != nil {
		return err
	}

	res, err := engine.Check(cmd.Context(), s.registry)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else {
		for _, v := range res.Violations {
			fmt.Fprintln(out, v.String())
		}
		fmt.Fprintf(out, "%d files, %d factories, %d policies, %d violations\n",
			files, res.Factories, res.Policies, len(res.Violations))
	}

	if !res.Allowed() {
		return fmt.Errorf("policy check failed")
	}
	return nil
}
