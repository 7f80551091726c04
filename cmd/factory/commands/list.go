package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

type factoryInfo struct {
	Name       string   `json:"name"`
	Model      string   `json:"model"`
	Attributes []string `json:"attributes"`
}

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [dir]",
		Short: "List defined factories",
		Example: `  # List factories in test/factories
  factory list

  # List factories in another directory as JSON
  factory list --json ./fixtures/factories`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(args)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			if _, err := s.load(cmd.Context()); err != nil {
				return err
			}

			var infos []factoryInfo
			for _, name := range s.registry.Names() {
				f, err := s.registry.Lookup(name)
				if err != nil {
					return err
				}
				infos = append(infos, factoryInfo{
					Name:       name,
					Model:      f.ModelID(),
					Attributes: f.Attributes(),
				})
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), infos)
			}
			for _, info := range infos {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", info.Name, info.Model)
			}
			return nil
		},
	}

	return cmd
}
