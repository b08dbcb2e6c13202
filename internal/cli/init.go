package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudkit/internal/config"
	"github.com/mesh-intelligence/crudkit/internal/paths"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

func newInitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config.yaml and create the store tables",
		Long: `Init writes config.yaml with a sample entity type to the config directory
if none exists, then opens the configured store and creates a table for
every declared entity type. Running init again is harmless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := paths.ResolveConfigDir(flags.configDir)
			if err != nil {
				return fmt.Errorf("resolve config dir: %w", err)
			}
			if _, err := config.WriteDefault(configDir); err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "crudkit initialized")
			fmt.Fprintln(out, "  config: ", paths.ConfigFile(configDir))
			fmt.Fprintln(out, "  backend:", a.cfg.Backend)
			if a.cfg.Backend == types.BackendSQLite {
				fmt.Fprintln(out, "  data:   ", a.cfg.DataDir)
			}
			fmt.Fprintln(out, "  types:  ", len(a.registry.Types()))
			return nil
		},
	}
}
