package commands

import (
	"github.com/spf13/cobra"

	"github.com/hypergopher/inkwell/cmd/inkwell/output"
)

// migrateCmd creates the schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	Long: `Create the tables, indexes and search index of the configured datastore.
Running it again is harmless.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		output.Success("%s store is up to date", cfg.Database.Driver)
		output.Muted("  %s", redactDSN(cfg.Database.DSN))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
