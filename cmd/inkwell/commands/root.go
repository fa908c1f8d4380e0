package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hypergopher/inkwell/cmd/inkwell/output"
	"github.com/hypergopher/inkwell/config"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "inkwell",
	Short: "Inkwell - a small multi-user blog",
	Long: `Inkwell is a multi-user blog with registration, markdown posts, image uploads
and search, backed by SQLite, PostgreSQL or bbolt.

Configuration is read from an optional TOML file, a .env file in the base
directory and the environment (DATABASE_URL, SECRET_KEY, VERCEL, ...).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath, slog.New(slog.NewTextHandler(os.Stderr, nil)))
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger = cfg.Logging.NewLogger(os.Stderr)
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.Error("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
}
