package commands

import (
	"github.com/spf13/cobra"

	"github.com/hypergopher/inkwell/archive"
	"github.com/hypergopher/inkwell/cmd/inkwell/output"
)

var (
	// Export flags
	exportFormat string
)

// exportCmd writes every post to markdown files
var exportCmd = &cobra.Command{
	Use:   "export DIR",
	Short: "Export posts as markdown files with frontmatter",
	Long: `Export every post to DIR/<slug>.md with its metadata in YAML or TOML frontmatter.

Examples:
  inkwell export ./backup                 # YAML frontmatter
  inkwell export ./backup --format toml   # TOML frontmatter`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := archive.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		store, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := archive.Export(cmd.Context(), store, args[0], format)
		if err != nil {
			return err
		}

		output.Success("Exported %d posts to %s", n, args[0])
		return nil
	},
}

// importCmd restores posts from markdown files
var importCmd = &cobra.Command{
	Use:   "import DIR",
	Short: "Import markdown files with frontmatter as posts",
	Long: `Import every *.md file under DIR. Posts keep the slug from their frontmatter
and existing slugs are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		result, err := archive.NewImporter(store, logger).Import(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		output.Success("Imported %d posts", result.Imported)
		if result.Skipped > 0 {
			output.Info("Skipped %d posts that already exist", result.Skipped)
		}
		if result.Failed > 0 {
			output.Warning("Failed to read %d files, see the log for details", result.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", string(archive.FormatYAML), "Frontmatter format: yaml or toml")
}
