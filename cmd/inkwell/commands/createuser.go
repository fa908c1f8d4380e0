package commands

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/hypergopher/inkwell"
	"github.com/hypergopher/inkwell/cmd/inkwell/output"
)

var (
	// Createuser flags
	email     string
	firstName string
	lastName  string
)

// createUserCmd registers an account
var createUserCmd = &cobra.Command{
	Use:   "createuser USERNAME",
	Short: "Create an account",
	Long: `Create an account with the same validation as the registration page.
The password is read from INKWELL_PASSWORD.

Examples:
  INKWELL_PASSWORD=s3cret-pass inkwell createuser alice --email alice@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := os.Getenv("INKWELL_PASSWORD")
		if password == "" {
			return errors.New("INKWELL_PASSWORD is not set")
		}

		store, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		account, err := inkwell.NewAccounts(store, logger).Register(cmd.Context(), inkwell.RegisterForm{
			Username:        args[0],
			Email:           email,
			FirstName:       firstName,
			LastName:        lastName,
			Password:        password,
			PasswordConfirm: password,
		})
		if err != nil {
			return err
		}

		output.Success("Created account %s (id %d)", account.Username, account.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createUserCmd)

	createUserCmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	createUserCmd.Flags().StringVar(&firstName, "first-name", "", "First name")
	createUserCmd.Flags().StringVar(&lastName, "last-name", "", "Last name")
	_ = createUserCmd.MarkFlagRequired("email")
}
