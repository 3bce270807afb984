package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/expense-claims/internal/auth"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Print a random value for security.jwt_secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := auth.GenerateSecret()
		if err != nil {
			return fmt.Errorf("failed to generate secret: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), secret)
		return nil
	},
}
