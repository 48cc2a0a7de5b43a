package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"solarcycle.GO/core/app"
)

var dbMigrateCmd = &cobra.Command{
	Use:   "db:migrate",
	Short: "Create or update tables and seed material stock rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := OpenApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if err := app.Migrate(a.DB); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Migration complete.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbMigrateCmd)
}
