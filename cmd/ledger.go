package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ledgerDrainCmd = &cobra.Command{
	Use:   "ledger:drain",
	Short: "Deliver pending ledger mirrors once and report the outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := OpenApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		r, err := a.Sync.DrainOnce(cmd.Context())
		if err != nil {
			return err
		}
		if r.Disabled {
			fmt.Fprintf(cmd.OutOrStdout(), "Ledger disabled, %d mirrors pending.\n", r.Pending)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent=%d retried=%d failed=%d deferred=%d pending=%d\n",
			r.Sent, r.Retried, r.Failed, r.Deferred, r.Pending)
		return nil
	},
}

var ledgerReconcileCmd = &cobra.Command{
	Use:   "ledger:reconcile",
	Short: "Compare local asset status with the ledger and enqueue missing mirrors",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := OpenApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		r, err := a.Sync.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		if r.Disabled {
			fmt.Fprintln(cmd.OutOrStdout(), "Ledger disabled, nothing to reconcile.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "checked=%d in_sync=%d pending=%d enqueued=%d errors=%d\n",
			r.Checked, r.InSync, r.Pending, r.Enqueued, r.Errors)
		if r.Enqueued > 0 {
			a.Sync.Kick()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ledgerDrainCmd, ledgerReconcileCmd)
}
