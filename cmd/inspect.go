package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var stockShowCmd = &cobra.Command{
	Use:   "stock:show",
	Short: "Print recovered material stock",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := OpenApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		rows, err := a.Recovery.Stock(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MATERIAL\tTOTAL KG\tAVAILABLE KG\tRESERVED KG")
		for _, s := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Material, s.TotalKg.String(), s.AvailableKg.String(), s.ReservedKg.String())
		}
		return w.Flush()
	},
}

var assetHistoryCmd = &cobra.Command{
	Use:   "asset:history <id|nfc|qr>",
	Short: "Print an asset with its ledger history and mirror rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := OpenApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			found, ferr := a.Assets.FindByIdentifier(cmd.Context(), args[0])
			if ferr != nil {
				return ferr
			}
			id = uint64(found.ID)
		}
		report, err := a.Assets.History(cmd.Context(), uint(id))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	rootCmd.AddCommand(stockShowCmd, assetHistoryCmd)
}
