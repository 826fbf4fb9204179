package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past debates",
	Long: `List completed debates, newest first. With --stats, print aggregate
statistics over the whole log instead.`,
	RunE: runHistory,
}

var (
	historyLimit int
	historyStats bool
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "how many debates to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "show aggregate statistics")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(false)
	if err != nil {
		return err
	}
	defer eng.Close()

	if historyStats {
		stats, err := eng.orch.History().LogStats()
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "debates:  %d\n", stats.TotalDebates)
		fmt.Fprintf(cmd.OutOrStdout(), "average:  %.1f/100\n", stats.AverageConsensus)
		fmt.Fprintf(cmd.OutOrStdout(), "override: %.0f%%\n", stats.OverrideRate*100)
		fmt.Fprintf(cmd.OutOrStdout(), "partial:  %.0f%%\n", stats.PartialRate*100)
		return nil
	}

	records, err := eng.orch.History().Recent(historyLimit)
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no debates recorded")
		return nil
	}
	for _, rec := range records {
		fmt.Fprintln(cmd.OutOrStdout(), rec.String())
	}
	return nil
}
