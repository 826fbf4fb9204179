package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/debate"
	"github.com/parleyhq/parley/internal/perrors"
)

var checkCmd = &cobra.Command{
	Use:   "check <topic>",
	Short: "Score a change's complexity without running a debate",
	Long: `Check whether a proposed change is complex enough to warrant a debate.
Prints the complexity score, the reasons behind it, and the predicted
risk from similar past debates.

Exits 0 when no debate is needed and 1 when one is recommended, so
scripts can gate on it: parley check "topic" || parley run "topic".`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

var checkFiles []string

func init() {
	checkCmd.Flags().StringArrayVarP(&checkFiles, "file", "f", nil, "file in scope (repeatable)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(false)
	if err != nil {
		return err
	}
	defer eng.Close()

	req := debate.Request{Topic: args[0], Files: checkFiles}
	if err := req.Validate(); err != nil {
		return err
	}

	result := eng.orch.Complexity().Assess(req)
	risk := eng.orch.Complexity().PredictRisk(req, historyRecords(eng))

	if jsonOutput(cmd) {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{
			"complexity": result,
			"risk":       risk,
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "complexity: %d/100 (threshold %d)\n",
			result.Score, result.Threshold)
		for _, reason := range result.Reasons {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", reason)
		}
		if risk.Score > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "predicted risk: %d/100\n", risk.Score)
			for _, p := range risk.Patterns {
				fmt.Fprintf(cmd.OutOrStdout(), "  similar: %s\n", p)
			}
		}
	}

	if result.Required {
		return perrors.Wrapf(perrors.ErrDebateRequired,
			"complexity %d at or above threshold %d", result.Score, result.Threshold)
	}
	if !jsonOutput(cmd) {
		fmt.Fprintln(cmd.OutOrStdout(), "no debate required")
	}
	return nil
}
