package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/debate"
	"github.com/parleyhq/parley/internal/orchestrator"
)

var startCmd = &cobra.Command{
	Use:   "start <topic>",
	Short: "Start a two-phase debate and print the primary prompt",
	Long: `Start a debate without invoking the primary provider. Parley prints the
session ID and the prompt; run the prompt through your own reasoning
session, then feed the answer back with "parley complete". The counter
provider argues against it there.`,
	Args: cobra.ExactArgs(1),
	RunE: runStart,
}

var completeCmd = &cobra.Command{
	Use:   "complete <session-id>",
	Short: "Complete a two-phase debate with your analysis",
	Long: `Complete a debate started with "parley start". The analysis text is
read from --analysis-file, or from stdin when the flag is omitted.`,
	Args: cobra.ExactArgs(1),
	RunE: runComplete,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Cancel a debate that is still collecting perspectives",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

var (
	startFiles   []string
	startFocus   []string
	startTarget  int
	startForce   bool
	analysisFile string
	cancelReason string
)

func init() {
	startCmd.Flags().StringArrayVarP(&startFiles, "file", "f", nil, "file in scope (repeatable)")
	startCmd.Flags().StringArrayVar(&startFocus, "focus", nil, "focus area (repeatable)")
	startCmd.Flags().IntVar(&startTarget, "target", 0, "target consensus score (default from config)")
	startCmd.Flags().BoolVar(&startForce, "force", false, "debate even when complexity is below the threshold")
	completeCmd.Flags().StringVar(&analysisFile, "analysis-file", "", "file containing the primary analysis (default stdin)")
	cancelCmd.Flags().StringVar(&cancelReason, "reason", "", "why the debate is being canceled")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(cancelCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(true)
	if err != nil {
		return err
	}
	defer eng.Close()

	req := debate.Request{
		Topic:           args[0],
		Files:           startFiles,
		FocusAreas:      startFocus,
		TargetConsensus: startTarget,
	}
	result, err := eng.orch.StartExternal(cmd.Context(), req, orchestrator.RunOptions{
		Force: startForce,
	})
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "session: %s\n\n", result.SessionID)
	fmt.Fprintln(cmd.OutOrStdout(), result.Prompt)
	fmt.Fprintf(cmd.OutOrStdout(), "\nwhen done: parley complete %s --analysis-file <answer>\n",
		result.SessionID)
	return nil
}

func runComplete(cmd *cobra.Command, args []string) error {
	analysis, err := readAnalysis(cmd)
	if err != nil {
		return err
	}

	eng, err := buildEngine(true)
	if err != nil {
		return err
	}
	defer eng.Close()

	attachRenderer(cmd, eng.orch)

	out, err := eng.orch.CompleteExternal(cmd.Context(), args[0], analysis)
	if err != nil {
		return err
	}
	return emitOutcome(cmd, out, "")
}

func runCancel(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(false)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.orch.Cancel(cmd.Context(), args[0], cancelReason); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "session %s canceled\n", args[0])
	return nil
}

// readAnalysis loads the analysis text from the flag file or stdin.
func readAnalysis(cmd *cobra.Command) (string, error) {
	if analysisFile != "" {
		data, err := os.ReadFile(analysisFile)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return string(data), nil
}
