package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/debate"
	"github.com/parleyhq/parley/internal/orchestrator"
	"github.com/parleyhq/parley/internal/perrors"
	"github.com/parleyhq/parley/internal/render"
)

var runCmd = &cobra.Command{
	Use:   "run <topic>",
	Short: "Run a full debate over a proposed change",
	Long: `Run a complete debate: both providers assess the topic concurrently,
their perspectives merge into a consensus score, and the decision pack is
printed or written to a file.

Exit codes: 0 when the consensus clears the target, 1 when it falls
short, 2 when consensus is partial (partial wins over a missed target),
3 when the debate fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runDebate,
}

var (
	runFiles   []string
	runFocus   []string
	runTarget  int
	runForce   bool
	runNoCache bool
	runOutput  string
)

func init() {
	runCmd.Flags().StringArrayVarP(&runFiles, "file", "f", nil, "file in scope (repeatable)")
	runCmd.Flags().StringArrayVar(&runFocus, "focus", nil, "focus area such as security or performance (repeatable)")
	runCmd.Flags().IntVar(&runTarget, "target", 0, "target consensus score (default from config)")
	runCmd.Flags().BoolVar(&runForce, "force", false, "debate even when complexity is below the threshold")
	runCmd.Flags().BoolVar(&runNoCache, "no-cache", false, "bypass the result cache")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "write the decision pack markdown to a file")
	rootCmd.AddCommand(runCmd)
}

func runDebate(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(true)
	if err != nil {
		return err
	}
	defer eng.Close()

	attachRenderer(cmd, eng.orch)

	req := debate.Request{
		Topic:           args[0],
		Files:           runFiles,
		FocusAreas:      runFocus,
		TargetConsensus: runTarget,
	}
	out, err := eng.orch.Run(cmd.Context(), req, orchestrator.RunOptions{
		Force:   runForce,
		NoCache: runNoCache,
	})
	if err != nil {
		return err
	}

	return emitOutcome(cmd, out, runOutput)
}

// attachRenderer subscribes the requested renderer to the debate stream.
func attachRenderer(cmd *cobra.Command, orch *orchestrator.Orchestrator) {
	if jsonOutput(cmd) {
		render.NewJSONL(os.Stdout).Attach(orch.Bus())
		return
	}
	render.NewHuman(os.Stdout, verboseOutput(cmd)).Attach(orch.Bus())
}

// emitOutcome prints or writes the result and maps shortfalls to their
// exit-code errors.
func emitOutcome(cmd *cobra.Command, out *orchestrator.Outcome, outputPath string) error {
	if outputPath != "" && out.Pack != nil {
		if err := os.WriteFile(outputPath, []byte(out.Pack.Markdown()), 0644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "decision pack written to %s\n", outputPath)
	}

	if jsonOutput(cmd) {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else if outputPath == "" && out.Pack != nil {
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprint(cmd.OutOrStdout(), out.Pack.Markdown())
	}

	// Partial wins over a missed target: exit 2 tells the caller the
	// score itself is suspect.
	if out.Consensus != nil && out.Consensus.Partial {
		return perrors.Wrap(perrors.ErrPartialConsensus, "not all providers reported")
	}
	if !out.CanProceed {
		return perrors.Wrapf(perrors.ErrBelowTarget, "consensus %d below target %d",
			scoreOf(out), out.Target)
	}
	return nil
}

func scoreOf(out *orchestrator.Outcome) int {
	if out.Consensus == nil {
		return 0
	}
	return out.Consensus.Score
}
