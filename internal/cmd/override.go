package cmd

import (
	"github.com/spf13/cobra"
)

var overrideCmd = &cobra.Command{
	Use:   "override <session-id>",
	Short: "Supersede a debate's consensus with a human decision",
	Long: `Record a human override on a session. The decision pack is rebuilt with
the override and clears any target, whatever the consensus score was.
Both --actor and --justification are required; they go in the pack.`,
	Args: cobra.ExactArgs(1),
	RunE: runOverride,
}

var (
	overrideActor         string
	overrideJustification string
)

func init() {
	overrideCmd.Flags().StringVar(&overrideActor, "actor", "", "who is making the call")
	overrideCmd.Flags().StringVar(&overrideJustification, "justification", "", "why the consensus is being overridden")
	_ = overrideCmd.MarkFlagRequired("actor")
	_ = overrideCmd.MarkFlagRequired("justification")
	rootCmd.AddCommand(overrideCmd)
}

func runOverride(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(false)
	if err != nil {
		return err
	}
	defer eng.Close()

	out, err := eng.orch.Override(cmd.Context(), args[0], overrideActor, overrideJustification)
	if err != nil {
		return err
	}
	return emitOutcome(cmd, out, "")
}
