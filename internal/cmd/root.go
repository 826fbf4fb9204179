// Package cmd implements the parley command-line interface.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/perrors"
)

// Exit codes. Scripts branch on these, so they are part of the interface.
const (
	ExitOK          = 0 // debate completed and cleared the target
	ExitBelowTarget = 1 // consensus below target, or debate required/not required gate
	ExitPartial     = 2 // consensus computed from a partial perspective set
	ExitFailure     = 3 // the debate itself failed
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "AI debate orchestration engine",
	Long: `Parley coordinates structured debates between AI reasoning providers
over proposed changes. Providers argue primary and counter perspectives,
their positions merge into a consensus score, and the result ships as a
decision pack with complexity and risk advisories.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return ExitOK
	}

	fmt.Fprintf(os.Stderr, "parley: %v\n", err)
	return exitCodeFor(err)
}

// exitCodeFor maps an error onto the documented exit codes.
func exitCodeFor(err error) int {
	switch {
	case perrors.Is(err, perrors.ErrBelowTarget),
		perrors.Is(err, perrors.ErrDebateNotRequired),
		perrors.Is(err, perrors.ErrDebateRequired):
		return ExitBelowTarget
	case perrors.Is(err, perrors.ErrPartialConsensus):
		return ExitPartial
	default:
		return ExitFailure
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/parley/config.yaml)")
	rootCmd.PersistentFlags().Bool("json", false, "emit machine-readable JSON output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "show provider progress detail")
	rootCmd.PersistentFlags().String("data-dir", "", "state directory for sessions, cache, and history")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("paths.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PARLEY")
	// PARLEY_DEBATE_TARGET_CONSENSUS overrides debate.target_consensus
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// jsonOutput reports whether --json was passed.
func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// verboseOutput reports whether --verbose was passed.
func verboseOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("verbose")
	return v
}
