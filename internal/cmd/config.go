package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the effective configuration after defaults, the config file, and
PARLEY_* environment variables have been merged.`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().Bool("path", false, "print only the config file path")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	if pathOnly, _ := cmd.Flags().GetBool("path"); pathOnly {
		fmt.Fprintln(cmd.OutOrStdout(), config.ConfigFile())
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return err
	}

	if !jsonOutput(cmd) {
		file := config.ConfigFile()
		if _, err := os.Stat(file); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "\nconfig file: %s\n", file)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "\nconfig file: %s (not present, defaults in effect)\n", file)
		}
	}
	return nil
}
