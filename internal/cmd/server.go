package cmd

import (
	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve the debate engine over JSON-RPC on stdio",
	Long: `Run parley as a JSON-RPC 2.0 server on stdin/stdout, for editors and
agent harnesses that drive debates programmatically. Methods include
debate.run, debate.start, debate.complete, session.override,
complexity.check, and history.recent.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(true)
	if err != nil {
		return err
	}
	defer eng.Close()

	srv := server.New(eng.orch, eng.log)
	return srv.ServeStdio(cmd.Context())
}
