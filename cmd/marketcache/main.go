// Command marketcache serves cached cryptocurrency dashboard snapshots over
// HTTP and WebSocket. Its CLI shape follows the teacher's
// cmd/cryptorun/main.go: a cobra root command with subcommands, zerolog
// wired up before anything else runs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/marketcache/internal/logging"
)

var (
	configPath string
	logLevel   string
	prettyLogs bool
)

func main() {
	root := &cobra.Command{
		Use:   "marketcache",
		Short: "Cached cryptocurrency dashboard server",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(logLevel, prettyLogs)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config.yaml")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	// Default to pretty console output only when attached to a real
	// terminal; a log aggregator on the other end of a pipe wants JSON.
	root.PersistentFlags().BoolVar(&prettyLogs, "pretty", term.IsTerminal(int(os.Stderr.Fd())), "use human-readable console log output")

	root.AddCommand(newServeCommand())
	root.AddCommand(newHealthcheckCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
