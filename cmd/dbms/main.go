// Command dbms drives the database engine from the command line: a
// `serve` subcommand starts the TCP listener, an `exec` subcommand runs
// one statement in batch mode and exits with a code describing the
// outcome. This is a scriptable batch driver, not an interactive line
// editor.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(4)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "dbms",
		Short:         "miniature relational database with a genetic query optimizer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "optional TOML config file")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "directory for the write-ahead log (empty = in-memory)")
	root.PersistentFlags().StringVar(&opts.ccmAlgorithm, "ccm", "2pl", "concurrency algorithm: 2pl, timestamp, optimistic, mvcc")
	root.PersistentFlags().Int64Var(&opts.gaSeed, "ga-seed", 1, "genetic optimizer random seed")
	root.PersistentFlags().IntVar(&opts.gaGenerations, "ga-generations", 0, "genetic optimizer generations (0 = default)")
	root.PersistentFlags().BoolVar(&opts.skipGA, "skip-ga", false, "deterministic rewrites only, skip the genetic search")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newExecCmd(opts))
	return root
}
