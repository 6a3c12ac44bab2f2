// Command bptidx drives a single-file disk-backed B+ tree index: an
// interactive command loop by default, plus a bench subcommand that compares
// the tree against Pebble.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bpt-disk-index/bptidx/dbms/bptree"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logPath string
	cmd := &cobra.Command{
		Use:           "bptidx <index_file>",
		Short:         "Disk-backed B+ tree index with an interactive driver",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(logPath)
			defer log.Sync()

			tree, err := bptree.Open(args[0], bptree.WithLogger(log))
			if err != nil {
				return err
			}
			defer tree.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "B+ Tree driver. Index file: %s\n", args[0])
			return runREPL(tree, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&logPath, "log", "bptidx.log", "engine log file (rotated)")
	cmd.AddCommand(newBenchCmd())
	return cmd
}
