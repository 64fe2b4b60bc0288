package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	vault      string
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "vaultquest",
		Short: "Turn an Obsidian vault into XP, levels and stats",
		Long: `vaultquest scans the journal of an Obsidian vault, awards XP for completed
tasks according to the vault's rule table and keeps a versioned snapshot of
the progress. The snapshot feeds the HTML dashboard and the Markdown reports.

Runs are incremental: journal days before the last processed day are never
counted twice, and edits to the latest day are picked up on the next run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.vault, "vault", "", "path to the vault (overrides the configured vault)")
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: $XDG_CONFIG_HOME/vaultquest/config.yaml + <vault>/.vaultquest.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newSyncCmd(opts),
		newStatusCmd(opts),
		newHistoryCmd(opts),
		newServeCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vaultquest %s\n", version)
		},
	}
}
