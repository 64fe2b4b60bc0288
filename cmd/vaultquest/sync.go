package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mklimuk/vault-quest/pkg/pipeline"
	"github.com/mklimuk/vault-quest/pkg/ui"
	"github.com/mklimuk/vault-quest/pkg/vault"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var notifyRun bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Scan new journal entries and update the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if notifyRun {
				a.attachNotifiers(false)
			}

			out, err := a.pipeline.Run(cmd.Context())
			if err != nil {
				if errors.Is(err, vault.ErrVaultNotFound) {
					return err
				}
				a.log.Error("sync failed", zap.Error(err))
				return nil
			}
			printOutcome(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&notifyRun, "notify", true, "send the run summary to configured chats")
	return cmd
}

func printOutcome(w io.Writer, out *pipeline.Outcome) {
	snap := out.Snapshot
	var gained float64
	prevLevel := 0
	if out.Previous != nil {
		gained = snap.TotalXP - out.Previous.TotalXP
		prevLevel = out.Previous.Level.Level
	} else {
		gained = snap.TotalXP
	}

	fmt.Fprintln(w, ui.Heading(ui.IconSparkle, "Sync complete"))
	fmt.Fprintln(w, ui.LabelValue("Documents", fmt.Sprintf("%d scanned, %d skipped", out.Documents, out.Failed)))
	fmt.Fprintln(w, ui.LabelValue("Total XP", fmt.Sprintf("%.2f (%s)", snap.TotalXP, ui.Delta(gained))))
	level := fmt.Sprintf("%d", snap.Level.Level)
	if out.Previous != nil && snap.Level.Level > prevLevel {
		level += " " + ui.BadgeLevelUp
	}
	fmt.Fprintln(w, ui.LabelValue("Level", level))
	if snap.LastProcessedDate != "" {
		fmt.Fprintln(w, ui.LabelValue("Watermark", snap.LastProcessedDate))
	}
	for _, path := range out.Written {
		fmt.Fprintln(w, ui.Muted.Render("  wrote "+path))
	}
	if out.Committed {
		fmt.Fprintln(w, ui.Good.Render("  committed generated files"))
	}
}
