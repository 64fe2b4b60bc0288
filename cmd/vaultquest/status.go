package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mklimuk/vault-quest/pkg/db"
	"github.com/mklimuk/vault-quest/pkg/state"
	"github.com/mklimuk/vault-quest/pkg/ui"
)

var errNoSnapshot = errors.New("no snapshot yet, run 'vaultquest sync' first")

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show level, XP and open tasks from the last snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.pipeline.Snapshot()
			if err != nil {
				return err
			}
			if snap == nil {
				return errNoSnapshot
			}
			if asJSON {
				data, err := state.Marshal(snap, "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			var last *db.Run
			if a.ledger != nil {
				if last, err = a.pipeline.LastRun(); err != nil {
					a.log.Warn("last run unavailable", zap.Error(err))
				}
			}
			printStatus(cmd.OutOrStdout(), snap, last)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}

func printStatus(w io.Writer, snap *state.Snapshot, last *db.Run) {
	lvl := snap.Level
	fraction := 0.0
	if lvl.XPRequiredForNext > 0 {
		fraction = lvl.XPSinceLevelStart / lvl.XPRequiredForNext
	}

	fmt.Fprintln(w, ui.Heading(ui.IconTrophy, fmt.Sprintf("Level %d", lvl.Level)))
	fmt.Fprintf(w, "%s %s\n", ui.ProgressBar(fraction, 30),
		ui.Muted.Render(fmt.Sprintf("%.2f / %.2f", lvl.XPSinceLevelStart, lvl.XPRequiredForNext)))
	fmt.Fprintln(w, ui.LabelValue("Total XP", ui.Gold.Render(fmt.Sprintf("%.2f", snap.TotalXP))))
	fmt.Fprintln(w, ui.LabelValue("Active", fmt.Sprintf("%.2f", snap.ActiveXP)))
	fmt.Fprintln(w, ui.LabelValue("Passive", fmt.Sprintf("%.2f", snap.PassiveXP.Total)))
	if snap.LastProcessedDate != "" {
		fmt.Fprintln(w, ui.LabelValue("Watermark", snap.LastProcessedDate))
	}
	if last != nil {
		fmt.Fprintln(w, ui.LabelValue("Last sync", last.FinishedAt.Local().Format("2006-01-02 15:04")))
	}

	if len(snap.SkillXPGained) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ui.H2.Render(ui.IconBolt+" Skills"))
		for _, cat := range sortedKeys(snap.SkillXPGained) {
			fmt.Fprintf(w, "  %-16s %8.2f\n", cat, snap.SkillXPGained[cat])
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.H2.Render(ui.IconRun+" Running"))
	fmt.Fprintln(w, ui.LabelValue("  Distance", fmt.Sprintf("%.2f km", snap.RunMetrics.TotalKm)))
	fmt.Fprintln(w, ui.LabelValue("  Time", fmt.Sprintf("%.0f min", snap.RunMetrics.TotalMinutes)))
	if snap.SallyupBestTime > 0 {
		fmt.Fprintln(w, ui.LabelValue(ui.IconTimer+" Best", fmt.Sprintf("%.2f", snap.SallyupBestTime)))
	}

	if d := snap.LatestDailyStats; d != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ui.H2.Render(ui.IconScroll+" "+d.Date))
		fmt.Fprintf(w, "  %d tasks, %.0f min, %.2f XP\n", d.TasksToday, d.MinutesToday, d.TotalXPToday)
	}

	open := 0
	for _, tasks := range snap.OpenTasks {
		open += len(tasks)
	}
	if open > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ui.H2.Render(fmt.Sprintf("%s Open tasks (%d)", ui.IconTodo, open)))
		for _, section := range sortedKeys(snap.OpenTasks) {
			tasks := snap.OpenTasks[section]
			if len(tasks) == 0 {
				continue
			}
			fmt.Fprintln(w, ui.Key.Render("  "+section))
			for _, t := range tasks {
				fmt.Fprintln(w, "    - "+strings.TrimSpace(t))
			}
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
