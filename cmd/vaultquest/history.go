package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mklimuk/vault-quest/pkg/ui"
	"github.com/mklimuk/vault-quest/pkg/vault"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit int
		days  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs and XP booked per day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 || days <= 0 {
				return fmt.Errorf("--limit and --days must be positive")
			}
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.pipeline.History(limit)
			if err != nil {
				return err
			}
			since := time.Now().AddDate(0, 0, -days).Format(vault.DateLayout)
			daily, err := a.pipeline.DailyXP(since)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, ui.Heading(ui.IconScroll, "Runs"))
			if len(runs) == 0 {
				fmt.Fprintln(w, ui.Muted.Render("  no runs recorded"))
			}
			for _, r := range runs {
				fmt.Fprintf(w, "  %s  %-10s  %9.2f XP  lvl %-3d %s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04"), r.Watermark, r.TotalXP, r.Level,
					ui.Muted.Render(fmt.Sprintf("%d docs", r.Documents)))
			}

			fmt.Fprintln(w)
			fmt.Fprintln(w, ui.Heading(ui.IconBolt, "XP per day since "+since))
			if len(daily) == 0 {
				fmt.Fprintln(w, ui.Muted.Render("  nothing booked"))
			}
			date := ""
			for _, d := range daily {
				if d.Date != date {
					date = d.Date
					fmt.Fprintln(w, ui.Key.Render("  "+date))
				}
				fmt.Fprintf(w, "    %-16s %8.2f\n", d.Category, d.XP)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to list")
	cmd.Flags().IntVar(&days, "days", 14, "days of per-category XP to list")
	return cmd
}
