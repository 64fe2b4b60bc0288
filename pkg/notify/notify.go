// Package notify formats run summaries for chat notifiers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mklimuk/vault-quest/pkg/progress"
	"github.com/mklimuk/vault-quest/pkg/state"
)

// Notifier delivers a text message to one destination.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Summary describes what changed between two snapshots. It returns "" when
// the total XP did not move. prev may be nil.
func Summary(prev, next *state.Snapshot) string {
	if next == nil {
		return ""
	}
	var before float64
	if prev != nil {
		before = prev.TotalXP
	}
	gained := state.Round(next.TotalXP-before, 2)
	if gained == 0 {
		return ""
	}

	var b strings.Builder
	lvBefore, lvAfter := progress.Level(before), progress.Level(next.TotalXP)
	if lvAfter.Level > lvBefore.Level {
		fmt.Fprintf(&b, "Level %d reached!\n", lvAfter.Level)
	}
	fmt.Fprintf(&b, "%+.2f XP, total %.2f", gained, next.TotalXP)
	if d := next.LatestDailyStats; d != nil && d.Date != "" {
		fmt.Fprintf(&b, "\n%s: %d tasks, %.2f XP", d.Date, d.TasksToday, d.TotalXPToday)
	}
	return b.String()
}

// Status renders the current level and totals of a snapshot.
func Status(snap *state.Snapshot) string {
	if snap == nil {
		return "No snapshot yet. Run a sync first."
	}
	lv := progress.Level(snap.TotalXP)
	var b strings.Builder
	fmt.Fprintf(&b, "Level %d (%.2f / %.2f XP)\n", lv.Level, lv.XPSinceLevelStart, lv.XPRequiredForNext)
	fmt.Fprintf(&b, "Total XP: %.2f (active %.2f, passive %.2f)\n", snap.TotalXP, snap.ActiveXP, snap.PassiveXP.Total)
	fmt.Fprintf(&b, "Running: %.2f km", snap.RunMetrics.TotalKm)
	if snap.LastProcessedDate != "" {
		fmt.Fprintf(&b, "\nLast journal day: %s", snap.LastProcessedDate)
	}
	return b.String()
}
