// Package engine runs the incremental XP scan over dated journal documents.
//
// Documents dated before the watermark were counted by an earlier run and add
// nothing. Documents on or after it are new. The watermark is inclusive, so the
// document dated at the watermark is rescanned every run: its previous
// contribution (State.Pending) is withdrawn first and the fresh one applied,
// which makes an unchanged vault a no-op and picks up edits to the latest day.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mklimuk/vault-quest/pkg/extract"
	"github.com/mklimuk/vault-quest/pkg/rules"
	"github.com/mklimuk/vault-quest/pkg/state"
	"github.com/mklimuk/vault-quest/pkg/vault"
)

// Config holds the scan parameters.
type Config struct {
	RunTag      string  `mapstructure:"run_tag"`
	TimerTag    string  `mapstructure:"timer_tag"`
	UnitMinutes float64 `mapstructure:"unit_minutes"`
}

// DefaultConfig returns the standard marker tags and the 30 minute XP unit.
func DefaultConfig() Config {
	return Config{
		RunTag:      "#run",
		TimerTag:    "#sallyup",
		UnitMinutes: 30,
	}
}

// DailyStats is the view over the most recent journal document. It is rebuilt
// on every run and never feeds back into the state.
type DailyStats struct {
	Date         time.Time
	TasksToday   int
	MinutesToday float64
	TotalXPToday float64
	Breakdown    map[string]float64
	Completed    []string
}

// Result is the outcome of one scan.
type Result struct {
	State        state.State
	Daily        *DailyStats
	Interactions map[string]int
	// Contributions holds what each new document added, in date order.
	Contributions []state.Contribution
	Documents     int
	Failed        int
}

// Engine scans journal documents against a rule table.
type Engine struct {
	rules *rules.Table
	cfg   Config
	log   *zap.Logger
}

// New returns an engine over table. A non-positive unit falls back to the default.
func New(table *rules.Table, cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.UnitMinutes <= 0 {
		cfg.UnitMinutes = DefaultConfig().UnitMinutes
	}
	return &Engine{rules: table, cfg: cfg, log: log}
}

// Attribute applies the XP policy with the engine's table and unit.
func (e *Engine) Attribute(text string) Attribution {
	return Attribute(e.rules, text, e.cfg.UnitMinutes)
}

// Scan folds the documents into prev and returns the new state. files must be
// sorted ascending by date with one document per date, as vault.ListJournal
// returns them. known restricts person interactions to those names; nil counts
// every link. prev is not modified. Cancellation between documents returns
// ctx.Err() and no result.
func (e *Engine) Scan(ctx context.Context, prev state.State, files []vault.JournalFile, known map[string]bool) (Result, error) {
	res := Result{
		State:        prev.Clone(),
		Interactions: make(map[string]int),
	}
	st := &res.State
	st.SkillXP = e.rules.Fill(st.SkillXP)
	if len(files) == 0 {
		return res, nil
	}

	w := prev.Watermark
	latest := files[len(files)-1].Date

	if !st.Pending.Empty() && hasDate(files, st.Pending.Date) {
		st.Withdraw(st.Pending)
	}

	var (
		pending  = state.Contribution{Date: latest}
		best     float64
		bestSeen bool
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		d := f.Date
		isNew := !d.Before(w) && !(prev.Settled && d.Equal(w))
		isLatest := d.Equal(latest)
		res.Documents++

		tasks, err := vault.ReadTasks(f.Path)
		if err != nil {
			res.Failed++
			e.log.Warn("skipping unreadable journal document",
				zap.String("path", f.Path), zap.Error(err))
			continue
		}

		c := state.Contribution{Date: d}
		var daily *DailyStats
		if isLatest {
			daily = &DailyStats{Date: d, Breakdown: e.rules.ZeroMap(), Completed: []string{}}
		}

		for _, t := range tasks {
			if !t.Done {
				continue
			}
			for _, name := range extract.PersonLinks(t.Text) {
				if known == nil || known[name] {
					res.Interactions[name]++
				}
			}

			a := e.Attribute(t.Text)
			if a.XP > 0 {
				c.Add(a.Category, a.XP)
			}
			if extract.HasTag(t.Text, e.cfg.RunTag) {
				if km, ok := extract.Distance(t.Text); ok {
					c.RunKm += km.Value
				}
				c.RunMinutes += a.Minutes
			}

			if daily != nil {
				daily.TasksToday++
				daily.MinutesToday += a.Minutes
				daily.TotalXPToday += a.XP
				daily.Breakdown[a.Category] += a.XP
				daily.Completed = append(daily.Completed, t.Text)

				if extract.HasTag(t.Text, e.cfg.TimerTag) {
					if v, ok := extract.ClockTime(t.Text); ok && (!bestSeen || v.Value > best) {
						best, bestSeen = v.Value, true
					}
				}
				e.log.Debug("task",
					zap.String("task", t.Text),
					zap.String("category", a.Category),
					zap.Stringer("source", a.Source),
					zap.Float64("minutes", a.Minutes),
					zap.Float64("xp", a.XP))
			}
		}

		if isNew {
			st.Apply(c)
			res.Contributions = append(res.Contributions, c)
		}
		if isLatest {
			pending = c
			res.Daily = daily
		}
	}

	if bestSeen {
		st.TimedRecord = best
	}
	st.SkillXP = e.rules.Fill(st.SkillXP)
	st.Settled = false
	if latest.Before(w) {
		// The watermark document is gone; its contribution stays in the totals.
		st.Pending = state.Contribution{Date: w}
		return res, nil
	}
	st.Watermark = latest
	st.Pending = pending
	return res, nil
}

func hasDate(files []vault.JournalFile, d time.Time) bool {
	for _, f := range files {
		if f.Date.Equal(d) {
			return true
		}
	}
	return false
}

// CollectOpen reads the unchecked items of the to-do document and groups them
// by category. The returned map is total over known categories even when the
// document is missing, in which case the error wraps os.ErrNotExist.
func (e *Engine) CollectOpen(path string) (map[string][]string, error) {
	open := make(map[string][]string)
	for _, c := range e.rules.Categories() {
		open[c] = []string{}
	}

	tasks, err := vault.ReadTasks(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return open, fmt.Errorf("to-do document: %w", err)
		}
		return open, fmt.Errorf("read to-do document: %w", err)
	}
	for _, t := range tasks {
		if t.Done {
			continue
		}
		text := strings.TrimRight(strings.TrimSpace(t.Text), ".,;:")
		if text == "" {
			continue
		}
		cat := e.rules.Category(text)
		open[cat] = append(open[cat], text)
	}
	return open, nil
}
