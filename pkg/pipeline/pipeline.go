// Package pipeline runs one complete sync: scan the vault, persist the
// snapshot and refresh every output derived from it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mklimuk/vault-quest/pkg/config"
	"github.com/mklimuk/vault-quest/pkg/dashboard"
	"github.com/mklimuk/vault-quest/pkg/db"
	"github.com/mklimuk/vault-quest/pkg/engine"
	"github.com/mklimuk/vault-quest/pkg/notify"
	"github.com/mklimuk/vault-quest/pkg/progress"
	"github.com/mklimuk/vault-quest/pkg/report"
	"github.com/mklimuk/vault-quest/pkg/rules"
	"github.com/mklimuk/vault-quest/pkg/state"
	vsync "github.com/mklimuk/vault-quest/pkg/sync"
	"github.com/mklimuk/vault-quest/pkg/vault"
)

// DashboardIndent is the JSON indentation inside the dashboard script block.
const DashboardIndent = "    "

// ErrNoLedger is returned by History when the run ledger is disabled.
var ErrNoLedger = errors.New("run ledger disabled")

// Deps are the optional collaborators of a pipeline. Nil members are skipped.
type Deps struct {
	Ledger   *db.Repository
	Git      *vsync.GitManager
	Notifier notify.Notifier
}

// Outcome describes a finished run.
type Outcome struct {
	RunID     string
	Previous  *state.Snapshot
	Snapshot  *state.Snapshot
	Documents int
	Failed    int
	// Written lists the files this run produced, snapshot first.
	Written   []string
	Committed bool
}

// Pipeline serializes runs inside one process.
type Pipeline struct {
	mu   sync.Mutex
	cfg  *config.Config
	deps Deps
	log  *zap.Logger
	now  func() time.Time
}

func New(cfg *config.Config, deps Deps, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, deps: deps, log: log, now: time.Now}
}

// AddNotifier registers another destination for run summaries. Chat bots are
// built around the pipeline, so they are attached after New.
func (p *Pipeline) AddNotifier(n notify.Notifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch cur := p.deps.Notifier.(type) {
	case nil:
		p.deps.Notifier = n
	case notify.Multi:
		p.deps.Notifier = append(cur, n)
	default:
		p.deps.Notifier = notify.Multi{cur, n}
	}
}

func (p *Pipeline) store() *state.Store {
	return state.NewStore(p.cfg.Resolve(p.cfg.Paths.Snapshot))
}

// Snapshot returns the last persisted snapshot, or nil before the first run.
func (p *Pipeline) Snapshot() (*state.Snapshot, error) {
	return p.store().Load()
}

// Sync runs the pipeline and returns the new snapshot.
func (p *Pipeline) Sync(ctx context.Context) (*state.Snapshot, error) {
	out, err := p.Run(ctx)
	if err != nil {
		return nil, err
	}
	return out.Snapshot, nil
}

// History returns the most recent ledger runs, newest first.
func (p *Pipeline) History(limit int) ([]db.Run, error) {
	if p.deps.Ledger == nil {
		return nil, ErrNoLedger
	}
	return p.deps.Ledger.RecentRuns(limit)
}

// DailyXP returns the per-category XP booked for each day since the given date.
func (p *Pipeline) DailyXP(since string) ([]db.DailyXP, error) {
	if p.deps.Ledger == nil {
		return nil, ErrNoLedger
	}
	return p.deps.Ledger.DailyXPSince(since)
}

// LastRun returns the most recent ledger run, or nil before the first one.
func (p *Pipeline) LastRun() (*db.Run, error) {
	if p.deps.Ledger == nil {
		return nil, ErrNoLedger
	}
	return p.deps.Ledger.LatestRun()
}

// Run executes one sync. It fails only when the vault is missing, the journal
// cannot be listed, the context is cancelled before the snapshot is written,
// or the snapshot write itself fails. Everything after the snapshot write
// degrades to a warning.
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := p.now()
	log := p.log.With(zap.String("vault", p.cfg.Vault))

	v, err := vault.Open(p.cfg.Vault, p.cfg.Paths.Layout())
	if err != nil {
		return nil, err
	}

	table, err := rules.Load(v.Path(v.Layout.Rules))
	if err != nil {
		log.Warn("rule table unreadable, using built-in categories", zap.Error(err))
		table = rules.New(nil)
	} else if !table.Loaded() {
		log.Warn("rule table not found, using built-in categories", zap.String("path", v.Path(v.Layout.Rules)))
	} else if n := len(table.Rules()); n == 0 {
		log.Warn("rule table has no rows, only point values earn XP", zap.String("path", v.Path(v.Layout.Rules)))
	} else {
		log.Debug("rule table loaded", zap.Int("rules", n))
	}

	store := p.store()
	prev, err := store.Load()
	if err != nil {
		if !errors.Is(err, state.ErrCorruptSnapshot) {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		log.Warn("snapshot is corrupt, starting from zero", zap.String("path", store.Path()), zap.Error(err))
		prev = nil
	}
	var prevState state.State
	if prev != nil {
		prevState = prev.State()
	}

	files, err := vault.ListJournal(v.Path(v.Layout.Journal))
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	if len(files) == 0 {
		log.Warn("no dated journal documents found", zap.String("path", v.Path(v.Layout.Journal)))
	}

	people, known := p.people(v, log)

	eng := engine.New(table, p.cfg.Engine, log)
	res, err := eng.Scan(ctx, prevState, files, known)
	if err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}

	open, err := eng.CollectOpen(v.Path(v.Layout.Todo))
	if err != nil {
		log.Warn("open tasks unavailable", zap.Error(err))
	}

	moods, err := v.MoodTags()
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Warn("no mood log folder, mood XP is 0", zap.String("path", v.Path(v.Layout.Moods)))
	case err != nil:
		log.Warn("mood log partially unreadable", zap.Error(err))
	}
	thoughts, err := v.ThoughtActivity()
	if err != nil {
		log.Warn("thought activity partially unreadable", zap.Error(err))
	}
	skills, err := v.Skills()
	if err != nil {
		log.Warn("skill tree unreadable", zap.Error(err))
	}

	passive := progress.Passive(moods, thoughts, p.cfg.Passive)
	total := res.State.ActiveXP + passive.Total()
	level := progress.Level(total)

	snap := &state.Snapshot{
		Version:     state.Version,
		GeneratedAt: p.now(),
		TotalXP:     total,
		PassiveXP: state.PassiveRecord{
			MoodTags: passive.MoodTags,
			Thoughts: passive.Thoughts,
			Total:    passive.Total(),
		},
		OpenTasks:        open,
		LatestDailyStats: dailyRecord(res.Daily),
		Level: state.LevelRecord{
			Level:             level.Level,
			XPSinceLevelStart: level.XPSinceLevelStart,
			XPRequiredForNext: level.XPRequiredForNext,
		},
		PersonInteractions: res.Interactions,
		People:             people,
		MoodTags:           nonNilCounts(moods),
		ThoughtActivity:    nonNilCounts(thoughts),
		Skills:             skills,
	}
	if snap.Skills == nil {
		snap.Skills = map[string][]string{}
	}
	snap.SetState(res.State)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.Save(snap); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	out := &Outcome{
		Previous:  prev,
		Snapshot:  snap,
		Documents: res.Documents,
		Failed:    res.Failed,
		Written:   []string{store.Path()},
	}
	log.Info("snapshot written",
		zap.String("path", store.Path()),
		zap.Float64("total_xp", state.Round(total, 2)),
		zap.Int("level", level.Level),
		zap.String("watermark", snap.LastProcessedDate),
		zap.Int("documents", res.Documents),
		zap.Int("failed", res.Failed))

	out.Written = append(out.Written, p.writeDashboard(snap, log)...)
	out.Written = append(out.Written, p.writeReports(snap, log)...)
	out.RunID = p.record(started, snap, res, log)
	out.Committed = p.commit(out.Written, log)

	if p.deps.Notifier != nil {
		if text := notify.Summary(prev, snap); text != "" {
			if err := p.deps.Notifier.Notify(ctx, text); err != nil {
				log.Warn("notification failed", zap.Error(err))
			}
		}
	}
	return out, nil
}

func (p *Pipeline) people(v *vault.Vault, log *zap.Logger) (map[string]float64, map[string]bool) {
	closeness := map[string]float64{}
	if !v.HasPeople() {
		return closeness, nil
	}
	people, err := v.People()
	if err != nil {
		log.Warn("some people records are unreadable", zap.Error(err))
	}
	known := make(map[string]bool, len(people))
	for _, person := range people {
		closeness[person.Name] = person.Closeness
		known[person.Name] = true
	}
	return closeness, known
}

func (p *Pipeline) writeDashboard(snap *state.Snapshot, log *zap.Logger) []string {
	if p.cfg.Paths.Dashboard == "" {
		return nil
	}
	path := p.cfg.Resolve(p.cfg.Paths.Dashboard)
	payload, err := state.Marshal(snap, DashboardIndent)
	if err != nil {
		log.Warn("dashboard payload failed", zap.Error(err))
		return nil
	}
	if err := dashboard.Update(path, payload); err != nil {
		log.Warn("dashboard not updated", zap.String("path", path), zap.Error(err))
		return nil
	}
	return []string{path}
}

func (p *Pipeline) writeReports(snap *state.Snapshot, log *zap.Logger) []string {
	if p.cfg.Paths.Reports == "" {
		return nil
	}
	templates := report.NewTemplateEngine(p.cfg.Resolve(p.cfg.Paths.Templates))
	w := report.NewWriter(p.cfg.Resolve(p.cfg.Paths.Reports), templates, log)
	written, err := w.Write(snap)
	if err != nil {
		log.Warn("some reports were not written", zap.Error(err))
	}
	return written
}

// record appends the run to the ledger and replaces the daily XP rows of
// every day this run counted.
func (p *Pipeline) record(started time.Time, snap *state.Snapshot, res engine.Result, log *zap.Logger) string {
	if p.deps.Ledger == nil {
		return ""
	}
	id, err := p.deps.Ledger.RecordRun(db.Run{
		StartedAt:  started,
		FinishedAt: p.now(),
		Watermark:  snap.LastProcessedDate,
		ActiveXP:   state.Round(snap.ActiveXP, 2),
		TotalXP:    state.Round(snap.TotalXP, 2),
		Level:      snap.Level.Level,
		Documents:  res.Documents,
		Failed:     res.Failed,
	})
	if err != nil {
		log.Warn("ledger run not recorded", zap.Error(err))
		return ""
	}
	for _, c := range res.Contributions {
		date := c.Date.Format(vault.DateLayout)
		xp := make(map[string]float64, len(c.SkillXP))
		for cat, v := range c.SkillXP {
			xp[cat] = state.Round(v, 2)
		}
		if err := p.deps.Ledger.ReplaceDailyXP(date, xp); err != nil {
			log.Warn("ledger daily XP not recorded", zap.String("date", date), zap.Error(err))
		}
	}
	return id
}

func (p *Pipeline) commit(paths []string, log *zap.Logger) bool {
	if p.deps.Git == nil || !p.cfg.Git.Commit {
		return false
	}
	msg := "vault-quest: sync " + p.now().Format(vault.DateLayout)
	committed, err := p.deps.Git.Commit(paths, msg)
	if err != nil {
		log.Warn("git commit failed", zap.Error(err))
		return false
	}
	if !committed {
		log.Debug("git: nothing to commit")
		return false
	}
	if p.cfg.Git.Push {
		if err := p.deps.Git.Push(); err != nil {
			log.Warn("git push failed", zap.Error(err))
		}
	}
	return true
}

func dailyRecord(d *engine.DailyStats) *state.DailyRecord {
	if d == nil {
		return nil
	}
	return &state.DailyRecord{
		Date:           d.Date.Format(vault.DateLayout),
		TasksToday:     d.TasksToday,
		MinutesToday:   d.MinutesToday,
		TotalXPToday:   d.TotalXPToday,
		DailyBreakdown: d.Breakdown,
		CompletedToday: d.Completed,
	}
}

func nonNilCounts(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
