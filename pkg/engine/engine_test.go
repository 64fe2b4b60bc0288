package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mklimuk/vault-quest/pkg/rules"
	"github.com/mklimuk/vault-quest/pkg/state"
	"github.com/mklimuk/vault-quest/pkg/vault"
)

var testRules = []rules.Rule{
	{Tag: "#study", Category: "Intellektuell", BaseXP: 3.0},
	{Tag: "#run", Category: "Physisch", BaseXP: 2.0},
	{Tag: "#social", Category: "Sozial", BaseXP: 1.0},
}

type journal struct {
	t   *testing.T
	dir string
}

func newJournal(t *testing.T) *journal {
	return &journal{t: t, dir: t.TempDir()}
}

func (j *journal) write(date string, lines ...string) {
	j.t.Helper()
	path := filepath.Join(j.dir, date[:4], date+".md")
	require.NoError(j.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(j.t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func (j *journal) files() []vault.JournalFile {
	j.t.Helper()
	files, err := vault.ListJournal(j.dir)
	require.NoError(j.t, err)
	return files
}

func newEngine(t *testing.T) *Engine {
	return New(rules.New(testRules), DefaultConfig(), zaptest.NewLogger(t))
}

// run scans and threads the state through the snapshot encoding, the way
// successive processes would see it.
func run(t *testing.T, e *Engine, j *journal, prev state.State) Result {
	t.Helper()
	res, err := e.Scan(context.Background(), prev, j.files(), nil)
	require.NoError(t, err)
	var snap state.Snapshot
	snap.SetState(res.State)
	res.State = snap.State()
	return res
}

func TestScenarioSingleDocument(t *testing.T) {
	j := newJournal(t)
	j.write("2024-01-01", "- [x] Read book #study (3p)")
	e := newEngine(t)

	first := run(t, e, j, state.State{})
	assert.Equal(t, 3.0, first.State.ActiveXP)
	assert.Equal(t, 3.0, first.State.SkillXP["Intellektuell"])

	second := run(t, e, j, first.State)
	assert.Equal(t, 3.0, second.State.ActiveXP)
	assert.Equal(t, 3.0, second.State.SkillXP["Intellektuell"])
}

func TestIdempotence(t *testing.T) {
	j := newJournal(t)
	j.write("2024-01-01", "- [x] Lesen #study (1h 30m)", "- [x] Lauf #run (5.2km) (30min)")
	j.write("2024-01-02", "- [x] Kaffee mit [[Anna]] #social (45min)", "- [ ] offen (8p)")
	e := newEngine(t)

	first := run(t, e, j, state.State{})
	second := run(t, e, j, first.State)
	third := run(t, e, j, second.State)

	opts := cmpopts.EquateApprox(0, 1e-9)
	if diff := cmp.Diff(first.State, second.State, opts); diff != "" {
		t.Errorf("second run changed state (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(second.State, third.State, opts); diff != "" {
		t.Errorf("third run changed state (-second +third):\n%s", diff)
	}
	assert.InDelta(t, 9+2+1.5, first.State.ActiveXP, 1e-9)
	assert.Equal(t, 5.2, first.State.RunKm)
	assert.Equal(t, 30.0, first.State.RunMinutes)
}

func TestMonotonicity(t *testing.T) {
	j := newJournal(t)
	e := newEngine(t)
	st := state.State{}
	prev := 0.0
	for i, line := range []string{
		"- [x] a #study (3p)",
		"- [x] b #run (20min)",
		"- [x] c ohne Angaben",
		"- [x] d #social (1p)",
	} {
		j.write(time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), line)
		res := run(t, e, j, st)
		assert.GreaterOrEqual(t, res.State.ActiveXP, prev)
		prev = res.State.ActiveXP
		st = res.State
	}
	assert.InDelta(t, 3+20.0/30*2+0+1, st.ActiveXP, 1e-9)
}

func TestOldDocumentsAreNotRecounted(t *testing.T) {
	j := newJournal(t)
	j.write("2024-01-01", "- [x] a #study (3p)")
	j.write("2024-01-02", "- [x] b #study (1p)")
	e := newEngine(t)
	first := run(t, e, j, state.State{})

	// editing a document before the watermark changes nothing
	j.write("2024-01-01", "- [x] a #study (3p)", "- [x] late #study (8p)")
	second := run(t, e, j, first.State)
	assert.Equal(t, 4.0, second.State.ActiveXP)
}

func TestEditedLatestDocumentIsRecounted(t *testing.T) {
	j := newJournal(t)
	j.write("2024-01-01", "- [x] a #study (3p)")
	e := newEngine(t)
	first := run(t, e, j, state.State{})

	j.write("2024-01-01", "- [x] a #study (3p)", "- [x] b #social (5p)")
	second := run(t, e, j, first.State)
	assert.Equal(t, 8.0, second.State.ActiveXP)
	assert.Equal(t, 3.0, second.State.SkillXP["Intellektuell"])
	assert.Equal(t, 5.0, second.State.SkillXP["Sozial"])

	j.write("2024-01-02", "- [x] c #study (1p)")
	third := run(t, e, j, second.State)
	assert.Equal(t, 9.0, third.State.ActiveXP)
	assert.Equal(t, "2024-01-02", third.State.Watermark.Format("2006-01-02"))
}

func TestSettledWatermarkIsNotAddedAgain(t *testing.T) {
	j := newJournal(t)
	j.write("2024-01-01", "- [x] a #study (3p)")
	j.write("2024-01-02", "- [x] b #study (5p)")

	legacy := state.Snapshot{TotalXP: 8, LastProcessedDate: "2024-01-02",
		SkillXPGained: map[string]float64{"Intellektuell": 8}}
	res := run(t, newEngine(t), j, legacy.State())
	assert.Equal(t, 8.0, res.State.ActiveXP)
	assert.Equal(t, 5.0, res.State.Pending.ActiveXP)
}

func TestPriorityLaw(t *testing.T) {
	table := rules.New(testRules)
	for _, text := range []string{
		"#study (3p) (1h 30m)",
		"#study (3p) (500min)",
		"#study (3p) (2:30min)",
	} {
		a := Attribute(table, text, 30)
		assert.Equal(t, 3.0, a.XP, text)
		assert.Equal(t, SourcePoints, a.Source, text)
	}
}

func TestAttributeTimeUsesFirstMatchingRule(t *testing.T) {
	table := rules.New(testRules)

	a := Attribute(table, "Lauf mit Freunden #social #run (1h)", 30)
	assert.Equal(t, SourceNone, a.Source, "hours without minutes is not a duration")

	a = Attribute(table, "Lauf mit Freunden #social #run (1h 0m)", 30)
	assert.Equal(t, "Physisch", a.Category)
	assert.InDelta(t, 60.0/30*2.0, a.XP, 1e-9)
	assert.Equal(t, 60.0, a.Minutes)

	a = Attribute(table, "Aufräumen (45min)", 30)
	assert.Equal(t, rules.DefaultCategory, a.Category)
	assert.Zero(t, a.XP)
	assert.Equal(t, 45.0, a.Minutes)
	assert.Equal(t, SourceNone, a.Source)
}

func TestAttributeUnknownPointsFallsBackToTime(t *testing.T) {
	a := Attribute(rules.New(testRules), "#study (2p) (30min)", 30)
	assert.Equal(t, SourceTime, a.Source)
	assert.Equal(t, 3.0, a.XP)
}

func TestDailyStats(t *testing.T) {
	j := newJournal(t)
	j.write("2024-01-01", "- [x] old #study (8p)")
	j.write("2024-01-02",
		"- [x] Lesen #study (1h 30m)",
		"- [x] Aufräumen (15min)",
		"- [x] Danke sagen",
		"- [ ] nicht fertig (3p)",
	)
	res := run(t, newEngine(t), j, state.State{})

	require.NotNil(t, res.Daily)
	d := res.Daily
	assert.Equal(t, "2024-01-02", d.Date.Format("2006-01-02"))
	assert.Equal(t, 3, d.TasksToday)
	assert.Equal(t, 105.0, d.MinutesToday)
	assert.Equal(t, 9.0, d.TotalXPToday)
	assert.Equal(t, 9.0, d.Breakdown["Intellektuell"])
	for _, c := range rules.BuiltinCategories {
		_, ok := d.Breakdown[c]
		assert.True(t, ok, c)
	}
	assert.Equal(t, []string{"Lesen #study (1h 30m)", "Aufräumen (15min)", "Danke sagen"}, d.Completed)
}

func TestRunTotalsOnlyForNewDays(t *testing.T) {
	j := newJournal(t)
	j.write("2024-01-01", "- [x] #run (5km) (30min)")
	e := newEngine(t)
	first := run(t, e, j, state.State{})

	j.write("2024-01-02", "- [x] #run (10km) (1h 0m)")
	second := run(t, e, j, first.State)
	assert.InDelta(t, 15.0, second.State.RunKm, 1e-9)
	assert.InDelta(t, 90.0, second.State.RunMinutes, 1e-9)
}

func TestTimedRecord(t *testing.T) {
	j := newJournal(t)
	j.write("2024-01-01", "- [x] #sallyup (2:30min)", "- [x] #sallyup (3:15min)")
	e := newEngine(t)
	first := run(t, e, j, state.State{})
	assert.Equal(t, 3.25, first.State.TimedRecord)

	j.write("2024-01-02", "- [x] #sallyup (1:45min)")
	second := run(t, e, j, first.State)
	assert.Equal(t, 1.75, second.State.TimedRecord, "latest document replaces the stored value")

	j.write("2024-01-03", "- [x] nichts")
	third := run(t, e, j, second.State)
	assert.Equal(t, 1.75, third.State.TimedRecord, "kept when the latest document has none")
}

func TestPersonInteractionsAreRecomputed(t *testing.T) {
	j := newJournal(t)
	j.write("2024-01-01", "- [x] Essen mit [[Anna]] und [[Ben]]")
	j.write("2024-01-02", "- [x] Anruf [[Anna|Anni]]", "- [ ] später [[Anna]]")
	e := newEngine(t)

	res, err := e.Scan(context.Background(), state.State{}, j.files(), map[string]bool{"Anna": true})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Anna": 2}, res.Interactions)

	again, err := e.Scan(context.Background(), res.State, j.files(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Anna": 2, "Ben": 1}, again.Interactions)
}

func TestUnreadableDocumentIsSkipped(t *testing.T) {
	j := newJournal(t)
	j.write("2024-01-02", "- [x] a #study (3p)")
	files := append([]vault.JournalFile{{
		Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Path: filepath.Join(j.dir, "gone.md"),
	}}, j.files()...)

	res, err := newEngine(t).Scan(context.Background(), state.State{}, files, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 3.0, res.State.ActiveXP)
}

func TestScanCancelled(t *testing.T) {
	j := newJournal(t)
	j.write("2024-01-01", "- [x] a #study (3p)")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prev := state.State{ActiveXP: 1, SkillXP: map[string]float64{"Intellektuell": 1}}
	_, err := newEngine(t).Scan(ctx, prev, j.files(), nil)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1.0, prev.ActiveXP)
}

func TestScanDoesNotMutatePrev(t *testing.T) {
	j := newJournal(t)
	j.write("2024-01-01", "- [x] a #study (3p)")
	prev := state.State{SkillXP: map[string]float64{"Intellektuell": 1}, ActiveXP: 1}

	_, err := newEngine(t).Scan(context.Background(), prev, j.files(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, prev.SkillXP["Intellektuell"])
}

func TestEmptyJournalKeepsState(t *testing.T) {
	prev := state.State{ActiveXP: 5, SkillXP: map[string]float64{"Sozial": 5}}
	res, err := newEngine(t).Scan(context.Background(), prev, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.State.ActiveXP)
	assert.Nil(t, res.Daily)
	assert.Len(t, res.State.SkillXP, len(rules.BuiltinCategories))
}

func TestCollectOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todo_list.md")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"# Quests",
		"- [ ] Buch lesen #study.",
		"  - [ ] Steuer machen;",
		"- [x] erledigt #study",
		"- [ ] Freunde treffen #social:",
	}, "\n")), 0o644))

	open, err := newEngine(t).CollectOpen(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Buch lesen #study"}, open["Intellektuell"])
	assert.Equal(t, []string{"Steuer machen"}, open[rules.DefaultCategory])
	assert.Equal(t, []string{"Freunde treffen #social"}, open["Sozial"])
	assert.Equal(t, []string{}, open["Finanziell"])
}

func TestCollectOpenMissing(t *testing.T) {
	open, err := newEngine(t).CollectOpen(filepath.Join(t.TempDir(), "missing.md"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Len(t, open, len(rules.BuiltinCategories))
}
