package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestApplyWithdraw(t *testing.T) {
	st := State{SkillXP: map[string]float64{"Physisch": 1}}
	c := Contribution{Date: day("2024-01-01"), RunKm: 5, RunMinutes: 30}
	c.Add("Physisch", 2)
	c.Add("Sozial", 1)

	st.Apply(c)
	assert.Equal(t, 3.0, st.ActiveXP)
	assert.Equal(t, 3.0, st.SkillXP["Physisch"])
	assert.Equal(t, 5.0, st.RunKm)

	st.Withdraw(c)
	assert.Equal(t, 0.0, st.ActiveXP)
	assert.Equal(t, 1.0, st.SkillXP["Physisch"])
	assert.Equal(t, 0.0, st.SkillXP["Sozial"])
	assert.Equal(t, 0.0, st.RunMinutes)
}

func TestWithdrawNeverNegative(t *testing.T) {
	st := State{ActiveXP: 1, SkillXP: map[string]float64{"A": 1}}
	st.Withdraw(Contribution{ActiveXP: 2, SkillXP: map[string]float64{"A": 2, "B": 1}})
	assert.Zero(t, st.ActiveXP)
	assert.Zero(t, st.SkillXP["A"])
	_, ok := st.SkillXP["B"]
	assert.False(t, ok)
}

func TestCloneIsDeep(t *testing.T) {
	st := State{SkillXP: map[string]float64{"A": 1}, Pending: Contribution{SkillXP: map[string]float64{"A": 1}}}
	c := st.Clone()
	c.SkillXP["A"] = 9
	c.Pending.SkillXP["A"] = 9
	assert.Equal(t, 1.0, st.SkillXP["A"])
	assert.Equal(t, 1.0, st.Pending.SkillXP["A"])
}

func TestSnapshotStateRoundTrip(t *testing.T) {
	st := State{
		ActiveXP:    12.5,
		SkillXP:     map[string]float64{"Intellektuell": 12.5},
		Watermark:   day("2024-03-02"),
		RunKm:       10.4,
		RunMinutes:  61,
		TimedRecord: 2.5,
		Pending: Contribution{
			Date:     day("2024-03-02"),
			ActiveXP: 3,
			SkillXP:  map[string]float64{"Intellektuell": 3},
		},
	}

	var snap Snapshot
	snap.SetState(st)
	assert.Equal(t, "2024-03-02", snap.LastProcessedDate)
	require.NotNil(t, snap.Pending)

	got := snap.State()
	if diff := cmp.Diff(st, got); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, got.Settled)
}

func TestLegacySnapshotIsSettled(t *testing.T) {
	snap := Snapshot{TotalXP: 40, LastProcessedDate: "2024-01-05", SkillXPGained: map[string]float64{"Allgemein": 40}}
	st := snap.State()
	assert.True(t, st.Settled)
	assert.Equal(t, 40.0, st.ActiveXP)
	assert.Equal(t, day("2024-01-05"), st.Watermark)
}

func TestStoreMissing(t *testing.T) {
	snap, err := NewStore(filepath.Join(t.TempDir(), "none.json")).Load()
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewStore(path).Load()
	assert.True(t, errors.Is(err, ErrCorruptSnapshot), "got %v", err)
}

func TestStoreSaveRoundsAtSerialization(t *testing.T) {
	path := filepath.Join(t.TempDir(), "08_System", "data.json")
	store := NewStore(path)

	snap := &Snapshot{
		TotalXP:       10.0 / 3,
		ActiveXP:      10.0 / 3,
		SkillXPGained: map[string]float64{"Physisch": 10.0 / 3},
		RunMetrics:    RunMetrics{TotalKm: 5.256, TotalMinutes: 30.44},
		LatestDailyStats: &DailyRecord{
			Date:         "2024-01-01",
			MinutesToday: 19.75,
		},
	}
	require.NoError(t, store.Save(snap))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, Version, got.Version)
	assert.Equal(t, 3.33, got.TotalXP)
	assert.Equal(t, 3.33, got.SkillXPGained["Physisch"])
	assert.Equal(t, 5.26, got.RunMetrics.TotalKm)
	assert.Equal(t, 30.4, got.RunMetrics.TotalMinutes)
	assert.Equal(t, 19.8, got.LatestDailyStats.MinutesToday)

	// the in-memory value keeps full precision
	assert.InDelta(t, 10.0/3, snap.TotalXP, 1e-12)
}

func TestStoreRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99}`), 0o644))
	_, err := NewStore(path).Load()
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestStoreKeepsAccumulatorPrecision(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "data.json"))
	st := State{
		ActiveXP:   0.125,
		SkillXP:    map[string]float64{"Physisch": 0.125},
		Watermark:  day("2024-01-01"),
		RunKm:      1.005,
		RunMinutes: 7.25,
		Pending: Contribution{
			Date:     day("2024-01-01"),
			ActiveXP: 0.125,
			SkillXP:  map[string]float64{"Physisch": 0.125},
		},
	}
	snap := &Snapshot{TotalXP: st.ActiveXP}
	snap.SetState(st)
	require.NoError(t, store.Save(snap))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 0.13, got.ActiveXP, "display total is rounded")
	assert.Equal(t, 0.125, got.Pending.ActiveXP)

	if diff := cmp.Diff(st, got.State()); diff != "" {
		t.Errorf("state lost precision (-want +got):\n%s", diff)
	}
}
