package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/mklimuk/vault-quest/pkg/vault"
)

// Version is the snapshot format written by this package.
const Version = 1

// ErrCorruptSnapshot is returned when the snapshot file does not decode.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Snapshot is the persisted run result and the contract for every consumer
// (dashboard, reports, API, ledger).
type Snapshot struct {
	Version            int                 `json:"version"`
	GeneratedAt        time.Time           `json:"generated_at"`
	TotalXP            float64             `json:"total_xp"`
	ActiveXP           float64             `json:"active_xp"`
	SkillXPGained      map[string]float64  `json:"skill_xp_gained"`
	PassiveXP          PassiveRecord       `json:"passive_xp"`
	RunMetrics         RunMetrics          `json:"run_metrics"`
	SallyupBestTime    float64             `json:"sallyup_best_time"`
	LastProcessedDate  string              `json:"last_processed_date,omitempty"`
	Pending            *PendingRecord      `json:"pending,omitempty"`
	Accumulator        *AccumulatorRecord  `json:"accumulator,omitempty"`
	OpenTasks          map[string][]string `json:"open_tasks"`
	LatestDailyStats   *DailyRecord        `json:"latest_daily_stats"`
	Level              LevelRecord         `json:"level"`
	PersonInteractions map[string]int      `json:"person_interactions"`
	People             map[string]float64  `json:"people"`
	MoodTags           map[string]int      `json:"mood_tags"`
	ThoughtActivity    map[string]int      `json:"thought_activity"`
	Skills             map[string][]string `json:"skills"`
}

// PassiveRecord is the passive XP recomputed on every run.
type PassiveRecord struct {
	MoodTags float64 `json:"mood_tags"`
	Thoughts float64 `json:"thoughts"`
	Total    float64 `json:"total"`
}

// RunMetrics are the cumulative running totals.
type RunMetrics struct {
	TotalKm      float64 `json:"total_km"`
	TotalMinutes float64 `json:"total_minutes"`
}

// PendingRecord is the serialized Contribution of the watermark document.
// It is written at full precision.
type PendingRecord struct {
	Date       string             `json:"date"`
	ActiveXP   float64            `json:"active_xp"`
	SkillXP    map[string]float64 `json:"skill_xp"`
	RunKm      float64            `json:"run_km"`
	RunMinutes float64            `json:"run_minutes"`
}

// AccumulatorRecord holds the unrounded cumulative totals the next run
// continues from. The top-level totals are their rounded display copies.
type AccumulatorRecord struct {
	ActiveXP   float64            `json:"active_xp"`
	SkillXP    map[string]float64 `json:"skill_xp"`
	RunKm      float64            `json:"run_km"`
	RunMinutes float64            `json:"run_minutes"`
}

// DailyRecord is the view over the most recent journal document.
type DailyRecord struct {
	Date           string             `json:"date"`
	TasksToday     int                `json:"tasks_today"`
	MinutesToday   float64            `json:"minutes_today"`
	TotalXPToday   float64            `json:"total_xp_today"`
	DailyBreakdown map[string]float64 `json:"daily_breakdown"`
	CompletedToday []string           `json:"completed_today"`
}

// LevelRecord is the serialized progress.LevelData.
type LevelRecord struct {
	Level             int     `json:"level"`
	XPSinceLevelStart float64 `json:"xp_since_level_start"`
	XPRequiredForNext float64 `json:"xp_required_for_next"`
}

// State rebuilds the accumulator from the persisted fields. A snapshot that
// predates the pending record yields a settled state.
func (s *Snapshot) State() State {
	st := State{
		ActiveXP:    s.ActiveXP,
		SkillXP:     copyMap(s.SkillXPGained),
		RunKm:       s.RunMetrics.TotalKm,
		RunMinutes:  s.RunMetrics.TotalMinutes,
		TimedRecord: s.SallyupBestTime,
	}
	if a := s.Accumulator; a != nil {
		st.ActiveXP = a.ActiveXP
		st.SkillXP = copyMap(a.SkillXP)
		st.RunKm = a.RunKm
		st.RunMinutes = a.RunMinutes
	}
	if st.SkillXP == nil {
		st.SkillXP = make(map[string]float64)
	}
	// Snapshots without a separate active total stored it as total_xp.
	if s.Version == 0 && st.ActiveXP == 0 {
		st.ActiveXP = s.TotalXP
	}
	if w, err := time.Parse(vault.DateLayout, s.LastProcessedDate); err == nil {
		st.Watermark = w
	}
	if s.Pending != nil {
		if d, err := time.Parse(vault.DateLayout, s.Pending.Date); err == nil {
			st.Pending = Contribution{
				Date:       d,
				ActiveXP:   s.Pending.ActiveXP,
				SkillXP:    copyMap(s.Pending.SkillXP),
				RunKm:      s.Pending.RunKm,
				RunMinutes: s.Pending.RunMinutes,
			}
		}
	}
	st.Settled = !st.Watermark.IsZero() && st.Pending.Empty()
	return st
}

// SetState copies the accumulator into the snapshot fields.
func (s *Snapshot) SetState(st State) {
	s.ActiveXP = st.ActiveXP
	s.SkillXPGained = copyMap(st.SkillXP)
	s.RunMetrics = RunMetrics{TotalKm: st.RunKm, TotalMinutes: st.RunMinutes}
	s.SallyupBestTime = st.TimedRecord
	s.Accumulator = &AccumulatorRecord{
		ActiveXP:   st.ActiveXP,
		SkillXP:    copyMap(st.SkillXP),
		RunKm:      st.RunKm,
		RunMinutes: st.RunMinutes,
	}
	s.LastProcessedDate = ""
	if !st.Watermark.IsZero() {
		s.LastProcessedDate = st.Watermark.Format(vault.DateLayout)
	}
	s.Pending = nil
	if !st.Pending.Empty() {
		s.Pending = &PendingRecord{
			Date:       st.Pending.Date.Format(vault.DateLayout),
			ActiveXP:   st.Pending.ActiveXP,
			SkillXP:    copyMap(st.Pending.SkillXP),
			RunKm:      st.Pending.RunKm,
			RunMinutes: st.Pending.RunMinutes,
		}
	}
}

// Round returns v rounded half away from zero to the given decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func roundMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = Round(v, 2)
	}
	return out
}

// Rounded returns a copy with XP and km at 2 decimals and minutes at 1.
// Pending and Accumulator keep full precision.
func (s Snapshot) Rounded() Snapshot {
	s.TotalXP = Round(s.TotalXP, 2)
	s.ActiveXP = Round(s.ActiveXP, 2)
	s.SkillXPGained = roundMap(s.SkillXPGained)
	s.PassiveXP = PassiveRecord{
		MoodTags: Round(s.PassiveXP.MoodTags, 2),
		Thoughts: Round(s.PassiveXP.Thoughts, 2),
		Total:    Round(s.PassiveXP.Total, 2),
	}
	s.RunMetrics = RunMetrics{
		TotalKm:      Round(s.RunMetrics.TotalKm, 2),
		TotalMinutes: Round(s.RunMetrics.TotalMinutes, 1),
	}
	s.SallyupBestTime = Round(s.SallyupBestTime, 2)
	if s.LatestDailyStats != nil {
		d := *s.LatestDailyStats
		d.MinutesToday = Round(d.MinutesToday, 1)
		d.TotalXPToday = Round(d.TotalXPToday, 2)
		d.DailyBreakdown = roundMap(d.DailyBreakdown)
		s.LatestDailyStats = &d
	}
	s.Level.XPSinceLevelStart = Round(s.Level.XPSinceLevelStart, 2)
	s.Level.XPRequiredForNext = Round(s.Level.XPRequiredForNext, 2)
	return s
}

// Store reads and writes the snapshot file.
type Store struct {
	path string
}

// NewStore returns a store for the snapshot file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the snapshot file path.
func (s *Store) Path() string { return s.path }

// Load returns the stored snapshot, or nil when none exists yet.
// A file that does not decode yields ErrCorruptSnapshot.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptSnapshot, s.path, err)
	}
	if snap.Version > Version {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrCorruptSnapshot, s.path, snap.Version)
	}
	return &snap, nil
}

// Save rounds snap and writes it atomically.
func (s *Store) Save(snap *Snapshot) error {
	data, err := Marshal(snap, "  ")
	if err != nil {
		return err
	}
	if err := vault.WriteFileAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Marshal renders the rounded snapshot as indented JSON without HTML escaping.
func Marshal(snap *Snapshot, indent string) ([]byte, error) {
	r := snap.Rounded()
	r.Version = Version
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(&r); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
