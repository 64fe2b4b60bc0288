package db

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Repository handles data access
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Run is a row in the runs table
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Watermark  string
	ActiveXP   float64
	TotalXP    float64
	Level      int
	Documents  int
	Failed     int
}

// DailyXP is a row in the daily_xp table
type DailyXP struct {
	Date     string
	Category string
	XP       float64
}

// RecordRun inserts a run and returns its ID, generated when empty.
func (r *Repository) RecordRun(run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	query := `INSERT INTO runs (id, started_at, finished_at, watermark, active_xp, total_xp, level, documents, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query, run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Watermark,
		run.ActiveXP, run.TotalXP, run.Level, run.Documents, run.Failed)
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	return run.ID, nil
}

// LatestRun returns the most recent run
func (r *Repository) LatestRun() (*Run, error) {
	runs, err := r.RecentRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// RecentRuns returns up to limit runs, newest first.
func (r *Repository) RecentRuns(limit int) ([]Run, error) {
	query := `SELECT id, started_at, finished_at, watermark, active_xp, total_xp, level, documents, failed
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var watermark sql.NullString
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &watermark,
			&run.ActiveXP, &run.TotalXP, &run.Level, &run.Documents, &run.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Watermark = watermark.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ReplaceDailyXP stores the per-category XP of one journal day, replacing
// whatever an earlier run stored for it. Zero entries are not stored.
func (r *Repository) ReplaceDailyXP(date string, xp map[string]float64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM daily_xp WHERE date = ?`, date); err != nil {
		return fmt.Errorf("failed to clear daily xp: %w", err)
	}

	cats := make([]string, 0, len(xp))
	for c := range xp {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		if xp[c] == 0 {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO daily_xp (date, category, xp) VALUES (?, ?, ?)`, date, c, xp[c]); err != nil {
			return fmt.Errorf("failed to insert daily xp: %w", err)
		}
	}
	return tx.Commit()
}

// DailyXPSince returns the daily rows on or after since (YYYY-MM-DD), oldest first.
func (r *Repository) DailyXPSince(since string) ([]DailyXP, error) {
	query := `SELECT date, category, xp FROM daily_xp WHERE date >= ? ORDER BY date, category`
	rows, err := r.db.Query(query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily xp: %w", err)
	}
	defer rows.Close()

	var out []DailyXP
	for rows.Next() {
		var d DailyXP
		if err := rows.Scan(&d.Date, &d.Category, &d.XP); err != nil {
			return nil, fmt.Errorf("failed to scan daily xp: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
