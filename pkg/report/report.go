// Package report renders the snapshot into Markdown notes inside the vault.
package report

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/mklimuk/vault-quest/pkg/progress"
	"github.com/mklimuk/vault-quest/pkg/state"
	"github.com/mklimuk/vault-quest/pkg/vault"
)

// Names of the reports written on every run.
var Names = []string{
	"Player_Stats",
	"Skill_XP_Breakdown",
	"Skill_Levels",
	"Relationships_Stats",
	"Emotion_Stats",
	"Thought_Activity_Stats",
}

// LogName is the per-day report written to XP_Log/<date>.md.
const LogName = "XP_Log"

// SkillLevel is the level of one category computed from its own XP.
type SkillLevel struct {
	Category string
	XP       float64
	Level    progress.LevelData
}

// Data is what the templates see.
type Data struct {
	Snapshot    *state.Snapshot
	Level       progress.LevelData
	SkillLevels []SkillLevel
	Daily       *state.DailyRecord
}

func newData(snap *state.Snapshot) Data {
	d := Data{
		Snapshot: snap,
		Level:    progress.Level(snap.TotalXP),
		Daily:    snap.LatestDailyStats,
	}
	for cat, xp := range snap.SkillXPGained {
		if xp <= 0 {
			continue
		}
		d.SkillLevels = append(d.SkillLevels, SkillLevel{Category: cat, XP: xp, Level: progress.Level(xp)})
	}
	sort.Slice(d.SkillLevels, func(i, j int) bool {
		if d.SkillLevels[i].XP != d.SkillLevels[j].XP {
			return d.SkillLevels[i].XP > d.SkillLevels[j].XP
		}
		return d.SkillLevels[i].Category < d.SkillLevels[j].Category
	})
	return d
}

// Writer writes the reports into Dir.
type Writer struct {
	Dir       string
	Templates *TemplateEngine
	log       *zap.Logger
}

func NewWriter(dir string, templates *TemplateEngine, log *zap.Logger) *Writer {
	if templates == nil {
		templates = NewTemplateEngine("")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{Dir: dir, Templates: templates, log: log}
}

// Write renders every report from the rounded snapshot and returns the paths
// written. A failing report does not stop the others; their errors are joined.
func (w *Writer) Write(snap *state.Snapshot) ([]string, error) {
	r := snap.Rounded()
	data := newData(&r)

	var written []string
	var errs []error
	for _, name := range Names {
		path := filepath.Join(w.Dir, name+".md")
		if err := w.render(name, path, data); err != nil {
			errs = append(errs, err)
			continue
		}
		written = append(written, path)
	}

	if data.Daily != nil && data.Daily.Date != "" {
		path := filepath.Join(w.Dir, LogName, data.Daily.Date+".md")
		if err := w.render(LogName, path, data); err != nil {
			errs = append(errs, err)
		} else {
			written = append(written, path)
		}
	}
	return written, errors.Join(errs...)
}

func (w *Writer) render(name, path string, data Data) error {
	content, err := w.Templates.LoadTemplate(name)
	if err != nil {
		return fmt.Errorf("load template %s: %w", name, err)
	}
	out, err := w.Templates.Render(name, content, data)
	if err != nil {
		return err
	}
	if err := vault.WriteFileAtomic(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", name, err)
	}
	w.log.Debug("report written", zap.String("path", path))
	return nil
}
