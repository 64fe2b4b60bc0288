package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mklimuk/vault-quest/pkg/extract"
)

var closenessKeys = []string{"nähe", "naehe", "closeness"}

// People reads every record in the people folder. Closeness comes from the
// frontmatter or an inline "nähe:" line; anything unparsable scores 0.
// Unreadable records are skipped and reported in the joined error.
func (v *Vault) People() ([]Person, error) {
	paths, err := listMarkdown(v.Path(v.Layout.People))
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	var people []Person
	var errs []error
	for _, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		c, err := closeness(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("read person %s: %w", name, err))
			continue
		}
		people = append(people, Person{Name: name, Closeness: c})
	}
	return people, errors.Join(errs...)
}

// HasPeople reports whether the people folder exists.
func (v *Vault) HasPeople() bool {
	info, err := os.Stat(v.Path(v.Layout.People))
	return err == nil && info.IsDir()
}

func closeness(path string) (float64, error) {
	note, err := ReadNote(path)
	if err == nil {
		for _, k := range closenessKeys {
			if raw, ok := note.Frontmatter[k]; ok {
				return toFloat(raw), nil
			}
		}
		return inlineCloseness(note.Content), nil
	}
	// Broken frontmatter still leaves the inline form readable.
	data, rerr := os.ReadFile(path)
	if rerr != nil {
		return 0, rerr
	}
	return inlineCloseness(string(data)), nil
}

func inlineCloseness(content string) float64 {
	lower := strings.ToLower(content)
	i := strings.Index(lower, "nähe:")
	if i < 0 {
		return 0
	}
	rest := lower[i+len("nähe:"):]
	if j := strings.IndexByte(rest, '\n'); j >= 0 {
		rest = rest[:j]
	}
	return toFloat(strings.TrimSpace(rest))
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(n), ",", ".", 1), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// MoodTags counts every #tag token across the mood log. A missing mood log
// folder yields an empty count and an error wrapping os.ErrNotExist.
func (v *Vault) MoodTags() (map[string]int, error) {
	counts := make(map[string]int)
	dir := v.Path(v.Layout.Moods)
	if _, err := os.Stat(dir); err != nil {
		return counts, fmt.Errorf("mood log: %w", err)
	}
	paths, err := listMarkdown(dir)
	if err != nil {
		return counts, fmt.Errorf("list mood log: %w", err)
	}
	var errs []error
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("read mood %s: %w", filepath.Base(p), err))
			continue
		}
		for _, tag := range extract.Tags(string(data)) {
			counts[tag]++
		}
	}
	return counts, errors.Join(errs...)
}

// ThoughtActivity counts the notes in each configured thought folder.
// Missing folders count 0.
func (v *Vault) ThoughtActivity() (map[string]int, error) {
	counts := make(map[string]int, len(v.Layout.ThoughtCategories))
	var errs []error
	for _, cat := range v.Layout.ThoughtCategories {
		paths, err := listMarkdown(filepath.Join(v.Path(v.Layout.Thoughts), cat))
		if err != nil {
			errs = append(errs, fmt.Errorf("list thoughts %s: %w", cat, err))
		}
		counts[cat] = len(paths)
	}
	return counts, errors.Join(errs...)
}

// Skills returns skill note names grouped by their category folder.
func (v *Vault) Skills() (map[string][]string, error) {
	root := v.Path(v.Layout.Skills)
	skills := make(map[string][]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && os.IsNotExist(err) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		dir := filepath.Dir(path)
		if dir == root {
			return nil
		}
		cat := filepath.Base(dir)
		skills[cat] = append(skills[cat], strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk skills: %w", err)
	}
	for _, names := range skills {
		sort.Strings(names)
	}
	return skills, nil
}
