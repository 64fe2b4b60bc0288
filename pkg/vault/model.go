package vault

import (
	"errors"
	"time"
)

// ErrVaultNotFound is returned when the vault root is missing or not a directory.
var ErrVaultNotFound = errors.New("vault not found")

// DateLayout is the journal file name format.
const DateLayout = "2006-01-02"

// Layout holds vault-relative locations of the documents the engine reads.
type Layout struct {
	Rules             string   `yaml:"rules"`
	Todo              string   `yaml:"todo"`
	Journal           string   `yaml:"journal"`
	People            string   `yaml:"people"`
	Moods             string   `yaml:"moods"`
	Thoughts          string   `yaml:"thoughts"`
	ThoughtCategories []string `yaml:"thought_categories"`
	Skills            string   `yaml:"skills"`
}

// DefaultLayout returns the folder structure of a standard life-RPG vault.
func DefaultLayout() Layout {
	return Layout{
		Rules:             "01_Core/XP_Calculation.md",
		Todo:              "01_Core/todo_list.md",
		Journal:           "07_Journal",
		People:            "02_People",
		Moods:             "04_Emotions/Moodlog",
		Thoughts:          "05_Thoughts",
		ThoughtCategories: []string{"Daily", "Deep_Thoughts", "Insights"},
		Skills:            "03_Skills",
	}
}

// Note represents a parsed markdown note
type Note struct {
	Path        string
	Frontmatter map[string]interface{}
	Content     string // The markdown content after frontmatter
}

// Task is one checklist line.
type Task struct {
	Text string
	Done bool
	Line int
}

// JournalFile is a journal document keyed by the date in its file name.
type JournalFile struct {
	Date time.Time
	Path string
}

// Person is a people record and its closeness score.
type Person struct {
	Name      string
	Closeness float64
}
