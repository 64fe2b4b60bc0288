package rules

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// DefaultCategory is the bucket for tasks that match no rule.
const DefaultCategory = "Allgemein"

// FallbackBaseXP is used when a rule's base XP column does not parse.
const FallbackBaseXP = 0.5

// BuiltinCategories are always known, even without a rule table.
var BuiltinCategories = []string{
	"Allgemein",
	"Finanziell",
	"Intellektuell",
	"Spirituell",
	"Physisch",
	"Sozial",
	"Sprachlich",
}

var separatorRow = regexp.MustCompile(`^\|[\s:|-]*$`)

// Rule maps a tag token to a skill category and a base XP rate per time unit.
type Rule struct {
	Tag      string
	Category string
	BaseXP   float64
}

// Table holds the rules in load order. Row order is significant: when a task
// matches several tags, the rule defined first wins.
type Table struct {
	rules      []Rule
	index      map[string]int
	categories []string
	known      map[string]bool
	loaded     bool
}

// New builds a table from rules in the given order. Duplicate tags keep the
// first occurrence.
func New(rs []Rule) *Table {
	t := &Table{
		index: make(map[string]int),
		known: make(map[string]bool),
	}
	for _, c := range BuiltinCategories {
		t.addCategory(c)
	}
	for _, r := range rs {
		t.add(r)
	}
	return t
}

func (t *Table) add(r Rule) {
	r.Tag = strings.ToLower(strings.TrimSpace(r.Tag))
	r.Category = strings.TrimSpace(r.Category)
	if r.Tag == "" || r.Category == "" {
		return
	}
	if _, dup := t.index[r.Tag]; dup {
		return
	}
	if r.BaseXP < 0 {
		r.BaseXP = 0
	}
	t.index[r.Tag] = len(t.rules)
	t.rules = append(t.rules, r)
	t.addCategory(r.Category)
}

func (t *Table) addCategory(c string) {
	if t.known[c] {
		return
	}
	t.known[c] = true
	t.categories = append(t.categories, c)
}

// Load reads the rule table at path. A missing file is not an error: the
// returned table carries only the built-in categories and Loaded reports false.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(nil), nil
		}
		return nil, fmt.Errorf("open rule table: %w", err)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read rule table %s: %w", path, err)
	}
	return t, nil
}

// Parse reads pipe-delimited table rows from r.
func Parse(r io.Reader) (*Table, error) {
	var rs []Rule
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if rule, ok := parseRow(scanner.Text()); ok {
			rs = append(rs, rule)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	t := New(rs)
	t.loaded = true
	return t, nil
}

func parseRow(line string) (Rule, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "|") || separatorRow.MatchString(line) {
		return Rule{}, false
	}
	if strings.Contains(line, ":---") || strings.Contains(strings.ToLower(line), "basis_xp") {
		return Rule{}, false
	}

	var fields []string
	for _, p := range strings.Split(line, "|") {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	if len(fields) < 3 || strings.EqualFold(fields[0], "tag") {
		return Rule{}, false
	}

	xp, err := strconv.ParseFloat(strings.Replace(fields[2], ",", ".", 1), 64)
	if err != nil {
		xp = FallbackBaseXP
	}
	return Rule{Tag: fields[0], Category: fields[1], BaseXP: xp}, true
}

// Loaded reports whether the table came from an existing rule document.
func (t *Table) Loaded() bool { return t.loaded }

// Rules returns the rules in load order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Categories returns built-in categories followed by those discovered in the
// table, without duplicates.
func (t *Table) Categories() []string {
	out := make([]string, len(t.categories))
	copy(out, t.categories)
	return out
}

// Resolve returns the first rule, in load order, whose tag occurs in text.
func (t *Table) Resolve(text string) (Rule, bool) {
	lower := strings.ToLower(text)
	for _, r := range t.rules {
		if strings.Contains(lower, r.Tag) {
			return r, true
		}
	}
	return Rule{}, false
}

// Category returns the category of the first matching rule, or DefaultCategory.
func (t *Table) Category(text string) string {
	if r, ok := t.Resolve(text); ok {
		return r.Category
	}
	return DefaultCategory
}

// ZeroMap returns a map with a zero entry for every known category.
func (t *Table) ZeroMap() map[string]float64 {
	m := make(map[string]float64, len(t.categories))
	for _, c := range t.categories {
		m[c] = 0
	}
	return m
}

// Fill adds zero entries for known categories missing from m and returns m.
func (t *Table) Fill(m map[string]float64) map[string]float64 {
	if m == nil {
		m = make(map[string]float64, len(t.categories))
	}
	for _, c := range t.categories {
		if _, ok := m[c]; !ok {
			m[c] = 0
		}
	}
	return m
}
