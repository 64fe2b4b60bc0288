package report

import (
	"embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"
)

//go:embed templates/*.md.tmpl
var builtin embed.FS

// TemplateEngine loads report templates. A file named <name>.md in TemplateDir
// overrides the built-in template of the same name.
type TemplateEngine struct {
	TemplateDir string
}

// NewTemplateEngine creates a new TemplateEngine
func NewTemplateEngine(templateDir string) *TemplateEngine {
	return &TemplateEngine{
		TemplateDir: templateDir,
	}
}

// LoadTemplate returns the override for name if present, else the built-in.
func (e *TemplateEngine) LoadTemplate(name string) (string, error) {
	name = strings.TrimSuffix(name, ".md")
	if e.TemplateDir != "" {
		content, err := os.ReadFile(filepath.Join(e.TemplateDir, name+".md"))
		if err == nil {
			return string(content), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
	}
	content, err := builtin.ReadFile("templates/" + name + ".md.tmpl")
	if err != nil {
		return "", fmt.Errorf("no template %q", name)
	}
	return string(content), nil
}

// Render executes the template content against data.
// Available funcs:
// minutes - 135 renders as "2h 15m"
// xp - two decimals
// date - formats a time with a moment-style layout, e.g. {{date "YYYY-MM-DD" .T}}
// byValue, byCount - map entries sorted by descending value, then key
func (e *TemplateEngine) Render(name, content string, data interface{}) (string, error) {
	tmpl, err := template.New(name).Funcs(funcs).Parse(content)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}

var funcs = template.FuncMap{
	"minutes": FormatMinutes,
	"xp":      func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"date": func(format string, t time.Time) string {
		return t.Format(convertMomentToGoFormat(format))
	},
	"byValue": sortDesc[float64],
	"byCount": sortDesc[int],
}

// FormatMinutes renders a duration in minutes as "45m", "2h" or "2h 15m".
func FormatMinutes(minutes float64) string {
	m := int(math.Round(minutes))
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	if m%60 == 0 {
		return fmt.Sprintf("%dh", m/60)
	}
	return fmt.Sprintf("%dh %dm", m/60, m%60)
}

// Entry is one map item in sorted template output.
type Entry[V int | float64] struct {
	Key   string
	Value V
}

func sortDesc[V int | float64](m map[string]V) []Entry[V] {
	out := make([]Entry[V], 0, len(m))
	for k, v := range m {
		out = append(out, Entry[V]{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// convertMomentToGoFormat converts simple Moment.js format strings to Go time format
func convertMomentToGoFormat(format string) string {
	format = strings.ReplaceAll(format, "YYYY", "2006")
	format = strings.ReplaceAll(format, "MM", "01")
	format = strings.ReplaceAll(format, "DD", "02")
	format = strings.ReplaceAll(format, "HH", "15")
	format = strings.ReplaceAll(format, "mm", "04")
	format = strings.ReplaceAll(format, "ss", "05")
	return format
}
