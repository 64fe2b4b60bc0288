package vault

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var taskLine = regexp.MustCompile(`^\s*- \[([ xX])\]\s*(.*)$`)

// Vault is an opened vault root with its layout.
type Vault struct {
	Root   string
	Layout Layout
}

// Open checks that root is a directory.
func Open(root string, layout Layout) (*Vault, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrVaultNotFound, root)
		}
		return nil, fmt.Errorf("stat vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrVaultNotFound, root)
	}
	return &Vault{Root: root, Layout: layout}, nil
}

// Path resolves a vault-relative path. Absolute paths are returned unchanged.
func (v *Vault) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(v.Root, filepath.FromSlash(rel))
}

// ReadNote reads a markdown file and parses its frontmatter and content
func ReadNote(path string) (*Note, error) {
	frontmatterLines, contentLines, err := splitNote(path)
	if err != nil {
		return nil, err
	}

	var rawFM map[string]interface{}
	if fmData := strings.Join(frontmatterLines, "\n"); len(fmData) > 0 {
		if err := yaml.Unmarshal([]byte(fmData), &rawFM); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
	}

	return &Note{
		Path:        path,
		Frontmatter: rawFM,
		Content:     strings.Join(contentLines, "\n"),
	}, nil
}

// splitNote separates the frontmatter block from the body without decoding it.
func splitNote(path string) (frontmatterLines, contentLines []string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	inFrontmatter := false
	lineCount := 0

	for scanner.Scan() {
		line := scanner.Text()
		lineCount++

		if lineCount == 1 && strings.TrimSpace(line) == "---" {
			inFrontmatter = true
			continue
		}

		if inFrontmatter {
			if strings.TrimSpace(line) == "---" {
				inFrontmatter = false
				continue
			}
			frontmatterLines = append(frontmatterLines, line)
		} else {
			contentLines = append(contentLines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	// An unterminated block is body text, not frontmatter.
	if inFrontmatter {
		contentLines = append(append([]string{"---"}, frontmatterLines...), contentLines...)
		frontmatterLines = nil
	}
	return frontmatterLines, contentLines, nil
}

// ParseTasks returns the checklist lines of content in document order.
// Line numbers are 1-based within content.
func ParseTasks(content string) []Task {
	var tasks []Task
	for i, line := range strings.Split(content, "\n") {
		m := taskLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		tasks = append(tasks, Task{
			Text: strings.TrimSpace(m[2]),
			Done: m[1] != " ",
			Line: i + 1,
		})
	}
	return tasks
}

// ReadTasks reads the note at path and returns the checklist lines of its
// body. The frontmatter is skipped undecoded, so template placeholders such
// as "date: {{date}}" do not hide the tasks.
func ReadTasks(path string) ([]Task, error) {
	_, content, err := splitNote(path)
	if err != nil {
		return nil, err
	}
	return ParseTasks(strings.Join(content, "\n")), nil
}

// ListJournal walks dir recursively and returns the documents whose file name
// is a valid YYYY-MM-DD date, sorted ascending. When two files carry the same
// date the first one in path order is kept. A missing dir yields no files.
func ListJournal(dir string) ([]JournalFile, error) {
	byDate := make(map[time.Time]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && os.IsNotExist(err) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		name := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		date, err := time.Parse(DateLayout, name)
		if err != nil {
			return nil
		}
		if prev, ok := byDate[date]; !ok || path < prev {
			byDate[date] = path
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk journal: %w", err)
	}

	files := make([]JournalFile, 0, len(byDate))
	for date, path := range byDate {
		files = append(files, JournalFile{Date: date, Path: path})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Date.Before(files[j].Date) })
	return files, nil
}

// listMarkdown returns the .md files directly inside dir, sorted by name.
// A missing dir yields nil.
func listMarkdown(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}
