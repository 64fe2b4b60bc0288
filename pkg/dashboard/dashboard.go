// Package dashboard rewrites the data block of the HTML dashboard.
package dashboard

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mklimuk/vault-quest/pkg/vault"
)

const (
	StartMarker = "// <START_JSON_INJECTION>"
	EndMarker   = "// <END_JSON_INJECTION>"
	// Variable is the script identifier the dashboard reads.
	Variable = "MOCK_DATA"
)

// ErrMarkersNotFound is returned when the document lacks either marker.
var ErrMarkersNotFound = errors.New("injection markers not found")

// Inject replaces the marker region of doc with the JSON payload.
// Text before the start marker loses trailing whitespace.
func Inject(doc string, payload []byte) (string, error) {
	start := strings.Index(doc, StartMarker)
	if start < 0 {
		return "", ErrMarkersNotFound
	}
	end := strings.Index(doc[start:], EndMarker)
	if end < 0 {
		return "", ErrMarkersNotFound
	}
	end += start + len(EndMarker)

	var b strings.Builder
	b.WriteString(strings.TrimRight(doc[:start], " \t\r\n"))
	b.WriteString("\n")
	b.WriteString(StartMarker)
	b.WriteString("\n    const " + Variable + " = ")
	b.Write(payload)
	b.WriteString(";\n")
	b.WriteString(EndMarker)
	b.WriteString(doc[end:])
	return b.String(), nil
}

// Update injects payload into the dashboard file at path in place.
func Update(path string, payload []byte) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read dashboard: %w", err)
	}
	out, err := Inject(string(data), payload)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return vault.WriteFileAtomic(path, []byte(out), info.Mode().Perm())
}
