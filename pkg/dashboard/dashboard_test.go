package dashboard

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><script>
    // <START_JSON_INJECTION>
    const MOCK_DATA = {};
    // <END_JSON_INJECTION>
    render(MOCK_DATA);
</script></html>`

func TestInject(t *testing.T) {
	out, err := Inject(page, []byte("{\n    \"total_xp\": 3\n}"))
	require.NoError(t, err)

	want := "<html><script>\n" +
		"// <START_JSON_INJECTION>\n" +
		"    const MOCK_DATA = {\n    \"total_xp\": 3\n};\n" +
		"// <END_JSON_INJECTION>\n" +
		"    render(MOCK_DATA);\n</script></html>"
	assert.Equal(t, want, out)
}

func TestInjectIsIdempotent(t *testing.T) {
	payload := []byte(`{"a": 1}`)
	once, err := Inject(page, payload)
	require.NoError(t, err)
	twice, err := Inject(once, payload)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestInjectMissingMarkers(t *testing.T) {
	_, err := Inject("<html></html>", []byte("{}"))
	assert.True(t, errors.Is(err, ErrMarkersNotFound))

	_, err = Inject("x "+StartMarker+" y", []byte("{}"))
	assert.ErrorIs(t, err, ErrMarkersNotFound)

	_, err = Inject(EndMarker+" "+StartMarker, []byte("{}"))
	assert.ErrorIs(t, err, ErrMarkersNotFound, "end marker before start")
}

func TestUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rpg_dashboard.html")
	require.NoError(t, os.WriteFile(path, []byte(page), 0o644))

	require.NoError(t, Update(path, []byte(`{"level": 2}`)))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `const MOCK_DATA = {"level": 2};`)

	err = Update(filepath.Join(t.TempDir(), "missing.html"), []byte("{}"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
