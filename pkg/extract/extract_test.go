package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		text  string
		want  float64
		found bool
	}{
		{"Lesen (1h 30m)", 90, true},
		{"Lesen (45min)", 45, true},
		{"Lesen (45m)", 45, true},
		{"Lesen (2h 0m)", 120, true},
		{"Plank (19:45min)", 19.75, true},
		{"Plank (3:75min)", 0, false},
		{"kein Hinweis", 0, false},
		{"(2h)", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			m, ok := Duration(tt.text)
			assert.Equal(t, tt.found, ok)
			assert.InDelta(t, tt.want, m.Value, 1e-9)
		})
	}
}

func TestDurationPrefersHoursMinutes(t *testing.T) {
	m, ok := Duration("x (12:30min) y (20min)")
	assert.True(t, ok)
	assert.Equal(t, 20.0, m.Value)
	assert.Equal(t, "(20min)", m.Text)
}

func TestPoints(t *testing.T) {
	for n, want := range map[string]float64{"(1p)": 1, "(3p)": 3, "(5p)": 5, "(8p)": 8} {
		m, ok := Points("task " + n)
		assert.True(t, ok, n)
		assert.Equal(t, want, m.Value, n)
	}

	_, ok := Points("task (2p)")
	assert.False(t, ok, "values outside the table are not points")
	_, ok = Points("task 3p")
	assert.False(t, ok)
}

func TestPointsMatchPosition(t *testing.T) {
	m, ok := Points("ab (5p) cd")
	assert.True(t, ok)
	assert.Equal(t, Match{Value: 5, Text: "(5p)", Start: 3, End: 7}, m)
}

func TestDistance(t *testing.T) {
	m, ok := Distance("#run (5.2km) (30min)")
	assert.True(t, ok)
	assert.Equal(t, 5.2, m.Value)

	m, ok = Distance("#run (10 km)")
	assert.True(t, ok)
	assert.Equal(t, 10.0, m.Value)

	m, ok = Distance("#run (3,5km)")
	assert.True(t, ok)
	assert.Equal(t, 3.5, m.Value)

	_, ok = Distance("#run (30min)")
	assert.False(t, ok)
}

func TestClockTimeIndependentOfDuration(t *testing.T) {
	m, ok := ClockTime("#sallyup (2:30min) (5m)")
	assert.True(t, ok)
	assert.Equal(t, 2.5, m.Value)

	_, ok = ClockTime("#sallyup (5m)")
	assert.False(t, ok)
}

func TestPersonLinks(t *testing.T) {
	got := PersonLinks("Kaffee mit [[Anna]] und [[Ben Müller|Ben]], siehe [[Anna#Notizen]] [[ ]]")
	assert.Equal(t, []string{"Anna", "Ben Müller", "Anna"}, got)
	assert.Nil(t, PersonLinks("keine Links"))
}

func TestTags(t *testing.T) {
	got := Tags("Heute #produktiv und #gelesen, dann #Trainiert- # ende")
	assert.Equal(t, []string{"#produktiv", "#gelesen", "#Trainiert"}, got)
}

func TestHasTag(t *testing.T) {
	assert.True(t, HasTag("Lauf #RUN (5km)", "#run"))
	assert.False(t, HasTag("Lauf", "#run"))
	assert.False(t, HasTag("Lauf", ""))
}
