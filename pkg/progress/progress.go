package progress

import (
	"math"
	"strings"
)

const (
	// BaseLevelCost is the XP needed to go from level 1 to level 2.
	BaseLevelCost = 100.0
	// LevelCostGrowth multiplies the cost of each following level.
	LevelCostGrowth = 1.5
)

// LevelData is derived from total XP on every query.
type LevelData struct {
	Level             int
	XPSinceLevelStart float64
	XPRequiredForNext float64
}

// Progress returns the fraction of the current level completed, in [0, 1).
func (l LevelData) Progress() float64 {
	if l.XPRequiredForNext <= 0 {
		return 0
	}
	return l.XPSinceLevelStart / l.XPRequiredForNext
}

// Level returns the largest level whose cumulative cost is covered by total.
func Level(total float64) LevelData {
	if total < 0 || math.IsNaN(total) {
		total = 0
	}
	level := 1
	cost := BaseLevelCost
	spent := 0.0
	for spent+cost <= total {
		spent += cost
		cost *= LevelCostGrowth
		level++
	}
	return LevelData{
		Level:             level,
		XPSinceLevelStart: total - spent,
		XPRequiredForNext: cost,
	}
}

// Rates are the fixed passive XP rates.
type Rates struct {
	MoodTags map[string]float64 `mapstructure:"mood_tags"`
	Thoughts map[string]float64 `mapstructure:"thoughts"`
}

// DefaultRates returns the standard passive rates.
func DefaultRates() Rates {
	return Rates{
		MoodTags: map[string]float64{
			"#produktiv":   5,
			"#gelesen":     3,
			"#trainiert":   8,
			"#erfolgreich": 10,
		},
		Thoughts: map[string]float64{
			"Deep_Thoughts": 15,
			"Insights":      10,
			"Daily":         1,
		},
	}
}

// PassiveXP is recomputed from the current vault counts on every run.
type PassiveXP struct {
	MoodTags float64
	Thoughts float64
}

func (p PassiveXP) Total() float64 { return p.MoodTags + p.Thoughts }

// Passive prices the mood tag and thought counts. Keys match without regard
// to case; counts without a rate are free.
func Passive(moodTags, thoughts map[string]int, rates Rates) PassiveXP {
	moodRates, thoughtRates := lower(rates.MoodTags), lower(rates.Thoughts)

	var p PassiveXP
	for tag, n := range moodTags {
		p.MoodTags += float64(n) * moodRates[strings.ToLower(tag)]
	}
	for cat, n := range thoughts {
		p.Thoughts += float64(n) * thoughtRates[strings.ToLower(cat)]
	}
	return p
}

func lower(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}
