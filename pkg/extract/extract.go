// Package extract holds the recognizers for annotations embedded in task text.
//
// Each recognizer is independent and returns the first match in the text:
//
//	(3p)         points, looked up in a fixed table
//	(1h 30m)     duration, hours and minutes
//	(45min)      duration, minutes
//	(19:45min)   duration or timed record, minutes and seconds
//	(5.2km)      distance
//	[[Name]]     person link
//
// Duration tries the hours/minutes notation before the clock notation.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Match is a recognized annotation: its numeric value and where it was found.
type Match struct {
	Value float64
	Text  string
	Start int
	End   int
}

var (
	pointsRe   = regexp.MustCompile(`(?i)\((\d+)p\)`)
	hoursMinRe = regexp.MustCompile(`(?i)\((?:(\d+)\s*h)?\s*(\d+)\s*m(?:in)?\)`)
	clockRe    = regexp.MustCompile(`(?i)\((\d+):(\d{2})\s*min\)`)
	distanceRe = regexp.MustCompile(`(?i)\((\d+(?:[.,]\d+)?)\s*km\)`)
	linkRe     = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`#[\p{L}\p{N}_/-]+`)
)

// PointValues maps the recognized point annotations to XP.
var PointValues = map[int]float64{1: 1.0, 3: 3.0, 5: 5.0, 8: 8.0}

func matchAt(text string, loc []int, v float64) Match {
	return Match{Value: v, Text: text[loc[0]:loc[1]], Start: loc[0], End: loc[1]}
}

// Points recognizes "(Np)". Integers outside PointValues count as no points.
func Points(text string) (Match, bool) {
	loc := pointsRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}, false
	}
	n, err := strconv.Atoi(text[loc[2]:loc[3]])
	if err != nil {
		return Match{}, false
	}
	v, ok := PointValues[n]
	if !ok || v == 0 {
		return Match{}, false
	}
	return matchAt(text, loc, v), true
}

// Duration returns minutes from "(1h 30m)", "(45m)", "(45min)" or, failing
// those, from "(19:45min)". Clock seconds of 60 or more are not a duration.
func Duration(text string) (Match, bool) {
	if loc := hoursMinRe.FindStringSubmatchIndex(text); loc != nil {
		h := 0
		if loc[2] >= 0 {
			h, _ = strconv.Atoi(text[loc[2]:loc[3]])
		}
		m, _ := strconv.Atoi(text[loc[4]:loc[5]])
		return matchAt(text, loc, float64(h*60+m)), true
	}
	return ClockTime(text)
}

// ClockTime recognizes "(M:SSmin)" and returns fractional minutes.
func ClockTime(text string) (Match, bool) {
	loc := clockRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}, false
	}
	m, _ := strconv.Atoi(text[loc[2]:loc[3]])
	s, _ := strconv.Atoi(text[loc[4]:loc[5]])
	if s >= 60 {
		return Match{}, false
	}
	return matchAt(text, loc, float64(m)+float64(s)/60.0), true
}

// Distance recognizes "(D.Dkm)" in kilometers.
func Distance(text string) (Match, bool) {
	loc := distanceRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}, false
	}
	v, err := strconv.ParseFloat(strings.Replace(text[loc[2]:loc[3]], ",", ".", 1), 64)
	if err != nil {
		return Match{}, false
	}
	return matchAt(text, loc, v), true
}

// PersonLinks returns the targets of every [[link]], with aliases and heading
// anchors removed.
func PersonLinks(text string) []string {
	var out []string
	for _, m := range linkRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if i := strings.IndexAny(name, "|#"); i >= 0 {
			name = name[:i]
		}
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Tags returns every #tag token in text, in order of appearance.
func Tags(text string) []string {
	var out []string
	for _, t := range tagRe.FindAllString(text, -1) {
		t = strings.TrimRight(t, "/-")
		if len(t) > 1 {
			out = append(out, t)
		}
	}
	return out
}

// HasTag reports whether tag occurs in text, ignoring case.
func HasTag(text, tag string) bool {
	return tag != "" && strings.Contains(strings.ToLower(text), strings.ToLower(tag))
}
