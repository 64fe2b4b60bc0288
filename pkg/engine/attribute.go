package engine

import (
	"github.com/mklimuk/vault-quest/pkg/extract"
	"github.com/mklimuk/vault-quest/pkg/rules"
)

// Source tells which annotation produced a task's XP.
type Source int

const (
	SourceNone Source = iota
	SourcePoints
	SourceTime
)

func (s Source) String() string {
	switch s {
	case SourcePoints:
		return "points"
	case SourceTime:
		return "time"
	}
	return "none"
}

// Attribution is the XP outcome of one completed task.
type Attribution struct {
	Category string
	XP       float64
	Minutes  float64
	Source   Source
}

// Attribute applies the XP policy to a task text. Points take priority and
// fully replace any duration. Without points, a duration is priced with the
// rate of the first matching rule and booked to that rule's category; a
// duration with no matching rule earns nothing. Minutes are reported either way.
func Attribute(table *rules.Table, text string, unitMinutes float64) Attribution {
	a := Attribution{Category: table.Category(text)}
	if d, ok := extract.Duration(text); ok {
		a.Minutes = d.Value
	}

	if p, ok := extract.Points(text); ok {
		a.XP = p.Value
		a.Source = SourcePoints
		return a
	}

	if a.Minutes > 0 && unitMinutes > 0 {
		if r, ok := table.Resolve(text); ok {
			a.Category = r.Category
			a.XP = a.Minutes / unitMinutes * r.BaseXP
			a.Source = SourceTime
		}
	}
	return a
}
