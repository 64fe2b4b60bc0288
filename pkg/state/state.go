// Package state holds the persistent accumulator threaded through the scan
// engine and the snapshot record it is saved in.
package state

import "time"

// Contribution is what one journal document added to the cumulative totals.
type Contribution struct {
	Date       time.Time
	ActiveXP   float64
	SkillXP    map[string]float64
	RunKm      float64
	RunMinutes float64
}

// Empty reports whether c carries no document.
func (c Contribution) Empty() bool { return c.Date.IsZero() }

// Add accumulates xp for category.
func (c *Contribution) Add(category string, xp float64) {
	if c.SkillXP == nil {
		c.SkillXP = make(map[string]float64)
	}
	c.ActiveXP += xp
	c.SkillXP[category] += xp
}

// State is the cumulative accumulator.
//
// Watermark is inclusive: the document dated at the watermark is scanned again
// on the next run. Pending holds what that document contributed last time so
// it can be withdrawn before the rescan.
type State struct {
	ActiveXP    float64
	SkillXP     map[string]float64
	Watermark   time.Time
	RunKm       float64
	RunMinutes  float64
	TimedRecord float64
	Pending     Contribution

	// Settled marks totals carried over from a snapshot without a pending
	// contribution: the watermark document is already counted and is not
	// added again.
	Settled bool
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.SkillXP = copyMap(s.SkillXP)
	out.Pending.SkillXP = copyMap(s.Pending.SkillXP)
	return out
}

// Apply adds c to the totals.
func (s *State) Apply(c Contribution) {
	if s.SkillXP == nil {
		s.SkillXP = make(map[string]float64)
	}
	s.ActiveXP += c.ActiveXP
	for cat, xp := range c.SkillXP {
		s.SkillXP[cat] += xp
	}
	s.RunKm += c.RunKm
	s.RunMinutes += c.RunMinutes
}

// Withdraw subtracts c from the totals. Results never go below zero.
func (s *State) Withdraw(c Contribution) {
	s.ActiveXP = nonNegative(s.ActiveXP - c.ActiveXP)
	for cat, xp := range c.SkillXP {
		if _, ok := s.SkillXP[cat]; ok {
			s.SkillXP[cat] = nonNegative(s.SkillXP[cat] - xp)
		}
	}
	s.RunKm = nonNegative(s.RunKm - c.RunKm)
	s.RunMinutes = nonNegative(s.RunMinutes - c.RunMinutes)
}

func nonNegative(v float64) float64 {
	if v < 1e-9 {
		return 0
	}
	return v
}

func copyMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
