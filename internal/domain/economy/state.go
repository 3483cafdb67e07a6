package economy

import (
	"math"
	"time"
)

// NumberFormat selects how the renderer prints large numbers.
type NumberFormat string

const (
	NumberFormatFlat        NumberFormat = "flat"        // 1,500,000
	NumberFormatAbbreviated NumberFormat = "abbreviated" // 1.5M
)

// Valid reports whether f is a known mode.
func (f NumberFormat) Valid() bool {
	return f == NumberFormatFlat || f == NumberFormatAbbreviated
}

// ParseNumberFormat converts a wire string into a NumberFormat.
func ParseNumberFormat(s string) (NumberFormat, error) {
	f := NumberFormat(s)
	if !f.Valid() {
		return "", ErrInvalidNumberFormat
	}
	return f, nil
}

// Settings are player preferences persisted alongside the economy.
type Settings struct {
	SoundEnabled bool         `json:"soundEnabled"`
	NumberFormat NumberFormat `json:"numberFormat"`
}

// DefaultSettings returns sound on and flat numbers.
func DefaultSettings() Settings {
	return Settings{SoundEnabled: true, NumberFormat: NumberFormatFlat}
}

// State is the single mutable game entity.
type State struct {
	Cookies            float64      // always floor(RawCookies)
	RawCookies         float64      // fractional accumulator
	CookiesPerSecond   float64      // cached TotalCps
	PrestigeMultiplier float64      // >= 1, never decreases
	Levels             map[Kind]int // one entry per kind
	Settings           Settings
	LastUpdate         time.Time // not persisted
}

// NewState returns the fixed starting state.
func NewState(now time.Time) State {
	levels := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		levels[k] = 0
	}
	return State{
		PrestigeMultiplier: DefaultPrestigeMult,
		Levels:             levels,
		Settings:           DefaultSettings(),
		LastUpdate:         now,
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	c := s
	c.Levels = make(map[Kind]int, len(s.Levels))
	for k, v := range s.Levels {
		c.Levels[k] = v
	}
	return c
}

// Recalculate refreshes CookiesPerSecond from levels and multiplier.
func (s *State) Recalculate() {
	s.CookiesPerSecond = TotalCps(s.Levels, s.PrestigeMultiplier)
}

// SetBank sets both the accumulator and the spendable count.
func (s *State) SetBank(raw float64) {
	if raw < 0 || math.IsNaN(raw) {
		raw = 0
	}
	s.RawCookies = raw
	s.Cookies = math.Floor(raw)
}

// Credit adds amount to the bank and reports whether the floored count moved.
func (s *State) Credit(amount float64) bool {
	if amount <= 0 || math.IsNaN(amount) {
		return false
	}
	before := s.Cookies
	s.SetBank(s.RawCookies + amount)
	return s.Cookies != before
}

// Accrue applies passive production for elapsed seconds.
func (s *State) Accrue(elapsed float64) bool {
	if elapsed <= 0 || s.CookiesPerSecond <= 0 {
		return false
	}
	return s.Credit(s.CookiesPerSecond * elapsed)
}

// Buy purchases one level of k. On error the state is untouched.
func (s *State) Buy(k Kind) (cost float64, level int, err error) {
	if !k.Valid() {
		return 0, 0, &InvalidKindError{Kind: string(k)}
	}
	cost = Cost(k, s.Levels[k])
	if s.Cookies < cost {
		return cost, s.Levels[k], &InsufficientFundsError{Kind: k, Required: cost, Available: s.Cookies}
	}
	// cost is integral so the fractional remainder survives.
	s.SetBank(s.RawCookies - cost)
	s.Levels[k]++
	s.Recalculate()
	return cost, s.Levels[k], nil
}

// PrestigePreview returns the gain prestige would grant now.
func (s State) PrestigePreview() int {
	if s.Cookies < PrestigeThreshold {
		return 0
	}
	return PrestigeGain(s.Cookies)
}

// Prestige resets progress in exchange for a permanent multiplier.
func (s *State) Prestige() (gain int, err error) {
	gain = s.PrestigePreview()
	if gain < 1 {
		return 0, &PrestigeThresholdError{Cookies: s.Cookies, Required: PrestigeThreshold}
	}
	if m := PrestigeMultiplierFor(gain); m > s.PrestigeMultiplier {
		s.PrestigeMultiplier = m
	}
	for _, k := range Kinds {
		s.Levels[k] = 0
	}
	s.SetBank(0)
	s.Recalculate()
	return gain, nil
}
