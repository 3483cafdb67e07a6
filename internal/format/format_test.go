package format

import (
	"math"
	"testing"

	"github.com/MRamiBalles/CookieClicker/server/internal/domain/economy"
)

func TestFormatFlat(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999.9, "999"},
		{1500000, "1,500,000"},
		{1234567890123, "1,234,567,890,123"},
		{math.NaN(), "0"},
		{math.Inf(1), "∞"},
	}
	for _, c := range cases {
		if got := Format(c.in, economy.NumberFormatFlat); got != c.want {
			t.Errorf("Format(%v, flat) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatAbbreviated(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{999, "999"},
		{1000, "1.0K"},
		{1500, "1.5K"},
		{1500000, "1.5M"},
		{2.5e9, "2.5B"},
		{1.5e12, "1.5T"},
		{3e15, "3000.0T"},
	}
	for _, c := range cases {
		if got := Format(c.in, economy.NumberFormatAbbreviated); got != c.want {
			t.Errorf("Format(%v, abbreviated) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatUnknownModeIsFlat(t *testing.T) {
	if got := Format(1500, economy.NumberFormat("roman")); got != "1,500" {
		t.Errorf("expected flat fallback, got %q", got)
	}
}

func TestRate(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{0.1, "0.1"},
		{1.2, "1.2"},
		{5, "5"},
		{999.5, "999.5"},
		{1400, "1,400"},
	}
	for _, c := range cases {
		if got := Rate(c.in); got != c.want {
			t.Errorf("Rate(%v) = %q, want %q", c.in, got, c.want)
		}
	}
	if got := RateIn(44000, economy.NumberFormatAbbreviated); got != "44.0K" {
		t.Errorf("RateIn abbreviated = %q", got)
	}
}
