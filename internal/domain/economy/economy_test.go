package economy

import (
	"errors"
	"math"
	"testing"
	"time"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestCostCurve(t *testing.T) {
	tests := []struct {
		kind  Kind
		level int
		want  float64
	}{
		{KindCursor, 0, 10},
		{KindCursor, 1, 11},
		{KindCursor, 2, 13},
		{KindGrandma, 0, 100},
		{KindGrandma, 1, 114},
		{KindGrandma, 10, 404},
		{KindWizard, 0, 330000000},
	}
	for _, tt := range tests {
		if got := Cost(tt.kind, tt.level); got != tt.want {
			t.Errorf("Cost(%s, %d) = %v, want %v", tt.kind, tt.level, got, tt.want)
		}
	}
}

func TestCostStrictlyIncreasing(t *testing.T) {
	for _, k := range Kinds {
		prev := Cost(k, 0)
		for level := 1; level < 200; level++ {
			next := Cost(k, level)
			if next <= prev {
				t.Fatalf("%s: cost at level %d (%v) not greater than level %d (%v)", k, level, next, level-1, prev)
			}
			prev = next
		}
	}
}

func TestTotalCpsAppliesMultiplier(t *testing.T) {
	levels := map[Kind]int{KindCursor: 10, KindGrandma: 2}
	if got := TotalCps(levels, 1); math.Abs(got-3) > 1e-9 {
		t.Errorf("expected 3 cps, got %v", got)
	}
	if got := TotalCps(levels, 1.5); math.Abs(got-4.5) > 1e-9 {
		t.Errorf("expected 4.5 cps, got %v", got)
	}
}

func TestPrestigeGain(t *testing.T) {
	tests := []struct {
		cookies float64
		want    int
	}{
		{0, 0},
		{999999, 0},
		{1000000, 1},
		{3999999, 1},
		{4000000, 2},
		{100000000, 10},
	}
	for _, tt := range tests {
		if got := PrestigeGain(tt.cookies); got != tt.want {
			t.Errorf("PrestigeGain(%v) = %d, want %d", tt.cookies, got, tt.want)
		}
	}
	if PrestigeMultiplierFor(2) != 1.2 {
		t.Errorf("expected multiplier 1.2, got %v", PrestigeMultiplierFor(2))
	}
}

func TestNewStateDefaults(t *testing.T) {
	s := NewState(epoch)
	if s.Cookies != 0 || s.RawCookies != 0 || s.CookiesPerSecond != 0 {
		t.Fatalf("unexpected counters: %+v", s)
	}
	if s.PrestigeMultiplier != 1 {
		t.Fatalf("expected multiplier 1, got %v", s.PrestigeMultiplier)
	}
	if len(s.Levels) != len(Kinds) {
		t.Fatalf("expected %d levels, got %d", len(Kinds), len(s.Levels))
	}
	if !s.Settings.SoundEnabled || s.Settings.NumberFormat != NumberFormatFlat {
		t.Fatalf("unexpected settings: %+v", s.Settings)
	}
}

func TestCreditKeepsFloorInvariant(t *testing.T) {
	s := NewState(epoch)
	s.Credit(0.4)
	if s.Cookies != 0 {
		t.Fatalf("expected 0 cookies after 0.4, got %v", s.Cookies)
	}
	if !s.Credit(0.7) {
		t.Fatalf("expected floored count to move")
	}
	if s.Cookies != 1 || math.Abs(s.RawCookies-1.1) > 1e-9 {
		t.Fatalf("expected 1 cookie with raw 1.1, got %v / %v", s.Cookies, s.RawCookies)
	}
}

func TestBuyKeepsFraction(t *testing.T) {
	s := NewState(epoch)
	s.SetBank(100.75)
	cost, level, err := s.Buy(KindCursor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cost != 10 || level != 1 {
		t.Fatalf("expected cost 10 level 1, got %v %d", cost, level)
	}
	if s.Cookies != 90 || math.Abs(s.RawCookies-90.75) > 1e-9 {
		t.Fatalf("expected 90 / 90.75, got %v / %v", s.Cookies, s.RawCookies)
	}
	if math.Abs(s.CookiesPerSecond-0.1) > 1e-12 {
		t.Fatalf("expected 0.1 cps, got %v", s.CookiesPerSecond)
	}
}

func TestBuyInsufficientFundsLeavesStateUntouched(t *testing.T) {
	s := NewState(epoch)
	s.SetBank(9.5)
	before := s.Clone()

	_, _, err := s.Buy(KindCursor)
	var funds *InsufficientFundsError
	if !errors.As(err, &funds) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected errors.Is ErrInsufficientFunds")
	}
	if funds.Required != 10 || funds.Available != 9 {
		t.Fatalf("unexpected details: %+v", funds)
	}
	if s.RawCookies != before.RawCookies || s.Cookies != before.Cookies || s.Levels[KindCursor] != 0 {
		t.Fatalf("state mutated on failed purchase")
	}
}

func TestBuyInvalidKind(t *testing.T) {
	s := NewState(epoch)
	s.SetBank(1000)
	if _, _, err := s.Buy(Kind("portal")); !errors.Is(err, ErrInvalidUpgradeKind) {
		t.Fatalf("expected ErrInvalidUpgradeKind, got %v", err)
	}
	if s.Cookies != 1000 {
		t.Fatalf("state mutated on invalid kind")
	}
}

func TestPrestigeResetsProgress(t *testing.T) {
	s := NewState(epoch)
	s.Levels[KindFarm] = 3
	s.Recalculate()
	s.SetBank(4000000)

	gain, err := s.Prestige()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gain != 2 || s.PrestigeMultiplier != 1.2 {
		t.Fatalf("expected gain 2 multiplier 1.2, got %d %v", gain, s.PrestigeMultiplier)
	}
	if s.Cookies != 0 || s.RawCookies != 0 || s.CookiesPerSecond != 0 {
		t.Fatalf("expected zeroed bank and cps, got %+v", s)
	}
	for _, k := range Kinds {
		if s.Levels[k] != 0 {
			t.Fatalf("expected %s level 0, got %d", k, s.Levels[k])
		}
	}
}

func TestPrestigeNeverLowersMultiplier(t *testing.T) {
	s := NewState(epoch)
	s.PrestigeMultiplier = 1.5
	s.SetBank(1000000)

	if _, err := s.Prestige(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.PrestigeMultiplier != 1.5 {
		t.Fatalf("expected multiplier to stay 1.5, got %v", s.PrestigeMultiplier)
	}
}

func TestPrestigeBelowThreshold(t *testing.T) {
	s := NewState(epoch)
	s.SetBank(999999.9)
	_, err := s.Prestige()
	if !errors.Is(err, ErrPrestigeThresholdNotMet) {
		t.Fatalf("expected ErrPrestigeThresholdNotMet, got %v", err)
	}
	if s.Cookies != 999999 {
		t.Fatalf("state mutated on rejected prestige")
	}
}

func TestParseKindAndFormat(t *testing.T) {
	if k, err := ParseKind("bank"); err != nil || k != KindBank {
		t.Errorf("expected bank, got %v %v", k, err)
	}
	if _, err := ParseKind("dragon"); !errors.Is(err, ErrInvalidUpgradeKind) {
		t.Errorf("expected invalid kind, got %v", err)
	}
	if _, err := ParseNumberFormat("scientific"); !errors.Is(err, ErrInvalidNumberFormat) {
		t.Errorf("expected invalid format, got %v", err)
	}
}
