package economy

import "math"

// Balance constants. These are designed values, not runtime tunables.
const (
	CostGrowth               = 1.15
	BaseClickValue           = 1.0
	PrestigeThreshold        = 1_000_000.0
	PrestigeBonusPerLevel    = 0.1
	DefaultPrestigeMult      = 1.0
	prestigeBonusDenominator = 10 // 1 / PrestigeBonusPerLevel
)

// Cost returns the price of the next level of k when it is at level.
func Cost(k Kind, level int) float64 {
	u, ok := catalog[k]
	if !ok {
		return math.Inf(1)
	}
	return math.Floor(u.BaseCost * math.Pow(CostGrowth, float64(level)))
}

// Production returns the cookies per second contributed by level units of k.
func Production(k Kind, level int) float64 {
	u, ok := catalog[k]
	if !ok {
		return 0
	}
	return u.BaseCps * float64(level)
}

// TotalCps sums production over all kinds and applies the prestige multiplier.
func TotalCps(levels map[Kind]int, multiplier float64) float64 {
	total := 0.0
	for _, k := range Kinds {
		total += Production(k, levels[k])
	}
	return total * multiplier
}

// ClickValue is the amount a single click is worth.
func ClickValue(multiplier float64) float64 {
	return BaseClickValue * multiplier
}

// PrestigeGain returns floor(sqrt(cookies / 1,000,000)).
func PrestigeGain(cookies float64) int {
	if cookies <= 0 {
		return 0
	}
	return int(math.Floor(math.Sqrt(cookies / PrestigeThreshold)))
}

// PrestigeMultiplierFor converts a prestige gain into a multiplier (1 + gain × 0.1).
func PrestigeMultiplierFor(gain int) float64 {
	// Divide once so gain 2 yields exactly 1.2.
	return float64(prestigeBonusDenominator+gain) / prestigeBonusDenominator
}
