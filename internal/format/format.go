// Package format renders game numbers for display.
package format

import (
	"math"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/CookieClicker/server/internal/domain/economy"
)

var suffixes = []struct {
	threshold float64
	suffix    string
}{
	{1e12, "T"},
	{1e9, "B"},
	{1e6, "M"},
	{1e3, "K"},
}

// Format renders n in the given mode. Flat groups the floored integer
// ("1,500,000"); abbreviated keeps one decimal with a suffix ("1.5M").
// Unknown modes render flat.
func Format(n float64, mode economy.NumberFormat) string {
	if math.IsNaN(n) {
		return "0"
	}
	if math.IsInf(n, 0) {
		if n < 0 {
			return "-∞"
		}
		return "∞"
	}

	if mode == economy.NumberFormatAbbreviated {
		abs := math.Abs(n)
		for _, s := range suffixes {
			if abs >= s.threshold {
				return strconv.FormatFloat(n/s.threshold, 'f', 1, 64) + s.suffix
			}
		}
	}
	return humanize.Commaf(math.Floor(n))
}

// Rate renders a per-second rate. Rates under 1,000 keep one decimal so a
// single cursor shows as "0.1".
func Rate(n float64) string {
	return RateIn(n, economy.NumberFormatFlat)
}

// RateIn is Rate with an explicit mode for large values.
func RateIn(n float64, mode economy.NumberFormat) string {
	if !math.IsNaN(n) && math.Abs(n) < 1e3 {
		if n == math.Trunc(n) {
			return strconv.FormatFloat(n, 'f', 0, 64)
		}
		return strconv.FormatFloat(n, 'f', 1, 64)
	}
	return Format(n, mode)
}
