package dataprocessing

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ratioPlaces is the precision of every subscription ratio.
const ratioPlaces = 2

// cellReplacer removes grouping separators and currency noise. Indian
// grouping ("1,23,456") is handled by dropping every comma.
var cellReplacer = strings.NewReplacer(
	",", "",
	" ", "",
	"\u00a0", "",
	"\u20b9", "",
)

// cleanCell trims and strips separators. It returns "" for the
// placeholders exchanges use for "no data".
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	switch s {
	case "", "-", "--", "\u2014", "NA", "N.A.", "N/A", "na", "n/a":
		return ""
	}
	return cellReplacer.Replace(s)
}

// ParseShares converts a share-count cell to a whole number. Fractional
// parts are truncated. Unparseable or negative text yields 0.
func ParseShares(s string) int64 {
	s = cleanCell(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0
		}
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= math.MaxInt64 {
		return 0
	}
	return int64(f)
}

// ParseRatio converts a subscription-multiple cell ("2.35x", "2.35 times")
// to a value rounded to 2 decimals. Unparseable text yields 0.
func ParseRatio(s string) float64 {
	s = cleanCell(s)
	s = strings.TrimSuffix(strings.ToLower(s), "times")
	s = strings.TrimRight(s, "xX")
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return 0
	}
	f, _ := d.Round(ratioPlaces).Float64()
	return f
}

// IsNumericCell reports whether s holds a number or a "no data" dash.
func IsNumericCell(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	c := cleanCell(s)
	if c == "" {
		return true
	}
	c = strings.TrimRight(strings.TrimSuffix(strings.ToLower(c), "times"), "xX")
	_, err := strconv.ParseFloat(c, 64)
	return err == nil
}

// Ratio returns bid/offered rounded half away from zero to 2 decimals,
// or 0 when nothing is offered.
func Ratio(bid, offered int64) float64 {
	if offered <= 0 {
		return 0
	}
	r := decimal.NewFromInt(bid).DivRound(decimal.NewFromInt(offered), ratioPlaces)
	f, _ := r.Float64()
	return f
}
