package scoring

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Keys looked up when a raw value is a JSON object and the rule names none.
var (
	defaultCategoricalKeys = []string{"driver_code", "driver", "value"}
	defaultNumericKeys     = []string{"time", "lap", "count", "value"}
)

var (
	errEmptyValue   = errors.New("empty value")
	errNotANumber   = errors.New("not a number")
	errBadClockTime = errors.New("malformed clock time")
)

const (
	secondsPerMinute = 60

	// Bounds on parsed numbers. Arithmetic on a decimal rescales to the
	// larger exponent, so "1e-2000000000" would allocate without limit.
	maxExponent        = 18
	maxCoefficientBits = 128
)

// extractValue unwraps structured values. A JSON object yields the first
// present key, a JSON scalar yields itself, and anything else is returned verbatim.
func extractValue(raw string, keys []string) string {
	s := strings.TrimSpace(raw)
	if s == "" || !gjson.Valid(s) {
		return s
	}
	res := gjson.Parse(s)
	if res.IsObject() {
		for _, k := range keys {
			if v := res.Get(k); v.Exists() {
				return scalar(v)
			}
		}
		return ""
	}
	if res.IsArray() {
		return s
	}
	return scalar(res)
}

func scalar(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return strings.TrimSpace(v.Str)
	case gjson.Null:
		return ""
	default:
		return strings.TrimSpace(v.Raw)
	}
}

// normalizeLabel folds a categorical value for equality comparison:
// trimmed, NFC-composed and case-folded. A Caser is not safe for
// concurrent use, so one is built per call.
func normalizeLabel(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// parseNumber parses a decimal number or a clock time such as 1:10.540
// or 1:02:03.5 into seconds.
func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, errEmptyValue
	}
	if !strings.Contains(s, ":") {
		d, err := decimal.NewFromString(s)
		if err != nil || !inRange(d) {
			return decimal.Zero, errNotANumber
		}
		return d, nil
	}
	return parseClock(s)
}

// inRange reports whether d is small enough to compare and subtract in
// bounded time.
func inRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	return exp >= -maxExponent && exp <= maxExponent && d.Coefficient().BitLen() <= maxCoefficientBits
}

func parseClock(s string) (decimal.Decimal, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return decimal.Zero, errBadClockTime
	}
	sixty := decimal.NewFromInt(secondsPerMinute)
	total := decimal.Zero
	for i, p := range parts {
		last := i == len(parts)-1
		if p == "" || strings.HasPrefix(p, "-") || strings.HasPrefix(p, "+") {
			return decimal.Zero, errBadClockTime
		}
		if !last && strings.Contains(p, ".") {
			return decimal.Zero, errBadClockTime
		}
		v, err := decimal.NewFromString(p)
		if err != nil || !inRange(v) {
			return decimal.Zero, errBadClockTime
		}
		if i > 0 && v.GreaterThanOrEqual(sixty) {
			return decimal.Zero, errBadClockTime
		}
		total = total.Mul(sixty).Add(v)
	}
	return total, nil
}
