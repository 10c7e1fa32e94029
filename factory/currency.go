package factory

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/sales-engine/generic"
)

// =============================================================================
// CURRENCY & NUMBER NORMALIZATION
// =============================================================================

var (
	thousandsDots   = regexp.MustCompile(`^-?\d{1,3}(?:\.\d{3})+$`)
	thousandsCommas = regexp.MustCompile(`^-?\d{1,3}(?:,\d{3})+$`)
)

// NormalizeNumberString rewrites a human-typed number into a plain decimal
// literal. Whitespace is dropped. When both separators appear, the last one is
// the decimal mark ("1.234,56" and "1,234.56" are both 1234.56). A single
// separator kind grouping exact thousands ("1.234.567", "150,000") is a
// thousands mark; otherwise a comma is the decimal mark ("12,5").
func NormalizeNumberString(s string) string {
	n := strings.Join(strings.Fields(s), "")
	hasComma := strings.Contains(n, ",")
	hasDot := strings.Contains(n, ".")

	switch {
	case hasComma && hasDot:
		if strings.LastIndex(n, ",") > strings.LastIndex(n, ".") {
			n = strings.ReplaceAll(n, ".", "")
			n = strings.Replace(n, ",", ".", 1)
		} else {
			n = strings.ReplaceAll(n, ",", "")
		}
	case thousandsCommas.MatchString(n):
		n = strings.ReplaceAll(n, ",", "")
	case hasComma:
		n = strings.Replace(n, ",", ".", 1)
	case thousandsDots.MatchString(n):
		n = strings.ReplaceAll(n, ".", "")
	}
	return n
}

// ParseNumber accepts JSON numbers, Go numeric types and numeric strings.
// The second return is false for anything that is not a finite number.
func ParseNumber(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return x, true
	case json.Number:
		return parseNumberString(string(x))
	case float64:
		return finiteFloat(x)
	case float32:
		return finiteFloat(float64(x))
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case string:
		return parseNumberString(NormalizeNumberString(x))
	default:
		return decimal.Zero, false
	}
}

func parseNumberString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func finiteFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// ParseAmount is ParseNumber for money. Blank input is zero; garbage is
// reported as not ok.
func ParseAmount(v any) (generic.Amount, bool) {
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return generic.ZeroBRL(), true
	}
	if v == nil {
		return generic.ZeroBRL(), true
	}
	d, ok := ParseNumber(v)
	if !ok {
		return generic.ZeroBRL(), false
	}
	return generic.NewAmountFromDecimal(d, generic.UnitBRL), true
}

// =============================================================================
// FLEXIBLE JSON VALUES
// =============================================================================

// Number decodes a JSON number or numeric string. It never fails to decode;
// Valid is false when the value was missing or not a finite number.
type Number struct {
	Value decimal.Decimal
	Valid bool
	Set   bool
}

func (n *Number) UnmarshalJSON(b []byte) error {
	n.Set = true
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		n.Set = false
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		n.Value, n.Valid = ParseNumber(s)
		return nil
	}
	n.Value, n.Valid = parseNumberString(raw)
	return nil
}

// Or returns the value when valid, otherwise def.
func (n Number) Or(def decimal.Decimal) decimal.Decimal {
	if n.Valid {
		return n.Value
	}
	return def
}

// List decodes a JSON array, or an object whose values form the list (the
// shape a document store produces for sparse arrays). Object entries are
// ordered by key, numerically when keys are indexes.
type List []json.RawMessage

func (l *List) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	switch {
	case strings.HasPrefix(raw, "["):
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return nil
		}
		*l = items
	case strings.HasPrefix(raw, "{"):
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(b, &obj); err != nil {
			return nil
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sortIndexKeys(keys)
		items := make([]json.RawMessage, 0, len(keys))
		for _, k := range keys {
			items = append(items, obj[k])
		}
		*l = items
	default:
		*l = nil
	}
	return nil
}
