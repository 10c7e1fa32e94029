/*
tier.go - Banded threshold tables

PURPOSE:
  Every bonus in the engine is a lookup of a number (link count, adhesion
  fraction, monthly revenue) against a list of bands. This file owns that
  lookup so that the calculators only decide which table and which fallback
  to use.

MATCHING:
  A tier matches v when v >= Min and (Max is nil or v <= Max).

  ModeMax        every matching tier competes, the highest Value wins
  ModeFirstMatch the first matching tier in list order wins

  Non-positive inputs never match. No match yields zero.

VALIDITY:
  Tables reaching this package are already validated (see factory). Raw
  configuration with string numbers, missing fields or object-shaped arrays
  never gets here.

SEE ALSO:
  - factory/tiers.go: Tolerant parsing into TierTable
  - marketplace/bonus.go: Weekly link ladder with literal fallback
  - commission/revenue.go: Revenue rate thresholds
*/
package generic

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIER
// =============================================================================

type Tier struct {
	Min   decimal.Decimal
	Max   *decimal.Decimal // nil = unbounded
	Value decimal.Decimal
}

func NewTier(min, max, value float64) Tier {
	m := decimal.NewFromFloat(max)
	return Tier{Min: decimal.NewFromFloat(min), Max: &m, Value: decimal.NewFromFloat(value)}
}

func NewOpenTier(min, value float64) Tier {
	return Tier{Min: decimal.NewFromFloat(min), Value: decimal.NewFromFloat(value)}
}

func (t Tier) Matches(v decimal.Decimal) bool {
	if v.LessThan(t.Min) {
		return false
	}
	return t.Max == nil || v.LessThanOrEqual(*t.Max)
}

// =============================================================================
// TIER TABLE
// =============================================================================

type TierTable []Tier

type LookupMode int

const (
	ModeMax LookupMode = iota
	ModeFirstMatch
)

func (m LookupMode) String() string {
	if m == ModeFirstMatch {
		return "first-match"
	}
	return "max"
}

// Lookup returns the tier value for v under mode.
func (tt TierTable) Lookup(v decimal.Decimal, mode LookupMode) decimal.Decimal {
	if !v.IsPositive() {
		return decimal.Zero
	}
	best := decimal.Zero
	found := false
	for _, t := range tt {
		if !t.Matches(v) {
			continue
		}
		if mode == ModeFirstMatch {
			return t.Value
		}
		if !found || t.Value.GreaterThan(best) {
			best = t.Value
			found = true
		}
	}
	return best
}

// LookupWithFallback uses fallback when tiers is empty.
func LookupWithFallback(tiers, fallback TierTable, v decimal.Decimal, mode LookupMode) decimal.Decimal {
	if len(tiers) == 0 {
		tiers = fallback
	}
	return tiers.Lookup(v, mode)
}

// Sorted returns a copy ordered by Min, then by Max with unbounded last.
func (tt TierTable) Sorted() TierTable {
	out := make(TierTable, len(tt))
	copy(out, tt)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Min.Equal(out[j].Min) {
			return out[i].Min.LessThan(out[j].Min)
		}
		a, b := out[i].Max, out[j].Max
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.LessThan(*b)
		}
	})
	return out
}

// Overlap names two tiers, by index in the original table, whose ranges
// intersect.
type Overlap struct {
	A, B int
}

// Overlaps reports every pair of intersecting bands. Overlap is legal; under
// ModeMax the higher value wins, under ModeFirstMatch list order decides.
func (tt TierTable) Overlaps() []Overlap {
	var out []Overlap
	for i := 0; i < len(tt); i++ {
		for j := i + 1; j < len(tt); j++ {
			if intersects(tt[i], tt[j]) {
				out = append(out, Overlap{A: i, B: j})
			}
		}
	}
	return out
}

func intersects(a, b Tier) bool {
	// a starts after b ends, or b starts after a ends.
	if b.Max != nil && a.Min.GreaterThan(*b.Max) {
		return false
	}
	if a.Max != nil && b.Min.GreaterThan(*a.Max) {
		return false
	}
	return true
}
