package generic_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/sales-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func linkLadder() generic.TierTable {
	return generic.TierTable{
		generic.NewTier(30, 39, 20),
		generic.NewTier(40, 49, 40),
		generic.NewOpenTier(50, 60),
	}
}

// =============================================================================
// LOOKUP TESTS
// =============================================================================

func TestTierLookup_BoundsAreInclusive(t *testing.T) {
	tiers := linkLadder()

	assert.True(t, tiers.Lookup(d(30), generic.ModeMax).Equal(d(20)))
	assert.True(t, tiers.Lookup(d(39), generic.ModeMax).Equal(d(20)))
	assert.True(t, tiers.Lookup(d(40), generic.ModeMax).Equal(d(40)))
	assert.True(t, tiers.Lookup(d(1000), generic.ModeMax).Equal(d(60)))
}

func TestTierLookup_NoMatchIsZero(t *testing.T) {
	tiers := linkLadder()

	assert.True(t, tiers.Lookup(d(29), generic.ModeMax).IsZero())
	assert.True(t, tiers.Lookup(d(39.5), generic.ModeMax).IsZero(), "gap between bands")
}

func TestTierLookup_NonPositiveInputIsZero(t *testing.T) {
	tiers := generic.TierTable{generic.NewOpenTier(0, 99)}

	assert.True(t, tiers.Lookup(d(0), generic.ModeMax).IsZero())
	assert.True(t, tiers.Lookup(d(-5), generic.ModeFirstMatch).IsZero())
}

func TestTierLookup_OverlapMaxVsFirstMatch(t *testing.T) {
	// GIVEN: two bands that both contain 45, the cheaper one listed first
	tiers := generic.TierTable{
		generic.NewTier(40, 49, 10),
		generic.NewOpenTier(30, 50),
	}

	// THEN: max picks the richer band, first-match respects order
	assert.True(t, tiers.Lookup(d(45), generic.ModeMax).Equal(d(50)))
	assert.True(t, tiers.Lookup(d(45), generic.ModeFirstMatch).Equal(d(10)))
}

func TestTierLookup_MonotonicForLadder(t *testing.T) {
	tiers := linkLadder()
	prev := decimal.Zero
	for n := 30; n <= 80; n++ {
		got := tiers.Lookup(decimal.NewFromInt(int64(n)), generic.ModeMax)
		if got.LessThan(prev) {
			t.Fatalf("lookup(%d)=%s dropped below lookup(%d)=%s", n, got, n-1, prev)
		}
		prev = got
	}
}

func TestLookupWithFallback_EmptyTableUsesFallback(t *testing.T) {
	got := generic.LookupWithFallback(nil, linkLadder(), d(45), generic.ModeMax)
	assert.True(t, got.Equal(d(40)))

	custom := generic.TierTable{generic.NewOpenTier(1, 5)}
	got = generic.LookupWithFallback(custom, linkLadder(), d(45), generic.ModeMax)
	assert.True(t, got.Equal(d(5)), "non-empty table must not consult fallback")
}

// =============================================================================
// DIAGNOSTICS
// =============================================================================

func TestTierOverlaps(t *testing.T) {
	assert.Empty(t, linkLadder().Overlaps())

	overlapping := generic.TierTable{
		generic.NewTier(0, 10, 1),
		generic.NewTier(10, 20, 2),
		generic.NewOpenTier(30, 3),
	}
	assert.Equal(t, []generic.Overlap{{A: 0, B: 1}}, overlapping.Overlaps())
}

func TestTierSorted_UnboundedLast(t *testing.T) {
	tiers := generic.TierTable{
		generic.NewOpenTier(10, 3),
		generic.NewTier(10, 20, 2),
		generic.NewTier(0, 9, 1),
	}
	sorted := tiers.Sorted()

	assert.True(t, sorted[0].Value.Equal(d(1)))
	assert.True(t, sorted[1].Value.Equal(d(2)))
	assert.Nil(t, sorted[2].Max)
	assert.True(t, tiers[0].Value.Equal(d(3)), "input left untouched")
}
