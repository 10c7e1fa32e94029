/*
Package marketplace handles the weekly listing bonus.

PURPOSE:
  Sellers submit marketplace listing URLs during the week. Each unique URL
  counts once per seller per week; the weekly count buys a bonus from a tier
  ladder.

KEY CONCEPTS:
  - WeeklyBonus: Configured tiers, max-match, floored by FallbackLadder
  - NormalizeURL/LinkKey: Content key used for write-if-absent dedup
  - NewLink: Builds the record the stores persist

FALLBACK LADDER:
  [30,39] -> 20
  [40,49] -> 40
  [50,+)  -> 60

  Applied only when the configured lookup yields zero for a positive count,
  and taken as a max, so a correctly configured higher payout is kept.

SEE ALSO:
  - generic/tier.go: Lookup semantics
  - generic/store.go: LinkStore write-if-absent contract
*/
package marketplace

import (
	"github.com/shopspring/decimal"

	"github.com/warp/sales-engine/generic"
)

// FallbackLadder is the literal weekly ladder used when configured tiers
// yield nothing.
var FallbackLadder = generic.TierTable{
	generic.NewTier(30, 39, 20),
	generic.NewTier(40, 49, 40),
	generic.NewOpenTier(50, 60),
}

// WeeklyBonus returns the bonus for linkCount unique links in a week.
func WeeklyBonus(tiers generic.TierTable, linkCount int) generic.Amount {
	if linkCount <= 0 {
		return generic.ZeroBRL()
	}
	n := decimal.NewFromInt(int64(linkCount))

	bonus := tiers.Lookup(n, generic.ModeMax)
	if bonus.IsZero() {
		bonus = decimal.Max(bonus, FallbackLadder.Lookup(n, generic.ModeMax))
	}
	return generic.NewAmountFromDecimal(bonus, generic.UnitBRL)
}
