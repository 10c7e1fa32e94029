package commission

import (
	"github.com/shopspring/decimal"

	"github.com/warp/sales-engine/generic"
)

// =============================================================================
// REVENUE BONUS
// =============================================================================

// DefaultRevenueTiers is used when no revenue tiers are configured: 1% once
// the month's sofa revenue reaches 150k.
var DefaultRevenueTiers = generic.TierTable{
	generic.NewOpenTier(150000, 0.01),
}

// RevenueRate returns the highest rate among tiers whose Min the total
// reaches. Tiers are min-only; any Max is ignored.
func RevenueRate(tiers generic.TierTable, total generic.Amount) generic.Rate {
	if len(tiers) == 0 {
		tiers = DefaultRevenueTiers
	}
	open := make(generic.TierTable, len(tiers))
	for i, t := range tiers {
		open[i] = generic.Tier{Min: t.Min, Value: t.Value}
	}
	return open.Lookup(total.Value, generic.ModeMax)
}

// TeamBonusPerHead splits total*rate evenly over teamSize heads. Zero when
// the rate or team size is not positive.
func TeamBonusPerHead(total generic.Amount, rate generic.Rate, teamSize int) generic.Amount {
	if !rate.IsPositive() || teamSize <= 0 {
		return generic.ZeroBRL()
	}
	return total.Mul(rate).Div(decimal.NewFromInt(int64(teamSize)))
}
