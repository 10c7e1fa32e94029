package closure_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-engine/closure"
	"github.com/warp/sales-engine/commission"
	"github.com/warp/sales-engine/generic"
	"github.com/warp/sales-engine/marketplace"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func brl(v float64) generic.Amount { return generic.BRL(v) }

func fiveHeadTeam() generic.Team {
	return generic.Team{CoordinatorID: "C", Sellers: []generic.UserID{"S1", "S2", "S3", "S4"}}
}

func publishInput() closure.PublishInput {
	return closure.PublishInput{
		Month:             "2025-02",
		Adhesion:          generic.AdhesionRates{Capa: generic.MustParseDecimal("0.2")},
		RevenueTotal:      brl(150000),
		Attendance:        map[generic.UserID]generic.Amount{"S2": brl(0)},
		AttendanceDefault: brl(150),
		LinkCounts:        map[generic.UserID]int{"S1": 45},
		MarketplaceTiers:  marketplace.FallbackLadder,
		RevenueTiers:      commission.DefaultRevenueTiers,
		Team:              fiveHeadTeam(),
		PublishedAt:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func assertAmount(t *testing.T, want float64, got generic.Amount, msg string) {
	t.Helper()
	assert.True(t, got.Equal(brl(want)), "%s: want %v got %s", msg, want, got)
}

// =============================================================================
// PUBLISH
// =============================================================================

func TestPublish_BonusPerMember(t *testing.T) {
	// GIVEN: 150k revenue at 1% split over five heads = 300 each
	rec := closure.Publish(publishInput())

	// THEN
	require.Len(t, rec.Bonus, 5)
	assertAmount(t, 490, rec.Bonus["S1"], "S1 = 300 + 40 ml + 150 default")
	assertAmount(t, 300, rec.Bonus["S2"], "S2 attendance overridden to 0")
	assertAmount(t, 450, rec.Bonus["C"], "C = 300 + 150")
	assertAmount(t, 40, rec.MLWeeks["S1"], "ml snapshot")
	assertAmount(t, 0, rec.MLWeeks["S3"], "no links")
	assert.Equal(t, int64(1740830400000), rec.PublishedAt)
	assert.Equal(t, generic.Month("2025-02"), rec.Month)
}

func TestPublish_NoRevenueBonusBelowThreshold(t *testing.T) {
	in := publishInput()
	in.RevenueTotal = brl(149999.99)

	rec := closure.Publish(in)

	assertAmount(t, 150, rec.Bonus["S3"], "attendance only")
}

func TestPublish_IdempotentRepublish(t *testing.T) {
	first := publishInput()
	second := publishInput()
	second.PublishedAt = first.PublishedAt.Add(time.Hour)

	a := closure.Publish(first)
	b := closure.Publish(second)

	assert.NotEqual(t, a.PublishedAt, b.PublishedAt)
	a.PublishedAt, b.PublishedAt = 0, 0
	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(ja), string(jb))
}

func TestPublish_DoesNotAliasAttendanceInput(t *testing.T) {
	in := publishInput()
	rec := closure.Publish(in)

	in.Attendance["S2"] = brl(999)

	assertAmount(t, 0, rec.Pontualidade["S2"], "record keeps its own copy")
}

// =============================================================================
// BREAKDOWN
// =============================================================================

func live() closure.LiveInputs {
	return closure.LiveInputs{
		Services: commission.ServiceRateConfig{BaseRate: generic.MustParseDecimal("0.1")},
		ServiceTotals: commission.ServiceTotals{
			Capa: brl(100), Impermeabilizacao: brl(0), Total: brl(100),
		},
		MarketplaceTiers:  marketplace.FallbackLadder,
		WeekLinkCount:     55,
		AttendanceDefault: brl(150),
		Commission:        brl(500),
	}
}

func TestBreakdown_Finalized(t *testing.T) {
	rec := closure.Publish(publishInput())

	p := closure.Breakdown(&rec, "S1", live())

	assert.True(t, p.Finalized)
	assertAmount(t, 40, p.MarketplaceBonus, "frozen ml wins over live 60")
	assertAmount(t, 150, p.AttendanceBonus, "default")
	assertAmount(t, 300, p.RevenueBonus, "bonus minus attendance minus ml")
	assertAmount(t, 20, p.ServiceBonus, "capa 100 at closure rate 0.2")
	assertAmount(t, 1010, p.Total(), "500 + 20 + 40 + 150 + 300")
}

func TestBreakdown_FrozenZeroMarketplaceUsesLive(t *testing.T) {
	rec := closure.Publish(publishInput())

	p := closure.Breakdown(&rec, "S3", live())

	assert.True(t, p.Finalized)
	assertAmount(t, 60, p.MarketplaceBonus, "live ladder for 55 links")
	assertAmount(t, 300, p.RevenueBonus, "450 - 150 - 0")
}

func TestBreakdown_AttendanceOverrideUsedInDerivation(t *testing.T) {
	rec := closure.Publish(publishInput())

	p := closure.Breakdown(&rec, "S2", live())

	assertAmount(t, 0, p.AttendanceBonus, "override")
	assertAmount(t, 300, p.RevenueBonus, "300 - 0 - 0")
}

func TestBreakdown_NotPublished(t *testing.T) {
	p := closure.Breakdown(nil, "S1", live())

	assert.False(t, p.Finalized)
	assertAmount(t, 0, p.RevenueBonus, "no closure, no revenue bonus")
	assertAmount(t, 60, p.MarketplaceBonus, "live")
	assertAmount(t, 150, p.AttendanceBonus, "default")
	assertAmount(t, 10, p.ServiceBonus, "base rate")
	assertAmount(t, 220, p.Extras(), "10 + 60 + 150")
}

func TestBreakdown_NonMemberIsNotFinalized(t *testing.T) {
	rec := closure.Publish(publishInput())

	p := closure.Breakdown(&rec, "outsider", live())

	assert.False(t, p.Finalized)
	assertAmount(t, 0, p.RevenueBonus, "not in the closure")
}
