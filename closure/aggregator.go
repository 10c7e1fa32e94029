/*
Package closure combines per-user bonuses into the published monthly closure
and derives each user's payout view from it.

PURPOSE:
  An admin publishes a month once the numbers are in: adhesion rates for the
  services, the team's sofa revenue, and attendance overrides. Publish turns
  that into a record holding, per team member, a frozen bonus made of three
  parts. Breakdown later reads the record back next to live data.

BONUS FORMULA (per team member):
  revenuePerHead = revenueTotal * revenueRate / teamSize
  ml             = weekly marketplace bonus at publication time
  attendance     = override, or the configured default
  bonus          = revenuePerHead + ml + attendance

  The service adhesion bonus is NOT part of the frozen bonus. It is
  recomputed live on every read from the closure's adhesion rates and the
  month's current service totals.

REPUBLISH:
  Overwrites the month's record wholesale. Identical inputs produce an
  identical record apart from PublishedAt.

SEE ALSO:
  - service.go: Loads inputs from the stores and persists the record
  - commission/: Calculators used here
  - marketplace/bonus.go: Weekly bonus
*/
package closure

import (
	"time"

	"github.com/warp/sales-engine/commission"
	"github.com/warp/sales-engine/generic"
	"github.com/warp/sales-engine/marketplace"
)

// Record is the stored closure for a month.
type Record = generic.ClosureRecord

// =============================================================================
// PUBLISH
// =============================================================================

// PublishInput is everything Publish needs. LinkCounts is the snapshot of
// each member's unique links for the week current at publication.
type PublishInput struct {
	Month             generic.Month
	Adhesion          generic.AdhesionRates
	RevenueTotal      generic.Amount
	Attendance        map[generic.UserID]generic.Amount
	AttendanceDefault generic.Amount
	LinkCounts        map[generic.UserID]int
	MarketplaceTiers  generic.TierTable
	RevenueTiers      generic.TierTable
	Team              generic.Team
	PublishedAt       time.Time
}

// Publish builds the closure record. It has no side effects.
func Publish(in PublishInput) Record {
	members := in.Team.Members()
	rate := commission.RevenueRate(in.RevenueTiers, in.RevenueTotal)
	perHead := commission.TeamBonusPerHead(in.RevenueTotal, rate, len(members))

	attendance := make(map[generic.UserID]generic.Amount, len(in.Attendance))
	for uid, a := range in.Attendance {
		attendance[uid] = a
	}

	ml := make(map[generic.UserID]generic.Amount, len(members))
	bonus := make(map[generic.UserID]generic.Amount, len(members))
	for _, uid := range members {
		ml[uid] = marketplace.WeeklyBonus(in.MarketplaceTiers, in.LinkCounts[uid])
		bonus[uid] = perHead.Add(ml[uid]).Add(attendanceFor(attendance, uid, in.AttendanceDefault))
	}

	return Record{
		Month:            in.Month,
		Adesao:           in.Adhesion,
		FaturamentoSofas: in.RevenueTotal,
		Pontualidade:     attendance,
		MLWeeks:          ml,
		Bonus:            bonus,
		PublishedAt:      in.PublishedAt.UnixMilli(),
	}
}

func attendanceFor(overrides map[generic.UserID]generic.Amount, uid generic.UserID, def generic.Amount) generic.Amount {
	if a, ok := overrides[uid]; ok {
		return a
	}
	return def
}

// =============================================================================
// BREAKDOWN
// =============================================================================

// LiveInputs are the values read at request time, next to the closure.
type LiveInputs struct {
	Services          commission.ServiceRateConfig
	ServiceTotals     commission.ServiceTotals
	MarketplaceTiers  generic.TierTable
	WeekLinkCount     int
	AttendanceDefault generic.Amount
	Commission        generic.Amount
}

// Payout is one user's view of a month.
type Payout struct {
	UID              generic.UserID
	Month            generic.Month
	Finalized        bool
	Commission       generic.Amount
	ServiceBonus     generic.Amount
	MarketplaceBonus generic.Amount
	AttendanceBonus  generic.Amount
	RevenueBonus     generic.Amount
}

// Extras is everything on top of commission.
func (p Payout) Extras() generic.Amount {
	return p.ServiceBonus.Add(p.MarketplaceBonus).Add(p.AttendanceBonus).Add(p.RevenueBonus)
}

func (p Payout) Total() generic.Amount { return p.Commission.Add(p.Extras()) }

// Breakdown derives uid's payout from the month's record (nil when the month
// is not published) and live inputs.
func Breakdown(record *Record, uid generic.UserID, live LiveInputs) Payout {
	p := Payout{UID: uid, Finalized: record.Finalized(uid), Commission: live.Commission}
	if record != nil {
		p.Month = record.Month
	}

	var overrides map[generic.UserID]generic.Amount
	adhesion := commission.AdhesionOverrides{}
	if record != nil {
		overrides = record.Pontualidade
		adhesion = commission.OverridesFrom(record.Adesao)
	}
	p.AttendanceBonus = attendanceFor(overrides, uid, live.AttendanceDefault)

	p.ServiceBonus = commission.ServiceBonus(live.Services, adhesion, live.ServiceTotals)

	frozenML := generic.ZeroBRL()
	if record != nil {
		if v, ok := record.MLWeeks[uid]; ok {
			frozenML = v
		}
	}
	if p.Finalized && frozenML.IsPositive() {
		p.MarketplaceBonus = frozenML
	} else {
		p.MarketplaceBonus = marketplace.WeeklyBonus(live.MarketplaceTiers, live.WeekLinkCount)
	}

	p.RevenueBonus = generic.ZeroBRL()
	if p.Finalized {
		p.RevenueBonus = record.Bonus[uid].Sub(p.AttendanceBonus).Sub(frozenML).ClampZero()
	}
	return p
}
