package commission

import (
	"github.com/shopspring/decimal"

	"github.com/warp/sales-engine/generic"
)

// =============================================================================
// SERVICE ADHESION BONUS
// =============================================================================

type ServiceKind string

const (
	ServiceCapa              ServiceKind = "capa"
	ServiceImpermeabilizacao ServiceKind = "impermeabilizacao"
)

// ServiceRateConfig holds the floor rate and the adhesion tiers of each
// service. A tier's Min is an adhesion fraction, its Value the rate paid once
// team adhesion strictly exceeds Min.
type ServiceRateConfig struct {
	BaseRate          generic.Rate
	Capa              generic.TierTable
	Impermeabilizacao generic.TierTable
}

func (c ServiceRateConfig) tiers(kind ServiceKind) generic.TierTable {
	if kind == ServiceImpermeabilizacao {
		return c.Impermeabilizacao
	}
	return c.Capa
}

// AdhesionOverrides are the per-service rates frozen in a month's closure.
// Nil or non-positive means "use BaseRate".
type AdhesionOverrides struct {
	Capa              *generic.Rate
	Impermeabilizacao *generic.Rate
}

// OverridesFrom lifts stored closure rates into overrides.
func OverridesFrom(r generic.AdhesionRates) AdhesionOverrides {
	capa, imper := r.Capa, r.Impermeabilizacao
	return AdhesionOverrides{Capa: &capa, Impermeabilizacao: &imper}
}

// ServiceTotals are the month's service revenue. Total may exceed
// Capa+Impermeabilizacao when service-only sales carry unclassified revenue.
type ServiceTotals struct {
	Capa              generic.Amount
	Impermeabilizacao generic.Amount
	Total             generic.Amount
}

// ServiceBonus computes the adhesion bonus on a month's service revenue.
//
//	capa  * capaRate
//	imper * imperRate
//	max(total - capa - imper, 0) * max(base, capaRate, imperRate)
func ServiceBonus(cfg ServiceRateConfig, overrides AdhesionOverrides, totals ServiceTotals) generic.Amount {
	base := cfg.BaseRate
	capaRate := effectiveRate(overrides.Capa, base)
	imperRate := effectiveRate(overrides.Impermeabilizacao, base)

	capa := totals.Capa.Mul(capaRate)
	imper := totals.Impermeabilizacao.Mul(imperRate)

	other := totals.Total.Sub(totals.Capa).Sub(totals.Impermeabilizacao).ClampZero()
	otherRate := maxRate(base, capaRate, imperRate)

	return capa.Add(imper).Add(other.Mul(otherRate))
}

func effectiveRate(override *generic.Rate, base generic.Rate) generic.Rate {
	if override != nil && override.IsPositive() {
		return *override
	}
	return base
}

func maxRate(first generic.Rate, rest ...generic.Rate) generic.Rate {
	m := first
	for _, r := range rest {
		if r.GreaterThan(m) {
			m = r
		}
	}
	return m
}

// AdhesionRate suggests the rate for kind given the team's adhesion
// fraction: the best tier whose Min is strictly exceeded, floored at BaseRate.
func AdhesionRate(cfg ServiceRateConfig, kind ServiceKind, adhesion generic.Rate) generic.Rate {
	rate := cfg.BaseRate
	for _, t := range cfg.tiers(kind) {
		if adhesion.GreaterThan(t.Min) && t.Value.GreaterThan(rate) {
			rate = t.Value
		}
	}
	return rate
}

// ServiceTotalsFromSales sums the service revenue of a month's sales. For a
// service-only sale the larger of the recorded services and the sale's base
// amount counts toward Total, so unclassified service revenue is not lost.
func ServiceTotalsFromSales(sales []generic.Sale) ServiceTotals {
	totals := ServiceTotals{Capa: generic.ZeroBRL(), Impermeabilizacao: generic.ZeroBRL(), Total: generic.ZeroBRL()}
	for _, s := range sales {
		recorded := s.Services.Total()
		total := recorded
		if s.ServiceOnly {
			total = recorded.Max(s.Base())
		}
		totals.Capa = totals.Capa.Add(s.Services.Capa)
		totals.Impermeabilizacao = totals.Impermeabilizacao.Add(s.Services.Impermeabilizacao)
		totals.Total = totals.Total.Add(total)
	}
	return totals
}

// Adhesion is the share of product sales that carried a service of kind.
// Used to suggest closure rates; zero when there are no product sales.
func Adhesion(sales []generic.Sale, kind ServiceKind) generic.Rate {
	products, with := 0, 0
	for _, s := range sales {
		if s.ServiceOnly {
			continue
		}
		products++
		amount := s.Services.Capa
		if kind == ServiceImpermeabilizacao {
			amount = s.Services.Impermeabilizacao
		}
		if amount.IsPositive() {
			with++
		}
	}
	if products == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(with)).Div(decimal.NewFromInt(int64(products)))
}
