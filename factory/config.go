/*
Package factory provides JSON to Go tier configuration conversion.

PURPOSE:
  The configuration document is edited by hand in an admin screen and stored
  in a schemaless document store. Numbers arrive as numbers or as strings
  typed with Brazilian or US separators, arrays sometimes arrive as
  index-keyed objects, and single tiers are occasionally half filled. This
  package is the one place that tolerates all of that: it turns the raw
  document into a strongly typed TierConfig and reports what it had to skip.
  Calculators downstream only ever see valid tiers.

JSON SCHEMA:
  {
    "team": {"coordinatorId": "uid-c", "sellers": ["uid-1", "uid-2"]},
    "commissions": {
      "seller_own": 0.05, "seller_over_coord": 0.01,
      "coord_own": 0.02, "coord_over_seller": 0.02
    },
    "services": {
      "base_min": 0.1,
      "capa": [{"minAdesao": 0.2, "rate": 0.15}],
      "impermeabilizacao": [{"minAdesao": 0.3, "rate": 0.25}]
    },
    "ml_bonus": {"tiers": [{"min": 30, "max": 39, "value": 20}]},
    "faturamento_bonus": [{"min": "150.000", "rate": 0.01}],
    "instagram": {
      "postsPerDay": 1, "storiesPerDay": 10,
      "weekdays": {"start": "09:00", "end": "18:00"},
      "saturday": {"start": "09:00", "end": "13:00"}
    },
    "timezone": "America/Sao_Paulo",
    "pontualidade_default": 150
  }

TOLERANCE RULES:
  - A tier whose min or value is missing or not a finite number is skipped
  - A tier max that is missing or unparseable means unbounded
  - Negative rates are clamped to zero
  - Overlapping marketplace bands are kept (max wins) and reported
  - Only invalid JSON at the top level is an error

USAGE:
  cfg, diags, err := factory.ParseTierConfig(raw)
  for _, d := range diags {
      logger.Warn("tier config", zap.String("path", d.Path), zap.String("problem", d.Message))
  }

SEE ALSO:
  - currency.go: Number normalization
  - generic/tier.go: Lookup semantics
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/sales-engine/commission"
	"github.com/warp/sales-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ConfigJSON is the stored configuration document.
type ConfigJSON struct {
	Team                TeamJSON        `json:"team"`
	Commissions         CommissionsJSON `json:"commissions"`
	Services            ServicesJSON    `json:"services"`
	MLBonus             MLBonusJSON     `json:"ml_bonus"`
	FaturamentoBonus    List            `json:"faturamento_bonus"`
	Instagram           InstagramJSON   `json:"instagram"`
	Timezone            string          `json:"timezone"`
	PontualidadeDefault Number          `json:"pontualidade_default"`
}

type TeamJSON struct {
	CoordinatorID string `json:"coordinatorId"`
	Sellers       List   `json:"sellers"`
}

type CommissionsJSON struct {
	SellerOwn       Number `json:"seller_own"`
	SellerOverCoord Number `json:"seller_over_coord"`
	CoordOwn        Number `json:"coord_own"`
	CoordOverSeller Number `json:"coord_over_seller"`
}

type ServicesJSON struct {
	BaseMin           Number `json:"base_min"`
	Capa              List   `json:"capa"`
	Impermeabilizacao List   `json:"impermeabilizacao"`
}

type MLBonusJSON struct {
	Tiers List `json:"tiers"`
}

type InstagramJSON struct {
	PostsPerDay   Number     `json:"postsPerDay"`
	StoriesPerDay Number     `json:"storiesPerDay"`
	Weekdays      WindowJSON `json:"weekdays"`
	Saturday      WindowJSON `json:"saturday"`
}

type WindowJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// =============================================================================
// PARSED CONFIG
// =============================================================================

// TierConfig is the validated configuration the calculators run on.
type TierConfig struct {
	Team              generic.Team
	Rates             commission.Rates
	Services          commission.ServiceRateConfig
	MarketplaceTiers  generic.TierTable
	RevenueTiers      generic.TierTable
	AttendanceDefault generic.Amount
	Instagram         InstagramGoals
	Timezone          string
}

// Location is the configured timezone.
func (c TierConfig) Location() *time.Location { return generic.LoadLocation(c.Timezone) }

// InstagramGoals are the daily posting targets and the posting windows.
type InstagramGoals struct {
	PostsPerDay   int
	StoriesPerDay int
	Weekdays      Window
	Saturday      Window
}

type Window struct {
	Start string
	End   string
}

// WindowFor returns the posting window for a weekday. Sundays, and days whose
// window is not configured, have none.
func (g InstagramGoals) WindowFor(day time.Weekday) (Window, bool) {
	var w Window
	switch day {
	case time.Sunday:
		return Window{}, false
	case time.Saturday:
		w = g.Saturday
	default:
		w = g.Weekdays
	}
	return w, w.Start != "" && w.End != ""
}

// Met reports whether a day's counters reach both goals.
func (g InstagramGoals) Met(day generic.InstagramDay) bool {
	return day.Posts >= g.PostsPerDay && day.Stories >= g.StoriesPerDay
}

// Diagnostic is one problem found while parsing. Path uses dotted JSON paths
// with list indexes, e.g. "ml_bonus.tiers[2].min".
type Diagnostic struct {
	Path    string
	Message string
}

func (d Diagnostic) String() string { return d.Path + ": " + d.Message }

type Diagnostics []Diagnostic

func (ds *Diagnostics) add(path, format string, args ...any) {
	*ds = append(*ds, Diagnostic{Path: path, Message: fmt.Sprintf(format, args...)})
}

// =============================================================================
// CONFIG FACTORY
// =============================================================================

// ParseTierConfig converts a raw configuration document into a TierConfig.
// It fails only when raw is empty or not JSON.
func ParseTierConfig(raw []byte) (TierConfig, Diagnostics, error) {
	if len(strings.TrimSpace(string(raw))) == 0 || strings.TrimSpace(string(raw)) == "null" {
		return TierConfig{}, nil, generic.ErrConfigNotFound
	}
	var cj ConfigJSON
	if err := json.Unmarshal(raw, &cj); err != nil {
		return TierConfig{}, nil, fmt.Errorf("failed to parse tier config JSON: %w", err)
	}
	cfg, diags := FromJSON(cj)
	return cfg, diags, nil
}

// FromJSON converts a decoded document.
func FromJSON(cj ConfigJSON) (TierConfig, Diagnostics) {
	var diags Diagnostics

	cfg := TierConfig{
		Team: generic.Team{
			CoordinatorID: generic.UserID(strings.TrimSpace(cj.Team.CoordinatorID)),
			Sellers:       parseSellers(cj.Team.Sellers, &diags),
		},
		Rates: commission.Rates{
			SellerOwn:       parseRate("commissions.seller_own", cj.Commissions.SellerOwn, &diags),
			SellerOverCoord: parseRate("commissions.seller_over_coord", cj.Commissions.SellerOverCoord, &diags),
			CoordOwn:        parseRate("commissions.coord_own", cj.Commissions.CoordOwn, &diags),
			CoordOverSeller: parseRate("commissions.coord_over_seller", cj.Commissions.CoordOverSeller, &diags),
		},
		Services: commission.ServiceRateConfig{
			BaseRate:          parseRate("services.base_min", cj.Services.BaseMin, &diags),
			Capa:              parseTiers("services.capa", cj.Services.Capa, tierKeys{min: "minAdesao", value: "rate"}, &diags),
			Impermeabilizacao: parseTiers("services.impermeabilizacao", cj.Services.Impermeabilizacao, tierKeys{min: "minAdesao", value: "rate"}, &diags),
		},
		MarketplaceTiers: parseTiers("ml_bonus.tiers", cj.MLBonus.Tiers, tierKeys{min: "min", max: "max", value: "value"}, &diags),
		RevenueTiers:     parseTiers("faturamento_bonus", cj.FaturamentoBonus, tierKeys{min: "min", value: "rate"}, &diags),
		Instagram: InstagramGoals{
			PostsPerDay:   int(cj.Instagram.PostsPerDay.Or(decimal.Zero).IntPart()),
			StoriesPerDay: int(cj.Instagram.StoriesPerDay.Or(decimal.Zero).IntPart()),
			Weekdays:      Window(cj.Instagram.Weekdays),
			Saturday:      Window(cj.Instagram.Saturday),
		},
		Timezone: strings.TrimSpace(cj.Timezone),
	}

	if cj.PontualidadeDefault.Set && !cj.PontualidadeDefault.Valid {
		diags.add("pontualidade_default", "not a number, using 0")
	}
	attendance := cj.PontualidadeDefault.Or(decimal.Zero)
	if attendance.IsNegative() {
		diags.add("pontualidade_default", "negative, using 0")
		attendance = decimal.Zero
	}
	cfg.AttendanceDefault = generic.NewAmountFromDecimal(attendance, generic.UnitBRL)

	if cfg.Timezone == "" {
		cfg.Timezone = generic.DefaultTimezone
	} else if loc := generic.LoadLocation(cfg.Timezone); loc.String() != cfg.Timezone {
		diags.add("timezone", "unknown zone %q, using %s", cfg.Timezone, loc.String())
		cfg.Timezone = loc.String()
	}

	for _, o := range cfg.MarketplaceTiers.Overlaps() {
		diags.add(fmt.Sprintf("ml_bonus.tiers[%d]", o.B), "overlaps tier %d, the higher value wins", o.A)
	}

	return cfg, diags
}

// =============================================================================
// HELPERS
// =============================================================================

type tierKeys struct {
	min, max, value string
}

func parseTiers(path string, list List, keys tierKeys, diags *Diagnostics) generic.TierTable {
	var out generic.TierTable
	for i, item := range list {
		at := fmt.Sprintf("%s[%d]", path, i)

		var fields map[string]Number
		if err := json.Unmarshal(item, &fields); err != nil {
			diags.add(at, "not an object, skipped")
			continue
		}
		lo, ok := fields[keys.min]
		if !ok || !lo.Valid {
			diags.add(at+"."+keys.min, "missing or not a number, tier skipped")
			continue
		}
		value, ok := fields[keys.value]
		if !ok || !value.Valid {
			diags.add(at+"."+keys.value, "missing or not a number, tier skipped")
			continue
		}

		tier := generic.Tier{Min: lo.Value, Value: value.Value}
		if keys.max != "" {
			if hi, ok := fields[keys.max]; ok && hi.Valid {
				m := hi.Value
				tier.Max = &m
			}
		}
		out = append(out, tier)
	}
	return out
}

func parseRate(path string, n Number, diags *Diagnostics) generic.Rate {
	if n.Set && !n.Valid {
		diags.add(path, "not a number, using 0")
		return decimal.Zero
	}
	if n.Value.IsNegative() {
		diags.add(path, "negative, using 0")
		return decimal.Zero
	}
	return n.Value
}

func parseSellers(list List, diags *Diagnostics) []generic.UserID {
	var out []generic.UserID
	for i, item := range list {
		var uid string
		if err := json.Unmarshal(item, &uid); err != nil || strings.TrimSpace(uid) == "" {
			diags.add(fmt.Sprintf("team.sellers[%d]", i), "not a user id, skipped")
			continue
		}
		out = append(out, generic.UserID(strings.TrimSpace(uid)))
	}
	return out
}

// sortIndexKeys orders numeric keys numerically, then the rest lexically.
func sortIndexKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, aerr := strconv.Atoi(keys[i])
		b, berr := strconv.Atoi(keys[j])
		switch {
		case aerr == nil && berr == nil:
			return a < b
		case aerr == nil:
			return true
		case berr == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
}
