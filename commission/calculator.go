/*
Package commission computes what each team member earns from sales.

PURPOSE:
  Pure calculators over plain data. Nothing here performs I/O, logs, or
  returns errors for bad numbers: every path degrades to a safe amount
  (usually zero) so payroll math is never blocked. Hard rejections happen at
  the form boundary (sale.go) and the configuration boundary (factory).

CALCULATORS:
  calculator.go: Per-sale commission split between seller and coordinator
  service.go:    Adhesion bonus on add-on services (capa, impermeabilizacao)
  revenue.go:    Team revenue-tier rate and per-head split
  sale.go:       Sale form validation, product totals, monthly progress

SPLIT RULES:
  Seller sale of net N:
    seller      += SellerOwn * N
    coordinator += CoordOwn  * N

  Coordinator sale of net N:
    coordinator += CoordOwn        * N
    every seller += SellerOverCoord * N   (full rate each, not divided)

  Anyone else: nothing, reported as Unattributed.

  The coordinator check runs first. A team listing the coordinator as a
  seller is unsupported; the coordinator branch wins.

SEE ALSO:
  - generic/model.go: Team and Sale
  - closure/service.go: Monthly aggregation per user
*/
package commission

import (
	"sort"

	"github.com/warp/sales-engine/generic"
)

// =============================================================================
// RATES
// =============================================================================

// Rates are the fixed commission fractions applied to a sale's net amount.
type Rates struct {
	SellerOwn       generic.Rate
	SellerOverCoord generic.Rate
	CoordOwn        generic.Rate
	// CoordOverSeller is carried for configuration parity. The coordinator's
	// credit on a seller sale uses CoordOwn.
	CoordOverSeller generic.Rate
}

// =============================================================================
// ATTRIBUTION
// =============================================================================

type Attribution int

const (
	Unattributed Attribution = iota
	AttributedToSeller
	AttributedToCoordinator
)

func (a Attribution) String() string {
	switch a {
	case AttributedToSeller:
		return "seller"
	case AttributedToCoordinator:
		return "coordinator"
	default:
		return "unattributed"
	}
}

// AttributionFor maps a team role onto the split branch it selects.
func AttributionFor(role generic.Role) Attribution {
	switch role {
	case generic.RoleCoordinator:
		return AttributedToCoordinator
	case generic.RoleSeller:
		return AttributedToSeller
	case generic.RoleAdmin, generic.RoleNone:
		return Unattributed
	default:
		return Unattributed
	}
}

// Split is the result of dividing one sale's commission.
type Split struct {
	Attribution Attribution
	Amounts     map[generic.UserID]generic.Amount
}

// Total sums every credited amount.
func (s Split) Total() generic.Amount {
	total := generic.ZeroBRL()
	for _, a := range s.Amounts {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// CALCULATOR
// =============================================================================

// SplitSale divides the commission on a sale of net made by sellerUID.
func SplitSale(rates Rates, net generic.Amount, sellerUID generic.UserID, team generic.Team) Split {
	attribution := AttributionFor(team.RoleOf(sellerUID))
	amounts := make(map[generic.UserID]generic.Amount)

	switch attribution {
	case AttributedToCoordinator:
		credit(amounts, team.CoordinatorID, net.Mul(rates.CoordOwn))
		for _, uid := range team.Sellers {
			if uid == "" {
				continue
			}
			credit(amounts, uid, net.Mul(rates.SellerOverCoord))
		}
	case AttributedToSeller:
		credit(amounts, sellerUID, net.Mul(rates.SellerOwn))
		if team.CoordinatorID != "" {
			credit(amounts, team.CoordinatorID, net.Mul(rates.CoordOwn))
		}
	case Unattributed:
	}

	return Split{Attribution: attribution, Amounts: amounts}
}

// CommissionForSale returns only the per-user amounts of SplitSale.
// An unattributed sale yields an empty map.
func CommissionForSale(rates Rates, net generic.Amount, sellerUID generic.UserID, team generic.Team) map[generic.UserID]generic.Amount {
	return SplitSale(rates, net, sellerUID, team).Amounts
}

func credit(into map[generic.UserID]generic.Amount, uid generic.UserID, amount generic.Amount) {
	if cur, ok := into[uid]; ok {
		into[uid] = cur.Add(amount)
		return
	}
	into[uid] = amount
}

// Accumulate adds a split into a running per-user total.
func Accumulate(into map[generic.UserID]generic.Amount, split Split) {
	for uid, a := range split.Amounts {
		credit(into, uid, a)
	}
}

// =============================================================================
// MONTHLY AGGREGATION
// =============================================================================

// MonthlyCommissions is the result of running every sale of a month through
// the splitter.
type MonthlyCommissions struct {
	ByUser       map[generic.UserID]generic.Amount
	Unattributed []generic.Sale
}

// For returns the total for uid, zero if absent.
func (m MonthlyCommissions) For(uid generic.UserID) generic.Amount {
	if a, ok := m.ByUser[uid]; ok {
		return a
	}
	return generic.ZeroBRL()
}

// TeamCommissions splits every sale in sales and sums per user. A sale
// listed twice under the same seller with the same identity is counted once.
func TeamCommissions(rates Rates, team generic.Team, sales generic.SalesByUser) MonthlyCommissions {
	out := MonthlyCommissions{ByUser: make(map[generic.UserID]generic.Amount)}
	seen := make(map[string]bool)

	for _, uid := range sortedUsers(sales) {
		for _, sale := range sales[uid] {
			seller := sale.SellerUID
			if seller == "" {
				seller = uid
			}
			key := string(seller) + ":" + saleIdentity(sale)
			if seen[key] {
				continue
			}
			seen[key] = true

			split := SplitSale(rates, sale.Net, seller, team)
			if split.Attribution == Unattributed {
				out.Unattributed = append(out.Unattributed, sale)
				continue
			}
			Accumulate(out.ByUser, split)
		}
	}
	return out
}

func saleIdentity(s generic.Sale) string {
	switch {
	case s.ID != "":
		return string(s.ID)
	case s.OrderID != "":
		return s.OrderID
	default:
		return string(s.Date)
	}
}

func sortedUsers(sales generic.SalesByUser) []generic.UserID {
	uids := make([]generic.UserID, 0, len(sales))
	for uid := range sales {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids
}
