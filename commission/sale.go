package commission

import (
	"sort"
	"strings"
	"time"

	"github.com/warp/sales-engine/generic"
)

// =============================================================================
// SALE FORM
// =============================================================================

// ServiceOnlySuffix marks an order number as a service-only sale.
const ServiceOnlySuffix = "#"

// ParseOrderID trims the raw order number and strips the service-only suffix.
func ParseOrderID(raw string) (orderID string, serviceOnly bool) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasSuffix(trimmed, ServiceOnlySuffix) {
		return strings.TrimSpace(strings.TrimSuffix(trimmed, ServiceOnlySuffix)), true
	}
	return trimmed, false
}

// SaleForm is what a seller submits. RawOrderID may end with "#".
type SaleForm struct {
	Date              string
	Client            string
	RawOrderID        string
	Net               generic.Amount
	Gross             generic.Amount
	Capa              generic.Amount
	Impermeabilizacao generic.Amount
	Status            generic.SaleStatus
}

// NewSale validates form and builds the sale record. New sales default to
// the "pendente" status.
func NewSale(form SaleForm, id generic.SaleID, seller generic.UserID, now time.Time) (generic.Sale, error) {
	orderID, serviceOnly := ParseOrderID(form.RawOrderID)
	status := form.Status
	if status == "" {
		status = generic.StatusPendente
	}
	sale := generic.Sale{
		ID:          id,
		Date:        generic.Date(strings.TrimSpace(form.Date)),
		Client:      strings.TrimSpace(form.Client),
		Net:         form.Net,
		Gross:       form.Gross,
		Services:    generic.Services{Capa: form.Capa, Impermeabilizacao: form.Impermeabilizacao},
		SellerUID:   seller,
		OrderID:     orderID,
		ServiceOnly: serviceOnly,
		Status:      status,
		CreatedAt:   now,
	}
	if err := Validate(sale, form.RawOrderID); err != nil {
		return generic.Sale{}, err
	}
	return sale, nil
}

// Validate applies the entry rules. rawOrderID is the order number as typed;
// pass sale.OrderID when re-validating a stored sale.
func Validate(sale generic.Sale, rawOrderID string) error {
	var problems []string

	if _, err := generic.ParseDate(string(sale.Date)); err != nil {
		problems = append(problems, "date must be YYYY-MM-DD")
	}
	if len([]rune(strings.TrimSpace(sale.Client))) < 2 {
		problems = append(problems, "client name is required")
	}
	if strings.TrimSpace(rawOrderID) == "" {
		problems = append(problems, "order number is required")
	}
	if sale.SellerUID == "" {
		problems = append(problems, "seller is required")
	}
	for name, a := range map[string]generic.Amount{
		"net":               sale.Net,
		"gross":             sale.Gross,
		"capa":              sale.Services.Capa,
		"impermeabilizacao": sale.Services.Impermeabilizacao,
	} {
		if a.IsNegative() {
			problems = append(problems, name+" must not be negative")
		}
	}
	if sale.ServiceOnly {
		if !sale.Services.Total().IsPositive() {
			problems = append(problems, "service-only orders need capa or impermeabilizacao")
		}
	} else {
		if !sale.Net.IsPositive() {
			problems = append(problems, "net amount is required")
		}
		if !sale.Gross.IsPositive() {
			problems = append(problems, "gross amount is required")
		}
	}
	if sale.Status != "" && !sale.Status.Valid() {
		problems = append(problems, "unknown status "+string(sale.Status))
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return &generic.ValidationError{Problems: problems}
	}
	return nil
}

// =============================================================================
// PRODUCT TOTALS & PROGRESS
// =============================================================================

// ProductTotals are the month's product revenue with embedded service amounts
// removed.
type ProductTotals struct {
	Net    generic.Amount
	Gross  generic.Amount
	Orders int
}

// ProductTotalsFromSales ignores service-only sales. Service amounts are
// subtracted from a sale's net and gross only when smaller than them.
func ProductTotalsFromSales(sales []generic.Sale) ProductTotals {
	out := ProductTotals{Net: generic.ZeroBRL(), Gross: generic.ZeroBRL()}
	for _, s := range sales {
		if s.ServiceOnly {
			continue
		}
		services := s.Services.Total()
		gross := s.Gross
		if !gross.IsPositive() {
			gross = s.Net
		}
		net := s.Net
		if !net.IsPositive() {
			net = gross
		}
		out.Net = out.Net.Add(withoutServices(net, services))
		out.Gross = out.Gross.Add(withoutServices(gross, services))
		out.Orders++
	}
	return out
}

func withoutServices(amount, services generic.Amount) generic.Amount {
	if amount.GreaterThan(services) {
		return amount.Sub(services)
	}
	return amount
}

// MinimumMonthlyTarget is the floor for any seller's monthly target.
var MinimumMonthlyTarget = generic.BRL(50000)

// MonthlyTarget returns the personal target, floored at MinimumMonthlyTarget.
func MonthlyTarget(personal generic.Amount) generic.Amount {
	return personal.Max(MinimumMonthlyTarget)
}

// Progress is gross/target as a whole percentage, capped at 100.
func Progress(gross, target generic.Amount) int {
	if !target.IsPositive() {
		return 0
	}
	pct := gross.Value.Div(target.Value).Mul(generic.MustParseDecimal("100")).Round(0).IntPart()
	switch {
	case pct > 100:
		return 100
	case pct < 0:
		return 0
	}
	return int(pct)
}
