/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Money leaves the API as
  numbers rounded to cents; it enters as either numbers or human-typed
  strings ("1.234,56"), normalized by factory.ParseAmount. Rounding happens
  here and nowhere else.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and commission.Validate, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/currency.go: Number parsing
*/
package api

import (
	"time"

	"github.com/warp/sales-engine/closure"
	"github.com/warp/sales-engine/factory"
	"github.com/warp/sales-engine/generic"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// SaleRequest creates or replaces a sale. Amount fields take numbers or
// strings. OrderID may end with "#" for a service-only order.
type SaleRequest struct {
	Date              string `json:"date"`
	Client            string `json:"client"`
	OrderID           string `json:"orderId"`
	Net               any    `json:"net"`
	Gross             any    `json:"gross"`
	Capa              any    `json:"capa"`
	Impermeabilizacao any    `json:"impermeabilizacao"`
	Status            string `json:"status,omitempty"`
	// SellerUID lets admins and the coordinator file a sale for someone else.
	SellerUID string `json:"sellerUid,omitempty"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type LinkRequest struct {
	URL string `json:"url"`
}

type InstagramRequest struct {
	// Time is an optional "15:04" stamp.
	Time string `json:"time,omitempty"`
}

type AdhesionRequest struct {
	Capa              any `json:"capa"`
	Impermeabilizacao any `json:"impermeabilizacao"`
}

// ClosureRequest publishes a month.
type ClosureRequest struct {
	Month            string          `json:"month"`
	Adesao           AdhesionRequest `json:"adesao"`
	FaturamentoSofas any             `json:"faturamento_sofas"`
	Pontualidade     map[string]any  `json:"pontualidade"`
}

type ResetDayRequest struct {
	UID  string `json:"uid"`
	Date string `json:"date"`
}

type ResetMonthRequest struct {
	UID   string `json:"uid"`
	Month string `json:"month"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type SaleDTO struct {
	ID                string  `json:"id"`
	Date              string  `json:"date"`
	Client            string  `json:"client"`
	OrderID           string  `json:"orderId"`
	ServiceOnly       bool    `json:"serviceOnly"`
	Net               float64 `json:"net"`
	Gross             float64 `json:"gross"`
	Capa              float64 `json:"capa"`
	Impermeabilizacao float64 `json:"impermeabilizacao"`
	SellerUID         string  `json:"sellerUid"`
	Status            string  `json:"status"`
	CreatedAt         string  `json:"createdAt,omitempty"`
}

type LinkDTO struct {
	Key string `json:"key"`
	URL string `json:"url"`
	TS  int64  `json:"ts"`
}

// LinkWeekDTO is a user's marketplace week.
type LinkWeekDTO struct {
	UID   string    `json:"uid"`
	Week  string    `json:"week"`
	Count int       `json:"count"`
	Bonus float64   `json:"bonus"`
	Links []LinkDTO `json:"links"`
}

type InstagramDTO struct {
	UID         string   `json:"uid"`
	Date        string   `json:"date"`
	Posts       int      `json:"posts"`
	Stories     int      `json:"stories"`
	Times       []string `json:"times"`
	PostsGoal   int      `json:"postsGoal"`
	StoriesGoal int      `json:"storiesGoal"`
	GoalMet     bool     `json:"goalMet"`

	// Window is the day's posting window; absent on Sundays.
	Window *WindowDTO `json:"window,omitempty"`
}

type WindowDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type AdhesionDTO struct {
	Capa              float64 `json:"capa"`
	Impermeabilizacao float64 `json:"impermeabilizacao"`
}

type ClosureDTO struct {
	Month            string             `json:"month"`
	Adesao           AdhesionDTO        `json:"adesao"`
	FaturamentoSofas float64            `json:"faturamento_sofas"`
	Pontualidade     map[string]float64 `json:"pontualidade"`
	MLWeeks          map[string]float64 `json:"mlWeeks"`
	Bonus            map[string]float64 `json:"bonus"`
	PublishedAt      string             `json:"publishedAt,omitempty"`
}

type ProductTotalsDTO struct {
	Net    float64 `json:"net"`
	Gross  float64 `json:"gross"`
	Orders int     `json:"orders"`
}

type ServiceTotalsDTO struct {
	Capa              float64 `json:"capa"`
	Impermeabilizacao float64 `json:"impermeabilizacao"`
	Total             float64 `json:"total"`
}

// PayoutDTO is a user's month: the payout breakdown plus sales progress.
type PayoutDTO struct {
	UID              string           `json:"uid"`
	Month            string           `json:"month"`
	Finalized        bool             `json:"finalized"`
	Commission       float64          `json:"commission"`
	ServiceBonus     float64          `json:"serviceBonus"`
	MarketplaceBonus float64          `json:"marketplaceBonus"`
	AttendanceBonus  float64          `json:"attendanceBonus"`
	RevenueBonus     float64          `json:"revenueBonus"`
	Extras           float64          `json:"extras"`
	Total            float64          `json:"total"`
	Week             string           `json:"week"`
	WeekLinks        int              `json:"weekLinks"`
	Products         ProductTotalsDTO `json:"products"`
	Services         ServiceTotalsDTO `json:"services"`
	Target           float64          `json:"target"`
	Progress         int              `json:"progress"`
	SaleCount        int              `json:"saleCount"`
	Adhesion         AdhesionDTO      `json:"adhesion"`
}

type CommissionRowDTO struct {
	UID        string  `json:"uid"`
	Role       string  `json:"role"`
	Commission float64 `json:"commission"`
	Net        float64 `json:"net"`
	Sales      int     `json:"sales"`
}

type CommissionTableDTO struct {
	Month        string             `json:"month"`
	Rows         []CommissionRowDTO `json:"rows"`
	Unattributed float64            `json:"unattributed"`
	Total        float64            `json:"total"`
}

type AdhesionSuggestionDTO struct {
	Adhesion AdhesionDTO `json:"adhesion"`
	Rates    AdhesionDTO `json:"rates"`
}

type TeamDTO struct {
	CoordinatorID string   `json:"coordinatorId"`
	Sellers       []string `json:"sellers"`
	Size          int      `json:"size"`
}

// ConfigDTO echoes the stored document with the parser's findings.
type ConfigDTO struct {
	Config      any      `json:"config"`
	Diagnostics []string `json:"diagnostics"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func rate(r generic.Rate) float64 { return r.Round(4).InexactFloat64() }

func toSaleDTO(s generic.Sale) SaleDTO {
	dto := SaleDTO{
		ID:                string(s.ID),
		Date:              string(s.Date),
		Client:            s.Client,
		OrderID:           s.OrderID,
		ServiceOnly:       s.ServiceOnly,
		Net:               s.Net.Float64(),
		Gross:             s.Gross.Float64(),
		Capa:              s.Services.Capa.Float64(),
		Impermeabilizacao: s.Services.Impermeabilizacao.Float64(),
		SellerUID:         string(s.SellerUID),
		Status:            string(s.Status),
	}
	if !s.CreatedAt.IsZero() {
		dto.CreatedAt = s.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toSaleDTOs(sales []generic.Sale) []SaleDTO {
	dtos := make([]SaleDTO, len(sales))
	for i, s := range sales {
		dtos[i] = toSaleDTO(s)
	}
	return dtos
}

func amountMap(m map[generic.UserID]generic.Amount) map[string]float64 {
	out := make(map[string]float64, len(m))
	for uid, a := range m {
		out[string(uid)] = a.Float64()
	}
	return out
}

func toClosureDTO(r closure.Record) ClosureDTO {
	dto := ClosureDTO{
		Month:            string(r.Month),
		Adesao:           AdhesionDTO{Capa: rate(r.Adesao.Capa), Impermeabilizacao: rate(r.Adesao.Impermeabilizacao)},
		FaturamentoSofas: r.FaturamentoSofas.Float64(),
		Pontualidade:     amountMap(r.Pontualidade),
		MLWeeks:          amountMap(r.MLWeeks),
		Bonus:            amountMap(r.Bonus),
	}
	if r.PublishedAt > 0 {
		dto.PublishedAt = time.UnixMilli(r.PublishedAt).UTC().Format(time.RFC3339)
	}
	return dto
}

func toPayoutDTO(s closure.Summary) PayoutDTO {
	return PayoutDTO{
		UID:              string(s.UID),
		Month:            string(s.Month),
		Finalized:        s.Finalized,
		Commission:       s.Commission.Float64(),
		ServiceBonus:     s.ServiceBonus.Float64(),
		MarketplaceBonus: s.MarketplaceBonus.Float64(),
		AttendanceBonus:  s.AttendanceBonus.Float64(),
		RevenueBonus:     s.RevenueBonus.Float64(),
		Extras:           s.Extras().Float64(),
		Total:            s.Total().Float64(),
		Week:             string(s.Week),
		WeekLinks:        s.WeekLinks,
		Products: ProductTotalsDTO{
			Net:    s.Products.Net.Float64(),
			Gross:  s.Products.Gross.Float64(),
			Orders: s.Products.Orders,
		},
		Services: ServiceTotalsDTO{
			Capa:              s.Services.Capa.Float64(),
			Impermeabilizacao: s.Services.Impermeabilizacao.Float64(),
			Total:             s.Services.Total.Float64(),
		},
		Target:    s.Target.Float64(),
		Progress:  s.Progress,
		SaleCount: s.SaleCount,
		Adhesion:  AdhesionDTO{Capa: rate(s.AdhesionCapa), Impermeabilizacao: rate(s.AdhesionImper)},
	}
}

func toCommissionTableDTO(t closure.CommissionTable) CommissionTableDTO {
	dto := CommissionTableDTO{
		Month:        string(t.Month),
		Rows:         make([]CommissionRowDTO, len(t.Rows)),
		Unattributed: t.Unattributed.Float64(),
		Total:        t.Total.Float64(),
	}
	for i, r := range t.Rows {
		dto.Rows[i] = CommissionRowDTO{
			UID:        string(r.UID),
			Role:       string(r.Role),
			Commission: r.Commission.Float64(),
			Net:        r.Net.Float64(),
			Sales:      r.Sales,
		}
	}
	return dto
}

func diagnosticStrings(diags factory.Diagnostics) []string {
	out := make([]string, len(diags))
	for i, d := range diags {
		out[i] = d.String()
	}
	return out
}
