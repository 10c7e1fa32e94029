/*
scenarios.go - Demo scenario loaders for local runs and demonstrations

PURPOSE:

	Populates the store with a realistic team month so the dashboard has
	something to show: a tier config, sales for each seller, marketplace
	links for the current week and, optionally, a published closure.

AVAILABLE SCENARIOS:

	team-month:   Config + sales + links for the current month
	month-closed: team-month plus a published closure

HOW SCENARIOS WORK:
 1. Save the demo tier config (team C, S1, S2, S3)
 2. Reset each member's current month through the admin port
 3. Add sales and links dated in the current month and week
 4. Optionally publish the month

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "month-closed"}

NOTE:

	Scenarios overwrite the config and the members' month. The routes are
	only mounted when RouterOptions.Scenarios is set.

SEE ALSO:
  - handlers.go: Sale and closure handlers
  - factory/defaults.go: Demo config
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/warp/sales-engine/closure"
	"github.com/warp/sales-engine/commission"
	"github.com/warp/sales-engine/factory"
	"github.com/warp/sales-engine/generic"
)

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "team-month",
		Name:        "Team month in progress",
		Description: "Coordinator and three sellers with sales, services and marketplace links this week",
	},
	{
		ID:          "month-closed",
		Name:        "Month closed",
		Description: "Same month with the closure published at R$ 180.000 revenue",
	},
}

var demoTeam = []generic.UserID{"S1", "S2", "S3"}

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "team-month":
		err = h.loadTeamMonth(r.Context())
	case "month-closed":
		if err = h.loadTeamMonth(r.Context()); err == nil {
			err = h.publishDemoMonth(r.Context())
		}
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if err != nil {
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}

	h.logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scenario": req.ScenarioID})
}

// demoSale is a sale relative to the first day of the current month.
type demoSale struct {
	seller     generic.UserID
	day        int
	client     string
	order      string
	net, gross float64
	capa       float64
	imper      float64
}

var demoSales = []demoSale{
	{"S1", 0, "Ana Souza", "5001", 8400, 9100, 600, 0},
	{"S1", 0, "Carla Lima", "5002#", 0, 0, 450, 300},
	{"S2", 1, "Bruno Alves", "5003", 12500, 13200, 0, 900},
	{"S3", 2, "Diego Rocha", "5004", 6300, 6300, 0, 0},
	{"C", 3, "Elisa Prado", "5005", 15800, 16900, 1200, 800},
}

func (h *Handler) loadTeamMonth(ctx context.Context) error {
	if err := h.Store.SaveTierConfig(ctx, factory.DefaultConfigJSON("C", demoTeam...)); err != nil {
		return err
	}
	loc, _, err := h.location(ctx)
	if err != nil {
		return err
	}
	now := h.now().In(loc)
	month := generic.MonthOf(now)
	first := time.Date(now.Year(), now.Month(), 1, 10, 0, 0, 0, loc)

	members := append([]generic.UserID{"C"}, demoTeam...)
	for _, uid := range members {
		if err := h.Store.ResetUserMonth(ctx, uid, month, loc); err != nil {
			return err
		}
	}

	for i, d := range demoSales {
		sale, err := commission.NewSale(commission.SaleForm{
			Date:              string(generic.DateOf(first.AddDate(0, 0, d.day))),
			Client:            d.client,
			RawOrderID:        d.order,
			Net:               generic.BRL(d.net),
			Gross:             generic.BRL(d.gross),
			Capa:              generic.BRL(d.capa),
			Impermeabilizacao: generic.BRL(d.imper),
			Status:            generic.StatusConcluida,
		}, generic.SaleID(fmt.Sprintf("demo-%s-%d", month, i)), d.seller, first.UTC())
		if err != nil {
			return err
		}
		if err := h.Store.AddSale(ctx, sale); err != nil {
			return err
		}
	}

	week := generic.WeekKeyOf(now, loc)
	for uid, n := range map[generic.UserID]int{"S1": 35, "S2": 45, "S3": 52} {
		for i := 0; i < n; i++ {
			link := generic.MarketplaceLink{
				Key:  fmt.Sprintf("demo-%s-%03d", uid, i),
				URL:  fmt.Sprintf("https://produto.mercadolivre.com.br/demo-%s-%03d", uid, i),
				Week: week,
				UID:  uid,
				TS:   now.UnixMilli(),
			}
			if err := h.Store.AddMarketplaceLink(ctx, link); err != nil && !generic.IsConflict(err) {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) publishDemoMonth(ctx context.Context) error {
	loc, _, err := h.location(ctx)
	if err != nil {
		return err
	}
	_, err = h.Service.PublishMonth(ctx, closure.PublishRequest{
		Month:        generic.MonthOf(h.now().In(loc)),
		Adhesion:     generic.AdhesionRates{Capa: generic.MustParseDecimal("0.2"), Impermeabilizacao: generic.MustParseDecimal("0.3")},
		RevenueTotal: generic.BRL(180000),
		Attendance:   map[generic.UserID]generic.Amount{"S3": generic.ZeroBRL()},
	})
	return err
}
