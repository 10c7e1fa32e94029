/*
handlers.go - HTTP API handlers for the payout engine

PURPOSE:
  Exposes sales entry, marketplace links, Instagram counters, monthly
  closures and payouts over REST. Handlers parse the request, check who may
  do what, and delegate: CRUD goes straight to the store, anything that
  computes money goes through closure.Service.

ENDPOINTS:
  Config:
    GET    /api/config                         Stored document + diagnostics
    PUT    /api/config                         Replace document (admin)
    GET    /api/team                           Team structure

  Sales:
    POST   /api/sales                          Record a sale
    GET    /api/sales?month=&uid=              List (uid=all for the team)
    PUT    /api/sales/{month}/{uid}/{id}       Replace
    PATCH  /api/sales/{month}/{uid}/{id}/status
    DELETE /api/sales/{month}/{uid}/{id}

  Marketplace:
    POST   /api/ml-links                       Record a listing link
    GET    /api/ml-links?week=&uid=            Week's links and bonus

  Instagram:
    POST   /api/instagram/{kind}               Bump posts or stories today
    GET    /api/instagram?date=&uid=

  Closures and payouts:
    GET    /api/closures/{month}
    GET    /api/closures/{month}/suggestion    Adhesion prefill (admin)
    POST   /api/closures                       Publish (admin)
    GET    /api/payouts/{month}?week=          Caller's payout
    GET    /api/payouts/{month}/{uid}?week=    Anyone's (admin, coordinator)
    GET    /api/commissions/{month}            Commission table (admin)

  Admin:
    POST   /api/admin/reset-day
    POST   /api/admin/reset-month

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, malformed keys
  - 401: Missing or invalid token
  - 403: Role does not allow the operation
  - 404: Sale, closure or config not found
  - 409: Duplicate marketplace link
  - 503: Remote store unavailable
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Principal and role checks
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/sales-engine/closure"
	"github.com/warp/sales-engine/commission"
	"github.com/warp/sales-engine/factory"
	"github.com/warp/sales-engine/generic"
	"github.com/warp/sales-engine/marketplace"
	"github.com/warp/sales-engine/observability"
)

// maxBodyBytes caps request bodies. The config document is the largest.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   generic.Store
	Service *closure.Service

	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

type HandlerOption func(*Handler)

func WithLogger(l *zap.Logger) HandlerOption { return func(h *Handler) { h.logger = l } }

func WithMetrics(m *observability.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) HandlerOption { return func(h *Handler) { h.now = now } }

// NewHandler creates a handler over store. The closure service shares the
// handler's logger, metrics and clock.
func NewHandler(store generic.Store, opts ...HandlerOption) *Handler {
	h := &Handler{Store: store, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	h.Service = closure.NewService(store,
		closure.WithLogger(h.logger),
		closure.WithMetrics(h.metrics),
		closure.WithClock(h.now),
	)
	return h
}

// location returns the configured business timezone, or the default when no
// config is stored yet.
func (h *Handler) location(ctx context.Context) (*time.Location, factory.TierConfig, error) {
	cfg, err := h.Service.LoadConfig(ctx)
	if errors.Is(err, generic.ErrConfigNotFound) {
		return generic.LoadLocation(""), cfg, nil
	}
	if err != nil {
		return nil, cfg, err
	}
	return cfg.Location(), cfg, nil
}

// =============================================================================
// CONFIG HANDLERS
// =============================================================================

// GetConfig returns the stored document and what the parser made of it.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	raw, err := h.Store.FetchTierConfig(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load config", err)
		return
	}
	_, diags, err := factory.ParseTierConfig(raw)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Stored config is not valid JSON", err)
		return
	}
	writeJSON(w, http.StatusOK, ConfigDTO{Config: json.RawMessage(raw), Diagnostics: diagnosticStrings(diags)})
}

// PutConfig replaces the document. Malformed tiers are accepted and reported
// as diagnostics; only undecodable JSON is refused.
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	cfg, diags, err := factory.ParseTierConfig(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid config document", err)
		return
	}
	if err := h.Store.SaveTierConfig(r.Context(), raw); err != nil {
		h.writeDomainError(w, "Failed to save config", err)
		return
	}

	h.metrics.SetConfigDiagnostics(len(diags))
	h.logger.Info("tier config saved",
		zap.String("coordinator", string(cfg.Team.CoordinatorID)),
		zap.Int("sellers", len(cfg.Team.Sellers)),
		zap.Int("diagnostics", len(diags)),
	)
	writeJSON(w, http.StatusOK, ConfigDTO{Config: json.RawMessage(raw), Diagnostics: diagnosticStrings(diags)})
}

func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.Store.FetchTeamStructure(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load team", err)
		return
	}
	sellers := make([]string, len(team.Sellers))
	for i, s := range team.Sellers {
		sellers[i] = string(s)
	}
	writeJSON(w, http.StatusOK, TeamDTO{
		CoordinatorID: string(team.CoordinatorID),
		Sellers:       sellers,
		Size:          team.Size(),
	})
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// saleForm converts the request, collecting unparseable amounts as problems.
func saleForm(req SaleRequest) (commission.SaleForm, error) {
	form := commission.SaleForm{
		Date:       req.Date,
		Client:     req.Client,
		RawOrderID: req.OrderID,
		Status:     generic.SaleStatus(req.Status),
	}
	var problems []string
	for name, field := range map[string]struct {
		in  any
		out *generic.Amount
	}{
		"net":               {req.Net, &form.Net},
		"gross":             {req.Gross, &form.Gross},
		"capa":              {req.Capa, &form.Capa},
		"impermeabilizacao": {req.Impermeabilizacao, &form.Impermeabilizacao},
	} {
		a, ok := factory.ParseAmount(field.in)
		if !ok {
			problems = append(problems, name+" is not a number")
		}
		*field.out = a
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return form, &generic.ValidationError{Problems: problems}
	}
	return form, nil
}

// CreateSale records a sale for the caller, or for SellerUID when the caller
// manages the team.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	var req SaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	seller := p.UID
	if req.SellerUID != "" && generic.UserID(req.SellerUID) != p.UID {
		if !p.CanSeeTeam() {
			writeError(w, http.StatusForbidden, "Cannot record sales for another user", nil)
			return
		}
		seller = generic.UserID(req.SellerUID)
	}

	form, err := saleForm(req)
	if err != nil {
		h.writeDomainError(w, "Invalid sale", err)
		return
	}
	sale, err := commission.NewSale(form, generic.SaleID(uuid.NewString()), seller, h.now().UTC())
	if err != nil {
		h.writeDomainError(w, "Invalid sale", err)
		return
	}
	if err := h.Store.AddSale(r.Context(), sale); err != nil {
		h.writeDomainError(w, "Failed to save sale", err)
		return
	}

	h.logger.Info("sale recorded",
		zap.String("id", string(sale.ID)),
		zap.String("seller", string(sale.SellerUID)),
		zap.String("date", string(sale.Date)),
		zap.Bool("service_only", sale.ServiceOnly),
	)
	writeJSON(w, http.StatusCreated, toSaleDTO(sale))
}

// ListSales returns one user's sales for a month, or the whole team's with
// uid=all.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	loc, _, err := h.location(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load config", err)
		return
	}
	month := generic.MonthOf(h.now().In(loc))
	if m := r.URL.Query().Get("month"); m != "" {
		if month, err = generic.ParseMonth(m); err != nil {
			h.writeDomainError(w, "Invalid month", err)
			return
		}
	}

	if r.URL.Query().Get("uid") == "all" {
		if !p.CanSeeTeam() {
			writeError(w, http.StatusForbidden, "Forbidden", nil)
			return
		}
		byUser, err := h.Store.FetchSalesForMonth(r.Context(), month)
		if err != nil {
			h.writeDomainError(w, "Failed to list sales", err)
			return
		}
		uids := make([]generic.UserID, 0, len(byUser))
		for uid := range byUser {
			uids = append(uids, uid)
		}
		sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
		dtos := []SaleDTO{}
		for _, uid := range uids {
			dtos = append(dtos, toSaleDTOs(byUser[uid])...)
		}
		writeJSON(w, http.StatusOK, dtos)
		return
	}

	uid, ok := targetUID(w, p, r.URL.Query().Get("uid"))
	if !ok {
		return
	}
	sales, err := h.Store.FetchSales(r.Context(), month, uid)
	if err != nil {
		h.writeDomainError(w, "Failed to list sales", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTOs(sales))
}

// findSale loads the sale addressed by the URL. Only the owner and admins may
// touch it.
func (h *Handler) findSale(w http.ResponseWriter, r *http.Request) (generic.Sale, bool) {
	p := principal(r)
	month, err := generic.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		h.writeDomainError(w, "Invalid month", err)
		return generic.Sale{}, false
	}
	uid := generic.UserID(chi.URLParam(r, "uid"))
	id := generic.SaleID(chi.URLParam(r, "id"))
	if uid != p.UID && !p.IsAdmin() {
		writeError(w, http.StatusForbidden, "Cannot change another user's sale", nil)
		return generic.Sale{}, false
	}

	sales, err := h.Store.FetchSales(r.Context(), month, uid)
	if err != nil {
		h.writeDomainError(w, "Failed to load sale", err)
		return generic.Sale{}, false
	}
	for _, s := range sales {
		if s.ID == id {
			return s, true
		}
	}
	h.writeDomainError(w, "Sale not found", generic.ErrSaleNotFound)
	return generic.Sale{}, false
}

// UpdateSale replaces a sale. A new date in another month moves it.
func (h *Handler) UpdateSale(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.findSale(w, r)
	if !ok {
		return
	}
	var req SaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Status == "" {
		req.Status = string(existing.Status)
	}
	form, err := saleForm(req)
	if err != nil {
		h.writeDomainError(w, "Invalid sale", err)
		return
	}
	sale, err := commission.NewSale(form, existing.ID, existing.SellerUID, existing.CreatedAt)
	if err != nil {
		h.writeDomainError(w, "Invalid sale", err)
		return
	}

	ctx := r.Context()
	if sale.Month() == existing.Month() {
		err = h.Store.UpdateSale(ctx, sale)
	} else {
		err = h.Store.MoveSale(ctx, existing.Month(), sale)
	}
	if err != nil {
		h.writeDomainError(w, "Failed to update sale", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale))
}

func (h *Handler) UpdateSaleStatus(w http.ResponseWriter, r *http.Request) {
	sale, ok := h.findSale(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	status := generic.SaleStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown status", nil)
		return
	}
	sale.Status = status
	if err := h.Store.UpdateSale(r.Context(), sale); err != nil {
		h.writeDomainError(w, "Failed to update status", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale))
}

func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	sale, ok := h.findSale(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteSale(r.Context(), sale.Month(), sale.SellerUID, sale.ID); err != nil {
		h.writeDomainError(w, "Failed to delete sale", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// MARKETPLACE HANDLERS
// =============================================================================

// AddLink records a listing for the caller's current week. The same listing
// twice in a week answers 409.
func (h *Handler) AddLink(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	var req LinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	loc, cfg, err := h.location(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load config", err)
		return
	}
	link, err := marketplace.NewLink(p.UID, req.URL, h.now(), loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid link", err)
		return
	}

	err = h.Store.AddMarketplaceLink(r.Context(), link)
	switch {
	case generic.IsConflict(err):
		h.metrics.IncrLink("duplicate")
		writeError(w, http.StatusConflict, "Link already recorded this week", err)
		return
	case err != nil:
		h.writeDomainError(w, "Failed to save link", err)
		return
	}
	h.metrics.IncrLink("added")

	week, err := h.linkWeek(r.Context(), p.UID, link.Week, cfg)
	if err != nil {
		h.writeDomainError(w, "Failed to load links", err)
		return
	}
	writeJSON(w, http.StatusCreated, week)
}

func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	uid, ok := targetUID(w, p, r.URL.Query().Get("uid"))
	if !ok {
		return
	}
	loc, cfg, err := h.location(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load config", err)
		return
	}
	week := generic.WeekKeyOf(h.now(), loc)
	if q := r.URL.Query().Get("week"); q != "" {
		if week, err = generic.ParseWeekKey(q); err != nil {
			h.writeDomainError(w, "Invalid week", err)
			return
		}
	}
	dto, err := h.linkWeek(r.Context(), uid, week, cfg)
	if err != nil {
		h.writeDomainError(w, "Failed to load links", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) linkWeek(ctx context.Context, uid generic.UserID, week generic.WeekKey, cfg factory.TierConfig) (LinkWeekDTO, error) {
	links, err := h.Store.FetchMarketplaceLinks(ctx, uid, week)
	if err != nil {
		return LinkWeekDTO{}, err
	}
	dto := LinkWeekDTO{
		UID:   string(uid),
		Week:  string(week),
		Count: len(links),
		Bonus: marketplace.WeeklyBonus(cfg.MarketplaceTiers, len(links)).Float64(),
		Links: make([]LinkDTO, len(links)),
	}
	for i, l := range links {
		dto.Links[i] = LinkDTO{Key: l.Key, URL: l.URL, TS: l.TS}
	}
	return dto, nil
}

// =============================================================================
// INSTAGRAM HANDLERS
// =============================================================================

// IncrementInstagram bumps today's posts or stories for the caller.
func (h *Handler) IncrementInstagram(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	kind := generic.InstagramKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "Kind must be posts or stories", nil)
		return
	}
	var req InstagramRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Time != "" {
		if _, err := time.Parse("15:04", req.Time); err != nil {
			writeError(w, http.StatusBadRequest, "Time must be HH:MM", err)
			return
		}
	}
	loc, cfg, err := h.location(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load config", err)
		return
	}
	date := generic.DateOf(h.now().In(loc))

	day, err := h.Store.IncrementInstagram(r.Context(), p.UID, date, kind, req.Time)
	if err != nil {
		h.writeDomainError(w, "Failed to update counter", err)
		return
	}
	writeJSON(w, http.StatusOK, toInstagramDTO(p.UID, date, day, cfg.Instagram))
}

func (h *Handler) GetInstagram(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	uid, ok := targetUID(w, p, r.URL.Query().Get("uid"))
	if !ok {
		return
	}
	loc, cfg, err := h.location(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load config", err)
		return
	}
	date := generic.DateOf(h.now().In(loc))
	if q := r.URL.Query().Get("date"); q != "" {
		if date, err = generic.ParseDate(q); err != nil {
			h.writeDomainError(w, "Invalid date", err)
			return
		}
	}
	day, err := h.Store.FetchInstagramDay(r.Context(), uid, date)
	if err != nil {
		h.writeDomainError(w, "Failed to load counters", err)
		return
	}
	writeJSON(w, http.StatusOK, toInstagramDTO(uid, date, day, cfg.Instagram))
}

func toInstagramDTO(uid generic.UserID, date generic.Date, day generic.InstagramDay, goals factory.InstagramGoals) InstagramDTO {
	times := day.Times
	if times == nil {
		times = []string{}
	}
	dto := InstagramDTO{
		UID:         string(uid),
		Date:        string(date),
		Posts:       day.Posts,
		Stories:     day.Stories,
		Times:       times,
		PostsGoal:   goals.PostsPerDay,
		StoriesGoal: goals.StoriesPerDay,
		GoalMet:     goals.Met(day),
	}
	if w, ok := goals.WindowFor(date.Time(time.UTC).Weekday()); ok {
		dto.Window = &WindowDTO{Start: w.Start, End: w.End}
	}
	return dto
}

// =============================================================================
// CLOSURE & PAYOUT HANDLERS
// =============================================================================

func (h *Handler) GetClosure(w http.ResponseWriter, r *http.Request) {
	month, err := generic.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		h.writeDomainError(w, "Invalid month", err)
		return
	}
	record, err := h.Service.Closure(r.Context(), month)
	if err != nil {
		h.writeDomainError(w, "Failed to load closure", err)
		return
	}
	if record == nil {
		h.writeDomainError(w, "Closure not published", generic.ErrClosureNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toClosureDTO(*record))
}

// PublishClosure computes and stores the month's closure, replacing any
// earlier one.
func (h *Handler) PublishClosure(w http.ResponseWriter, r *http.Request) {
	var req ClosureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var problems []string
	amount := func(name string, v any) generic.Amount {
		a, ok := factory.ParseAmount(v)
		if !ok {
			problems = append(problems, name+" is not a number")
		}
		return a
	}
	pub := closure.PublishRequest{
		Month: generic.Month(req.Month),
		Adhesion: generic.AdhesionRates{
			Capa:              amount("adesao.capa", req.Adesao.Capa).Value,
			Impermeabilizacao: amount("adesao.impermeabilizacao", req.Adesao.Impermeabilizacao).Value,
		},
		RevenueTotal: amount("faturamento_sofas", req.FaturamentoSofas),
		Attendance:   make(map[generic.UserID]generic.Amount, len(req.Pontualidade)),
	}
	for uid, v := range req.Pontualidade {
		pub.Attendance[generic.UserID(uid)] = amount("pontualidade."+uid, v)
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		h.writeDomainError(w, "Invalid closure", &generic.ValidationError{Problems: problems})
		return
	}

	record, err := h.Service.PublishMonth(r.Context(), pub)
	if err != nil {
		h.writeDomainError(w, "Failed to publish closure", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClosureDTO(record))
}

func (h *Handler) SuggestAdhesion(w http.ResponseWriter, r *http.Request) {
	month, err := generic.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		h.writeDomainError(w, "Invalid month", err)
		return
	}
	s, err := h.Service.SuggestAdhesion(r.Context(), month)
	if err != nil {
		h.writeDomainError(w, "Failed to compute adhesion", err)
		return
	}
	writeJSON(w, http.StatusOK, AdhesionSuggestionDTO{
		Adhesion: AdhesionDTO{Capa: rate(s.Capa), Impermeabilizacao: rate(s.Impermeabilizacao)},
		Rates:    AdhesionDTO{Capa: rate(s.CapaRate), Impermeabilizacao: rate(s.ImpermeabilizacaoRate)},
	})
}

// GetOwnPayout returns the caller's payout for the month.
func (h *Handler) GetOwnPayout(w http.ResponseWriter, r *http.Request) {
	h.payout(w, r, principal(r).UID)
}

// GetUserPayout returns any user's payout. Routed behind RequireRole.
func (h *Handler) GetUserPayout(w http.ResponseWriter, r *http.Request) {
	h.payout(w, r, generic.UserID(chi.URLParam(r, "uid")))
}

func (h *Handler) payout(w http.ResponseWriter, r *http.Request, uid generic.UserID) {
	month, err := generic.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		h.writeDomainError(w, "Invalid month", err)
		return
	}
	var week generic.WeekKey
	if q := r.URL.Query().Get("week"); q != "" {
		if week, err = generic.ParseWeekKey(q); err != nil {
			h.writeDomainError(w, "Invalid week", err)
			return
		}
	}
	summary, err := h.Service.Payout(r.Context(), uid, month, week)
	if err != nil {
		h.writeDomainError(w, "Failed to compute payout", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutDTO(summary))
}

func (h *Handler) GetCommissions(w http.ResponseWriter, r *http.Request) {
	month, err := generic.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		h.writeDomainError(w, "Invalid month", err)
		return
	}
	table, err := h.Service.CommissionTable(r.Context(), month)
	if err != nil {
		h.writeDomainError(w, "Failed to compute commissions", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionTableDTO(table))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

func (h *Handler) ResetDay(w http.ResponseWriter, r *http.Request) {
	var req ResetDayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UID == "" {
		writeError(w, http.StatusBadRequest, "uid is required", nil)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		h.writeDomainError(w, "Invalid date", err)
		return
	}
	loc, _, err := h.location(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load config", err)
		return
	}
	if err := h.Store.ResetUserDay(r.Context(), generic.UserID(req.UID), date, loc); err != nil {
		h.writeDomainError(w, "Failed to reset day", err)
		return
	}
	h.logger.Warn("user day reset",
		zap.String("uid", req.UID),
		zap.String("date", string(date)),
		zap.String("by", string(principal(r).UID)),
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ResetMonth(w http.ResponseWriter, r *http.Request) {
	var req ResetMonthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UID == "" {
		writeError(w, http.StatusBadRequest, "uid is required", nil)
		return
	}
	month, err := generic.ParseMonth(req.Month)
	if err != nil {
		h.writeDomainError(w, "Invalid month", err)
		return
	}
	loc, _, err := h.location(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load config", err)
		return
	}
	if err := h.Store.ResetUserMonth(r.Context(), generic.UserID(req.UID), month, loc); err != nil {
		h.writeDomainError(w, "Failed to reset month", err)
		return
	}
	h.logger.Warn("user month reset",
		zap.String("uid", req.UID),
		zap.String("month", string(month)),
		zap.String("by", string(principal(r).UID)),
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HEALTH
// =============================================================================

// Pinger is implemented by stores that can check their backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unreachable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func principal(r *http.Request) Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}

// targetUID resolves the uid a read is about. Empty means the caller; anyone
// else requires a team role.
func targetUID(w http.ResponseWriter, p Principal, requested string) (generic.UserID, bool) {
	if requested == "" || generic.UserID(requested) == p.UID {
		return p.UID, true
	}
	if !p.CanSeeTeam() {
		writeError(w, http.StatusForbidden, "Cannot read another user's data", nil)
		return "", false
	}
	return generic.UserID(requested), true
}

// decodeJSON keeps numbers as json.Number so amounts keep their digits.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error's kind. Validation
// errors list every problem in details.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	var ve *generic.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Details: ve.Problems})
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsRetryable(err):
		h.logger.Warn(message, zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		h.logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
