package closure

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/sales-engine/commission"
	"github.com/warp/sales-engine/factory"
	"github.com/warp/sales-engine/generic"
	"github.com/warp/sales-engine/observability"
)

// linkFanOut bounds concurrent link-count reads during publication.
const linkFanOut = 8

// Service loads inputs from the store, runs the calculators and persists
// closures.
type Service struct {
	store   generic.Store
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

func WithMetrics(m *observability.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(store generic.Store, opts ...Option) *Service {
	s := &Service{store: store, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// CONFIG
// =============================================================================

// LoadConfig fetches and parses the tier configuration. Diagnostics are
// logged, never returned as errors.
func (s *Service) LoadConfig(ctx context.Context) (factory.TierConfig, error) {
	raw, err := s.store.FetchTierConfig(ctx)
	if err != nil {
		if !errors.Is(err, generic.ErrConfigNotFound) {
			s.metrics.IncrStoreError("fetch_config")
		}
		return factory.TierConfig{}, err
	}
	cfg, diags, err := factory.ParseTierConfig(raw)
	if err != nil {
		return factory.TierConfig{}, err
	}
	s.metrics.SetConfigDiagnostics(len(diags))
	for _, d := range diags {
		s.logger.Warn("tier config", zap.String("path", d.Path), zap.String("problem", d.Message))
	}
	return cfg, nil
}

// =============================================================================
// PUBLISH
// =============================================================================

// PublishRequest is what the admin submits.
type PublishRequest struct {
	Month        generic.Month
	Adhesion     generic.AdhesionRates
	RevenueTotal generic.Amount
	Attendance   map[generic.UserID]generic.Amount
}

// PublishMonth computes and stores the month's closure. Link counts are read
// for the week current at publication.
func (s *Service) PublishMonth(ctx context.Context, req PublishRequest) (Record, error) {
	if _, err := generic.ParseMonth(string(req.Month)); err != nil {
		return Record{}, err
	}
	var problems []string
	if req.RevenueTotal.IsNegative() {
		problems = append(problems, "revenue total must not be negative")
	}
	for uid, a := range req.Attendance {
		if a.IsNegative() {
			problems = append(problems, fmt.Sprintf("attendance for %s must not be negative", uid))
		}
	}
	if req.Adhesion.Capa.IsNegative() || req.Adhesion.Impermeabilizacao.IsNegative() {
		problems = append(problems, "adhesion rates must not be negative")
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return Record{}, &generic.ValidationError{Problems: problems}
	}

	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return Record{}, err
	}
	now := s.now()
	week := generic.WeekKeyOf(now, cfg.Location())
	members := cfg.Team.Members()

	counts := make([]int, len(members))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(linkFanOut)
	for i, uid := range members {
		g.Go(func() error {
			n, err := s.store.FetchMarketplaceLinkCount(gCtx, uid, week)
			if err != nil {
				s.metrics.IncrStoreError("link_count")
				return fmt.Errorf("link count for %s: %w", uid, err)
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Record{}, err
	}

	linkCounts := make(map[generic.UserID]int, len(members))
	for i, uid := range members {
		linkCounts[uid] = counts[i]
	}

	record := Publish(PublishInput{
		Month:             req.Month,
		Adhesion:          req.Adhesion,
		RevenueTotal:      req.RevenueTotal,
		Attendance:        req.Attendance,
		AttendanceDefault: cfg.AttendanceDefault,
		LinkCounts:        linkCounts,
		MarketplaceTiers:  cfg.MarketplaceTiers,
		RevenueTiers:      cfg.RevenueTiers,
		Team:              cfg.Team,
		PublishedAt:       now,
	})
	if err := s.store.PublishClosure(ctx, record); err != nil {
		s.metrics.IncrStoreError("publish_closure")
		return Record{}, err
	}

	s.metrics.IncrClosurePublished()
	s.logger.Info("closure published",
		zap.String("month", string(req.Month)),
		zap.String("week", string(week)),
		zap.Int("members", len(members)),
		zap.String("revenue_total", req.RevenueTotal.String()),
	)
	return record, nil
}

// Closure returns the month's record, or nil when not published.
func (s *Service) Closure(ctx context.Context, month generic.Month) (*Record, error) {
	return s.store.FetchClosure(ctx, month)
}

// =============================================================================
// PAYOUT
// =============================================================================

// Summary is the seller dashboard for a month: payout plus sales progress.
type Summary struct {
	Payout
	Week          generic.WeekKey
	WeekLinks     int
	Products      commission.ProductTotals
	Services      commission.ServiceTotals
	Target        generic.Amount
	Progress      int
	SaleCount     int
	AdhesionCapa  generic.Rate
	AdhesionImper generic.Rate
}

// Payout assembles uid's view of month. week selects the marketplace week
// used when the closure has no frozen value; empty means the current week.
func (s *Service) Payout(ctx context.Context, uid generic.UserID, month generic.Month, week generic.WeekKey) (Summary, error) {
	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return Summary{}, err
	}
	if week == "" {
		week = generic.WeekKeyOf(s.now(), cfg.Location())
	}

	var (
		record *Record
		sales  generic.SalesByUser
		links  int
		user   *generic.User
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.store.FetchClosure(gCtx, month)
		record = r
		return wrapFetch("closure", err)
	})
	g.Go(func() error {
		v, err := s.store.FetchSalesForMonth(gCtx, month)
		sales = v
		return wrapFetch("sales", err)
	})
	g.Go(func() error {
		n, err := s.store.FetchMarketplaceLinkCount(gCtx, uid, week)
		links = n
		return wrapFetch("links", err)
	})
	g.Go(func() error {
		u, err := s.store.GetUser(gCtx, uid)
		user = u
		return wrapFetch("user", err)
	})
	if err := g.Wait(); err != nil {
		s.metrics.IncrStoreError("payout")
		return Summary{}, err
	}

	own := sales[uid]
	commissions := commission.TeamCommissions(cfg.Rates, cfg.Team, sales)
	services := commission.ServiceTotalsFromSales(own)

	payout := Breakdown(record, uid, LiveInputs{
		Services:          cfg.Services,
		ServiceTotals:     services,
		MarketplaceTiers:  cfg.MarketplaceTiers,
		WeekLinkCount:     links,
		AttendanceDefault: cfg.AttendanceDefault,
		Commission:        commissions.For(uid),
	})
	payout.Month = month

	products := commission.ProductTotalsFromSales(own)
	personal := generic.ZeroBRL()
	if user != nil {
		personal = user.MonthlyTarget
	}
	target := commission.MonthlyTarget(personal)

	s.metrics.IncrPayoutRead(payout.Finalized)
	return Summary{
		Payout:        payout,
		Week:          week,
		WeekLinks:     links,
		Products:      products,
		Services:      services,
		Target:        target,
		Progress:      commission.Progress(products.Gross, target),
		SaleCount:     len(own),
		AdhesionCapa:  commission.Adhesion(own, commission.ServiceCapa),
		AdhesionImper: commission.Adhesion(own, commission.ServiceImpermeabilizacao),
	}, nil
}

func wrapFetch(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("fetch %s: %w", what, err)
}

// =============================================================================
// COMMISSION TABLE
// =============================================================================

// CommissionRow is one line of the admin's monthly commission table.
type CommissionRow struct {
	UID        generic.UserID
	Role       generic.Role
	Commission generic.Amount
	Net        generic.Amount
	Sales      int
}

// CommissionTable lists every team member, then any other seller with sales,
// ordered by role and uid. Unattributed is the net of sales nobody is paid on.
type CommissionTable struct {
	Month        generic.Month
	Rows         []CommissionRow
	Unattributed generic.Amount
	Total        generic.Amount
}

func (s *Service) CommissionTable(ctx context.Context, month generic.Month) (CommissionTable, error) {
	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return CommissionTable{}, err
	}
	sales, err := s.store.FetchSalesForMonth(ctx, month)
	if err != nil {
		s.metrics.IncrStoreError("fetch_sales")
		return CommissionTable{}, err
	}

	computed := commission.TeamCommissions(cfg.Rates, cfg.Team, sales)

	uids := map[generic.UserID]bool{}
	for _, uid := range cfg.Team.Members() {
		uids[uid] = true
	}
	for uid := range sales {
		uids[uid] = true
	}

	table := CommissionTable{Month: month, Unattributed: generic.ZeroBRL(), Total: generic.ZeroBRL()}
	for _, sale := range computed.Unattributed {
		table.Unattributed = table.Unattributed.Add(sale.Net)
	}
	for uid := range uids {
		net := generic.ZeroBRL()
		for _, sale := range sales[uid] {
			net = net.Add(sale.Net)
		}
		row := CommissionRow{
			UID:        uid,
			Role:       cfg.Team.RoleOf(uid),
			Commission: computed.For(uid),
			Net:        net,
			Sales:      len(sales[uid]),
		}
		table.Total = table.Total.Add(row.Commission)
		table.Rows = append(table.Rows, row)
	}
	sort.Slice(table.Rows, func(i, j int) bool {
		a, b := table.Rows[i], table.Rows[j]
		if roleOrder(a.Role) != roleOrder(b.Role) {
			return roleOrder(a.Role) < roleOrder(b.Role)
		}
		return a.UID < b.UID
	})
	return table, nil
}

func roleOrder(r generic.Role) int {
	switch r {
	case generic.RoleCoordinator:
		return 0
	case generic.RoleSeller:
		return 1
	}
	return 2
}

// =============================================================================
// ADHESION SUGGESTION
// =============================================================================

// AdhesionSuggestion is the team-wide service adhesion for a month and the
// rate the configured tiers would pay for it. The admin uses it to prefill
// the closure form.
type AdhesionSuggestion struct {
	Capa                  generic.Rate
	Impermeabilizacao     generic.Rate
	CapaRate              generic.Rate
	ImpermeabilizacaoRate generic.Rate
}

func (s *Service) SuggestAdhesion(ctx context.Context, month generic.Month) (AdhesionSuggestion, error) {
	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return AdhesionSuggestion{}, err
	}
	sales, err := s.store.FetchSalesForMonth(ctx, month)
	if err != nil {
		return AdhesionSuggestion{}, err
	}
	var all []generic.Sale
	for _, uid := range sortedKeys(sales) {
		all = append(all, sales[uid]...)
	}
	capa := commission.Adhesion(all, commission.ServiceCapa)
	imper := commission.Adhesion(all, commission.ServiceImpermeabilizacao)
	return AdhesionSuggestion{
		Capa:                  capa,
		Impermeabilizacao:     imper,
		CapaRate:              commission.AdhesionRate(cfg.Services, commission.ServiceCapa, capa),
		ImpermeabilizacaoRate: commission.AdhesionRate(cfg.Services, commission.ServiceImpermeabilizacao, imper),
	}, nil
}

func sortedKeys(m generic.SalesByUser) []generic.UserID {
	out := make([]generic.UserID, 0, len(m))
	for uid := range m {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
