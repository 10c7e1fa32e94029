package rtdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/warp/sales-engine/generic"
)

// casAttempts bounds read-modify-write retries on 412.
const casAttempts = 5

// Store implements generic.Store over a Client.
type Store struct {
	c      *Client
	logger *zap.Logger
}

var _ generic.Store = (*Store)(nil)

func New(c *Client) *Store {
	return &Store{c: c, logger: c.logger}
}

func configPath() string { return "config" }
func salesMonthPath(m generic.Month) string { return "sales/" + string(m) }
func salesUserPath(m generic.Month, uid generic.UserID) string {
	return salesMonthPath(m) + "/" + escape(string(uid))
}
func salePath(m generic.Month, uid generic.UserID, id generic.SaleID) string {
	return salesUserPath(m, uid) + "/" + escape(string(id))
}
func linksPath(w generic.WeekKey, uid generic.UserID) string {
	return "ml_links/" + string(w) + "/" + escape(string(uid)) + "/items"
}
func closurePath(m generic.Month) string { return "closures/" + string(m) }
func igPath(d generic.Date, uid generic.UserID) string {
	return "ig_tracking/" + string(d) + "/" + escape(string(uid))
}
func userPath(uid generic.UserID) string { return "users/" + escape(string(uid)) }

// escape rejects path separators and characters the database forbids in keys.
func escape(key string) string {
	return strings.NewReplacer(".", "_", "#", "_", "$", "_", "[", "_", "]", "_", "/", "_").Replace(key)
}

// =============================================================================
// CONFIG STORE
// =============================================================================

func (s *Store) FetchTierConfig(ctx context.Context) ([]byte, error) {
	resp, err := s.c.getRaw(ctx, configPath())
	if err != nil {
		return nil, err
	}
	if resp.isNull() {
		return nil, generic.ErrConfigNotFound
	}
	return resp.body, nil
}

func (s *Store) SaveTierConfig(ctx context.Context, raw []byte) error {
	if !json.Valid(raw) {
		return fmt.Errorf("%w: config is not valid JSON", generic.ErrInvalidKey)
	}
	return s.c.put(ctx, configPath(), json.RawMessage(raw))
}

func (s *Store) FetchTeamStructure(ctx context.Context) (generic.Team, error) {
	raw, err := s.FetchTierConfig(ctx)
	if err != nil {
		return generic.Team{}, err
	}
	return generic.TeamFromConfigJSON(raw)
}

// =============================================================================
// SALE STORE
// =============================================================================

func (s *Store) FetchSalesForMonth(ctx context.Context, month generic.Month) (generic.SalesByUser, error) {
	var tree map[string]map[string]json.RawMessage
	if _, err := s.c.get(ctx, salesMonthPath(month), &tree); err != nil {
		return nil, err
	}
	result := make(generic.SalesByUser)
	for uid, nodes := range tree {
		if sales := s.decodeSales(generic.UserID(uid), nodes); len(sales) > 0 {
			result[generic.UserID(uid)] = sales
		}
	}
	return result, nil
}

func (s *Store) FetchSales(ctx context.Context, month generic.Month, uid generic.UserID) ([]generic.Sale, error) {
	var nodes map[string]json.RawMessage
	if _, err := s.c.get(ctx, salesUserPath(month, uid), &nodes); err != nil {
		return nil, err
	}
	return s.decodeSales(uid, nodes), nil
}

// decodeSales decodes one seller's sale nodes. Nodes that do not decode are
// logged and skipped so one hand-edited record cannot hide a month.
func (s *Store) decodeSales(uid generic.UserID, nodes map[string]json.RawMessage) []generic.Sale {
	sales := make([]generic.Sale, 0, len(nodes))
	for key, raw := range nodes {
		var sale generic.Sale
		if err := json.Unmarshal(raw, &sale); err != nil {
			s.logger.Warn("rtdb: skipping undecodable sale",
				zap.String("uid", string(uid)),
				zap.String("key", key),
				zap.Error(err),
			)
			continue
		}
		if sale.ID == "" {
			sale.ID = generic.SaleID(key)
		}
		if sale.SellerUID == "" {
			sale.SellerUID = uid
		}
		sales = append(sales, sale)
	}
	sort.SliceStable(sales, func(i, j int) bool {
		if sales[i].Date != sales[j].Date {
			return sales[i].Date < sales[j].Date
		}
		if !sales[i].CreatedAt.Equal(sales[j].CreatedAt) {
			return sales[i].CreatedAt.Before(sales[j].CreatedAt)
		}
		return sales[i].ID < sales[j].ID
	})
	return sales
}

func (s *Store) AddSale(ctx context.Context, sale generic.Sale) error {
	if sale.ID == "" {
		return fmt.Errorf("%w: missing id", generic.ErrInvalidSale)
	}
	return s.c.put(ctx, salePath(sale.Month(), sale.SellerUID, sale.ID), sale)
}

func (s *Store) UpdateSale(ctx context.Context, sale generic.Sale) error {
	path := salePath(sale.Month(), sale.SellerUID, sale.ID)
	for attempt := 0; attempt < casAttempts; attempt++ {
		resp, err := s.c.getWithETag(ctx, path)
		if err != nil {
			return err
		}
		if resp.isNull() {
			return generic.ErrSaleNotFound
		}
		err = s.c.putIfMatch(ctx, path, sale, resp.etag)
		if !errors.Is(err, errPrecondition) {
			return err
		}
	}
	return fmt.Errorf("%w: sale %s kept changing", generic.ErrUpstreamUnavailable, sale.ID)
}

func (s *Store) DeleteSale(ctx context.Context, month generic.Month, uid generic.UserID, id generic.SaleID) error {
	path := salePath(month, uid, id)
	resp, err := s.c.getRaw(ctx, path)
	if err != nil {
		return err
	}
	if resp.isNull() {
		return generic.ErrSaleNotFound
	}
	return s.c.delete(ctx, path)
}

// MoveSale writes the new path and clears the old one in a single multi-path
// update, so readers never see the sale in both months.
func (s *Store) MoveSale(ctx context.Context, from generic.Month, sale generic.Sale) error {
	old := salePath(from, sale.SellerUID, sale.ID)
	resp, err := s.c.getRaw(ctx, old)
	if err != nil {
		return err
	}
	if resp.isNull() {
		return generic.ErrSaleNotFound
	}
	return s.c.patch(ctx, "", map[string]any{
		old: nil,
		salePath(sale.Month(), sale.SellerUID, sale.ID): sale,
	})
}

// =============================================================================
// LINK STORE
// =============================================================================

type linkNode struct {
	URL string `json:"url"`
	TS  int64  `json:"ts"`
}

func (s *Store) AddMarketplaceLink(ctx context.Context, link generic.MarketplaceLink) error {
	path := linksPath(link.Week, link.UID) + "/" + escape(link.Key)
	dup := &generic.DuplicateLinkError{UID: link.UID, Week: link.Week, Key: link.Key}

	resp, err := s.c.getWithETag(ctx, path)
	if err != nil {
		return err
	}
	if !resp.isNull() {
		return dup
	}
	err = s.c.putIfMatch(ctx, path, linkNode{URL: link.URL, TS: link.TS}, resp.etag)
	if errors.Is(err, errPrecondition) {
		return dup
	}
	return err
}

func (s *Store) FetchMarketplaceLinks(ctx context.Context, uid generic.UserID, week generic.WeekKey) ([]generic.MarketplaceLink, error) {
	var nodes map[string]linkNode
	if _, err := s.c.get(ctx, linksPath(week, uid), &nodes); err != nil {
		return nil, err
	}
	links := make([]generic.MarketplaceLink, 0, len(nodes))
	for key, n := range nodes {
		links = append(links, generic.MarketplaceLink{Key: key, URL: n.URL, Week: week, UID: uid, TS: n.TS})
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].TS != links[j].TS {
			return links[i].TS < links[j].TS
		}
		return links[i].Key < links[j].Key
	})
	return links, nil
}

func (s *Store) FetchMarketplaceLinkCount(ctx context.Context, uid generic.UserID, week generic.WeekKey) (int, error) {
	keys, err := s.c.shallowKeys(ctx, linksPath(week, uid))
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// =============================================================================
// CLOSURE STORE
// =============================================================================

func (s *Store) FetchClosure(ctx context.Context, month generic.Month) (*generic.ClosureRecord, error) {
	var record generic.ClosureRecord
	found, err := s.c.get(ctx, closurePath(month), &record)
	if err != nil || !found {
		return nil, err
	}
	if record.Month == "" {
		record.Month = month
	}
	return &record, nil
}

func (s *Store) PublishClosure(ctx context.Context, record generic.ClosureRecord) error {
	return s.c.put(ctx, closurePath(record.Month), record)
}

// =============================================================================
// INSTAGRAM STORE
// =============================================================================

func (s *Store) IncrementInstagram(ctx context.Context, uid generic.UserID, date generic.Date, kind generic.InstagramKind, at string) (generic.InstagramDay, error) {
	path := igPath(date, uid)
	for attempt := 0; attempt < casAttempts; attempt++ {
		resp, err := s.c.getWithETag(ctx, path)
		if err != nil {
			return generic.InstagramDay{}, err
		}
		var day generic.InstagramDay
		if !resp.isNull() {
			if err := json.Unmarshal(resp.body, &day); err != nil {
				return generic.InstagramDay{}, fmt.Errorf("rtdb: decode %s: %w", path, err)
			}
		}
		day = day.Increment(kind, at)
		err = s.c.putIfMatch(ctx, path, day, resp.etag)
		if err == nil {
			return day, nil
		}
		if !errors.Is(err, errPrecondition) {
			return generic.InstagramDay{}, err
		}
	}
	return generic.InstagramDay{}, fmt.Errorf("%w: instagram counter contended", generic.ErrUpstreamUnavailable)
}

func (s *Store) FetchInstagramDay(ctx context.Context, uid generic.UserID, date generic.Date) (generic.InstagramDay, error) {
	var day generic.InstagramDay
	_, err := s.c.get(ctx, igPath(date, uid), &day)
	return day, err
}

// =============================================================================
// USER STORE
// =============================================================================

func (s *Store) GetUser(ctx context.Context, uid generic.UserID) (*generic.User, error) {
	var u generic.User
	found, err := s.c.get(ctx, userPath(uid), &u)
	if err != nil || !found {
		return nil, err
	}
	if u.UID == "" {
		u.UID = uid
	}
	return &u, nil
}

// SaveUser merges the profile fields into the user node, leaving fields the
// dashboard owns untouched.
func (s *Store) SaveUser(ctx context.Context, user generic.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	return s.c.patch(ctx, userPath(user.UID), fields)
}

// =============================================================================
// ADMIN STORE
// =============================================================================

// ResetUserDay removes the day's data with one multi-path update.
func (s *Store) ResetUserDay(ctx context.Context, uid generic.UserID, date generic.Date, loc *time.Location) error {
	start := date.Time(loc)
	if start.IsZero() {
		return fmt.Errorf("%w: date %q", generic.ErrInvalidKey, date)
	}
	week := generic.WeekKeyOf(start, loc)

	sales, err := s.FetchSales(ctx, date.Month(), uid)
	if err != nil {
		return err
	}
	links, err := s.FetchMarketplaceLinks(ctx, uid, week)
	if err != nil {
		return err
	}

	updates := map[string]any{igPath(date, uid): nil}
	for _, sale := range sales {
		if sale.Date == date {
			updates[salePath(date.Month(), uid, sale.ID)] = nil
		}
	}
	for _, l := range links {
		if generic.LinkCreatedOn(l, date, loc) {
			updates[linksPath(week, uid)+"/"+escape(l.Key)] = nil
		}
	}
	s.logger.Info("rtdb: reset user day",
		zap.String("uid", string(uid)),
		zap.String("date", string(date)),
		zap.Int("paths", len(updates)),
	)
	return s.c.patch(ctx, "", updates)
}

// ResetUserMonth removes the month's sales, every Instagram day and every
// marketplace week touching the month.
func (s *Store) ResetUserMonth(ctx context.Context, uid generic.UserID, month generic.Month, loc *time.Location) error {
	weeks := generic.WeeksOf(month, loc)
	if len(weeks) == 0 {
		return fmt.Errorf("%w: month %q", generic.ErrInvalidKey, month)
	}

	updates := map[string]any{salesUserPath(month, uid): nil}
	for _, d := range generic.DaysOf(month) {
		updates[igPath(d, uid)] = nil
	}
	for _, w := range weeks {
		updates["ml_links/"+string(w)+"/"+escape(string(uid))] = nil
	}
	s.logger.Info("rtdb: reset user month",
		zap.String("uid", string(uid)),
		zap.String("month", string(month)),
		zap.Int("paths", len(updates)),
	)
	return s.c.patch(ctx, "", updates)
}

// Ping checks the database is reachable. Used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.c.shallowKeys(ctx, "")
	return err
}
