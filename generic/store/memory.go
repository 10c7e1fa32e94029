// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/sales-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	config    []byte
	sales     map[saleKey][]generic.Sale
	links     map[linkKey]map[string]generic.MarketplaceLink
	closures  map[generic.Month]generic.ClosureRecord
	instagram map[igKey]generic.InstagramDay
	users     map[generic.UserID]generic.User
}

type saleKey struct {
	Month generic.Month
	UID   generic.UserID
}

type linkKey struct {
	Week generic.WeekKey
	UID  generic.UserID
}

type igKey struct {
	Date generic.Date
	UID  generic.UserID
}

var _ generic.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		sales:     make(map[saleKey][]generic.Sale),
		links:     make(map[linkKey]map[string]generic.MarketplaceLink),
		closures:  make(map[generic.Month]generic.ClosureRecord),
		instagram: make(map[igKey]generic.InstagramDay),
		users:     make(map[generic.UserID]generic.User),
	}
}

// =============================================================================
// CONFIG
// =============================================================================

func (m *Memory) FetchTierConfig(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return nil, generic.ErrConfigNotFound
	}
	return append([]byte(nil), m.config...), nil
}

func (m *Memory) SaveTierConfig(_ context.Context, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = append([]byte(nil), raw...)
	return nil
}

func (m *Memory) FetchTeamStructure(ctx context.Context) (generic.Team, error) {
	raw, err := m.FetchTierConfig(ctx)
	if err != nil {
		return generic.Team{}, err
	}
	return generic.TeamFromConfigJSON(raw)
}

// =============================================================================
// SALES
// =============================================================================

func (m *Memory) FetchSalesForMonth(_ context.Context, month generic.Month) (generic.SalesByUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(generic.SalesByUser)
	for k, sales := range m.sales {
		if k.Month != month || len(sales) == 0 {
			continue
		}
		result[k.UID] = append([]generic.Sale(nil), sales...)
	}
	return result, nil
}

func (m *Memory) FetchSales(_ context.Context, month generic.Month, uid generic.UserID) ([]generic.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k := saleKey{Month: month, UID: uid}
	return append([]generic.Sale(nil), m.sales[k]...), nil
}

func (m *Memory) AddSale(_ context.Context, sale generic.Sale) error {
	if sale.ID == "" {
		return fmt.Errorf("%w: missing id", generic.ErrInvalidSale)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertSale(sale)
	return nil
}

func (m *Memory) insertSale(sale generic.Sale) {
	k := saleKey{Month: sale.Month(), UID: sale.SellerUID}
	sales := m.sales[k]

	// Keep each bucket ordered by date; same-day sales keep insertion order.
	i := sort.Search(len(sales), func(i int) bool {
		return sales[i].Date > sale.Date
	})
	sales = append(sales, generic.Sale{})
	copy(sales[i+1:], sales[i:])
	sales[i] = sale
	m.sales[k] = sales
}

// MoveSale refiles the sale from month from under its current date.
func (m *Memory) MoveSale(_ context.Context, from generic.Month, sale generic.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := saleKey{Month: from, UID: sale.SellerUID}
	sales := m.sales[k]
	for i, s := range sales {
		if s.ID == sale.ID {
			m.sales[k] = append(sales[:i:i], sales[i+1:]...)
			m.insertSale(sale)
			return nil
		}
	}
	return generic.ErrSaleNotFound
}

func (m *Memory) UpdateSale(_ context.Context, sale generic.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := saleKey{Month: sale.Month(), UID: sale.SellerUID}
	for i, s := range m.sales[k] {
		if s.ID == sale.ID {
			m.sales[k][i] = sale
			return nil
		}
	}
	return generic.ErrSaleNotFound
}

func (m *Memory) DeleteSale(_ context.Context, month generic.Month, uid generic.UserID, id generic.SaleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := saleKey{Month: month, UID: uid}
	sales := m.sales[k]
	for i, s := range sales {
		if s.ID == id {
			m.sales[k] = append(sales[:i:i], sales[i+1:]...)
			return nil
		}
	}
	return generic.ErrSaleNotFound
}

// =============================================================================
// MARKETPLACE LINKS
// =============================================================================

func (m *Memory) AddMarketplaceLink(_ context.Context, link generic.MarketplaceLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := linkKey{Week: link.Week, UID: link.UID}
	items := m.links[k]
	if items == nil {
		items = make(map[string]generic.MarketplaceLink)
		m.links[k] = items
	}
	if _, exists := items[link.Key]; exists {
		return &generic.DuplicateLinkError{UID: link.UID, Week: link.Week, Key: link.Key}
	}
	items[link.Key] = link
	return nil
}

func (m *Memory) FetchMarketplaceLinks(_ context.Context, uid generic.UserID, week generic.WeekKey) ([]generic.MarketplaceLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := m.links[linkKey{Week: week, UID: uid}]
	result := make([]generic.MarketplaceLink, 0, len(items))
	for _, l := range items {
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TS != result[j].TS {
			return result[i].TS < result[j].TS
		}
		return result[i].Key < result[j].Key
	})
	return result, nil
}

func (m *Memory) FetchMarketplaceLinkCount(_ context.Context, uid generic.UserID, week generic.WeekKey) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.links[linkKey{Week: week, UID: uid}]), nil
}

// =============================================================================
// CLOSURES
// =============================================================================

func (m *Memory) FetchClosure(_ context.Context, month generic.Month) (*generic.ClosureRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.closures[month]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) PublishClosure(_ context.Context, record generic.ClosureRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closures[record.Month] = record
	return nil
}

// =============================================================================
// INSTAGRAM
// =============================================================================

func (m *Memory) IncrementInstagram(_ context.Context, uid generic.UserID, date generic.Date, kind generic.InstagramKind, at string) (generic.InstagramDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := igKey{Date: date, UID: uid}
	day := m.instagram[k].Increment(kind, at)
	m.instagram[k] = day
	return day, nil
}

func (m *Memory) FetchInstagramDay(_ context.Context, uid generic.UserID, date generic.Date) (generic.InstagramDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instagram[igKey{Date: date, UID: uid}], nil
}

// =============================================================================
// USERS
// =============================================================================

func (m *Memory) GetUser(_ context.Context, uid generic.UserID) (*generic.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[uid]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *Memory) SaveUser(_ context.Context, user generic.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.UID] = user
	return nil
}

// =============================================================================
// ADMIN RESETS
// =============================================================================

func (m *Memory) ResetUserDay(_ context.Context, uid generic.UserID, date generic.Date, loc *time.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := saleKey{Month: date.Month(), UID: uid}
	var kept []generic.Sale
	for _, s := range m.sales[k] {
		if s.Date != date {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(m.sales, k)
	} else {
		m.sales[k] = kept
	}

	delete(m.instagram, igKey{Date: date, UID: uid})

	lk := linkKey{Week: generic.WeekKeyOf(date.Time(loc), loc), UID: uid}
	for key, l := range m.links[lk] {
		if generic.LinkCreatedOn(l, date, loc) {
			delete(m.links[lk], key)
		}
	}
	if len(m.links[lk]) == 0 {
		delete(m.links, lk)
	}
	return nil
}

func (m *Memory) ResetUserMonth(_ context.Context, uid generic.UserID, month generic.Month, loc *time.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sales, saleKey{Month: month, UID: uid})
	for _, d := range generic.DaysOf(month) {
		delete(m.instagram, igKey{Date: d, UID: uid})
	}
	for _, w := range generic.WeeksOf(month, loc) {
		delete(m.links, linkKey{Week: w, UID: uid})
	}
	return nil
}
