package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-engine/generic"
	"github.com/warp/sales-engine/generic/store"
)

func TestMemory_SalesKeyedByMonthAndSeller(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	require.NoError(t, m.AddSale(ctx, generic.Sale{ID: "b", Date: "2025-02-20", SellerUID: "s1", Net: generic.BRL(10)}))
	require.NoError(t, m.AddSale(ctx, generic.Sale{ID: "a", Date: "2025-02-03", SellerUID: "s1", Net: generic.BRL(20)}))
	require.NoError(t, m.AddSale(ctx, generic.Sale{ID: "c", Date: "2025-03-01", SellerUID: "s1", Net: generic.BRL(30)}))

	feb, err := m.FetchSalesForMonth(ctx, "2025-02")
	require.NoError(t, err)
	require.Len(t, feb["s1"], 2)
	assert.Equal(t, generic.SaleID("a"), feb["s1"][0].ID, "ordered by date")

	err = m.UpdateSale(ctx, generic.Sale{ID: "zz", Date: "2025-02-01", SellerUID: "s1"})
	assert.ErrorIs(t, err, generic.ErrSaleNotFound)

	require.NoError(t, m.DeleteSale(ctx, "2025-02", "s1", "a"))
	left, _ := m.FetchSales(ctx, "2025-02", "s1")
	assert.Len(t, left, 1)
}

func TestMemory_MoveSale(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	sale := generic.Sale{ID: "a", Date: "2025-02-27", SellerUID: "s1", Net: generic.BRL(10)}
	require.NoError(t, m.AddSale(ctx, sale))

	moved := sale
	moved.Date = "2025-03-02"
	require.NoError(t, m.MoveSale(ctx, "2025-02", moved))

	feb, _ := m.FetchSales(ctx, "2025-02", "s1")
	mar, _ := m.FetchSales(ctx, "2025-03", "s1")
	assert.Empty(t, feb)
	require.Len(t, mar, 1)
	assert.Equal(t, generic.Date("2025-03-02"), mar[0].Date)

	assert.ErrorIs(t, m.MoveSale(ctx, "2025-02", moved), generic.ErrSaleNotFound)
	mar, _ = m.FetchSales(ctx, "2025-03", "s1")
	assert.Len(t, mar, 1, "a failed move writes nothing")
}

func TestMemory_AddMarketplaceLink_WriteIfAbsentUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	link := generic.MarketplaceLink{Key: "k1", URL: "https://x", Week: "2025-W07", UID: "s1", TS: 1}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, dups := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.AddMarketplaceLink(ctx, link)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if generic.IsConflict(err) {
				dups++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 19, dups)
	n, _ := m.FetchMarketplaceLinkCount(ctx, "s1", "2025-W07")
	assert.Equal(t, 1, n)
}

func TestMemory_ClosureAbsentIsNil(t *testing.T) {
	rec, err := store.NewMemory().FetchClosure(context.Background(), "2025-02")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemory_ResetUserDay(t *testing.T) {
	ctx := context.Background()
	loc := generic.LoadLocation("")
	m := store.NewMemory()

	day := time.Date(2025, time.February, 12, 10, 0, 0, 0, loc)
	week := generic.WeekKeyOf(day, loc)

	require.NoError(t, m.AddSale(ctx, generic.Sale{ID: "1", Date: "2025-02-12", SellerUID: "s1"}))
	require.NoError(t, m.AddSale(ctx, generic.Sale{ID: "2", Date: "2025-02-11", SellerUID: "s1"}))
	_, _ = m.IncrementInstagram(ctx, "s1", "2025-02-12", generic.InstagramPosts, "")
	require.NoError(t, m.AddMarketplaceLink(ctx, generic.MarketplaceLink{Key: "today", Week: week, UID: "s1", TS: day.UnixMilli()}))
	require.NoError(t, m.AddMarketplaceLink(ctx, generic.MarketplaceLink{Key: "yesterday", Week: week, UID: "s1", TS: day.AddDate(0, 0, -1).UnixMilli()}))

	require.NoError(t, m.ResetUserDay(ctx, "s1", "2025-02-12", loc))

	sales, _ := m.FetchSales(ctx, "2025-02", "s1")
	require.Len(t, sales, 1)
	assert.Equal(t, generic.SaleID("2"), sales[0].ID)

	ig, _ := m.FetchInstagramDay(ctx, "s1", "2025-02-12")
	assert.Zero(t, ig.Posts)

	links, _ := m.FetchMarketplaceLinks(ctx, "s1", week)
	require.Len(t, links, 1)
	assert.Equal(t, "yesterday", links[0].Key)
}

func TestMemory_ResetUserMonth(t *testing.T) {
	ctx := context.Background()
	loc := generic.LoadLocation("")
	m := store.NewMemory()

	require.NoError(t, m.AddSale(ctx, generic.Sale{ID: "1", Date: "2025-02-12", SellerUID: "s1"}))
	require.NoError(t, m.AddSale(ctx, generic.Sale{ID: "2", Date: "2025-02-12", SellerUID: "s2"}))
	require.NoError(t, m.AddMarketplaceLink(ctx, generic.MarketplaceLink{Key: "k", Week: "2025-W09", UID: "s1"}))

	require.NoError(t, m.ResetUserMonth(ctx, "s1", "2025-02", loc))

	all, _ := m.FetchSalesForMonth(ctx, "2025-02")
	assert.NotContains(t, all, generic.UserID("s1"))
	assert.Contains(t, all, generic.UserID("s2"))
	n, _ := m.FetchMarketplaceLinkCount(ctx, "s1", "2025-W09")
	assert.Zero(t, n)
}
