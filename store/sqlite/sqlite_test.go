package sqlite_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-engine/generic"
	"github.com/warp/sales-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_TierConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.FetchTierConfig(ctx)
	assert.ErrorIs(t, err, generic.ErrConfigNotFound)

	require.NoError(t, s.SaveTierConfig(ctx, []byte(`{"team":{"coordinatorId":"C","sellers":["S1"]}}`)))
	require.NoError(t, s.SaveTierConfig(ctx, []byte(`{"team":{"coordinatorId":"C","sellers":["S1","S2"]}}`)))

	team, err := s.FetchTeamStructure(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, team.Size())
}

func TestStore_SalesPreserveDecimals(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	sale := generic.Sale{
		ID: "a", Date: "2025-02-20", SellerUID: "S1", Client: "Ana", OrderID: "1001",
		Net:      generic.NewAmountFromDecimal(generic.MustParseDecimal("1234.567"), generic.UnitBRL),
		Gross:    generic.BRL(1500),
		Services: generic.Services{Capa: generic.BRL(100.1)},
		Status:   generic.StatusFrete,
	}
	require.NoError(t, s.AddSale(ctx, sale))
	require.NoError(t, s.AddSale(ctx, generic.Sale{ID: "b", Date: "2025-02-03", SellerUID: "S1", Net: generic.BRL(1), Gross: generic.BRL(1)}))

	got, err := s.FetchSales(ctx, "2025-02", "S1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, generic.SaleID("b"), got[0].ID, "ordered by date")
	assert.True(t, got[1].Net.Equal(sale.Net))
	assert.True(t, got[1].Services.Capa.Equal(generic.BRL(100.1)))
	assert.Equal(t, generic.StatusFrete, got[1].Status)
	assert.Equal(t, "Ana", got[1].Client)

	err = s.AddSale(ctx, sale)
	assert.ErrorIs(t, err, generic.ErrInvalidSale, "same id twice")
}

func TestStore_UpdateAndDeleteSale(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	sale := generic.Sale{ID: "a", Date: "2025-02-20", SellerUID: "S1", Net: generic.BRL(10), Gross: generic.BRL(10)}
	require.NoError(t, s.AddSale(ctx, sale))

	sale.Status = generic.StatusConcluida
	require.NoError(t, s.UpdateSale(ctx, sale))
	got, _ := s.FetchSales(ctx, "2025-02", "S1")
	assert.Equal(t, generic.StatusConcluida, got[0].Status)

	assert.ErrorIs(t, s.UpdateSale(ctx, generic.Sale{ID: "zz", Date: "2025-02-01", SellerUID: "S1"}), generic.ErrSaleNotFound)

	require.NoError(t, s.DeleteSale(ctx, "2025-02", "S1", "a"))
	assert.ErrorIs(t, s.DeleteSale(ctx, "2025-02", "S1", "a"), generic.ErrSaleNotFound)
}

func TestStore_CreatedAtKeepsSubSecondPrecision(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	created := time.Date(2025, 2, 10, 14, 30, 5, 123456789, time.UTC)
	sale := generic.Sale{ID: "a", Date: "2025-02-10", SellerUID: "S1", Net: generic.BRL(10), Gross: generic.BRL(10), CreatedAt: created}
	require.NoError(t, s.AddSale(ctx, sale))

	got, err := s.FetchSales(ctx, "2025-02", "S1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, created.Equal(got[0].CreatedAt), "got %s", got[0].CreatedAt)
}

func TestStore_MoveSale(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	sale := generic.Sale{ID: "a", Date: "2025-02-27", SellerUID: "S1", Net: generic.BRL(10), Gross: generic.BRL(10)}
	require.NoError(t, s.AddSale(ctx, sale))

	moved := sale
	moved.Date = "2025-03-02"
	require.NoError(t, s.MoveSale(ctx, "2025-02", moved))

	feb, _ := s.FetchSales(ctx, "2025-02", "S1")
	mar, _ := s.FetchSales(ctx, "2025-03", "S1")
	assert.Empty(t, feb)
	require.Len(t, mar, 1)
	assert.Equal(t, generic.Date("2025-03-02"), mar[0].Date)

	// Missing source: nothing is written.
	ghost := generic.Sale{ID: "zz", Date: "2025-04-01", SellerUID: "S1", Net: generic.BRL(1), Gross: generic.BRL(1)}
	assert.ErrorIs(t, s.MoveSale(ctx, "2025-03", ghost), generic.ErrSaleNotFound)
	apr, _ := s.FetchSales(ctx, "2025-04", "S1")
	assert.Empty(t, apr)

	// Failed insert rolls the delete back.
	require.NoError(t, s.AddSale(ctx, generic.Sale{ID: "b", Date: "2025-04-01", SellerUID: "S1", Net: generic.BRL(1), Gross: generic.BRL(1)}))
	require.NoError(t, s.AddSale(ctx, generic.Sale{ID: "b", Date: "2025-05-01", SellerUID: "S1", Net: generic.BRL(1), Gross: generic.BRL(1)}))
	clash := generic.Sale{ID: "b", Date: "2025-05-02", SellerUID: "S1", Net: generic.BRL(1), Gross: generic.BRL(1)}
	assert.Error(t, s.MoveSale(ctx, "2025-04", clash))
	apr, _ = s.FetchSales(ctx, "2025-04", "S1")
	assert.Len(t, apr, 1)
}

func TestStore_SalesForMonthGroupedBySeller(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.AddSale(ctx, generic.Sale{ID: "1", Date: "2025-02-01", SellerUID: "S1"}))
	require.NoError(t, s.AddSale(ctx, generic.Sale{ID: "2", Date: "2025-02-02", SellerUID: "S2"}))
	require.NoError(t, s.AddSale(ctx, generic.Sale{ID: "3", Date: "2025-03-02", SellerUID: "S2"}))

	all, err := s.FetchSalesForMonth(ctx, "2025-02")

	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Len(t, all["S2"], 1)
}

func TestStore_AddMarketplaceLink_WriteIfAbsentUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	link := generic.MarketplaceLink{Key: "k1", URL: "https://x", Week: "2025-W07", UID: "S1", TS: 1}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, dups := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.AddMarketplaceLink(ctx, link)
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
	n, err := s.FetchMarketplaceLinkCount(ctx, "S1", "2025-W07")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// same key in another week is a different link
	link.Week = "2025-W08"
	assert.NoError(t, s.AddMarketplaceLink(ctx, link))
}

func TestStore_ClosureOverwrite(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	rec, err := s.FetchClosure(ctx, "2025-02")
	require.NoError(t, err)
	assert.Nil(t, rec)

	first := generic.ClosureRecord{
		Month:            "2025-02",
		FaturamentoSofas: generic.BRL(150000),
		Bonus:            map[generic.UserID]generic.Amount{"S1": generic.BRL(490)},
		PublishedAt:      1,
	}
	require.NoError(t, s.PublishClosure(ctx, first))
	second := first
	second.Bonus = map[generic.UserID]generic.Amount{"S2": generic.BRL(300)}
	second.PublishedAt = 2
	require.NoError(t, s.PublishClosure(ctx, second))

	rec, err = s.FetchClosure(ctx, "2025-02")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(2), rec.PublishedAt)
	assert.False(t, rec.Finalized("S1"), "wholesale overwrite")
	assert.True(t, rec.Bonus["S2"].Equal(generic.BRL(300)))
}

func TestStore_InstagramCounters(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.IncrementInstagram(ctx, "S1", "2025-02-12", generic.InstagramStories, "09:15")
	require.NoError(t, err)
	day, err := s.IncrementInstagram(ctx, "S1", "2025-02-12", generic.InstagramStories, "")
	require.NoError(t, err)

	assert.Equal(t, 2, day.Stories)
	assert.Equal(t, []string{"09:15"}, day.Times)

	got, err := s.FetchInstagramDay(ctx, "S1", "2025-02-12")
	require.NoError(t, err)
	assert.Equal(t, day, got)

	empty, err := s.FetchInstagramDay(ctx, "S1", "2025-02-13")
	require.NoError(t, err)
	assert.Zero(t, empty.Posts)
}

func TestStore_Users(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	u, err := s.GetUser(ctx, "S1")
	require.NoError(t, err)
	assert.Nil(t, u)

	require.NoError(t, s.SaveUser(ctx, generic.User{UID: "S1", Name: "Bia", Role: generic.RoleSeller, MonthlyTarget: generic.BRL(80000)}))
	u, err = s.GetUser(ctx, "S1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, generic.RoleSeller, u.Role)
	assert.True(t, u.MonthlyTarget.Equal(generic.BRL(80000)))
}

func TestStore_ResetUserDay(t *testing.T) {
	ctx := context.Background()
	loc := generic.LoadLocation("")
	s := newStore(t)

	day := time.Date(2025, time.February, 12, 10, 0, 0, 0, loc)
	week := generic.WeekKeyOf(day, loc)

	require.NoError(t, s.AddSale(ctx, generic.Sale{ID: "1", Date: "2025-02-12", SellerUID: "S1"}))
	require.NoError(t, s.AddSale(ctx, generic.Sale{ID: "2", Date: "2025-02-11", SellerUID: "S1"}))
	_, err := s.IncrementInstagram(ctx, "S1", "2025-02-12", generic.InstagramPosts, "")
	require.NoError(t, err)
	require.NoError(t, s.AddMarketplaceLink(ctx, generic.MarketplaceLink{Key: "today", URL: "u1", Week: week, UID: "S1", TS: day.UnixMilli()}))
	require.NoError(t, s.AddMarketplaceLink(ctx, generic.MarketplaceLink{Key: "yesterday", URL: "u2", Week: week, UID: "S1", TS: day.AddDate(0, 0, -1).UnixMilli()}))

	require.NoError(t, s.ResetUserDay(ctx, "S1", "2025-02-12", loc))

	sales, _ := s.FetchSales(ctx, "2025-02", "S1")
	require.Len(t, sales, 1)
	assert.Equal(t, generic.SaleID("2"), sales[0].ID)

	ig, _ := s.FetchInstagramDay(ctx, "S1", "2025-02-12")
	assert.Zero(t, ig.Posts)

	links, _ := s.FetchMarketplaceLinks(ctx, "S1", week)
	require.Len(t, links, 1)
	assert.Equal(t, "yesterday", links[0].Key)
}

func TestStore_ResetUserMonth(t *testing.T) {
	ctx := context.Background()
	loc := generic.LoadLocation("")
	s := newStore(t)

	require.NoError(t, s.AddSale(ctx, generic.Sale{ID: "1", Date: "2025-02-12", SellerUID: "S1"}))
	require.NoError(t, s.AddSale(ctx, generic.Sale{ID: "2", Date: "2025-02-12", SellerUID: "S2"}))
	_, err := s.IncrementInstagram(ctx, "S1", "2025-02-28", generic.InstagramPosts, "")
	require.NoError(t, err)
	require.NoError(t, s.AddMarketplaceLink(ctx, generic.MarketplaceLink{Key: "k", URL: "u", Week: "2025-W09", UID: "S1"}))
	require.NoError(t, s.AddMarketplaceLink(ctx, generic.MarketplaceLink{Key: "k", URL: "u", Week: "2025-W10", UID: "S1"}))

	require.NoError(t, s.ResetUserMonth(ctx, "S1", "2025-02", loc))

	all, _ := s.FetchSalesForMonth(ctx, "2025-02")
	assert.NotContains(t, all, generic.UserID("S1"))
	assert.Contains(t, all, generic.UserID("S2"))
	ig, _ := s.FetchInstagramDay(ctx, "S1", "2025-02-28")
	assert.Zero(t, ig.Posts)
	n, _ := s.FetchMarketplaceLinkCount(ctx, "S1", "2025-W09")
	assert.Zero(t, n)
	n, _ = s.FetchMarketplaceLinkCount(ctx, "S1", "2025-W10")
	assert.Equal(t, 1, n, "March week untouched")

	assert.ErrorIs(t, s.ResetUserMonth(ctx, "S1", "bad", loc), generic.ErrInvalidKey)
}
