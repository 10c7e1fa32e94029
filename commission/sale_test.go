package commission_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-engine/commission"
	"github.com/warp/sales-engine/generic"
)

func TestParseOrderID(t *testing.T) {
	id, only := commission.ParseOrderID("  12345# ")
	assert.Equal(t, "12345", id)
	assert.True(t, only)

	id, only = commission.ParseOrderID("12345")
	assert.Equal(t, "12345", id)
	assert.False(t, only)
}

func TestNewSale_ProductSale(t *testing.T) {
	now := time.Date(2025, time.February, 10, 12, 0, 0, 0, time.UTC)

	sale, err := commission.NewSale(commission.SaleForm{
		Date: "2025-02-10", Client: "Maria", RawOrderID: "778",
		Net: brl(1800), Gross: brl(2000), Capa: brl(150),
	}, "sale-1", "S1", now)

	require.NoError(t, err)
	assert.Equal(t, generic.StatusPendente, sale.Status)
	assert.False(t, sale.ServiceOnly)
	assert.Equal(t, generic.Month("2025-02"), sale.Month())
	assert.Equal(t, now, sale.CreatedAt)
}

func TestNewSale_ServiceOnlyNeedsServices(t *testing.T) {
	form := commission.SaleForm{Date: "2025-02-10", Client: "Ana", RawOrderID: "900#"}

	_, err := commission.NewSale(form, "x", "S1", time.Now())

	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrInvalidSale))
	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"service-only orders need capa or impermeabilizacao"}, verr.Problems)

	form.Impermeabilizacao = brl(250)
	sale, err := commission.NewSale(form, "x", "S1", time.Now())
	require.NoError(t, err)
	assert.True(t, sale.ServiceOnly)
	assert.Equal(t, "900", sale.OrderID)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	err := commission.Validate(generic.Sale{
		Date:   "10/02/2025",
		Client: "A",
		Net:    brl(-1),
		Status: "lost",
	}, "")

	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 8)
	assert.True(t, generic.IsClientError(err))
}

func TestProductTotalsFromSales(t *testing.T) {
	sales := []generic.Sale{
		{Net: brl(1800), Gross: brl(2000), Services: generic.Services{Capa: brl(200)}},
		{Net: brl(100), Gross: brl(120), Services: generic.Services{Capa: brl(150)}}, // services larger: untouched
		{ServiceOnly: true, Net: brl(300), Services: generic.Services{Capa: brl(300)}},
	}

	got := commission.ProductTotalsFromSales(sales)

	assert.True(t, got.Net.Equal(brl(1700)))
	assert.True(t, got.Gross.Equal(brl(1920)))
	assert.Equal(t, 2, got.Orders)
}

func TestMonthlyTargetAndProgress(t *testing.T) {
	assert.True(t, commission.MonthlyTarget(brl(30000)).Equal(brl(50000)))
	assert.True(t, commission.MonthlyTarget(brl(80000)).Equal(brl(80000)))

	assert.Equal(t, 50, commission.Progress(brl(25000), brl(50000)))
	assert.Equal(t, 100, commission.Progress(brl(90000), brl(50000)))
	assert.Equal(t, 0, commission.Progress(brl(90000), brl(0)))
}
