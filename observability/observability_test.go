package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/sales-engine/observability"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *observability.Metrics

	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", 200, time.Millisecond)
		m.IncrClosurePublished()
		m.IncrPayoutRead(true)
		m.IncrLink("added")
		m.SetConfigDiagnostics(3)
		m.IncrStoreError("fetch")
	})
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := observability.NewMetrics()
	b := observability.NewMetrics()

	a.IncrClosurePublished()

	n, err := testutil.GatherAndCount(a.Registry, "sales_closures_published_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	families, err := b.Registry.Gather()
	assert.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "sales_closures_published_total" {
			assert.Equal(t, float64(0), f.GetMetric()[0].GetCounter().GetValue())
		}
	}
}

func TestRequestLogger_LevelsByStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	mw := observability.RequestLogger(zap.New(core), observability.NewMetrics())

	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusInternalServerError} {
		h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	}

	entries := logs.All()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, zap.InfoLevel, entries[0].Level)
		assert.Equal(t, zap.WarnLevel, entries[1].Level)
		assert.Equal(t, zap.ErrorLevel, entries[2].Level)
	}
}
