package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/solarflow/solarflow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHandleEnergy(t *testing.T) {
	s, _, f := newTestServer(t)

	w := serve(s, httptest.NewRequest("GET", "/api/buildings/b1/energy", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]types.EnergyDataPoint](t, w))

	require.NoError(t, f.Backfill(context.Background(), "b1", testStart, 10))

	w = serve(s, httptest.NewRequest("GET", "/api/buildings/b1/energy", nil))
	require.Equal(t, http.StatusOK, w.Code)
	points := decode[[]types.EnergyDataPoint](t, w)
	require.Len(t, points, 10)
	assert.True(t, testStart.Equal(points[0].Timestamp))

	w = serve(s, httptest.NewRequest("GET", "/api/buildings/b1/energy?last=3", nil))
	points = decode[[]types.EnergyDataPoint](t, w)
	require.Len(t, points, 3)
	assert.True(t, testStart.Add(9*15*time.Minute).Equal(points[2].Timestamp))

	w = serve(s, httptest.NewRequest("GET", "/api/buildings/b1/energy?last=x", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEnergyLatest(t *testing.T) {
	s, _, f := newTestServer(t)

	w := serve(s, httptest.NewRequest("GET", "/api/buildings/b1/energy/latest", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	p, err := f.Tick(context.Background(), "b1", testStart)
	require.NoError(t, err)

	w = serve(s, httptest.NewRequest("GET", "/api/buildings/b1/energy/latest", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, p.ID, decode[types.EnergyDataPoint](t, w).ID)
}

func TestHandleMetrics(t *testing.T) {
	s, _, f := newTestServer(t)
	require.NoError(t, f.Backfill(context.Background(), "b1", testStart, 48))

	w := serve(s, httptest.NewRequest("GET", "/api/buildings/b1/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	m := decode[types.AggregatedMetrics](t, w)
	assert.Equal(t, types.MetricsPeriodMonthly, m.Period)
	assert.Greater(t, m.TotalConsumption, 0.0)
	assert.GreaterOrEqual(t, m.GridIndependencePercentage, 0.0)
	assert.LessOrEqual(t, m.GridIndependencePercentage, 100.0)
	assert.Regexp(t, `^\d\d:\d\d$`, m.PeakConsumptionTime)
	assert.LessOrEqual(t, len(m.OptimalUsageHours), 3)

	w = serve(s, httptest.NewRequest("GET", "/api/buildings/b1/metrics?period=daily", nil))
	assert.Equal(t, types.MetricsPeriodDaily, decode[types.AggregatedMetrics](t, w).Period)

	w = serve(s, httptest.NewRequest("GET", "/api/buildings/b1/metrics?period=hourly", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleMetricsEmpty(t *testing.T) {
	s, _, _ := newTestServer(t)
	w := serve(s, httptest.NewRequest("GET", "/api/buildings/b1/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "N/A", decode[types.AggregatedMetrics](t, w).PeakConsumptionTime)
}

func TestHandleTenantSummary(t *testing.T) {
	s, _, f := newTestServer(t)
	require.NoError(t, f.Backfill(context.Background(), "b1", testStart, 8))

	w := serve(s, httptest.NewRequest("GET", "/api/buildings/b1/tenants/CUST_WE1_2025/summary", nil))
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[TenantSummaryRes](t, w)
	assert.Equal(t, "CUST_WE1_2025", res.ContractID)
	assert.Equal(t, "Mieter EG rechts", res.TenantName)
	assert.Equal(t, 8, res.Intervals)
	assert.InDelta(t, res.PVCost+res.GridCost+res.BaseFee, res.TotalCost, 1e-9)
	assert.Regexp(t, `^€\d+\.\d\d$`, res.Formatted["total_cost"])
	assert.Regexp(t, `^\d+\.\d kWh$`, res.Formatted["consumption"])
	assert.True(t, testStart.Equal(res.From))

	w = serve(s, httptest.NewRequest("GET", "/api/buildings/b1/tenants/NOPE/summary", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleSample(t *testing.T) {
	s, _, f := newTestServer(t)

	w := serve(s, httptest.NewRequest("GET", "/api/buildings/b1/sample?count=4&interval=60&start=2025-06-21T10:00:00Z", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	points := decode[[]types.EnergyDataPoint](t, w)
	require.Len(t, points, 4)
	start := time.Date(2025, 6, 21, 10, 0, 0, 0, time.UTC)
	assert.True(t, start.Add(3*time.Hour).Equal(points[3].Timestamp))
	assert.Nil(t, f.Window("b1"))

	w = serve(s, httptest.NewRequest("GET", "/api/buildings/b1/sample", nil))
	require.Equal(t, http.StatusOK, w.Code)
	points = decode[[]types.EnergyDataPoint](t, w)
	require.Len(t, points, 48)
	assert.True(t, testStart.Equal(points[0].Timestamp))

	for _, q := range []string{"count=0", "count=100000", "interval=-5", "start=yesterday"} {
		w = serve(s, httptest.NewRequest("GET", "/api/buildings/b1/sample?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}
