package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/solarflow/solarflow/pkg/format"
	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/metrics"
	"github.com/solarflow/solarflow/pkg/types"
)

const maxSampleCount = 4 * 96

var defaultSampleStart = time.Date(2025, 8, 4, 14, 0, 0, 0, time.UTC)

func (s *Server) snapshot(buildingID string) []types.EnergyDataPoint {
	w := s.feed.Window(buildingID)
	if w == nil {
		return []types.EnergyDataPoint{}
	}
	return w.Snapshot()
}

func (s *Server) handleEnergy(w http.ResponseWriter, r *http.Request) {
	buildingID := s.buildingID(r)
	points := s.snapshot(buildingID)

	if lastStr := r.URL.Query().Get("last"); lastStr != "" {
		n, err := strconv.Atoi(lastStr)
		if err != nil || n < 0 {
			writeJSONError(w, "invalid last", http.StatusBadRequest)
			return
		}
		if n < len(points) {
			points = points[len(points)-n:]
		}
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, points)
}

func (s *Server) handleEnergyLatest(w http.ResponseWriter, r *http.Request) {
	buildingID := s.buildingID(r)
	win := s.feed.Window(buildingID)
	if win == nil {
		writeJSONError(w, "no data yet", http.StatusNotFound)
		return
	}
	p, ok := win.Latest()
	if !ok {
		writeJSONError(w, "no data yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, p)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buildingID := s.buildingID(r)

	period := types.MetricsPeriod(r.URL.Query().Get("period"))
	switch period {
	case "":
		period = types.MetricsPeriodMonthly
	case types.MetricsPeriodDaily, types.MetricsPeriodWeekly, types.MetricsPeriodMonthly, types.MetricsPeriodYearly:
	default:
		writeJSONError(w, "invalid period", http.StatusBadRequest)
		return
	}

	loc, err := s.feed.Location(ctx, buildingID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get building location", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, metrics.Aggregate(s.snapshot(buildingID), period, loc))
}

// TenantSummaryRes is a tenant's bill over the live window, raw and formatted
// for display.
type TenantSummaryRes struct {
	types.TenantTotals
	TenantName string            `json:"tenant_name"`
	From       time.Time         `json:"from,omitzero"`
	To         time.Time         `json:"to,omitzero"`
	Formatted  map[string]string `json:"formatted"`
}

func (s *Server) handleTenantSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buildingID := s.buildingID(r)
	contractID := r.PathValue("contractID")

	contracts, err := s.storage.ListContracts(ctx, buildingID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list contracts", slog.Any("error", err))
		writeJSONError(w, "failed to list contracts", http.StatusInternalServerError)
		return
	}
	var contract types.TenantContract
	var found bool
	for _, c := range contracts {
		if c.ID == contractID {
			contract = c
			found = true
			break
		}
	}
	if !found {
		writeJSONError(w, "contract not found", http.StatusNotFound)
		return
	}

	points := s.snapshot(buildingID)
	totals := metrics.TenantTotals(points, contractID)
	resp := TenantSummaryRes{
		TenantTotals: totals,
		TenantName:   contract.TenantName,
		Formatted: map[string]string{
			"consumption": format.Energy(totals.Consumption),
			"pv_share":    format.Energy(totals.PVShare),
			"grid_share":  format.Energy(totals.GridShare),
			"pv_cost":     format.Currency(totals.PVCost),
			"grid_cost":   format.Currency(totals.GridCost),
			"base_fee":    format.Currency(totals.BaseFee),
			"total_cost":  format.Currency(totals.TotalCost),
			"savings":     format.Currency(totals.Savings),
		},
	}
	if totals.Consumption > 0 {
		resp.Formatted["solar_share"] = format.Percent(totals.PVShare / totals.Consumption * 100)
	}
	if len(points) > 0 {
		resp.From = points[0].Timestamp
		resp.To = points[len(points)-1].Timestamp
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, resp)
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buildingID := s.buildingID(r)
	q := r.URL.Query()

	start := defaultSampleStart
	if v := q.Get("start"); v != "" {
		var err error
		start, err = time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, "invalid start, expected RFC3339", http.StatusBadRequest)
			return
		}
	}

	// minutes, like the dashboard's generator
	var interval time.Duration
	if v := q.Get("interval"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes <= 0 {
			writeJSONError(w, "invalid interval, expected positive minutes", http.StatusBadRequest)
			return
		}
		interval = time.Duration(minutes) * time.Minute
	}

	count := 48
	if v := q.Get("count"); v != "" {
		var err error
		count, err = strconv.Atoi(v)
		if err != nil || count <= 0 || count > maxSampleCount {
			writeJSONError(w, "invalid count", http.StatusBadRequest)
			return
		}
	}

	points, err := s.feed.Sample(ctx, buildingID, start, interval, count)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to compute sample", slog.Any("error", err))
		writeJSONError(w, "failed to compute sample", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, points)
}
