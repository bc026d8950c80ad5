package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/solarflow/solarflow/pkg/billing"
	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/types"
)

// AllocateReq is one interval to apportion. Tariffs are passed inline so the
// call does not depend on stored configuration.
type AllocateReq struct {
	BuildingID            string                `json:"building_id,omitempty"`
	Timestamp             time.Time             `json:"timestamp"`
	PVGeneration          float64               `json:"pv_generation"`
	Tenants               []billing.TenantInput `json:"tenants"`
	CommonAreaConsumption float64               `json:"common_area_consumption"`
	Tariffs               []types.TenantTariff  `json:"tariffs"`
	Rates                 types.LandlordRates   `json:"rates"`
	// ProrateDivisor defaults to billing.DefaultProrateDivisor when zero.
	ProrateDivisor float64 `json:"prorate_divisor,omitempty"`
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AllocateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode allocate request", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	in := billing.Input{
		BuildingID:            req.BuildingID,
		Timestamp:             req.Timestamp,
		PVGeneration:          req.PVGeneration,
		Tenants:               req.Tenants,
		CommonAreaConsumption: req.CommonAreaConsumption,
		Tariffs:               billing.NewTable(req.Tariffs...),
		Rates:                 req.Rates,
		ProrateDivisor:        req.ProrateDivisor,
	}
	if in.ProrateDivisor == 0 {
		in.ProrateDivisor = billing.DefaultProrateDivisor
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}

	point, err := billing.Allocate(in)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidInput) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to allocate", slog.Any("error", err))
		writeJSONError(w, "failed to allocate", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, point)
}
