package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/storage"
	"github.com/solarflow/solarflow/pkg/types"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buildingID := s.buildingID(r)
	settings, _, err := storage.GetSettingsWithMigration(ctx, s.storage, buildingID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buildingID := s.buildingID(r)

	var newSettings types.Settings
	if err := json.NewDecoder(r.Body).Decode(&newSettings); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode settings", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validate.Struct(newSettings); err != nil {
		writeJSONError(w, fmt.Sprintf("invalid settings: %v", err), http.StatusBadRequest)
		return
	}
	if newSettings.IntervalMinutes <= 0 {
		writeJSONError(w, "interval must be positive", http.StatusBadRequest)
		return
	}
	if newSettings.ProrateDivisor <= 0 {
		writeJSONError(w, "prorate divisor must be positive", http.StatusBadRequest)
		return
	}
	if newSettings.LandlordRates.GridCostRate < 0 || newSettings.LandlordRates.FeedInRate < 0 {
		writeJSONError(w, "landlord rates cannot be negative", http.StatusBadRequest)
		return
	}
	if _, err := newSettings.LoadLocation(); err != nil {
		writeJSONError(w, "invalid location", http.StatusBadRequest)
		return
	}

	contracts, err := s.storage.ListContracts(ctx, buildingID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list contracts", slog.Any("error", err))
		writeJSONError(w, "failed to list contracts", http.StatusInternalServerError)
		return
	}
	if err := types.CheckCommonAreaMeter(newSettings.CommonAreaMeterID, contracts...); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.storage.SetSettings(ctx, buildingID, newSettings, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save settings", slog.Any("error", err))
		writeJSONError(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "settings updated", slog.String("buildingID", buildingID))

	w.WriteHeader(http.StatusOK)
}
