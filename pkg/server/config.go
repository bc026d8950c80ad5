package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/solarflow/solarflow/pkg/billing"
	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/storage"
	"github.com/solarflow/solarflow/pkg/types"
)

func (s *Server) handleListBuildings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buildings, err := s.storage.ListBuildings(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list buildings", slog.Any("error", err))
		writeJSONError(w, "failed to list buildings", http.StatusInternalServerError)
		return
	}
	if buildings == nil {
		buildings = []types.Building{}
	}
	writeJSON(w, buildings)
}

func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contracts, err := s.storage.ListContracts(ctx, s.buildingID(r))
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list contracts", slog.Any("error", err))
		writeJSONError(w, "failed to list contracts", http.StatusInternalServerError)
		return
	}
	if contracts == nil {
		contracts = []types.TenantContract{}
	}
	writeJSON(w, contracts)
}

func (s *Server) handleUpsertContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buildingID := s.buildingID(r)

	var contract types.TenantContract
	if err := json.NewDecoder(r.Body).Decode(&contract); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode contract", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	tariffs, err := s.storage.ListTariffs(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list tariffs", slog.Any("error", err))
		writeJSONError(w, "failed to list tariffs", http.StatusInternalServerError)
		return
	}
	// the referenced tariff must exist
	if err := billing.NewTable(tariffs...).ValidateContract(contract); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	settings, _, err := storage.GetSettingsWithMigration(ctx, s.storage, buildingID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}
	if err := types.CheckCommonAreaMeter(settings.CommonAreaMeterID, contract); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.storage.UpsertContract(ctx, buildingID, contract); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save contract", slog.Any("error", err))
		writeJSONError(w, "failed to save contract", http.StatusInternalServerError)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "contract saved", slog.String("buildingID", buildingID), slog.String("contractID", contract.ID))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleListTariffs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tariffs, err := s.storage.ListTariffs(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list tariffs", slog.Any("error", err))
		writeJSONError(w, "failed to list tariffs", http.StatusInternalServerError)
		return
	}
	if tariffs == nil {
		tariffs = []types.TenantTariff{}
	}
	writeJSON(w, tariffs)
}

func (s *Server) handleUpsertTariff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var tariff types.TenantTariff
	if err := json.NewDecoder(r.Body).Decode(&tariff); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode tariff", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := billing.ValidateTariff(tariff); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.storage.UpsertTariff(ctx, tariff); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save tariff", slog.Any("error", err))
		writeJSONError(w, "failed to save tariff", http.StatusInternalServerError)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "tariff saved", slog.String("tariffID", tariff.ID))
	w.WriteHeader(http.StatusOK)
}
