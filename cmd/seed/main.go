package main

import (
	"context"
	"fmt"
	"os"

	"github.com/levenlabs/go-lflag"
	"github.com/solarflow/solarflow/pkg/billing"
	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/storage"
	"github.com/solarflow/solarflow/pkg/types"
)

func main() {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	}
	buildingID := lflag.String("seed-building", types.BuildingIDDefault, "Building ID to seed")
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()
	defer s.Close()

	log.Ctx(ctx).InfoContext(ctx, "seeding demo building", "buildingID", *buildingID)

	building := types.Building{
		ID:      *buildingID,
		Name:    "Mehrfamilienhaus Sonnenweg",
		Address: "Sonnenweg 1, 10115 Berlin",
	}

	tariff := types.TenantTariff{
		ID:              "TENANT_T1",
		Model:           types.TariffModelTwoPrice,
		PVPrice:         0.26,
		GridPrice:       0.3351,
		BaseFeePerMonth: 10,
		Currency:        types.CurrencyEUR,
		Notes:           "Mieterstrom Standardtarif",
	}

	contracts := []types.TenantContract{
		{
			ID:            "CUST_WE1_2025",
			TenantName:    "Mieter EG rechts",
			MeterID:       "we1_consumption_kWh",
			ContractStart: "2025-01-01",
			ContractEnd:   "2025-12-31",
			BillingCycle:  types.BillingCycleYearly,
			BaseFeeShare:  1,
			TariffID:      tariff.ID,
		},
		{
			ID:            "CUST_WE2_2025",
			TenantName:    "Mieter EG links",
			MeterID:       "we2_consumption_kWh",
			ContractStart: "2025-01-01",
			ContractEnd:   "2025-12-31",
			BillingCycle:  types.BillingCycleYearly,
			BaseFeeShare:  1,
			TariffID:      tariff.ID,
		},
	}

	table := billing.NewTable(tariff)
	if err := table.Validate(); err != nil {
		fail(ctx, "invalid seed tariff", err)
	}
	for _, c := range contracts {
		if err := table.ValidateContract(c); err != nil {
			fail(ctx, "invalid seed contract", err)
		}
	}

	settings, _, err := types.MigrateSettings(types.Settings{}, 0)
	if err != nil {
		fail(ctx, "failed to build default settings", err)
	}

	if err := s.UpsertBuilding(ctx, building); err != nil {
		fail(ctx, "failed to seed building", err)
	}
	if err := s.SetSettings(ctx, building.ID, settings, types.CurrentSettingsVersion); err != nil {
		fail(ctx, "failed to seed settings", err)
	}
	if err := s.UpsertTariff(ctx, tariff); err != nil {
		fail(ctx, "failed to seed tariff", err)
	}
	for _, c := range contracts {
		if err := s.UpsertContract(ctx, building.ID, c); err != nil {
			fail(ctx, "failed to seed contract", err)
		}
		fmt.Printf("Seeded contract %s (%s) on meter %s\n", c.ID, c.TenantName, c.MeterID)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded demo data successfully")
}

func fail(ctx context.Context, msg string, err error) {
	log.Ctx(ctx).ErrorContext(ctx, msg, "error", err)
	os.Exit(1)
}
