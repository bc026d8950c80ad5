package billing

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/solarflow/solarflow/pkg/types"
)

// ErrInvalidInput is wrapped by every error Allocate returns.
var ErrInvalidInput = errors.New("invalid input")

// pointNamespace scopes data point IDs so the same building and interval
// always map to the same ID.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://solarflow/energy-data-point"))

// TenantInput is one tenant's raw consumption for the interval.
type TenantInput struct {
	Contract    types.TenantContract `json:"contract"`
	Consumption float64              `json:"consumption"`
}

// Input is everything the engine needs to apportion one interval.
type Input struct {
	BuildingID            string              `json:"building_id,omitempty"`
	Timestamp             time.Time           `json:"timestamp"`
	PVGeneration          float64             `json:"pv_generation"`
	Tenants               []TenantInput       `json:"tenants"`
	CommonAreaConsumption float64             `json:"common_area_consumption"`
	Tariffs               Table               `json:"tariffs"`
	Rates                 types.LandlordRates `json:"rates"`
	ProrateDivisor        float64             `json:"prorate_divisor"`
}

// Allocate apportions the interval's PV generation and grid draw among the
// tenants and computes costs, savings and the landlord's financial position.
//
// Self-consumed PV is split pro rata by consumption volume. Common-area
// consumption absorbs its own proportional PV share but is not billed to any
// tenant. Allocate is pure; it either returns a complete data point or an
// error wrapping ErrInvalidInput.
func Allocate(in Input) (types.EnergyDataPoint, error) {
	if err := in.Validate(); err != nil {
		return types.EnergyDataPoint{}, err
	}

	totalConsumption := in.CommonAreaConsumption
	for _, t := range in.Tenants {
		totalConsumption += t.Consumption
	}

	gridImport := math.Max(0, totalConsumption-in.PVGeneration)
	gridExport := math.Max(0, in.PVGeneration-totalConsumption)
	totalPVUsed := math.Min(in.PVGeneration, totalConsumption)

	point := types.EnergyDataPoint{
		ID:         pointID(in.BuildingID, in.Timestamp),
		BuildingID: in.BuildingID,
		Timestamp:  in.Timestamp,
		Tenants:    make([]types.TenantData, len(in.Tenants)),
		Building: types.BuildingData{
			TotalConsumption:   totalConsumption,
			GeneralConsumption: in.CommonAreaConsumption,
			PVGeneration:       in.PVGeneration,
			GridImport:         gridImport,
			GridExport:         gridExport,
		},
	}

	var tenantCosts, savings, fullGridCosts float64
	for i, t := range in.Tenants {
		// validated above
		tariff, _ := in.Tariffs.Lookup(t.Contract.TariffID)

		var pvShare float64
		if totalConsumption > 0 {
			pvShare = totalPVUsed * (t.Consumption / totalConsumption)
		}
		// floored to absorb floating point residue when the tenant is fully
		// covered by PV
		gridShare := math.Max(0, t.Consumption-pvShare)

		baseFee := BaseFee(tariff, t.Contract, in.ProrateDivisor)
		pvCost := pvShare * tariff.PVPrice
		gridCost := gridShare * tariff.GridPrice
		totalCost := pvCost + gridCost + baseFee

		fullGridCost := t.Consumption*tariff.GridPrice + baseFee
		tenantSavings := math.Max(0, fullGridCost-totalCost)

		point.Tenants[i] = types.TenantData{
			ContractID:  t.Contract.ID,
			Consumption: t.Consumption,
			PVShare:     pvShare,
			GridShare:   gridShare,
			PVCost:      pvCost,
			GridCost:    gridCost,
			BaseFee:     baseFee,
			TotalCost:   totalCost,
			Savings:     tenantSavings,
		}

		tenantCosts += totalCost
		savings += tenantSavings
		fullGridCosts += fullGridCost
	}

	if totalConsumption > 0 {
		point.Building.SolarCoveragePercentage = clampPercentage(totalPVUsed / totalConsumption * 100)
	}

	landlordGridCost := gridImport * in.Rates.GridCostRate
	landlordFeedIn := gridExport * in.Rates.FeedInRate
	point.Financial = types.FinancialData{
		LandlordGridCost:      landlordGridCost,
		LandlordFeedInRevenue: landlordFeedIn,
		TenantTotalCosts:      tenantCosts,
		BuildingNetPosition:   landlordFeedIn - landlordGridCost,
		TotalMonthlySavings:   savings,
	}
	if fullGridCosts > 0 {
		point.Financial.CostReductionPercentage = savings / fullGridCosts * 100
	}

	return point, nil
}

// BaseFee returns the tenant's share of the monthly base fee for a single
// interval. A zero BaseFeeShare counts as a full share.
func BaseFee(tariff types.TenantTariff, contract types.TenantContract, divisor float64) float64 {
	if divisor <= 0 {
		return 0
	}
	share := contract.BaseFeeShare
	if share == 0 {
		share = 1
	}
	return tariff.BaseFeePerMonth * share / divisor
}

// Validate checks the input's preconditions and reports every violation.
func (in Input) Validate() error {
	var errs *multierror.Error
	check := func(name string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = multierror.Append(errs, fmt.Errorf("%w: %s is not a finite number", ErrInvalidInput, name))
		} else if v < 0 {
			errs = multierror.Append(errs, fmt.Errorf("%w: %s is negative (%g)", ErrInvalidInput, name, v))
		}
	}

	check("pv generation", in.PVGeneration)
	check("common area consumption", in.CommonAreaConsumption)
	check("landlord grid cost rate", in.Rates.GridCostRate)
	check("landlord feed-in rate", in.Rates.FeedInRate)
	if !(in.ProrateDivisor > 0) || math.IsInf(in.ProrateDivisor, 0) {
		errs = multierror.Append(errs, fmt.Errorf("%w: prorate divisor must be positive (%g)", ErrInvalidInput, in.ProrateDivisor))
	}

	if len(in.Tenants) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("%w: no tenants", ErrInvalidInput))
	}
	seen := make(map[string]bool, len(in.Tenants))
	for _, t := range in.Tenants {
		check(fmt.Sprintf("consumption of contract %q", t.Contract.ID), t.Consumption)
		if seen[t.Contract.ID] {
			errs = multierror.Append(errs, fmt.Errorf("%w: duplicate contract %q", ErrInvalidInput, t.Contract.ID))
		}
		seen[t.Contract.ID] = true
		if err := in.Tariffs.ValidateContract(t.Contract); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		tariff, _ := in.Tariffs.Lookup(t.Contract.TariffID)
		if err := ValidateTariff(tariff); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	// finite inputs can still overflow once summed or priced
	if errs == nil {
		total := in.CommonAreaConsumption
		var tenantCosts float64
		for _, t := range in.Tenants {
			tariff, _ := in.Tariffs.Lookup(t.Contract.TariffID)
			cost := t.Consumption*(tariff.PVPrice+tariff.GridPrice) + BaseFee(tariff, t.Contract, in.ProrateDivisor)
			check(fmt.Sprintf("cost of contract %q", t.Contract.ID), cost)
			total += t.Consumption
			tenantCosts += cost
		}
		check("total consumption", total)
		check("total tenant costs", tenantCosts)
		check("landlord grid cost", total*in.Rates.GridCostRate)
		check("landlord feed-in revenue", in.PVGeneration*in.Rates.FeedInRate)
	}

	return errs.ErrorOrNil()
}

func pointID(buildingID string, ts time.Time) string {
	return uuid.NewSHA1(pointNamespace, []byte(buildingID+"|"+ts.UTC().Format(time.RFC3339Nano))).String()
}

func clampPercentage(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}
