package types

import "time"

const (
	TariffModelTwoPrice = "two_price"
	CurrencyEUR         = "EUR"
	BillingCycleYearly  = "yearly"
)

// TenantTariff is the pricing plan applied to a tenant.
type TenantTariff struct {
	ID              string  `json:"tenant_tariff_id" bson:"id" validate:"required"`
	Model           string  `json:"model" bson:"model" validate:"omitempty,oneof=two_price"`
	PVPrice         float64 `json:"pv_price_eur_per_kWh" bson:"pv_price" validate:"gte=0"`
	GridPrice       float64 `json:"grid_price_eur_per_kWh" bson:"grid_price" validate:"gte=0"`
	BaseFeePerMonth float64 `json:"base_fee_eur_per_month" bson:"base_fee_per_month" validate:"gte=0"`
	Currency        string  `json:"currency" bson:"currency" validate:"omitempty,oneof=EUR"`
	Notes           string  `json:"notes,omitempty" bson:"notes,omitempty"`
}

// TenantContract binds a tenant to a meter and a tariff.
type TenantContract struct {
	ID            string  `json:"contract_id" bson:"id" validate:"required"`
	TenantName    string  `json:"tenant_name" bson:"tenant_name"`
	MeterID       string  `json:"meter_column" bson:"meter_id" validate:"required"`
	ContractStart string  `json:"contract_start,omitempty" bson:"contract_start,omitempty"`
	ContractEnd   string  `json:"contract_end,omitempty" bson:"contract_end,omitempty"`
	BillingCycle  string  `json:"billing_cycle,omitempty" bson:"billing_cycle,omitempty" validate:"omitempty,oneof=yearly"`
	BaseFeeShare  float64 `json:"base_fee_share" bson:"base_fee_share" validate:"gte=0"`
	Notes         string  `json:"notes,omitempty" bson:"notes,omitempty"`
	TariffID      string  `json:"tenant_tariff_id" bson:"tariff_id" validate:"required"`
}

// LandlordRates are the landlord's wholesale grid purchase price and the
// feed-in compensation, both in EUR per kWh. They are independent of the
// retail prices charged to tenants.
type LandlordRates struct {
	GridCostRate float64 `json:"grid_cost_eur_per_kWh" bson:"grid_cost_rate"`
	FeedInRate   float64 `json:"feedin_price_eur_per_kWh" bson:"feedin_rate"`
}

// MeterReading is one interval of raw input produced by an upstream sampler.
type MeterReading struct {
	Timestamp             time.Time          `json:"timestamp"`
	PVGeneration          float64            `json:"pv_generation"`
	TenantConsumption     map[string]float64 `json:"tenant_consumption"` // keyed by meter ID
	CommonAreaConsumption float64            `json:"common_area_consumption"`
}

// TenantData is one tenant's allocation result within an EnergyDataPoint.
type TenantData struct {
	ContractID  string  `json:"contract_id"`
	Consumption float64 `json:"consumption"`
	PVShare     float64 `json:"pv_share"`
	GridShare   float64 `json:"grid_share"`
	PVCost      float64 `json:"pv_cost"`
	GridCost    float64 `json:"grid_cost"`
	BaseFee     float64 `json:"base_fee"`
	TotalCost   float64 `json:"total_cost"`
	Savings     float64 `json:"savings"`
}

// BuildingData is the building-level physical energy flow for an interval.
type BuildingData struct {
	TotalConsumption        float64 `json:"total_consumption"`
	GeneralConsumption      float64 `json:"general_consumption"`
	PVGeneration            float64 `json:"pv_generation"`
	GridImport              float64 `json:"grid_import"`
	GridExport              float64 `json:"grid_export"`
	SolarCoveragePercentage float64 `json:"solar_coverage_percentage"` // 0-100
}

// FinancialData is the landlord-side financial view of an interval.
type FinancialData struct {
	LandlordGridCost        float64 `json:"landlord_grid_cost"`
	LandlordFeedInRevenue   float64 `json:"landlord_feedin_revenue"`
	TenantTotalCosts        float64 `json:"tenant_total_costs"`
	BuildingNetPosition     float64 `json:"building_net_position"`
	TotalMonthlySavings     float64 `json:"total_monthly_savings"`
	CostReductionPercentage float64 `json:"cost_reduction_percentage"`
}

// EnergyDataPoint is the fully apportioned result for one interval. Tenants
// are in the same order as the tenant list the point was computed from.
type EnergyDataPoint struct {
	ID         string        `json:"id"`
	BuildingID string        `json:"building_id,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	Tenants    []TenantData  `json:"tenants"`
	Building   BuildingData  `json:"building"`
	Financial  FinancialData `json:"financial"`
}

// Tenant returns the allocation for the given contract.
func (p EnergyDataPoint) Tenant(contractID string) (TenantData, bool) {
	for _, t := range p.Tenants {
		if t.ContractID == contractID {
			return t, true
		}
	}
	return TenantData{}, false
}

// MetricsPeriod is the aggregation period shown on the dashboard.
type MetricsPeriod string

const (
	MetricsPeriodDaily   MetricsPeriod = "daily"
	MetricsPeriodWeekly  MetricsPeriod = "weekly"
	MetricsPeriodMonthly MetricsPeriod = "monthly"
	MetricsPeriodYearly  MetricsPeriod = "yearly"
)

// AggregatedMetrics summarizes a series of data points.
type AggregatedMetrics struct {
	Period                     MetricsPeriod `json:"period"`
	TotalPVGeneration          float64       `json:"total_pv_generation"`
	TotalConsumption           float64       `json:"total_consumption"`
	GridIndependencePercentage float64       `json:"grid_independence_percentage"`
	CombinedTenantSavings      float64       `json:"combined_tenant_savings"`
	FeedInRevenue              float64       `json:"feed_in_revenue"`
	PeakConsumptionTime        string        `json:"peak_consumption_time"`
	OptimalUsageHours          []string      `json:"optimal_usage_hours"`
}

// TenantTotals sums one tenant's allocations over a series of data points.
type TenantTotals struct {
	ContractID  string  `json:"contract_id"`
	Intervals   int     `json:"intervals"`
	Consumption float64 `json:"consumption"`
	PVShare     float64 `json:"pv_share"`
	GridShare   float64 `json:"grid_share"`
	PVCost      float64 `json:"pv_cost"`
	GridCost    float64 `json:"grid_cost"`
	BaseFee     float64 `json:"base_fee"`
	TotalCost   float64 `json:"total_cost"`
	Savings     float64 `json:"savings"`
}
