package metrics

import (
	"time"

	"github.com/solarflow/solarflow/pkg/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultOptimalHours is how many optimal usage slots the dashboard shows.
const DefaultOptimalHours = 3

// Aggregate summarizes the points for the dashboard. Grid independence is the
// mean solar coverage over the points; times are labelled in loc.
func Aggregate(points []types.EnergyDataPoint, period types.MetricsPeriod, loc *time.Location) types.AggregatedMetrics {
	m := types.AggregatedMetrics{
		Period:              period,
		PeakConsumptionTime: PeakConsumptionTime(points, loc),
		OptimalUsageHours:   OptimalUsageHours(points, loc, DefaultOptimalHours),
	}
	if len(points) == 0 {
		return m
	}

	pv := make([]float64, len(points))
	consumption := make([]float64, len(points))
	coverage := make([]float64, len(points))
	savings := make([]float64, len(points))
	feedIn := make([]float64, len(points))
	for i, p := range points {
		pv[i] = p.Building.PVGeneration
		consumption[i] = p.Building.TotalConsumption
		coverage[i] = p.Building.SolarCoveragePercentage
		for _, t := range p.Tenants {
			savings[i] += t.Savings
		}
		feedIn[i] = p.Financial.LandlordFeedInRevenue
	}

	m.TotalPVGeneration = floats.Sum(pv)
	m.TotalConsumption = floats.Sum(consumption)
	m.GridIndependencePercentage = stat.Mean(coverage, nil)
	m.CombinedTenantSavings = floats.Sum(savings)
	m.FeedInRevenue = floats.Sum(feedIn)
	return m
}

// PeakConsumptionTime returns the HH:MM label of the point with the highest
// total consumption, or "N/A" when there are no points. Ties go to the
// earliest point.
func PeakConsumptionTime(points []types.EnergyDataPoint, loc *time.Location) string {
	if len(points) == 0 {
		return "N/A"
	}
	consumption := make([]float64, len(points))
	for i, p := range points {
		consumption[i] = p.Building.TotalConsumption
	}
	return label(points[floats.MaxIdx(consumption)].Timestamp, loc)
}

// OptimalUsageHours returns the labels of the first limit points in which PV
// generation exceeded total consumption.
func OptimalUsageHours(points []types.EnergyDataPoint, loc *time.Location, limit int) []string {
	hours := []string{}
	for _, p := range points {
		if len(hours) >= limit {
			break
		}
		if p.Building.PVGeneration > p.Building.TotalConsumption {
			hours = append(hours, label(p.Timestamp, loc))
		}
	}
	return hours
}

// TenantTotals sums the allocations of one contract over the points. Points
// that do not include the contract are skipped.
func TenantTotals(points []types.EnergyDataPoint, contractID string) types.TenantTotals {
	totals := types.TenantTotals{ContractID: contractID}
	for _, p := range points {
		t, ok := p.Tenant(contractID)
		if !ok {
			continue
		}
		totals.Intervals++
		totals.Consumption += t.Consumption
		totals.PVShare += t.PVShare
		totals.GridShare += t.GridShare
		totals.PVCost += t.PVCost
		totals.GridCost += t.GridCost
		totals.BaseFee += t.BaseFee
		totals.TotalCost += t.TotalCost
		totals.Savings += t.Savings
	}
	return totals
}

func label(ts time.Time, loc *time.Location) string {
	if loc != nil {
		ts = ts.In(loc)
	}
	return ts.Format("15:04")
}
