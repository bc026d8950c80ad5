package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateSettings(t *testing.T) {
	t.Run("v1: initial defaults", func(t *testing.T) {
		s, changed, err := MigrateSettings(Settings{}, 0)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, 15, s.IntervalMinutes)
		assert.Equal(t, 2880.0, s.ProrateDivisor)
		assert.Equal(t, 48, s.WindowSize)
	})

	t.Run("v1 to v2: landlord rates", func(t *testing.T) {
		s, changed, err := MigrateSettings(Settings{IntervalMinutes: 15}, 1)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, 0.3351, s.LandlordRates.GridCostRate)
		assert.Equal(t, 0.08, s.LandlordRates.FeedInRate)
		assert.Equal(t, 15, s.IntervalMinutes)
	})

	t.Run("v2 to v3: keeps configured location", func(t *testing.T) {
		s, changed, err := MigrateSettings(Settings{Location: "Europe/Vienna"}, 2)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, "Europe/Vienna", s.Location)
		assert.Equal(t, "general_consumption_kWh", s.CommonAreaMeterID)
	})

	t.Run("existing values are not overwritten", func(t *testing.T) {
		old := Settings{
			IntervalMinutes: 60,
			ProrateDivisor:  720,
			WindowSize:      24,
			LandlordRates:   LandlordRates{GridCostRate: 0.3, FeedInRate: 0.1},
		}
		s, _, err := MigrateSettings(old, 0)
		require.NoError(t, err)
		assert.Equal(t, 60, s.IntervalMinutes)
		assert.Equal(t, 720.0, s.ProrateDivisor)
		assert.Equal(t, 24, s.WindowSize)
		assert.Equal(t, old.LandlordRates, s.LandlordRates)
	})

	t.Run("no change: current version", func(t *testing.T) {
		current := Settings{
			IntervalMinutes: 15,
			Location:        "Europe/Berlin",
		}
		s, changed, err := MigrateSettings(current, CurrentSettingsVersion)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, current, s)
	})
}

func TestSettingsInterval(t *testing.T) {
	assert.Equal(t, 15*time.Minute, Settings{IntervalMinutes: 15}.Interval())
}

func TestSettingsLoadLocation(t *testing.T) {
	loc, err := Settings{}.LoadLocation()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = Settings{Location: "Europe/Berlin"}.LoadLocation()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	_, err = Settings{Location: "Not/AZone"}.LoadLocation()
	assert.Error(t, err)
}

func TestCheckCommonAreaMeter(t *testing.T) {
	contracts := []TenantContract{
		{ID: "CUST_WE1_2025", MeterID: "we1_consumption_kWh"},
		{ID: "CUST_WE2_2025", MeterID: "we2_consumption_kWh"},
	}
	assert.NoError(t, CheckCommonAreaMeter("general_consumption_kWh", contracts...))
	assert.NoError(t, CheckCommonAreaMeter("", contracts...))
	assert.EqualError(t, CheckCommonAreaMeter("we2_consumption_kWh", contracts...),
		"contract CUST_WE2_2025 uses the common-area meter we2_consumption_kWh")
}

func TestEnergyDataPointTenant(t *testing.T) {
	p := EnergyDataPoint{
		Tenants: []TenantData{
			{ContractID: "a", Consumption: 1},
			{ContractID: "b", Consumption: 2},
		},
	}
	td, ok := p.Tenant("b")
	require.True(t, ok)
	assert.Equal(t, 2.0, td.Consumption)

	_, ok = p.Tenant("c")
	assert.False(t, ok)
}
