package meter

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/solarflow/solarflow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var demoMeters = []string{"we1_consumption_kWh", "we2_consumption_kWh"}

func TestSolarIrradiance(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	t.Run("night is dark", func(t *testing.T) {
		for _, h := range []int{0, 3, 5, 21, 23} {
			assert.Equal(t, 0.0, SolarIrradiance(h, 172, rng), "hour %d", h)
		}
	})

	t.Run("bounded and peaks at noon", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			noon := SolarIrradiance(12, 172, rng)
			assert.Greater(t, noon, 0.0)
			assert.LessOrEqual(t, noon, 1.1)
			// at the solstice the noon minimum (0.7*0.9) beats the 8am maximum
			morning := SolarIrradiance(8, 172, rng)
			assert.Less(t, morning, noon+0.5)
		}
		assert.Equal(t, 0.0, SolarIrradiance(19, 172, rng), "cosine curve is clipped after 18h")
	})

	t.Run("winter is weaker than summer", func(t *testing.T) {
		var summer, winter float64
		for i := 0; i < 200; i++ {
			summer += SolarIrradiance(12, 172, rng)
			winter += SolarIrradiance(12, 355, rng)
		}
		assert.Greater(t, summer, winter)
	})
}

func TestConsumptionPattern(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	tests := []struct {
		hour        int
		weekday     time.Weekday
		residential float64
		common      float64
	}{
		{7, time.Monday, 1.2, 0.08},
		{7, time.Saturday, 1.0, 0.08},
		{13, time.Tuesday, 0.6, 0.08},
		{13, time.Sunday, 0.9, 0.08},
		{19, time.Wednesday, 1.2, 0.15},
		{19, time.Saturday, 1.3, 0.15},
		{23, time.Thursday, 0.2, 0.15},
		{3, time.Friday, 0.2, 0.05},
		{10, time.Friday, 0.3, 0.08},
	}
	for _, tt := range tests {
		p := ConsumptionPattern(tt.hour, tt.weekday, rng)
		assert.InDelta(t, tt.residential, p.Residential, tt.residential*0.2+1e-9, "hour %d %s", tt.hour, tt.weekday)
		assert.InDelta(t, tt.common, p.Common, tt.common*0.2+1e-9, "hour %d %s", tt.hour, tt.weekday)
		// shared variance keeps the ratio exact
		assert.InDelta(t, tt.residential/tt.common, p.Residential/p.Common, 1e-9)
	}
}

func TestSimulatedReading(t *testing.T) {
	ctx := context.Background()
	s := NewSimulated(7)
	require.NoError(t, s.ApplySettings(ctx, types.Settings{Location: "Europe/Berlin"}))

	start := time.Date(2025, 8, 4, 14, 0, 0, 0, time.UTC)
	readings, err := Generate(ctx, s, start, 15*time.Minute, 96, append(demoMeters, "unknown"))
	require.NoError(t, err)
	require.Len(t, readings, 96)

	for i, r := range readings {
		assert.Equal(t, start.Add(time.Duration(i)*15*time.Minute), r.Timestamp)
		assert.GreaterOrEqual(t, r.PVGeneration, 0.0)
		assert.GreaterOrEqual(t, r.CommonAreaConsumption, 0.0)
		require.Len(t, r.TenantConsumption, 3)
		for id, c := range r.TenantConsumption {
			assert.GreaterOrEqual(t, c, minTenantConsumptionKWH, id)
		}
		hour := r.Timestamp.In(s.location).Hour()
		if hour < 6 || hour > 18 {
			assert.Equal(t, 0.0, r.PVGeneration, "hour %d", hour)
		}
	}
}

func TestSimulatedDeterministic(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)

	a, err := Generate(ctx, NewSimulated(99), start, time.Hour, 24, demoMeters)
	require.NoError(t, err)
	b, err := Generate(ctx, NewSimulated(99), start, time.Hour, 24, demoMeters)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Generate(ctx, NewSimulated(100), start, time.Hour, 24, demoMeters)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGenerateErrors(t *testing.T) {
	ctx := context.Background()
	_, err := Generate(ctx, NewSimulated(1), time.Now(), 0, 4, demoMeters)
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Generate(cancelled, NewSimulated(1), time.Now(), time.Minute, 4, demoMeters)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMap(t *testing.T) {
	ctx := context.Background()

	t.Run("creates per building", func(t *testing.T) {
		var created []string
		m := NewMap(func(buildingID string) Source {
			created = append(created, buildingID)
			return NewSimulated(1)
		})
		s1, err := m.Building(ctx, "b1", types.Settings{})
		require.NoError(t, err)
		s2, err := m.Building(ctx, "b1", types.Settings{})
		require.NoError(t, err)
		assert.Same(t, s1, s2)

		_, err = m.Building(ctx, "", types.Settings{})
		require.NoError(t, err)
		assert.Equal(t, []string{"b1", types.BuildingIDDefault}, created)
	})

	t.Run("invalid settings", func(t *testing.T) {
		m := NewMap(func(string) Source { return NewSimulated(1) })
		_, err := m.Building(ctx, "b1", types.Settings{Location: "Nowhere/Land"})
		assert.ErrorContains(t, err, "failed to apply settings")
	})

	t.Run("unconfigured", func(t *testing.T) {
		m := NewMap(nil)
		_, err := m.Building(ctx, "b1", types.Settings{})
		assert.Error(t, err)

		m.SetSource("b1", NewSimulated(1))
		_, err = m.Building(ctx, "b1", types.Settings{})
		assert.NoError(t, err)
	})
}

func TestSampler(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 8, 4, 14, 0, 0, 0, time.UTC)
	m := NewMap(func(string) Source { return NewSimulated(5) })

	live, err := m.Building(ctx, "b1", types.Settings{})
	require.NoError(t, err)
	first, err := live.Reading(ctx, start, demoMeters)
	require.NoError(t, err)

	sampler, err := m.Sampler(ctx, "b1", types.Settings{})
	require.NoError(t, err)
	assert.NotSame(t, live, sampler)
	sampled, err := Generate(ctx, sampler, start, 15*time.Minute, 2, demoMeters)
	require.NoError(t, err)
	// a sampler starts from the building's seed
	assert.Equal(t, first, sampled[0])

	// the live stream continues as if no sample was drawn
	reference := NewSimulated(5)
	_, err = reference.Reading(ctx, start, demoMeters)
	require.NoError(t, err)
	want, err := reference.Reading(ctx, start.Add(15*time.Minute), demoMeters)
	require.NoError(t, err)
	got, err := live.Reading(ctx, start.Add(15*time.Minute), demoMeters)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	t.Run("fixed source", func(t *testing.T) {
		m := NewMap(nil)
		src := NewSimulated(1)
		m.SetSource("b1", src)
		got, err := m.Sampler(ctx, "b1", types.Settings{})
		require.NoError(t, err)
		assert.Same(t, src, got)

		_, err = m.Sampler(ctx, "b2", types.Settings{})
		assert.Error(t, err)
	})

	t.Run("invalid settings", func(t *testing.T) {
		_, err := m.Sampler(ctx, "b1", types.Settings{Location: "Nowhere/Land"})
		assert.ErrorContains(t, err, "failed to apply settings")
	})
}

func TestBuildingSeed(t *testing.T) {
	assert.NotEqual(t, buildingSeed(1, "a"), buildingSeed(1, "b"))
	assert.Equal(t, buildingSeed(1, "a"), buildingSeed(1, "a"))
}
