package meter

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/solarflow/solarflow/pkg/types"
)

const (
	defaultCapacityKW         = 3.5
	defaultCapacityVarianceKW = 0.5

	// minTenantConsumptionKWH keeps simulated tenant meters from reading
	// exactly zero.
	minTenantConsumptionKWH = 0.001
)

// Profile scales the residential consumption pattern for one meter: the
// meter reads pattern x U(Base, Base+Span).
type Profile struct {
	Base float64
	Span float64
}

// DefaultProfiles are the two demo apartments.
var DefaultProfiles = map[string]Profile{
	"we1_consumption_kWh": {Base: 0.6, Span: 0.2},
	"we2_consumption_kWh": {Base: 0.4, Span: 0.3},
}

var defaultProfile = Profile{Base: 0.5, Span: 0.25}

// Simulated produces synthetic readings from a time-of-day/seasonal solar
// curve and a time-of-day/day-of-week consumption curve, both perturbed by
// an injected random source.
type Simulated struct {
	CapacityKW         float64
	CapacityVarianceKW float64
	Profiles           map[string]Profile

	mu       sync.Mutex
	rng      *rand.Rand
	location *time.Location
}

// NewSimulated creates a simulated source seeded with seed.
func NewSimulated(seed int64) *Simulated {
	return NewSimulatedWithRand(rand.New(rand.NewSource(seed)))
}

// NewSimulatedWithRand creates a simulated source drawing from rng.
func NewSimulatedWithRand(rng *rand.Rand) *Simulated {
	return &Simulated{
		CapacityKW:         defaultCapacityKW,
		CapacityVarianceKW: defaultCapacityVarianceKW,
		Profiles:           DefaultProfiles,
		rng:                rng,
	}
}

// ApplySettings sets the location used to evaluate time of day.
func (s *Simulated) ApplySettings(ctx context.Context, settings types.Settings) error {
	loc, err := settings.LoadLocation()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.location = loc
	s.mu.Unlock()
	return nil
}

// Reading implements Source.
func (s *Simulated) Reading(ctx context.Context, ts time.Time, meterIDs []string) (types.MeterReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	local := ts
	if s.location != nil {
		local = ts.In(s.location)
	}
	hour := local.Hour()

	irradiance := SolarIrradiance(hour, local.YearDay(), s.rng)
	pv := irradiance * (s.CapacityKW + s.rng.Float64()*s.CapacityVarianceKW)

	pattern := ConsumptionPattern(hour, local.Weekday(), s.rng)

	r := types.MeterReading{
		Timestamp:         ts,
		PVGeneration:      pv,
		TenantConsumption: make(map[string]float64, len(meterIDs)),
	}
	for _, id := range meterIDs {
		profile, ok := s.Profiles[id]
		if !ok {
			profile = defaultProfile
		}
		c := pattern.Residential * (profile.Base + s.rng.Float64()*profile.Span)
		r.TenantConsumption[id] = math.Max(minTenantConsumptionKWH, c)
	}
	r.CommonAreaConsumption = pattern.Common * (0.8 + s.rng.Float64()*0.4)

	return r, nil
}

// SolarIrradiance returns the relative irradiance (0..~1.1) for the hour of
// the day and day of the year. It peaks at solar noon and around the summer
// solstice, with random cloud cover.
func SolarIrradiance(hour int, dayOfYear int, rng *rand.Rand) float64 {
	if hour < 6 || hour > 20 {
		return 0
	}

	const solarNoon = 12
	hourFromNoon := math.Abs(float64(hour - solarNoon))
	seasonalFactor := 0.8 + 0.2*math.Cos(float64(dayOfYear-172)*2*math.Pi/365)

	base := math.Max(0, math.Cos(hourFromNoon*math.Pi/12)) * seasonalFactor

	// 0-30% cloud cover
	weatherFactor := 1 - rng.Float64()*0.3

	return base * weatherFactor * (0.9 + rng.Float64()*0.2)
}

// Pattern is the expected consumption (kWh per interval) of an average
// apartment and of the common areas.
type Pattern struct {
	Residential float64
	Common      float64
}

// ConsumptionPattern returns the consumption pattern for the hour of the day
// and day of the week with a shared random variance of +-20%.
func ConsumptionPattern(hour int, weekday time.Weekday, rng *rand.Rand) Pattern {
	weekend := weekday == time.Saturday || weekday == time.Sunday

	residential := 0.3
	common := 0.05

	switch {
	case hour >= 6 && hour <= 9:
		residential = 0.8 + pick(weekend, 0.2, 0.4)
	case hour >= 12 && hour <= 14:
		residential = 0.5 + pick(weekend, 0.4, 0.1)
	case hour >= 17 && hour <= 22:
		residential = 1.0 + pick(weekend, 0.3, 0.2)
	case hour >= 23 || hour <= 5:
		residential = 0.2
	}

	switch {
	case hour >= 18 && hour <= 23:
		common = 0.15
	case hour >= 6 && hour <= 18:
		common = 0.08
	}

	variance := 0.8 + rng.Float64()*0.4
	return Pattern{
		Residential: residential * variance,
		Common:      common * variance,
	}
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}
