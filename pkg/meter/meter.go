package meter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/solarflow/solarflow/pkg/types"
)

// Source produces raw per-interval readings for a building. Implementations
// may measure or simulate; the billing engine does not care which.
type Source interface {
	// ApplySettings updates the source using the building's settings.
	ApplySettings(ctx context.Context, settings types.Settings) error

	// Reading returns the PV generation, the consumption of each of the given
	// tenant meters and the common-area consumption for the interval starting
	// at ts. All values are non-negative kWh.
	Reading(ctx context.Context, ts time.Time, meterIDs []string) (types.MeterReading, error)
}

// Map manages one Source per building.
type Map struct {
	mu      sync.Mutex
	sources map[string]Source
	newFn   func(buildingID string) Source
}

// NewMap creates a new meter Map. newFn creates the source for buildings that
// have not been seen before.
func NewMap(newFn func(buildingID string) Source) *Map {
	return &Map{
		sources: make(map[string]Source),
		newFn:   newFn,
	}
}

// Building returns the source for the given building, creating it if needed,
// with the settings applied.
func (m *Map) Building(ctx context.Context, buildingID string, settings types.Settings) (Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if buildingID == "" {
		buildingID = types.BuildingIDDefault
	}

	src, ok := m.sources[buildingID]
	if !ok {
		if m.newFn == nil {
			return nil, fmt.Errorf("no meter source for building %s", buildingID)
		}
		src = m.newFn(buildingID)
	}
	if err := src.ApplySettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to apply settings to meter source for building %s: %w", buildingID, err)
	}
	m.sources[buildingID] = src
	return src, nil
}

// Sampler returns a fresh source for the building with the settings applied.
// It shares no state with the building's live source, so drawing from it does
// not change the live series. Buildings whose source was set with SetSource
// and that have no factory get that source back.
func (m *Map) Sampler(ctx context.Context, buildingID string, settings types.Settings) (Source, error) {
	if buildingID == "" {
		buildingID = types.BuildingIDDefault
	}

	m.mu.Lock()
	newFn := m.newFn
	src, ok := m.sources[buildingID]
	m.mu.Unlock()

	switch {
	case newFn != nil:
		src = newFn(buildingID)
	case !ok:
		return nil, fmt.Errorf("no meter source for building %s", buildingID)
	}
	if err := src.ApplySettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to apply settings to meter source for building %s: %w", buildingID, err)
	}
	return src, nil
}

// SetSource sets the source for a specific building. This is primarily used for testing.
func (m *Map) SetSource(buildingID string, src Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[buildingID] = src
}

// Generate reads n consecutive intervals starting at start.
func Generate(ctx context.Context, src Source, start time.Time, interval time.Duration, n int, meterIDs []string) ([]types.MeterReading, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive: %s", interval)
	}
	readings := make([]types.MeterReading, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := src.Reading(ctx, start.Add(time.Duration(i)*interval), meterIDs)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, nil
}
