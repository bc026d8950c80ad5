// Package feed drives the billing engine on a timer: each tick reads the
// meters of every building, allocates the interval and keeps the result in a
// per-building sliding window.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/solarflow/solarflow/pkg/billing"
	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/meter"
	"github.com/solarflow/solarflow/pkg/publish"
	"github.com/solarflow/solarflow/pkg/storage"
	"github.com/solarflow/solarflow/pkg/types"
	"github.com/solarflow/solarflow/pkg/window"
)

const (
	DefaultRefresh    = 5 * time.Second
	defaultWindowSize = 48

	// subscriberBuffer is how many points a slow subscriber may lag behind
	// before points are dropped for it.
	subscriberBuffer = 16
)

// Feed owns the live window of every building.
type Feed struct {
	storage   storage.Database
	meters    *meter.Map
	publisher publish.Publisher

	refresh       time.Duration
	alignInterval bool
	backfill      int
	backfillStart time.Time
	buildings     []string
	now           func() time.Time

	mu      sync.Mutex
	windows map[string]*window.Window
	subs    map[int]chan types.EnergyDataPoint
	nextSub int
}

// New creates a feed. A nil publisher discards points.
func New(db storage.Database, meters *meter.Map, pub publish.Publisher) *Feed {
	if pub == nil {
		pub = publish.Noop{}
	}
	return &Feed{
		storage:   db,
		meters:    meters,
		publisher: pub,
		refresh:   DefaultRefresh,
		now:       time.Now,
		windows:   make(map[string]*window.Window),
		subs:      make(map[int]chan types.EnergyDataPoint),
	}
}

// config is the building configuration a tick needs.
type config struct {
	settings  types.Settings
	contracts []types.TenantContract
	tariffs   billing.Table
	source    meter.Source
}

func (f *Feed) loadConfig(ctx context.Context, buildingID string) (config, error) {
	settings, _, err := storage.GetSettingsWithMigration(ctx, f.storage, buildingID)
	if err != nil {
		return config{}, fmt.Errorf("failed to get settings: %w", err)
	}
	contracts, err := f.storage.ListContracts(ctx, buildingID)
	if err != nil {
		return config{}, fmt.Errorf("failed to list contracts: %w", err)
	}
	if len(contracts) == 0 {
		return config{}, fmt.Errorf("building %s has no contracts", buildingID)
	}
	if err := types.CheckCommonAreaMeter(settings.CommonAreaMeterID, contracts...); err != nil {
		return config{}, err
	}
	tariffs, err := f.storage.ListTariffs(ctx)
	if err != nil {
		return config{}, fmt.Errorf("failed to list tariffs: %w", err)
	}
	src, err := f.meters.Building(ctx, buildingID, settings)
	if err != nil {
		return config{}, err
	}
	return config{
		settings:  settings,
		contracts: contracts,
		tariffs:   billing.NewTable(tariffs...),
		source:    src,
	}, nil
}

func (c config) meterIDs() []string {
	ids := make([]string, len(c.contracts))
	for i, contract := range c.contracts {
		ids[i] = contract.MeterID
	}
	return ids
}

func (c config) prorateDivisor() float64 {
	if c.settings.ProrateDivisor > 0 {
		return c.settings.ProrateDivisor
	}
	return billing.DefaultProrateDivisor
}

func (c config) interval() time.Duration {
	if iv := c.settings.Interval(); iv > 0 {
		return iv
	}
	return 15 * time.Minute
}

// input maps a meter reading onto the engine input. A source that reports the
// common-area meter as a regular column overrides the separate reading.
func (c config) input(buildingID string, r types.MeterReading) billing.Input {
	in := billing.Input{
		BuildingID:            buildingID,
		Timestamp:             r.Timestamp,
		PVGeneration:          r.PVGeneration,
		CommonAreaConsumption: r.CommonAreaConsumption,
		Tenants:               make([]billing.TenantInput, len(c.contracts)),
		Tariffs:               c.tariffs,
		Rates:                 c.settings.LandlordRates,
		ProrateDivisor:        c.prorateDivisor(),
	}
	if v, ok := r.TenantConsumption[c.settings.CommonAreaMeterID]; ok && c.settings.CommonAreaMeterID != "" {
		in.CommonAreaConsumption = v
	}
	for i, contract := range c.contracts {
		in.Tenants[i] = billing.TenantInput{
			Contract:    contract,
			Consumption: r.TenantConsumption[contract.MeterID],
		}
	}
	return in
}

func (c config) compute(ctx context.Context, buildingID string, ts time.Time) (types.EnergyDataPoint, error) {
	r, err := c.source.Reading(ctx, ts, c.meterIDs())
	if err != nil {
		return types.EnergyDataPoint{}, fmt.Errorf("failed to read meters: %w", err)
	}
	p, err := billing.Allocate(c.input(buildingID, r))
	if err != nil {
		return types.EnergyDataPoint{}, fmt.Errorf("failed to allocate interval %s: %w", ts.Format(time.RFC3339), err)
	}
	return p, nil
}

// windowFor returns the building's window, creating or resizing it to size.
func (f *Feed) windowFor(buildingID string, size int) *window.Window {
	if size <= 0 {
		size = defaultWindowSize
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.windows[buildingID]
	if !ok {
		w = window.New(size)
		f.windows[buildingID] = w
	} else if w.Size() != size {
		w.Resize(size)
	}
	return w
}

// Window returns the building's window or nil if nothing was computed for it
// yet.
func (f *Feed) Window(buildingID string) *window.Window {
	buildingID = normalizeBuildingID(buildingID)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windows[buildingID]
}

// Tick computes the interval at ts for the building, pushes it into the
// window, publishes it and sends it to subscribers.
func (f *Feed) Tick(ctx context.Context, buildingID string, ts time.Time) (types.EnergyDataPoint, error) {
	buildingID = normalizeBuildingID(buildingID)
	cfg, err := f.loadConfig(ctx, buildingID)
	if err != nil {
		return types.EnergyDataPoint{}, err
	}
	if f.alignInterval {
		ts = ts.Truncate(cfg.interval())
	}
	p, err := cfg.compute(ctx, buildingID, ts)
	if err != nil {
		return types.EnergyDataPoint{}, err
	}
	f.windowFor(buildingID, cfg.settings.WindowSize).Push(p)

	if err := f.publisher.Publish(ctx, p); err != nil {
		// the window already holds the point
		log.Ctx(ctx).WarnContext(ctx, "failed to publish data point", slog.Any("error", err))
	}
	f.broadcast(p)
	return p, nil
}

// Backfill fills the building's window with n consecutive intervals starting
// at start. Nothing is published.
func (f *Feed) Backfill(ctx context.Context, buildingID string, start time.Time, n int) error {
	buildingID = normalizeBuildingID(buildingID)
	cfg, err := f.loadConfig(ctx, buildingID)
	if err != nil {
		return err
	}
	w := f.windowFor(buildingID, cfg.settings.WindowSize)
	interval := cfg.interval()
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := cfg.compute(ctx, buildingID, start.Add(time.Duration(i)*interval))
		if err != nil {
			return err
		}
		w.Push(p)
	}
	log.Ctx(ctx).DebugContext(ctx, "backfilled window", slog.Int("points", n), slog.Time("start", start))
	return nil
}

// Sample computes n intervals starting at start without touching the window
// or advancing the live meter source. A zero interval uses the building's
// configured interval.
func (f *Feed) Sample(ctx context.Context, buildingID string, start time.Time, interval time.Duration, n int) ([]types.EnergyDataPoint, error) {
	buildingID = normalizeBuildingID(buildingID)
	cfg, err := f.loadConfig(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	if interval == 0 {
		interval = cfg.interval()
	}
	src, err := f.meters.Sampler(ctx, buildingID, cfg.settings)
	if err != nil {
		return nil, err
	}
	readings, err := meter.Generate(ctx, src, start, interval, n, cfg.meterIDs())
	if err != nil {
		return nil, err
	}
	points := make([]types.EnergyDataPoint, 0, len(readings))
	for _, r := range readings {
		p, err := billing.Allocate(cfg.input(buildingID, r))
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// Location returns the building's configured time zone.
func (f *Feed) Location(ctx context.Context, buildingID string) (*time.Location, error) {
	buildingID = normalizeBuildingID(buildingID)
	settings, _, err := storage.GetSettingsWithMigration(ctx, f.storage, buildingID)
	if err != nil {
		return nil, err
	}
	return settings.LoadLocation()
}

// Subscribe returns a channel receiving every point computed by Tick. Points
// are dropped for subscribers that fall behind. cancel must be called to
// release the subscription; it closes the channel.
func (f *Feed) Subscribe() (<-chan types.EnergyDataPoint, func()) {
	ch := make(chan types.EnergyDataPoint, subscriberBuffer)
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// SubscriberCount returns the number of active subscriptions.
func (f *Feed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed) broadcast(p types.EnergyDataPoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

func (f *Feed) buildingIDs(ctx context.Context) []string {
	if len(f.buildings) > 0 {
		return f.buildings
	}
	buildings, err := f.storage.ListBuildings(ctx)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to list buildings, using default", slog.Any("error", err))
	}
	if len(buildings) == 0 {
		return []string{types.BuildingIDDefault}
	}
	ids := make([]string, len(buildings))
	for i, b := range buildings {
		ids[i] = b.ID
	}
	return ids
}

// Run backfills every building and then ticks every refresh period until ctx
// is done. Tick errors are logged and do not stop the loop.
func (f *Feed) Run(ctx context.Context) error {
	for _, id := range f.buildingIDs(ctx) {
		if f.backfill <= 0 {
			break
		}
		bctx := log.WithBuilding(ctx, id)
		start := f.backfillStart
		if start.IsZero() {
			start = f.defaultBackfillStart(bctx, id)
		}
		if err := f.Backfill(bctx, id, start, f.backfill); err != nil {
			log.Ctx(bctx).ErrorContext(bctx, "failed to backfill window", slog.Any("error", err))
		}
	}

	ticker := time.NewTicker(f.refresh)
	defer ticker.Stop()
	log.Ctx(ctx).InfoContext(ctx, "feed started", slog.Duration("refresh", f.refresh))
	for {
		select {
		case <-ctx.Done():
			log.Ctx(ctx).InfoContext(ctx, "feed stopped")
			return nil
		case <-ticker.C:
			now := f.now()
			for _, id := range f.buildingIDs(ctx) {
				bctx := log.WithBuilding(ctx, id)
				if _, err := f.Tick(bctx, id, now); err != nil {
					log.Ctx(bctx).ErrorContext(bctx, "feed tick failed", slog.Any("error", err))
				}
			}
		}
	}
}

// defaultBackfillStart ends the backfill one interval before now.
func (f *Feed) defaultBackfillStart(ctx context.Context, buildingID string) time.Time {
	interval := 15 * time.Minute
	if settings, _, err := storage.GetSettingsWithMigration(ctx, f.storage, buildingID); err == nil && settings.Interval() > 0 {
		interval = settings.Interval()
	}
	return f.now().Truncate(interval).Add(-time.Duration(f.backfill) * interval)
}

// Close closes the publisher.
func (f *Feed) Close() error {
	return f.publisher.Close()
}

func normalizeBuildingID(buildingID string) string {
	if buildingID == "" {
		return types.BuildingIDDefault
	}
	return buildingID
}
