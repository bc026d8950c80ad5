package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/levenlabs/go-lflag"
	"github.com/solarflow/solarflow/pkg/types"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrBuildingNotFound = fmt.Errorf("building %w", ErrNotFound)
)

// Database defines the interface for persisting the static configuration the
// engine runs on. Computed data points are never persisted.
type Database interface {
	// Settings
	GetSettings(ctx context.Context, buildingID string) (types.Settings, int, error)
	SetSettings(ctx context.Context, buildingID string, settings types.Settings, version int) error

	// Buildings
	GetBuilding(ctx context.Context, buildingID string) (types.Building, error)
	ListBuildings(ctx context.Context) ([]types.Building, error)
	UpsertBuilding(ctx context.Context, building types.Building) error

	// Tariffs are shared by all buildings.
	ListTariffs(ctx context.Context) ([]types.TenantTariff, error)
	UpsertTariff(ctx context.Context, tariff types.TenantTariff) error

	// Contracts
	ListContracts(ctx context.Context, buildingID string) ([]types.TenantContract, error)
	UpsertContract(ctx context.Context, buildingID string, contract types.TenantContract) error

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore, mongodb)")

	var p struct{ Database }

	fs := configuredFirestore()
	mg := configuredMongo()

	lflag.Do(func() {
		ctx := context.Background()
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(ctx); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "mongodb":
			if err := mg.Validate(); err != nil {
				panic(fmt.Sprintf("mongodb validation failed: %v", err))
			}
			p.Database = mg
			if err := mg.Init(ctx); err != nil {
				panic(fmt.Sprintf("mongodb init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
