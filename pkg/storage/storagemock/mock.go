package storagemock

import (
	"context"

	"github.com/solarflow/solarflow/pkg/storage"
	"github.com/solarflow/solarflow/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetSettings(ctx context.Context, buildingID string) (types.Settings, int, error) {
	args := m.Called(ctx, buildingID)
	// return empty if not specified, or checks args
	if len(args) > 0 {
		return args.Get(0).(types.Settings), args.Int(1), args.Error(2)
	}
	return types.Settings{}, 0, nil
}

func (m *MockDatabase) SetSettings(ctx context.Context, buildingID string, settings types.Settings, version int) error {
	args := m.Called(ctx, buildingID, settings, version)
	return args.Error(0)
}

func (m *MockDatabase) GetBuilding(ctx context.Context, buildingID string) (types.Building, error) {
	args := m.Called(ctx, buildingID)
	return args.Get(0).(types.Building), args.Error(1)
}

func (m *MockDatabase) ListBuildings(ctx context.Context) ([]types.Building, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Building), args.Error(1)
}

func (m *MockDatabase) UpsertBuilding(ctx context.Context, building types.Building) error {
	args := m.Called(ctx, building)
	return args.Error(0)
}

func (m *MockDatabase) ListTariffs(ctx context.Context) ([]types.TenantTariff, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.TenantTariff), args.Error(1)
}

func (m *MockDatabase) UpsertTariff(ctx context.Context, tariff types.TenantTariff) error {
	args := m.Called(ctx, tariff)
	return args.Error(0)
}

func (m *MockDatabase) ListContracts(ctx context.Context, buildingID string) ([]types.TenantContract, error) {
	args := m.Called(ctx, buildingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.TenantContract), args.Error(1)
}

func (m *MockDatabase) UpsertContract(ctx context.Context, buildingID string, contract types.TenantContract) error {
	args := m.Called(ctx, buildingID, contract)
	return args.Error(0)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
