package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/solarflow/solarflow/pkg/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collBuildings = "buildings"
	collSettings  = "settings"
	collTariffs   = "tariffs"
	collContracts = "contracts"
)

// MongoProvider implements Database using MongoDB. Buildings and tariffs are
// keyed by "id"; settings by "building_id"; contracts by both.
type MongoProvider struct {
	client   *mongo.Client
	db       *mongo.Database
	uri      string
	database string
	timeout  time.Duration
}

type settingsDoc struct {
	BuildingID string         `bson:"building_id"`
	Version    int            `bson:"version"`
	Settings   types.Settings `bson:"settings"`
}

type contractDoc struct {
	BuildingID           string `bson:"building_id"`
	types.TenantContract `bson:",inline"`
}

func configuredMongo() *MongoProvider {
	uri := lflag.String("mongodb-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	database := lflag.String("mongodb-database", "solarflow", "MongoDB database name")
	timeout := lflag.Duration("mongodb-timeout", 10*time.Second, "Timeout for connecting to MongoDB")

	m := &MongoProvider{}

	lflag.Do(func() {
		m.uri = *uri
		m.database = *database
		m.timeout = *timeout
	})

	return m
}

// Validate checks if the provider is properly configured.
func (m *MongoProvider) Validate() error {
	if m.uri == "" {
		return errors.New("mongodb-uri is required")
	}
	if m.database == "" {
		return errors.New("mongodb-database is required")
	}
	return nil
}

// Init connects to MongoDB and verifies the connection.
func (m *MongoProvider) Init(ctx context.Context) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.uri))
	if err != nil {
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}
	m.client = client
	m.db = client.Database(m.database)
	return nil
}

// Close disconnects the client.
func (m *MongoProvider) Close() error {
	if m.client != nil {
		return m.client.Disconnect(context.Background())
	}
	return nil
}

func (m *MongoProvider) upsert(ctx context.Context, coll string, filter bson.M, doc any) error {
	_, err := m.db.Collection(coll).UpdateOne(
		ctx,
		filter,
		bson.D{{Key: "$set", Value: doc}},
		options.Update().SetUpsert(true),
	)
	return err
}

// GetSettings implements Database.
func (m *MongoProvider) GetSettings(ctx context.Context, buildingID string) (types.Settings, int, error) {
	if buildingID == "" {
		return types.Settings{}, 0, fmt.Errorf("buildingID cannot be empty")
	}
	var doc settingsDoc
	err := m.db.Collection(collSettings).FindOne(ctx, bson.M{"building_id": buildingID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Settings{}, 0, nil
		}
		return types.Settings{}, 0, fmt.Errorf("failed to fetch settings: %w", err)
	}
	return doc.Settings, doc.Version, nil
}

// SetSettings implements Database.
func (m *MongoProvider) SetSettings(ctx context.Context, buildingID string, settings types.Settings, version int) error {
	if buildingID == "" {
		return fmt.Errorf("buildingID cannot be empty")
	}
	doc := settingsDoc{BuildingID: buildingID, Version: version, Settings: settings}
	if err := m.upsert(ctx, collSettings, bson.M{"building_id": buildingID}, doc); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// GetBuilding implements Database.
func (m *MongoProvider) GetBuilding(ctx context.Context, buildingID string) (types.Building, error) {
	var b types.Building
	err := m.db.Collection(collBuildings).FindOne(ctx, bson.M{"id": buildingID}).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Building{}, fmt.Errorf("%w: %s", ErrBuildingNotFound, buildingID)
		}
		return types.Building{}, fmt.Errorf("failed to get building %s: %w", buildingID, err)
	}
	return b, nil
}

// ListBuildings implements Database.
func (m *MongoProvider) ListBuildings(ctx context.Context) ([]types.Building, error) {
	var buildings []types.Building
	if err := m.findAll(ctx, collBuildings, bson.M{}, &buildings); err != nil {
		return nil, fmt.Errorf("failed to list buildings: %w", err)
	}
	return buildings, nil
}

// UpsertBuilding implements Database.
func (m *MongoProvider) UpsertBuilding(ctx context.Context, building types.Building) error {
	if building.ID == "" {
		return fmt.Errorf("building ID cannot be empty")
	}
	if err := m.upsert(ctx, collBuildings, bson.M{"id": building.ID}, building); err != nil {
		return fmt.Errorf("failed to upsert building %s: %w", building.ID, err)
	}
	return nil
}

// ListTariffs implements Database.
func (m *MongoProvider) ListTariffs(ctx context.Context) ([]types.TenantTariff, error) {
	var tariffs []types.TenantTariff
	if err := m.findAll(ctx, collTariffs, bson.M{}, &tariffs); err != nil {
		return nil, fmt.Errorf("failed to list tariffs: %w", err)
	}
	return tariffs, nil
}

// UpsertTariff implements Database.
func (m *MongoProvider) UpsertTariff(ctx context.Context, tariff types.TenantTariff) error {
	if tariff.ID == "" {
		return fmt.Errorf("tariff ID cannot be empty")
	}
	if err := m.upsert(ctx, collTariffs, bson.M{"id": tariff.ID}, tariff); err != nil {
		return fmt.Errorf("failed to upsert tariff %s: %w", tariff.ID, err)
	}
	return nil
}

// ListContracts implements Database.
func (m *MongoProvider) ListContracts(ctx context.Context, buildingID string) ([]types.TenantContract, error) {
	if buildingID == "" {
		return nil, fmt.Errorf("buildingID cannot be empty")
	}
	var docs []contractDoc
	if err := m.findAll(ctx, collContracts, bson.M{"building_id": buildingID}, &docs); err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	contracts := make([]types.TenantContract, len(docs))
	for i, d := range docs {
		contracts[i] = d.TenantContract
	}
	return contracts, nil
}

// UpsertContract implements Database.
func (m *MongoProvider) UpsertContract(ctx context.Context, buildingID string, contract types.TenantContract) error {
	if buildingID == "" {
		return fmt.Errorf("buildingID cannot be empty")
	}
	if contract.ID == "" {
		return fmt.Errorf("contract ID cannot be empty")
	}
	doc := contractDoc{BuildingID: buildingID, TenantContract: contract}
	if err := m.upsert(ctx, collContracts, bson.M{"building_id": buildingID, "id": contract.ID}, doc); err != nil {
		return fmt.Errorf("failed to upsert contract %s: %w", contract.ID, err)
	}
	return nil
}

func (m *MongoProvider) findAll(ctx context.Context, coll string, filter bson.M, out any) error {
	cur, err := m.db.Collection(coll).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}
