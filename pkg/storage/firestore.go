package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements Database using Google Cloud Firestore.
// Every document stores its value as a JSON string in the "json" field.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// project ID may be empty and detected from the environment
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getCollection(buildingID, name string) (*firestore.CollectionRef, error) {
	if buildingID == "" {
		return nil, fmt.Errorf("buildingID cannot be empty")
	}
	return f.client.Collection("buildings").Doc(buildingID).Collection(name), nil
}

// decodeJSON unmarshals the "json" field of doc into v.
func decodeJSON(ctx context.Context, doc *firestore.DocumentSnapshot, kind string, v any) error {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, kind+" doc missing json", slog.String("docID", doc.Ref.ID), slog.Any("err", err))
		return fmt.Errorf("%s document %s missing 'json' field: %w", kind, doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, kind+" doc json not string", slog.String("docID", doc.Ref.ID))
		return fmt.Errorf("%s document %s 'json' field is not a string", kind, doc.Ref.ID)
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal "+kind, slog.String("docID", doc.Ref.ID), slog.Any("err", err))
		return fmt.Errorf("failed to unmarshal %s (id=%s): %w", kind, doc.Ref.ID, err)
	}
	return nil
}

// setJSON stores v as a JSON blob with optional extra fields.
func setJSON(ctx context.Context, ref *firestore.DocumentRef, v any, extra map[string]interface{}) error {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", ref.ID, err)
	}
	data := map[string]interface{}{
		"json": string(jsonBytes),
	}
	for k, v := range extra {
		data[k] = v
	}
	_, err = ref.Set(ctx, data)
	return err
}

// GetSettings retrieves the building's configuration from the "config/settings" document.
func (f *FirestoreProvider) GetSettings(ctx context.Context, buildingID string) (types.Settings, int, error) {
	coll, err := f.getCollection(buildingID, "config")
	if err != nil {
		return types.Settings{}, 0, err
	}
	doc, err := coll.Doc("settings").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			// zero settings at version 0 are migrated by the caller
			return types.Settings{}, 0, nil
		}
		return types.Settings{}, 0, fmt.Errorf("failed to fetch settings doc: %w", err)
	}

	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			version = int(vInt)
		}
	}

	var s types.Settings
	if err := decodeJSON(ctx, doc, "settings", &s); err != nil {
		return types.Settings{}, 0, err
	}
	return s, version, nil
}

// SetSettings saves the building's configuration to the "config/settings" document.
func (f *FirestoreProvider) SetSettings(ctx context.Context, buildingID string, settings types.Settings, version int) error {
	coll, err := f.getCollection(buildingID, "config")
	if err != nil {
		return err
	}
	if err := setJSON(ctx, coll.Doc("settings"), settings, map[string]interface{}{"version": version}); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// GetBuilding retrieves a building from the "buildings" collection.
func (f *FirestoreProvider) GetBuilding(ctx context.Context, buildingID string) (types.Building, error) {
	doc, err := f.client.Collection("buildings").Doc(buildingID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Building{}, fmt.Errorf("%w: %s", ErrBuildingNotFound, buildingID)
		}
		return types.Building{}, fmt.Errorf("failed to get building %s: %w", buildingID, err)
	}
	var b types.Building
	if err := decodeJSON(ctx, doc, "building", &b); err != nil {
		return types.Building{}, err
	}
	return b, nil
}

// ListBuildings retrieves all buildings ordered by ID.
func (f *FirestoreProvider) ListBuildings(ctx context.Context) ([]types.Building, error) {
	iter := f.client.Collection("buildings").OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var buildings []types.Building
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating buildings: %w", err)
		}
		var b types.Building
		if err := decodeJSON(ctx, doc, "building", &b); err != nil {
			return nil, err
		}
		buildings = append(buildings, b)
	}
	return buildings, nil
}

// UpsertBuilding creates or replaces a building document.
func (f *FirestoreProvider) UpsertBuilding(ctx context.Context, building types.Building) error {
	if building.ID == "" {
		return fmt.Errorf("building ID cannot be empty")
	}
	// merge so the subcollections' parent keeps any other fields
	jsonBytes, err := json.Marshal(building)
	if err != nil {
		return fmt.Errorf("failed to marshal building %s: %w", building.ID, err)
	}
	_, err = f.client.Collection("buildings").Doc(building.ID).Set(ctx, map[string]interface{}{
		"json": string(jsonBytes),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to upsert building %s: %w", building.ID, err)
	}
	return nil
}

// ListTariffs retrieves all tariffs from the top-level "tariffs" collection.
func (f *FirestoreProvider) ListTariffs(ctx context.Context) ([]types.TenantTariff, error) {
	iter := f.client.Collection("tariffs").OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var tariffs []types.TenantTariff
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating tariffs: %w", err)
		}
		var t types.TenantTariff
		if err := decodeJSON(ctx, doc, "tariff", &t); err != nil {
			return nil, err
		}
		tariffs = append(tariffs, t)
	}
	return tariffs, nil
}

// UpsertTariff creates or replaces a tariff keyed by its ID.
func (f *FirestoreProvider) UpsertTariff(ctx context.Context, tariff types.TenantTariff) error {
	if tariff.ID == "" {
		return fmt.Errorf("tariff ID cannot be empty")
	}
	if err := setJSON(ctx, f.client.Collection("tariffs").Doc(tariff.ID), tariff, nil); err != nil {
		return fmt.Errorf("failed to upsert tariff %s: %w", tariff.ID, err)
	}
	return nil
}

// ListContracts retrieves the building's contracts ordered by ID.
func (f *FirestoreProvider) ListContracts(ctx context.Context, buildingID string) ([]types.TenantContract, error) {
	coll, err := f.getCollection(buildingID, "contracts")
	if err != nil {
		return nil, err
	}
	iter := coll.OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var contracts []types.TenantContract
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating contracts: %w", err)
		}
		var c types.TenantContract
		if err := decodeJSON(ctx, doc, "contract", &c); err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, nil
}

// UpsertContract creates or replaces a contract in the building's "contracts" sub-collection.
func (f *FirestoreProvider) UpsertContract(ctx context.Context, buildingID string, contract types.TenantContract) error {
	if contract.ID == "" {
		return fmt.Errorf("contract ID cannot be empty")
	}
	coll, err := f.getCollection(buildingID, "contracts")
	if err != nil {
		return err
	}
	if err := setJSON(ctx, coll.Doc(contract.ID), contract, nil); err != nil {
		return fmt.Errorf("failed to upsert contract %s: %w", contract.ID, err)
	}
	return nil
}
