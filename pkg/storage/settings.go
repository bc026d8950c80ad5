package storage

import (
	"context"
	"log/slog"

	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/types"
)

// GetSettingsWithMigration loads the building's settings and upgrades them to
// types.CurrentSettingsVersion, saving the result when anything changed. A
// failed save is logged and the migrated settings are still returned.
func GetSettingsWithMigration(ctx context.Context, db Database, buildingID string) (types.Settings, int, error) {
	settings, version, err := db.GetSettings(ctx, buildingID)
	if err != nil {
		return types.Settings{}, 0, err
	}
	if version >= types.CurrentSettingsVersion {
		return settings, version, nil
	}

	log.Ctx(ctx).InfoContext(ctx, "migrating settings", slog.String("buildingID", buildingID), slog.Int("oldVersion", version), slog.Int("newVersion", types.CurrentSettingsVersion))
	migrated, changed, err := types.MigrateSettings(settings, version)
	if err != nil {
		// best effort, keep serving the stored settings
		log.Ctx(ctx).ErrorContext(ctx, "failed to migrate settings", slog.Int("currentVersion", version), slog.Any("error", err))
		return settings, version, nil
	}
	if !changed {
		return migrated, version, nil
	}
	if err := db.SetSettings(ctx, buildingID, migrated, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save migrated settings", slog.Any("error", err))
	} else {
		log.Ctx(ctx).InfoContext(ctx, "saved migrated settings", slog.Int("oldVersion", version), slog.Int("newVersion", types.CurrentSettingsVersion))
	}
	return migrated, types.CurrentSettingsVersion, nil
}
