package types

import (
	"fmt"
	"time"
)

// CurrentSettingsVersion is the current version of the settings struct.
// Increment this value when adding new fields that require default values.
const CurrentSettingsVersion = 3

// Settings is the per-building configuration stored in the database.
// These are dynamic settings that can be changed without redeploying.
type Settings struct {
	// Length of one billing interval in minutes.
	IntervalMinutes int `json:"intervalMinutes" bson:"interval_minutes" validate:"gte=0"`

	// Number of intervals the monthly base fee is spread over. The original
	// demo used 30 days x 96 quarter hours regardless of the calendar month.
	ProrateDivisor float64 `json:"prorateDivisor" bson:"prorate_divisor" validate:"gte=0"`

	// Number of data points retained in the live window.
	WindowSize int `json:"windowSize" bson:"window_size" validate:"gte=0"`

	// Landlord-side rates
	LandlordRates LandlordRates `json:"landlordRates" bson:"landlord_rates"`

	// Meter that measures common-area consumption (stairwell, lighting, ...).
	CommonAreaMeterID string `json:"commonAreaMeterID" bson:"common_area_meter_id"`

	// IANA time zone of the building, used for time-of-day curves and labels.
	Location string `json:"location" bson:"location"`
}

// Interval returns the configured interval length.
func (s Settings) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// LoadLocation resolves the configured time zone, defaulting to UTC.
func (s Settings) LoadLocation() (*time.Location, error) {
	if s.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to load location %s: %w", s.Location, err)
	}
	return loc, nil
}

// CheckCommonAreaMeter returns an error if one of the contracts bills the
// common-area meter to a tenant.
func CheckCommonAreaMeter(commonAreaMeterID string, contracts ...TenantContract) error {
	if commonAreaMeterID == "" {
		return nil
	}
	for _, c := range contracts {
		if c.MeterID == commonAreaMeterID {
			return fmt.Errorf("contract %s uses the common-area meter %s", c.ID, commonAreaMeterID)
		}
	}
	return nil
}

// MigrateSettings migrates the settings to the current version.
// It returns the migrated settings, a boolean indicating if changes were made, and an error if migration failed.
func MigrateSettings(s Settings, currentVersion int) (Settings, bool, error) {
	if currentVersion >= CurrentSettingsVersion {
		return s, false, nil
	}

	migrated := false
	for version := currentVersion + 1; version <= CurrentSettingsVersion; version++ {
		switch version {
		case 1:
			// version 1: initial, quarter-hour intervals
			if s.IntervalMinutes == 0 {
				s.IntervalMinutes = 15
				migrated = true
			}
			if s.ProrateDivisor == 0 {
				s.ProrateDivisor = 30 * 96
				migrated = true
			}
			if s.WindowSize == 0 {
				s.WindowSize = 48
				migrated = true
			}
		case 2:
			// version 2: landlord rates
			if s.LandlordRates == (LandlordRates{}) {
				s.LandlordRates = LandlordRates{
					GridCostRate: 0.3351,
					FeedInRate:   0.08,
				}
				migrated = true
			}
		case 3:
			// version 3: common area meter and location
			if s.CommonAreaMeterID == "" {
				s.CommonAreaMeterID = "general_consumption_kWh"
				migrated = true
			}
			if s.Location == "" {
				s.Location = "Europe/Berlin"
				migrated = true
			}
		default:
			return s, false, fmt.Errorf("unknown settings version: %d", version)
		}
	}

	return s, migrated, nil
}
