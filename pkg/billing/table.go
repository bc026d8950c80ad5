package billing

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/solarflow/solarflow/pkg/types"
)

var validate = validator.New()

// DefaultProrateDivisor spreads the monthly base fee over 30 days of
// quarter-hour intervals.
const DefaultProrateDivisor = 30 * 96

// ProrateDivisor returns the number of intervals of the given length in a
// billing month of the given number of days.
func ProrateDivisor(interval int, days int) float64 {
	if interval <= 0 || days <= 0 {
		return 0
	}
	return float64(days) * (24 * 60) / float64(interval)
}

// Table is the pricing table: tenant tariffs keyed by tariff ID.
type Table map[string]types.TenantTariff

// NewTable builds a Table from the given tariffs. Later tariffs with the same
// ID replace earlier ones.
func NewTable(tariffs ...types.TenantTariff) Table {
	t := make(Table, len(tariffs))
	for _, tariff := range tariffs {
		t[tariff.ID] = tariff
	}
	return t
}

// Lookup returns the tariff with the given ID.
func (t Table) Lookup(id string) (types.TenantTariff, bool) {
	tariff, ok := t[id]
	return tariff, ok
}

// Tariffs returns the tariffs sorted by ID.
func (t Table) Tariffs() []types.TenantTariff {
	out := make([]types.TenantTariff, 0, len(t))
	for _, tariff := range t {
		out = append(out, tariff)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Validate checks every tariff in the table.
func (t Table) Validate() error {
	var errs *multierror.Error
	for _, tariff := range t.Tariffs() {
		if err := ValidateTariff(tariff); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// ValidateTariff checks a single tariff's fields.
func ValidateTariff(tariff types.TenantTariff) error {
	if err := validate.Struct(tariff); err != nil {
		return fmt.Errorf("%w: tariff %q: %v", ErrInvalidInput, tariff.ID, err)
	}
	return nil
}

// ValidateContract checks a single contract's fields and that its tariff
// reference resolves in the table.
func (t Table) ValidateContract(contract types.TenantContract) error {
	if err := validate.Struct(contract); err != nil {
		return fmt.Errorf("%w: contract %q: %v", ErrInvalidInput, contract.ID, err)
	}
	if _, ok := t.Lookup(contract.TariffID); !ok {
		return fmt.Errorf("%w: contract %q references unknown tariff %q", ErrInvalidInput, contract.ID, contract.TariffID)
	}
	return nil
}
