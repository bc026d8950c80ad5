package feed

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/solarflow/solarflow/pkg/meter"
	"github.com/solarflow/solarflow/pkg/publish"
	"github.com/solarflow/solarflow/pkg/storage"
)

// Configured creates a Feed configured from flags.
func Configured(db storage.Database, meters *meter.Map, pub publish.Publisher) *Feed {
	refresh := lflag.Duration("feed-refresh", DefaultRefresh, "How often a new data point is computed for every building")
	align := lflag.Bool("feed-align-interval", false, "Align data point timestamps to the start of the billing interval")
	backfill := lflag.String("feed-backfill", "48", "Number of intervals computed into each window at startup")
	backfillStart := lflag.String("feed-backfill-start", "", "RFC3339 start of the startup backfill (empty ends the backfill at the current interval)")
	buildings := lflag.String("buildings", "", "Comma-delimited building IDs to run (empty runs every stored building)")

	f := New(db, meters, pub)

	lflag.Do(func() {
		if *refresh <= 0 {
			panic(fmt.Sprintf("feed-refresh must be positive: %s", *refresh))
		}
		f.refresh = *refresh
		f.alignInterval = *align

		n, err := strconv.Atoi(*backfill)
		if err != nil || n < 0 {
			panic(fmt.Sprintf("invalid feed-backfill: %s", *backfill))
		}
		f.backfill = n

		if *backfillStart != "" {
			f.backfillStart, err = time.Parse(time.RFC3339, *backfillStart)
			if err != nil {
				panic(fmt.Sprintf("invalid feed-backfill-start: %v", err))
			}
		}

		if *buildings != "" {
			for _, id := range strings.Split(*buildings, ",") {
				if id = strings.TrimSpace(id); id != "" {
					f.buildings = append(f.buildings, id)
				}
			}
		}
	})

	return f
}
