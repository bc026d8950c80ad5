package meter

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/levenlabs/go-lflag"
)

// Configured sets up the meter source Map based on flags.
func Configured() *Map {
	provider := lflag.String("meter-source", "simulated", "Meter source to use (available: simulated)")
	seed := lflag.String("meter-seed", "", "Seed for the simulated meter source (empty uses the current time)")
	capacity := lflag.String("pv-capacity-kw", "3.5", "Nominal PV capacity of the simulated building (kW)")
	variance := lflag.String("pv-capacity-variance-kw", "0.5", "Random variance added to the simulated PV capacity (kW)")

	m := NewMap(nil)

	lflag.Do(func() {
		switch *provider {
		case "simulated":
			capacityKW, err := strconv.ParseFloat(*capacity, 64)
			if err != nil || capacityKW < 0 {
				panic(fmt.Sprintf("invalid pv-capacity-kw: %s", *capacity))
			}
			varianceKW, err := strconv.ParseFloat(*variance, 64)
			if err != nil || varianceKW < 0 {
				panic(fmt.Sprintf("invalid pv-capacity-variance-kw: %s", *variance))
			}
			baseSeed := time.Now().UnixNano()
			if *seed != "" {
				baseSeed, err = strconv.ParseInt(*seed, 10, 64)
				if err != nil {
					panic(fmt.Sprintf("invalid meter-seed: %s", *seed))
				}
			}
			m.newFn = func(buildingID string) Source {
				s := NewSimulated(buildingSeed(baseSeed, buildingID))
				s.CapacityKW = capacityKW
				s.CapacityVarianceKW = varianceKW
				return s
			}
		default:
			panic(fmt.Sprintf("unknown meter source: %s", *provider))
		}
	})

	return m
}

// buildingSeed derives a per-building seed so buildings sharing a process do
// not produce identical series.
func buildingSeed(seed int64, buildingID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(buildingID))
	return seed ^ int64(h.Sum64())
}
