// Package window holds a bounded, timestamp-ordered series of computed data
// points for display. The billing engine never sees it.
package window

import (
	"sort"
	"sync"
	"time"

	"github.com/solarflow/solarflow/pkg/types"
)

// Window is a bounded sliding window of data points ordered by timestamp.
// It is safe for concurrent use.
type Window struct {
	mu     sync.RWMutex
	size   int
	points []types.EnergyDataPoint
}

// New creates a window retaining at most size points.
func New(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		size:   size,
		points: make([]types.EnergyDataPoint, 0, size),
	}
}

// Size returns the maximum number of points retained.
func (w *Window) Size() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

// Resize changes the capacity, dropping the oldest points if needed.
func (w *Window) Resize(size int) {
	if size < 1 {
		size = 1
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.size = size
	w.trim()
}

// Push inserts p in timestamp order. A point with the same timestamp as an
// existing one replaces it. The oldest points are evicted once the window is
// full; a point older than everything in a full window is dropped.
func (w *Window) Push(p types.EnergyDataPoint) {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := sort.Search(len(w.points), func(i int) bool {
		return !w.points[i].Timestamp.Before(p.Timestamp)
	})
	if i < len(w.points) && w.points[i].Timestamp.Equal(p.Timestamp) {
		w.points[i] = p
		return
	}
	if i == 0 && len(w.points) >= w.size {
		return
	}
	w.points = append(w.points, types.EnergyDataPoint{})
	copy(w.points[i+1:], w.points[i:])
	w.points[i] = p
	w.trim()
}

func (w *Window) trim() {
	if over := len(w.points) - w.size; over > 0 {
		w.points = append(w.points[:0], w.points[over:]...)
	}
}

// Len returns the number of points held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.points)
}

// Latest returns the newest point.
func (w *Window) Latest() (types.EnergyDataPoint, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.points) == 0 {
		return types.EnergyDataPoint{}, false
	}
	return w.points[len(w.points)-1], true
}

// Snapshot returns a copy of the points, oldest first.
func (w *Window) Snapshot() []types.EnergyDataPoint {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]types.EnergyDataPoint, len(w.points))
	copy(out, w.points)
	return out
}

// Last returns a copy of at most the n newest points, oldest first.
func (w *Window) Last(n int) []types.EnergyDataPoint {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if n > len(w.points) {
		n = len(w.points)
	}
	if n < 0 {
		n = 0
	}
	out := make([]types.EnergyDataPoint, n)
	copy(out, w.points[len(w.points)-n:])
	return out
}

// Range returns the points with start <= timestamp < end, oldest first.
func (w *Window) Range(start, end time.Time) []types.EnergyDataPoint {
	w.mu.RLock()
	defer w.mu.RUnlock()
	lo := sort.Search(len(w.points), func(i int) bool {
		return !w.points[i].Timestamp.Before(start)
	})
	hi := sort.Search(len(w.points), func(i int) bool {
		return !w.points[i].Timestamp.Before(end)
	})
	if hi < lo {
		hi = lo
	}
	out := make([]types.EnergyDataPoint, hi-lo)
	copy(out, w.points[lo:hi])
	return out
}
