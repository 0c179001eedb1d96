// Package metrics keeps rolling latency windows and drop counters for the
// dictation pipeline and mirrors them into OpenTelemetry instruments.
package metrics

import (
	"math"
	"slices"
	"time"

	"go.aimuz.me/dictate/internal/types"
)

// DefaultWindowSize is the number of samples kept per rolling window.
const DefaultWindowSize = 256

// Rolling is a fixed-capacity window of millisecond samples.
// It is not safe for concurrent use; Recorder guards it.
type Rolling struct {
	values []uint64
	next   int
	full   bool
}

// NewRolling returns a window holding at most size samples.
func NewRolling(size int) *Rolling {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Rolling{values: make([]uint64, 0, size)}
}

// Record adds one sample, evicting the oldest when full.
func (r *Rolling) Record(d time.Duration) {
	ms := uint64(max(d.Milliseconds(), 0))
	if !r.full {
		r.values = append(r.values, ms)
		if len(r.values) == cap(r.values) {
			r.full = true
		}
		return
	}
	r.values[r.next] = ms
	r.next = (r.next + 1) % len(r.values)
}

// Len returns the number of samples held.
func (r *Rolling) Len() int { return len(r.values) }

// Summary computes average, p95 and max over the window.
func (r *Rolling) Summary() types.MetricSummary {
	n := len(r.values)
	if n == 0 {
		return types.MetricSummary{}
	}

	sorted := slices.Clone(r.values)
	slices.Sort(sorted)

	var sum uint64
	for _, v := range sorted {
		sum += v
	}

	idx := int(math.Ceil(float64(n)*0.95)) - 1
	idx = min(max(idx, 0), n-1)

	return types.MetricSummary{
		Samples:   n,
		AverageMs: sum / uint64(n),
		P95Ms:     sorted[idx],
		MaxMs:     sorted[n-1],
	}
}
