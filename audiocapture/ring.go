package audiocapture

import (
	"math"
	"sync/atomic"
)

// Ring is a single-producer single-consumer float32 ring buffer. The
// producer never blocks: on overflow the oldest unread samples are
// discarded and counted.
//
// Push must only be called from one goroutine (the audio callback) and Pop
// from one other goroutine.
type Ring struct {
	buf   []atomic.Uint32
	size  uint64
	write atomic.Uint64 // producer owned
	read  atomic.Uint64 // advanced by the consumer, or the producer on overflow

	dropped atomic.Uint64
}

// NewRing returns a ring holding capacity samples.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{
		buf:  make([]atomic.Uint32, capacity),
		size: uint64(capacity),
	}
}

// Push appends samples. It does not allocate.
func (r *Ring) Push(samples []float32) {
	w := r.write.Load()
	for _, s := range samples {
		for {
			rd := r.read.Load()
			if w-rd < r.size {
				break
			}
			if r.read.CompareAndSwap(rd, rd+1) {
				r.dropped.Add(1)
				break
			}
		}
		r.buf[w%r.size].Store(math.Float32bits(s))
		w++
		r.write.Store(w)
	}
}

// Pop copies up to len(dst) of the oldest samples into dst and returns the
// count copied.
func (r *Ring) Pop(dst []float32) int {
	for {
		rd := r.read.Load()
		w := r.write.Load()
		n := min(w-rd, uint64(len(dst)))
		if n == 0 {
			return 0
		}
		for i := range n {
			dst[i] = math.Float32frombits(r.buf[(rd+i)%r.size].Load())
		}
		// A failed CAS means the producer overran the slots just read.
		if r.read.CompareAndSwap(rd, rd+n) {
			return int(n)
		}
	}
}

// Len returns the number of unread samples.
func (r *Ring) Len() int {
	return int(r.write.Load() - r.read.Load())
}

// Cap returns the ring capacity in samples.
func (r *Ring) Cap() int { return int(r.size) }

// Dropped returns the total number of samples discarded on overflow.
func (r *Ring) Dropped() uint64 { return r.dropped.Load() }
