package telemetry

import "sync/atomic"

// Ring is a bounded lock-free single-producer/single-consumer ring of
// Samples. The sampler is the only pusher, the publisher the only popper;
// nothing else may touch the cursors. On full the producer is refused, the
// slot is never overwritten.
//
// The two cursors live on separate cache lines so the producer and consumer
// cores do not invalidate each other's line on every operation. Go's atomic
// loads and stores are sequentially consistent, which covers the
// release/acquire pairing the cursor protocol needs.
type Ring struct {
	buf  []Sample
	mask uint64

	_     [64]byte
	write atomic.Uint64
	_     [56]byte
	read  atomic.Uint64
	_     [56]byte
}

// NewRing creates a ring with at least the requested capacity, rounded up
// to a power of two so index wrapping is a mask instead of a division.
func NewRing(capacity int) *Ring {
	if capacity < 2 {
		capacity = 2
	}
	n := 1
	for n < capacity {
		n <<= 1
	}
	return &Ring{
		buf:  make([]Sample, n),
		mask: uint64(n - 1),
	}
}

// Cap returns the fixed capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// TryPush appends a sample. It returns false without blocking when the ring
// is full; the caller counts the drop.
func (r *Ring) TryPush(s Sample) bool {
	w := r.write.Load()
	if w-r.read.Load() == uint64(len(r.buf)) {
		return false
	}
	r.buf[w&r.mask] = s
	r.write.Store(w + 1)
	return true
}

// TryPop removes the oldest sample into *s, returning false when the ring
// is empty.
func (r *Ring) TryPop(s *Sample) bool {
	rd := r.read.Load()
	if rd == r.write.Load() {
		return false
	}
	*s = r.buf[rd&r.mask]
	r.read.Store(rd + 1)
	return true
}

// Drain pops up to len(dst) samples and returns how many were taken.
func (r *Ring) Drain(dst []Sample) int {
	n := 0
	for n < len(dst) && r.TryPop(&dst[n]) {
		n++
	}
	return n
}

// Available returns a lower bound on the number of readable slots. It is
// safe to call from any goroutine; the value may be stale by the time the
// caller acts on it.
func (r *Ring) Available() int {
	w := r.write.Load()
	rd := r.read.Load()
	if rd >= w {
		return 0
	}
	return int(w - rd)
}
