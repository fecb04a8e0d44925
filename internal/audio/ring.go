package audio

import (
	"sync"
	"time"
)

const (
	// RingHigh and RingLow are the hysteresis watermarks from spec.md §4.4.
	RingHigh = 20
	RingLow  = 10

	backpressureDelay = 5 * time.Millisecond
)

// Ring is the bounded FIFO of Packets shared between the decoder (producer)
// and the playback clock (consumer). Only one lock scope is ever held per
// read or write; compound checks release and reacquire between
// observations so the other side can make progress, per spec.md §4.4.
type Ring struct {
	mu      sync.Mutex
	packets []Packet
}

// NewRing constructs an empty ring.
func NewRing() *Ring {
	return &Ring{}
}

// Len returns the current queue depth. Intended for diagnostics/tests only;
// steady-state producer/consumer code never branches on a stale Len read
// without re-acquiring the lock for the actual enqueue/dequeue.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.packets)
}

// Enqueue adds p to the ring. If the ring is at or above RingHigh, it
// releases the lock and sleeps in 5ms slices until the depth falls to
// RingLow or below, then re-acquires and enqueues — the producer-side
// backpressure loop from spec.md §4.4. The ring never exceeds RingHigh by
// more than the single enqueue that triggered this wait.
func (r *Ring) Enqueue(p Packet) {
	r.mu.Lock()
	if len(r.packets) < RingHigh {
		r.packets = append(r.packets, p)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	for {
		time.Sleep(backpressureDelay)
		r.mu.Lock()
		if len(r.packets) <= RingLow {
			r.packets = append(r.packets, p)
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()
	}
}

// DrainAll removes and returns every currently-queued packet in one
// critical section, or nil if the ring is empty. This is the consumer's
// "drain all, then sleep" batch shape from spec.md §4.8.
func (r *Ring) DrainAll() []Packet {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.packets) == 0 {
		return nil
	}
	drained := r.packets
	r.packets = nil
	return drained
}

// WaitUntilHigh blocks, sleeping in 5ms slices, until the ring depth reaches
// RingHigh. Used both at startup and after every underrun (fill-to-high,
// spec.md §4.8 step 1).
func (r *Ring) WaitUntilHigh() {
	for {
		r.mu.Lock()
		depth := len(r.packets)
		r.mu.Unlock()
		if depth >= RingHigh {
			return
		}
		time.Sleep(backpressureDelay)
	}
}
