// Package broadcast implements the bounded, lossy fan-out broadcasts used
// for both compressed audio (Audio, C6) and track-change metadata
// (Metadata, C7). Producers never block on slow consumers: a subscriber
// that falls more than Capacity messages behind loses the skipped messages
// and is told how many it lost.
package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// AudioCapacity is the bounded channel depth per subscriber, per spec.md §4.6.
const AudioCapacity = 24

// nextListenerID is a process-wide monotonically increasing counter, so
// listener ids stay unique for the process lifetime across every station
// and codec.
var nextListenerID atomic.Uint64

// ListenerID uniquely identifies one attached listener for the life of the
// process.
type ListenerID uint64

// ListenerRecord is the bookkeeping C6 keeps per attached listener.
type ListenerRecord struct {
	ID          ListenerID
	ConnectedAt time.Time

	bytesSent atomic.Uint64
	shutdown  chan struct{}
	once      sync.Once

	// Country and IPHash are populated by the geo enrichment step (§4.13 of
	// SPEC_FULL.md); both are optional and never block attach.
	Country string
	IPHash  string
}

// Terminate signals this listener's stream to exit. Safe to call more than
// once.
func (l *ListenerRecord) Terminate() {
	l.once.Do(func() { close(l.shutdown) })
}

// BytesSent returns the total bytes delivered to this listener so far.
func (l *ListenerRecord) BytesSent() uint64 {
	return l.bytesSent.Load()
}

// BitsPerSecond computes bps = bytes*8 / (now - connected_at).
func (l *ListenerRecord) BitsPerSecond(now time.Time) float64 {
	elapsed := now.Sub(l.ConnectedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(l.bytesSent.Load()) * 8 / elapsed
}

// chunk is a reference-counted codec byte buffer. Go's GC already makes
// []byte sharing reference-counted in effect (no copy occurs on send), so a
// plain slice plays the role of the original's Arc<Bytes>.
type chunk = []byte

type subscriber struct {
	ch  chan chunk
	lag atomic.Uint64
}

// Audio is a per-codec lossy bounded broadcast of compressed audio bytes to
// many concurrent listeners.
type Audio struct {
	codec     string
	nullFrame []byte
	log       *zap.Logger

	mu          sync.RWMutex
	subscribers map[ListenerID]*subscriber
	listeners   map[ListenerID]*ListenerRecord
}

// NewAudio constructs an Audio broadcast for one codec. nullFrame is the
// embedded per-codec silent synchronization frame emitted first to every
// new listener.
func NewAudio(codec string, nullFrame []byte, log *zap.Logger) *Audio {
	return &Audio{
		codec:       codec,
		nullFrame:   nullFrame,
		log:         log,
		subscribers: make(map[ListenerID]*subscriber),
		listeners:   make(map[ListenerID]*ListenerRecord),
	}
}

// Push fans out a chunk of codec bytes to every current subscriber. If
// there are none, it is a no-op. Slow subscribers whose channel is already
// full silently drop this chunk and have their lag counter incremented;
// their Stream.Read logs the skip count the next time it receives a chunk.
func (a *Audio) Push(data []byte) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, sub := range a.subscribers {
		select {
		case sub.ch <- data:
		default:
			sub.lag.Add(1)
		}
	}
}

// Attach registers a new listener and returns its record and a Stream to
// read from. The caller (the HTTP handler) is responsible for calling the
// Stream's Close, which Detaches it, when the stream ends, on any exit path.
func (a *Audio) Attach() (*ListenerRecord, *Stream) {
	id := ListenerID(nextListenerID.Add(1))
	record := &ListenerRecord{
		ID:          id,
		ConnectedAt: time.Now(),
		shutdown:    make(chan struct{}),
	}
	sub := &subscriber{ch: make(chan chunk, AudioCapacity)}

	a.mu.Lock()
	a.listeners[id] = record
	a.subscribers[id] = sub
	a.mu.Unlock()

	return record, &Stream{
		audio:     a,
		record:    record,
		sub:       sub,
		nullFrame: a.nullFrame,
	}
}

// Detach removes a listener's bookkeeping. Called by the stream's cleanup
// guard on every exit path (normal end, shutdown, or client drop).
func (a *Audio) Detach(id ListenerID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.listeners, id)
	delete(a.subscribers, id)
}

// Terminate fires the shutdown signal for the given listener id and removes
// its record. An unknown id is a benign, logged no-op.
func (a *Audio) Terminate(id ListenerID) {
	a.mu.Lock()
	record, ok := a.listeners[id]
	delete(a.listeners, id)
	delete(a.subscribers, id)
	a.mu.Unlock()
	if !ok {
		a.log.Info("terminate requested for unknown listener", zap.Uint64("listener_id", uint64(id)))
		return
	}
	record.Terminate()
}

// ListClients returns the ids of all currently-attached listeners.
func (a *Audio) ListClients() []ListenerID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]ListenerID, 0, len(a.listeners))
	for id := range a.listeners {
		ids = append(ids, id)
	}
	return ids
}

// BandwidthStat is one listener's observability snapshot.
type BandwidthStat struct {
	ListenerID      ListenerID
	BytesSent       uint64
	BitsPerSecond   float64
	Country         string
}

// BandwidthStats returns a bytes_sent/bps snapshot for every attached
// listener.
func (a *Audio) BandwidthStats() []BandwidthStat {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := time.Now()
	stats := make([]BandwidthStat, 0, len(a.listeners))
	for _, record := range a.listeners {
		stats = append(stats, BandwidthStat{
			ListenerID:    record.ID,
			BytesSent:     record.BytesSent(),
			BitsPerSecond: record.BitsPerSecond(now),
			Country:       record.Country,
		})
	}
	return stats
}

// ActiveClients returns the number of currently-attached listeners.
func (a *Audio) ActiveClients() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.listeners)
}
