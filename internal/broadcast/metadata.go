package broadcast

import (
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
)

// MetadataCapacity is the bounded channel depth per metadata subscriber.
// Metadata events are small and infrequent, so a shallow capacity is enough
// to absorb normal scheduling jitter.
const MetadataCapacity = 4

// EventKind tags which variant a metadata Event holds.
type EventKind int

const (
	// TrackChange fires the moment a Track step's audio begins, before any
	// of its PCM has reached the encoder.
	TrackChange EventKind = iota
	// NarrationBoundary surfaces a narration's transcript at a
	// NarrationBefore/NarrationAfter boundary. It has no counterpart in the
	// event this was ported from; transcripts are never folded into
	// TrackChange.
	NarrationBoundary
)

// Event is the tagged-union Metadata value broadcast to SSE subscribers.
type Event struct {
	Kind EventKind

	Title  string
	Artist string

	Transcript string
}

// trackChangeFields and narrationBoundaryFields are the externally-tagged
// variant bodies: on the wire, an Event is {"TrackChange":{...}} or
// {"NarrationBoundary":{...}}, keyed by variant name, matching the
// serde-derived enum this event type was ported from rather than Go's
// native internally-tagged struct encoding.
type trackChangeFields struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

type narrationBoundaryFields struct {
	Transcript string `json:"transcript"`
}

// MarshalJSON renders e as an externally-tagged object keyed by its variant
// name, so a client discriminates the event by which key is present rather
// than by a numeric "kind" field.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case TrackChange:
		return sonic.Marshal(map[string]trackChangeFields{
			"TrackChange": {Title: e.Title, Artist: e.Artist},
		})
	case NarrationBoundary:
		return sonic.Marshal(map[string]narrationBoundaryFields{
			"NarrationBoundary": {Transcript: e.Transcript},
		})
	default:
		return nil, fmt.Errorf("broadcast: unknown event kind %d", e.Kind)
	}
}

// MarshalSSE renders the event as the payload of one server-sent "data:"
// line.
func (e Event) MarshalSSE() ([]byte, error) {
	return sonic.Marshal(e)
}

type metadataSubscriber struct {
	ch chan Event
}

// Metadata is the lossy bounded broadcast of playback Events to SSE
// listeners.
type Metadata struct {
	mu          sync.RWMutex
	subscribers map[ListenerID]*metadataSubscriber
}

// NewMetadata constructs an empty Metadata broadcast.
func NewMetadata() *Metadata {
	return &Metadata{subscribers: make(map[ListenerID]*metadataSubscriber)}
}

// Push fans ev out to every current subscriber, dropping it for any
// subscriber whose channel is already full.
func (m *Metadata) Push(ev Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sub := range m.subscribers {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// MetadataStream is a single SSE listener's read side of a Metadata
// broadcast.
type MetadataStream struct {
	metadata *Metadata
	id       ListenerID
	ch       chan Event
}

// Attach registers a new metadata listener.
func (m *Metadata) Attach() *MetadataStream {
	id := ListenerID(nextListenerID.Add(1))
	sub := &metadataSubscriber{ch: make(chan Event, MetadataCapacity)}

	m.mu.Lock()
	m.subscribers[id] = sub
	m.mu.Unlock()

	return &MetadataStream{metadata: m, id: id, ch: sub.ch}
}

// Next blocks for the next Event, or returns false if done is closed first.
func (s *MetadataStream) Next(done <-chan struct{}) (Event, bool) {
	select {
	case ev := <-s.ch:
		return ev, true
	case <-done:
		return Event{}, false
	}
}

// Close detaches the stream from its broadcast.
func (s *MetadataStream) Close() {
	s.metadata.mu.Lock()
	delete(s.metadata.subscribers, s.id)
	s.metadata.mu.Unlock()
}
