package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvent_TrackChangeMarshalsExternallyTagged(t *testing.T) {
	ev := Event{Kind: TrackChange, Title: "Signal", Artist: "Noise"}
	payload, err := ev.MarshalSSE()
	require.NoError(t, err)
	require.JSONEq(t, `{"TrackChange":{"title":"Signal","artist":"Noise"}}`, string(payload))
}

func TestEvent_NarrationBoundaryMarshalsExternallyTagged(t *testing.T) {
	ev := Event{Kind: NarrationBoundary, Transcript: "now playing the news"}
	payload, err := ev.MarshalSSE()
	require.NoError(t, err)
	require.JSONEq(t, `{"NarrationBoundary":{"transcript":"now playing the news"}}`, string(payload))
}

func TestEvent_UnknownKindFailsToMarshal(t *testing.T) {
	ev := Event{Kind: EventKind(99)}
	_, err := ev.MarshalSSE()
	require.Error(t, err)
}

// Regression test: a subscriber's wire payload must never carry the old
// internally-tagged "kind" field shape.
func TestMetadata_PushDeliversExternallyTaggedPayload(t *testing.T) {
	m := NewMetadata()
	sub := m.Attach()
	defer sub.Close()

	m.Push(Event{Kind: TrackChange, Title: "Signal", Artist: "Noise"})

	done := make(chan struct{})
	timer := time.AfterFunc(time.Second, func() { close(done) })
	defer timer.Stop()

	ev, ok := sub.Next(done)
	require.True(t, ok)

	payload, err := ev.MarshalSSE()
	require.NoError(t, err)
	require.JSONEq(t, `{"TrackChange":{"title":"Signal","artist":"Noise"}}`, string(payload))
	require.NotContains(t, string(payload), `"kind"`)
}
