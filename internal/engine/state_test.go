package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lowpower-fm/broadcaster/internal/broadcast"
	"github.com/lowpower-fm/broadcaster/internal/track"
)

func zapNop() *zap.Logger { return zap.NewNop() }

func collectSteps(t *testing.T, e *StateEngine, n int) []*Step {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go e.Run(ctx)

	out := make([]*Step, 0, n)
	for i := 0; i < n; i++ {
		select {
		case s := <-e.Steps():
			out = append(out, s)
		case <-ctx.Done():
			t.Fatalf("timed out collecting step %d/%d", i+1, n)
		}
	}
	return out
}

// S1 — two tracks, no narrations: every consecutive pair of Track steps is
// a permutation of {T1, T2}, and a delay of 2 units brackets each one.
func TestStateEngine_S1_TwoBareTracksAlternate(t *testing.T) {
	t1 := track.Track{Title: "T1", Source: "t1.flac"}
	t2 := track.Track{Title: "T2", Source: "t2.flac"}
	e := NewStateEngine([]track.Track{t1, t2}, 1, broadcast.NewMetadata(), zapNop())

	steps := collectSteps(t, e, 12)

	var tracksSeen []string
	for i, s := range steps {
		if i%2 == 0 {
			require.Equal(t, IntentionalDelayStep, s.Kind)
			require.EqualValues(t, delayUnitsBareTrack, s.DelayUnits)
		} else {
			require.Equal(t, TrackStep, s.Kind)
			tracksSeen = append(tracksSeen, s.Track.Title)
		}
	}

	for i := 0; i+1 < len(tracksSeen); i += 2 {
		pair := []string{tracksSeen[i], tracksSeen[i+1]}
		require.ElementsMatch(t, []string{"T1", "T2"}, pair)
	}
}

// S2 — one track with both a before and an after narration: the step
// sequence is Delay(4), NarrationBefore, Delay(2), Track, Delay(4),
// NarrationAfter, repeating.
func TestStateEngine_S2_NarrationBracketsTrack(t *testing.T) {
	before := track.Narration{Source: "before.flac", Transcript: "intro"}
	after := track.Narration{Source: "after.flac", Transcript: "outro"}
	tr := track.Track{
		Title:           "Only Track",
		Source:          "only.flac",
		NarrationBefore: []track.Narration{before},
		NarrationAfter:  []track.Narration{after},
	}
	e := NewStateEngine([]track.Track{tr}, 42, broadcast.NewMetadata(), zapNop())

	steps := collectSteps(t, e, 6)

	require.Equal(t, IntentionalDelayStep, steps[0].Kind)
	require.EqualValues(t, delayUnitsWithNarration, steps[0].DelayUnits)

	require.Equal(t, NarrationBeforeStep, steps[1].Kind)
	require.Equal(t, "intro", steps[1].Narration.Transcript)

	require.Equal(t, IntentionalDelayStep, steps[2].Kind)
	require.EqualValues(t, delayUnitsBareTrack, steps[2].DelayUnits)

	require.Equal(t, TrackStep, steps[3].Kind)
	require.Equal(t, "Only Track", steps[3].Track.Title)

	require.Equal(t, IntentionalDelayStep, steps[4].Kind)
	require.EqualValues(t, delayUnitsWithNarration, steps[4].DelayUnits)

	require.Equal(t, NarrationAfterStep, steps[5].Kind)
	require.Equal(t, "outro", steps[5].Narration.Transcript)
}

// TrackChange metadata must be published at the moment a bare track is
// selected, not a delay (and, for a narrated track, an entire narration
// clip) ahead of it.
func TestStateEngine_PublishesTrackChangeOnEnteringTrackStep(t *testing.T) {
	tr := track.Track{Title: "Signal", Artist: "Noise", Source: "s.flac"}
	meta := broadcast.NewMetadata()
	sub := meta.Attach()
	defer sub.Close()

	e := NewStateEngine([]track.Track{tr}, 7, meta, zapNop())

	// Collect only the first step (the Delay wrapping the Track step) and
	// confirm nothing has been published yet: TrackChange must not lead the
	// Track step by a whole delay. done is already closed, so Next resolves
	// immediately; that's safe here because the channel case is expected to
	// be empty, leaving only one case ready.
	steps := collectSteps(t, e, 1)
	require.Equal(t, IntentionalDelayStep, steps[0].Kind)

	done := make(chan struct{})
	close(done)
	_, ok := sub.Next(done)
	require.False(t, ok, "TrackChange published before the Track step was entered")
}

// Once the Track step itself is received, its TrackChange event follows:
// the publish happens synchronously on the engine's own goroutine as it
// advances past the Track step, right after the decoder side has received
// that step and before the engine's next send on the rendezvous channel.
func TestStateEngine_TrackChangeAccompaniesTrackStep(t *testing.T) {
	tr := track.Track{Title: "Signal", Artist: "Noise", Source: "s.flac"}
	meta := broadcast.NewMetadata()
	sub := meta.Attach()
	defer sub.Close()

	e := NewStateEngine([]track.Track{tr}, 7, meta, zapNop())
	steps := collectSteps(t, e, 2)
	require.Equal(t, TrackStep, steps[1].Kind)

	// A timeout-backed done channel (rather than one that is already closed)
	// avoids racing two always-ready select cases, which Go resolves
	// pseudo-randomly.
	done := make(chan struct{})
	timer := time.AfterFunc(time.Second, func() { close(done) })
	defer timer.Stop()
	ev, ok := sub.Next(done)
	require.True(t, ok, "expected a TrackChange event after the Track step was received")
	require.Equal(t, broadcast.TrackChange, ev.Kind)
	require.Equal(t, "Signal", ev.Title)
	require.Equal(t, "Noise", ev.Artist)
}

// NarrationBoundary events surface a narration's transcript on their own
// event kind, distinct from TrackChange, and are published before their
// narration step is sent to the decoder.
func TestStateEngine_PublishesNarrationBoundary(t *testing.T) {
	before := track.Narration{Source: "before.flac", Transcript: "intro"}
	tr := track.Track{
		Title:           "Only Track",
		Source:          "only.flac",
		NarrationBefore: []track.Narration{before},
	}
	meta := broadcast.NewMetadata()
	sub := meta.Attach()
	defer sub.Close()

	e := NewStateEngine([]track.Track{tr}, 3, meta, zapNop())
	steps := collectSteps(t, e, 2)
	require.Equal(t, NarrationBeforeStep, steps[1].Kind)

	done := make(chan struct{})
	timer := time.AfterFunc(time.Second, func() { close(done) })
	defer timer.Stop()
	ev, ok := sub.Next(done)
	require.True(t, ok, "expected a NarrationBoundary event to already be queued")
	require.Equal(t, broadcast.NarrationBoundary, ev.Kind)
	require.Equal(t, "intro", ev.Transcript)
}
