package engine

import (
	"context"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/lowpower-fm/broadcaster/internal/broadcast"
	"github.com/lowpower-fm/broadcaster/internal/track"
)

// Delay unit counts: four units (2s) bracket a narration boundary, two
// units (1s) bracket a bare track.
const (
	delayUnitsWithNarration = 4
	delayUnitsBareTrack     = 2
)

// StateEngine is the FSM scheduler (C2). It owns the track iterator and its
// PRNG, and publishes every non-transient Step to a rendezvous channel so
// the decoder worker consumes steps one at a time, in lockstep with actual
// playback.
type StateEngine struct {
	iter *track.Iterator
	rng  *rand.Rand
	meta *broadcast.Metadata
	log  *zap.Logger

	steps chan *Step
}

// NewStateEngine constructs a StateEngine seeded from the manifest's seed,
// so station playback order is reproducible given a fixed manifest and
// seed.
func NewStateEngine(tracks []track.Track, seed uint64, meta *broadcast.Metadata, log *zap.Logger) *StateEngine {
	return &StateEngine{
		iter:  track.NewIterator(tracks),
		rng:   rand.New(rand.NewPCG(seed, seed)),
		meta:  meta,
		log:   log,
		steps: make(chan *Step),
	}
}

// Steps returns the rendezvous channel the decoder worker reads from. Each
// receive blocks the engine's Run loop until the decoder is ready for the
// next step, keeping scheduling and playback in lockstep.
func (e *StateEngine) Steps() <-chan *Step {
	return e.steps
}

// Run drives the FSM forever, starting from an implicit SwitchTrack, until
// ctx is cancelled. It never publishes a SwitchTrack step: that variant is
// pure scheduling and resolves immediately into an IntentionalDelay wrapping
// either a NarrationBefore or a bare Track step.
func (e *StateEngine) Run(ctx context.Context) {
	current := &Step{Kind: SwitchTrack}
	for {
		next := e.advance(current)
		if next.Kind != SwitchTrack {
			select {
			case e.steps <- next:
			case <-ctx.Done():
				return
			}
		}
		current = next
	}
}

// advance computes the single successor of s. SwitchTrack, NarrationBefore
// and a Track with after-narrations advance to an IntentionalDelay wrapping
// the next concrete step; a Track without after-narrations and
// NarrationAfter advance to the transient SwitchTrack; IntentionalDelay
// advances to the step it wraps.
//
// TrackChange publishes from inside the TrackStep case itself, when the FSM
// advances past a Track step that the decoder has just received, not one or
// two transitions ahead of it.
func (e *StateEngine) advance(s *Step) *Step {
	switch s.Kind {
	case SwitchTrack:
		t := e.iter.Next(e.rng)
		if len(t.NarrationBefore) > 0 {
			n := t.NarrationBefore[e.rng.IntN(len(t.NarrationBefore))]
			e.publishNarrationBoundary(n)
			return &Step{
				Kind:       IntentionalDelayStep,
				DelayUnits: delayUnitsWithNarration,
				Next:       &Step{Kind: NarrationBeforeStep, Track: t, Narration: n},
			}
		}
		return &Step{
			Kind:       IntentionalDelayStep,
			DelayUnits: delayUnitsBareTrack,
			Next:       &Step{Kind: TrackStep, Track: t},
		}

	case NarrationBeforeStep:
		return &Step{
			Kind:       IntentionalDelayStep,
			DelayUnits: delayUnitsBareTrack,
			Next:       &Step{Kind: TrackStep, Track: s.Track},
		}

	case TrackStep:
		e.publishTrackChange(s.Track)
		if len(s.Track.NarrationAfter) > 0 {
			n := s.Track.NarrationAfter[e.rng.IntN(len(s.Track.NarrationAfter))]
			e.publishNarrationBoundary(n)
			return &Step{
				Kind:       IntentionalDelayStep,
				DelayUnits: delayUnitsWithNarration,
				Next:       &Step{Kind: NarrationAfterStep, Track: s.Track, Narration: n},
			}
		}
		return &Step{Kind: SwitchTrack}

	case NarrationAfterStep:
		return &Step{Kind: SwitchTrack}

	case IntentionalDelayStep:
		return s.Next

	default:
		e.log.Error("unreachable step kind in FSM advance", zap.Int("kind", int(s.Kind)))
		return &Step{Kind: SwitchTrack}
	}
}

// publishTrackChange fires the metadata event on entering a Track step. The
// event is queued before the decoder's own encode/broadcast pipeline can
// flush any of that track's audio to a listener, even though the decoder
// itself may already be decoding it concurrently by the time this runs.
func (e *StateEngine) publishTrackChange(t track.Track) {
	if e.meta == nil {
		return
	}
	e.meta.Push(broadcast.Event{
		Kind:   broadcast.TrackChange,
		Title:  t.Title,
		Artist: t.Artist,
	})
}

// publishNarrationBoundary surfaces a narration's transcript the instant the
// narration is picked, which is while the IntentionalDelay preceding it is
// built, so the event leads the narration's audio by that delay.
func (e *StateEngine) publishNarrationBoundary(n track.Narration) {
	if e.meta == nil {
		return
	}
	e.meta.Push(broadcast.Event{
		Kind:       broadcast.NarrationBoundary,
		Transcript: n.Transcript,
	})
}
