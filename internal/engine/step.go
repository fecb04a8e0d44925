// Package engine runs the per-station finite-state scheduler (the State
// Engine, C2) and the drift-compensated Playback Clock (C8).
package engine

import "github.com/lowpower-fm/broadcaster/internal/track"

// StepKind tags which variant a Step holds.
type StepKind int

const (
	// SwitchTrack is a transient scheduling state; it is never published to
	// the decoder and never played.
	SwitchTrack StepKind = iota
	NarrationBeforeStep
	TrackStep
	NarrationAfterStep
	IntentionalDelayStep
)

// Step is the tagged-union PlaybackStep from spec.md §3. IntentionalDelay
// boxes its Next step inline rather than via a separate type, since the
// original's self-referential variant never nests more than one level deep
// in practice.
type Step struct {
	Kind StepKind

	Track     track.Track
	Narration track.Narration

	// DelayUnits and Next are populated only when Kind == IntentionalDelayStep.
	DelayUnits uint8
	Next       *Step
}

func (s Step) String() string {
	switch s.Kind {
	case SwitchTrack:
		return "SwitchTrack"
	case NarrationBeforeStep:
		return "NarrationBefore[" + s.Track.Title + "]"
	case TrackStep:
		return "Track[" + s.Track.Title + "]"
	case NarrationAfterStep:
		return "NarrationAfter[" + s.Track.Title + "]"
	case IntentionalDelayStep:
		return "IntentionalDelay"
	default:
		return "Unknown"
	}
}
