package engine

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/lowpower-fm/broadcaster/internal/audio"
)

// silenceUnit is the duration one IntentionalDelay unit represents, per
// spec.md §4.2 (four units bracket a narration, two units bracket a bare
// track).
const silenceUnit = 500 * time.Millisecond

// Decoder is the worker (C3/C4 glue) that turns each Step the state engine
// publishes into PCM packets pushed onto a shared Ring. It is the
// rendezvous consumer on the other end of StateEngine.Steps.
type Decoder struct {
	ring *audio.Ring
	log  *zap.Logger
}

// NewDecoder constructs a Decoder feeding the given ring.
func NewDecoder(ring *audio.Ring, log *zap.Logger) *Decoder {
	return &Decoder{ring: ring, log: log}
}

// Run consumes steps from steps until ctx is cancelled or the channel
// closes. Each step blocks this worker until all of its audio (or silence)
// has been enqueued, which is what keeps the state engine's own publish
// rate tied to actual playback rather than racing ahead of it.
func (d *Decoder) Run(ctx context.Context, steps <-chan *Step) {
	for {
		select {
		case s, ok := <-steps:
			if !ok {
				return
			}
			d.play(ctx, s)
		case <-ctx.Done():
			return
		}
	}
}

func (d *Decoder) play(ctx context.Context, s *Step) {
	switch s.Kind {
	case IntentionalDelayStep:
		d.playSilence(ctx, s.DelayUnits)
	case NarrationBeforeStep, NarrationAfterStep:
		d.playFile(ctx, s.Narration.FileInfo.Location, 0)
	case TrackStep:
		d.playFile(ctx, s.Track.FileInfo.Location, 0)
	default:
		d.log.Error("decoder given an unplayable step", zap.String("step", s.String()))
	}
}

// playSilence enqueues DelayUnits synthesized silent packets, one per
// silenceUnit, matching the original's play_silence loop.
func (d *Decoder) playSilence(ctx context.Context, units uint8) {
	for i := uint8(0); i < units; i++ {
		if ctx.Err() != nil {
			return
		}
		d.ring.Enqueue(audio.FromSilence(silenceUnit))
	}
}

// playFile decodes path from offsetMs to end of stream, enqueuing every PCM
// packet the transcoder yields. A decode error here abandons this step only
// and is logged, never propagated as a station-level failure.
func (d *Decoder) playFile(ctx context.Context, path string, offsetMs int64) {
	src, err := audio.OpenSource(path, offsetMs, d.log)
	if err != nil {
		d.log.Error("failed to open audio source", zap.String("path", path), zap.Error(err))
		return
	}
	defer src.Close()

	for {
		if ctx.Err() != nil {
			return
		}
		pkt, err := src.Next()
		if err == io.EOF {
			return
		}
		if err != nil {
			d.log.Warn("aborting step after pcm read error", zap.String("path", path), zap.Error(err))
			return
		}
		d.ring.Enqueue(pkt)
	}
}
