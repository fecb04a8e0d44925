package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lowpower-fm/broadcaster/internal/audio"
)

// PCMSink accepts raw decoded PCM, typically an encoder's stdin pipe. The
// Playback Clock fans every drained packet out to every attached sink
// before sleeping to the next scheduled wake time.
type PCMSink interface {
	PushPCM(buf []byte) error
}

// Clock is the drift-compensated Playback Clock (C8). It anchors elapsed
// playback time to a fixed start instant and an accumulated duration, so
// scheduling jitter from sleeps, GC pauses, or slow encoders never
// compounds: each wake computes the absolute next_time directly from the
// anchor rather than from "now + delta", per spec.md §4.8.
type Clock struct {
	ring *audio.Ring
	log  *zap.Logger

	sinkLock sync.Mutex
	sinks    []PCMSink
}

func NewClock(ring *audio.Ring, log *zap.Logger) *Clock {
	return &Clock{ring: ring, log: log}
}

// AttachSink registers a PCM consumer (an encoder). Safe to call
// concurrently with Run.
func (c *Clock) AttachSink(s PCMSink) {
	c.sinkLock.Lock()
	defer c.sinkLock.Unlock()
	c.sinks = append(c.sinks, s)
}

func (c *Clock) snapshotSinks() []PCMSink {
	c.sinkLock.Lock()
	defer c.sinkLock.Unlock()
	out := make([]PCMSink, len(c.sinks))
	copy(out, c.sinks)
	return out
}

// Run waits for the ring to fill to RingHigh (at startup and again after
// every underrun), then loops until ctx is cancelled:
// drain everything currently queued, push it to every attached sink, and
// sleep until the fixed anchor says the next packet is due. playbackTime
// only ever increases; start is recorded once and never adjusted.
func (c *Clock) Run(ctx context.Context) {
	c.ring.WaitUntilHigh()

	start := time.Now()
	var playbackTime time.Duration

	for {
		if ctx.Err() != nil {
			return
		}

		packets := c.ring.DrainAll()
		if packets == nil {
			c.log.Warn("playback underrun: ring drained empty, refilling to high watermark")
			c.ring.WaitUntilHigh()
			continue
		}

		sinks := c.snapshotSinks()
		for _, pkt := range packets {
			playbackTime += time.Duration(pkt.AudioLengthSeconds * float64(time.Second))
			for _, sink := range sinks {
				if err := sink.PushPCM(pkt.Buffer); err != nil {
					c.log.Error("pcm sink rejected packet", zap.Error(err))
				}
			}
		}

		nextTime := start.Add(playbackTime)
		sleepFor := time.Until(nextTime)
		if sleepFor < 0 {
			c.log.Warn("playback clock fell behind schedule", zap.Duration("behind_by", -sleepFor))
			continue
		}

		select {
		case <-time.After(sleepFor):
		case <-ctx.Done():
			return
		}
	}
}
