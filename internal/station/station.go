// Package station wires together one broadcasting station: its state
// engine, decoder, playback clock, per-profile encoders and broadcasts
// (the Station Supervisor, C9).
package station

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lowpower-fm/broadcaster/internal/audio"
	"github.com/lowpower-fm/broadcaster/internal/broadcast"
	"github.com/lowpower-fm/broadcaster/internal/encode"
	"github.com/lowpower-fm/broadcaster/internal/engine"
	"github.com/lowpower-fm/broadcaster/internal/track"
)

const reportingInterval = 2 * time.Second

// Station is one running broadcast: a single state engine and decoder
// feeding a single ring, fanned out through one encoder (and one Audio
// broadcast) per requested profile, plus one shared Metadata broadcast.
type Station struct {
	Name     string
	Manifest *track.Manifest

	ring     *audio.Ring
	engine   *engine.StateEngine
	decoder  *engine.Decoder
	clock    *engine.Clock
	encoders map[string]*encode.Encoder
	audios   map[string]*broadcast.Audio
	metadata *broadcast.Metadata

	log *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Station for manifest, with one encoder/broadcast per
// profile in profiles. Construction order mirrors the original's
// Cytoplasm::new: broadcasts first, then encoders (which must exist before
// the clock can attach sinks to them), then the state engine, decoder, and
// clock. Nothing runs until Start launches them and the reporting loop,
// each as its own goroutine.
func New(name string, manifest *track.Manifest, profiles []encode.Profile, log *zap.Logger) (*Station, error) {
	s := &Station{
		Name:     name,
		Manifest: manifest,
		ring:     audio.NewRing(),
		encoders: make(map[string]*encode.Encoder),
		audios:   make(map[string]*broadcast.Audio),
		metadata: broadcast.NewMetadata(),
		log:      log,
	}

	for _, p := range profiles {
		nullFrame := broadcast.NullFrame(p.Name)
		a := broadcast.NewAudio(p.Name, nullFrame, log.With(zap.String("profile", p.Name)))
		enc, err := encode.NewEncoder(p, a, log.With(zap.String("profile", p.Name)))
		if err != nil {
			s.closeEncoders()
			return nil, fmt.Errorf("station %s: profile %s: %w", name, p.Name, err)
		}
		s.audios[p.Name] = a
		s.encoders[p.Name] = enc
	}

	s.engine = engine.NewStateEngine(manifest.Tracks, manifest.Seed, s.metadata, log.With(zap.String("component", "state_engine")))
	s.decoder = engine.NewDecoder(s.ring, log.With(zap.String("component", "decoder")))
	s.clock = engine.NewClock(s.ring, log.With(zap.String("component", "clock")))
	for _, enc := range s.encoders {
		s.clock.AttachSink(enc)
	}

	return s, nil
}

// Start launches the state engine, decoder, playback clock, and bandwidth
// reporting loop as background goroutines. Stop cancels all of them.
func (s *Station) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(4)
	go func() { defer s.wg.Done(); s.engine.Run(ctx) }()
	go func() { defer s.wg.Done(); s.decoder.Run(ctx, s.engine.Steps()) }()
	go func() { defer s.wg.Done(); s.clock.Run(ctx) }()
	go func() { defer s.wg.Done(); s.reportBandwidth(ctx) }()
}

// reportBandwidth logs every profile's active listener count and aggregate
// bitrate on a fixed interval, matching the original's reporting thread.
func (s *Station) reportBandwidth(ctx context.Context) {
	ticker := time.NewTicker(reportingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for name, a := range s.audios {
				stats := a.BandwidthStats()
				var totalBps float64
				for _, st := range stats {
					totalBps += st.BitsPerSecond
				}
				s.log.Info("station bandwidth report",
					zap.String("station", s.Name),
					zap.String("profile", name),
					zap.Int("listeners", len(stats)),
					zap.Float64("total_bps", totalBps),
				)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Audio returns the Audio broadcast for a profile name, or nil if this
// station was not constructed with that profile.
func (s *Station) Audio(profile string) *broadcast.Audio {
	return s.audios[profile]
}

// Metadata returns the station's shared Metadata broadcast.
func (s *Station) Metadata() *broadcast.Metadata {
	return s.metadata
}

// Profiles returns the names of every profile this station serves.
func (s *Station) Profiles() []string {
	names := make([]string, 0, len(s.audios))
	for name := range s.audios {
		names = append(names, name)
	}
	return names
}

func (s *Station) closeEncoders() {
	for _, enc := range s.encoders {
		_ = enc.Close()
	}
}

// Stop cancels every background worker and closes all encoder child
// processes, blocking until the workers have exited.
func (s *Station) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.closeEncoders()
}
