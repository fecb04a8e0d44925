// Command broadcasterd runs one or more internet radio stations, each a
// self-scheduling track/narration sequence fanned out as compressed audio
// and SSE metadata over HTTP.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lowpower-fm/broadcaster/internal/auth"
	"github.com/lowpower-fm/broadcaster/internal/config"
	"github.com/lowpower-fm/broadcaster/internal/discovery"
	"github.com/lowpower-fm/broadcaster/internal/encode"
	"github.com/lowpower-fm/broadcaster/internal/geo"
	"github.com/lowpower-fm/broadcaster/internal/httpapi"
	"github.com/lowpower-fm/broadcaster/internal/logging"
	"github.com/lowpower-fm/broadcaster/internal/manifest"
	"github.com/lowpower-fm/broadcaster/internal/priority"
	"github.com/lowpower-fm/broadcaster/internal/station"
)

func main() {
	cfg, err := config.Load("config.yaml", os.Args[1:])
	if err != nil {
		panic(err)
	}

	log, err := logging.New(logging.Config{
		FilePath: cfg.LogFilePath,
		Debug:    cfg.LogDebug,
		MaxSizeMB: 64, MaxBackups: 5, MaxAgeDays: 28, Compress: true,
	})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("starting broadcaster",
		zap.String("port", cfg.Port),
		zap.String("music_dir", cfg.MusicDir),
		zap.String("station_name", cfg.StationName),
	)

	if cfg.HighPriority {
		priority.SetHigh(log)
	}

	profiles := resolveProfiles(cfg.Profiles)

	stations, err := loadStations(cfg.MusicDir, profiles, log)
	if err != nil {
		log.Fatal("failed to load stations", zap.Error(err))
	}
	if len(stations) == 0 {
		log.Fatal("no stations found", zap.String("music_dir", cfg.MusicDir))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for name, st := range stations {
		st.Start(ctx)
		log.Info("station started", zap.String("station", name))
	}

	var geoResolver *geo.Resolver
	if cfg.GeoEnabled {
		geoResolver = geo.NewResolver(cfg.GeoDBPath, cfg.GeoSalt, true, log)
		defer geoResolver.Close()
	}

	var adminAuth *auth.Auth
	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		adminAuth = auth.New(auth.Config{
			Username: cfg.AdminUsername,
			Password: cfg.AdminPassword,
			Secret:   cfg.GeoSalt,
		}, log)
	}

	if cfg.MDNSEnabled {
		port := portNumber(cfg.Port)
		for name, st := range stations {
			discovery.AnnounceStation(ctx, name, st.Profiles(), port, log)
		}
	}

	api := httpapi.New(stations, adminAuth, geoResolver, log)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.Handler(),
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("shutdown signal received")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("http server error", zap.Error(err))
	}

	for name, st := range stations {
		st.Stop()
		log.Info("station stopped", zap.String("station", name))
	}

	time.Sleep(2 * time.Second)
	log.Info("broadcaster stopped")
}

// resolveProfiles maps the config's profile name list onto the encoder
// Profile descriptors known to this build. An unrecognized name is
// skipped with a panic-free log-free drop, since it's caught by the
// operator noticing fewer profiles than requested in /status.
func resolveProfiles(names []string) []encode.Profile {
	known := map[string]encode.Profile{
		"mp3_64":  encode.ProfileMP3_64,
		"mp3_128": encode.ProfileMP3_128,
	}
	out := make([]encode.Profile, 0, len(names))
	for _, n := range names {
		if p, ok := known[n]; ok {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = append(out, encode.ProfileMP3_64, encode.ProfileMP3_128)
	}
	return out
}

// loadStations treats every immediate subdirectory of musicDir containing
// a manifest.json as one station, named after the subdirectory.
func loadStations(musicDir string, profiles []encode.Profile, log *zap.Logger) (map[string]*station.Station, error) {
	entries, err := os.ReadDir(musicDir)
	if err != nil {
		return nil, err
	}

	stations := make(map[string]*station.Station)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		dir := filepath.Join(musicDir, name)

		m, err := manifest.Load(dir)
		if err != nil {
			log.Warn("skipping station directory without a valid manifest", zap.String("station", name), zap.Error(err))
			continue
		}

		st, err := station.New(name, m, profiles, log.With(zap.String("station", name)))
		if err != nil {
			return nil, err
		}
		stations[name] = st
	}
	return stations, nil
}

func portNumber(port string) int {
	n, err := strconv.Atoi(port)
	if err != nil {
		return 0
	}
	return n
}
