// Package discovery advertises running stations over mDNS/DNS-SD so LAN
// clients (car head units, local apps) can find the broadcaster without
// being told an address up front.
package discovery

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
	"go.uber.org/zap"
)

const serviceType = "_audio._tcp"

// AnnounceStation registers one DNS-SD service record per profile — each
// instance named after the station and that profile — sharing a single
// responder, and starts responding to mDNS queries in the background until
// ctx is cancelled. A failure here is logged and non-fatal: discovery is a
// convenience, never a requirement for the HTTP surface to work.
func AnnounceStation(ctx context.Context, station string, profiles []string, port int, log *zap.Logger) {
	responder, err := dnssd.NewResponder()
	if err != nil {
		log.Warn("dns-sd: failed to create responder", zap.Error(err))
		return
	}

	registered := 0
	for _, profile := range profiles {
		cfg := dnssd.Config{
			Name: instanceName(station, profile),
			Type: serviceType,
			Port: port,
		}
		svc, err := dnssd.NewService(cfg)
		if err != nil {
			log.Warn("dns-sd: failed to create service record", zap.String("profile", profile), zap.Error(err))
			continue
		}
		if _, err := responder.Add(svc); err != nil {
			log.Warn("dns-sd: failed to register service", zap.String("profile", profile), zap.Error(err))
			continue
		}
		registered++
	}

	if registered == 0 {
		return
	}

	log.Info("dns-sd: announcing station", zap.String("station", station), zap.Int("profiles", registered), zap.Int("port", port))

	go func() {
		if err := responder.Respond(ctx); err != nil && ctx.Err() == nil {
			log.Warn("dns-sd: responder exited", zap.Error(err))
		}
	}()
}

func instanceName(station, profile string) string {
	return fmt.Sprintf("%s %s", station, profile)
}
