// Package geo enriches attached listeners with a country code while
// discarding their raw IP address, so no PII sits in memory or logs for
// longer than resolution takes.
package geo

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"

	"github.com/lowpower-fm/broadcaster/internal/broadcast"
)

// Resolver looks up a listener's country from their IP and replaces the IP
// with a salted hash. It degrades silently to hash-only mode if no
// database is configured or loadable: geo enrichment is an enhancement,
// never a dependency of attaching a listener.
type Resolver struct {
	db   *geoip2.Reader
	salt []byte
	ok   bool

	once sync.Once
}

// NewResolver opens the MaxMind-format database at dbPath if enabled is
// true. A failed open is logged and falls back to hash-only mode rather
// than failing station startup.
func NewResolver(dbPath string, salt string, enabled bool, log *zap.Logger) *Resolver {
	r := &Resolver{salt: []byte(salt)}
	if !enabled {
		return r
	}
	db, err := geoip2.Open(dbPath)
	if err != nil {
		log.Warn("geoip database unavailable, continuing without geo enrichment", zap.Error(err))
		return r
	}
	r.db = db
	r.ok = true
	return r
}

// Close releases the underlying database file, if one was opened.
func (r *Resolver) Close() {
	r.once.Do(func() {
		if r.db != nil {
			_ = r.db.Close()
		}
	})
}

// Enrich fills in record.Country (best-effort) and always overwrites
// record.IPHash with a salted SHA-256 of ip, never storing the raw address.
func (r *Resolver) Enrich(record *broadcast.ListenerRecord, ip net.IP) {
	if ip == nil {
		return
	}
	if r.ok {
		if city, err := r.db.City(ip); err == nil && city.Country.IsoCode != "" {
			record.Country = city.Country.IsoCode
		}
	}
	record.IPHash = hashIP(r.salt, ip)
}

// hashIP never appends to salt directly: salt is shared across concurrent
// Enrich calls from every attached listener's goroutine, and append can
// write through a shared backing array when capacity allows it.
func hashIP(salt []byte, ip net.IP) string {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(ip.String()))
	return hex.EncodeToString(h.Sum(nil))
}
