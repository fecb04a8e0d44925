// Package httpapi exposes every running station over HTTP: public
// streaming and status endpoints, plus a bearer-token-gated admin group.
package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lowpower-fm/broadcaster/internal/auth"
	"github.com/lowpower-fm/broadcaster/internal/geo"
	"github.com/lowpower-fm/broadcaster/internal/station"
)

// Server is the HTTP API surface for every station this process runs.
type Server struct {
	engine   *gin.Engine
	stations map[string]*station.Station
	admin    *auth.Auth
	geo      *geo.Resolver
	log      *zap.Logger
}

// New builds the gin engine and registers every route. stations maps a
// station name (as it appears in /station/:station/...) to its running
// Station. admin may be nil, in which case the admin group responds 503 to
// every request instead of silently granting access. geoResolver may be
// nil, in which case listener geo enrichment is skipped.
func New(stations map[string]*station.Station, admin *auth.Auth, geoResolver *geo.Resolver, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, stations: stations, admin: admin, geo: geoResolver, log: log}
	s.routes()
	return s
}

// Handler returns the http.Handler to pass to an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.POST("/admin/login", s.handleAdminLogin)

	stationGroup := s.engine.Group("/station/:station")
	stationGroup.GET("/64", s.handleStream("mp3_64"))
	stationGroup.GET("/128", s.handleStream("mp3_128"))
	stationGroup.GET("/events", s.handleEvents)
	stationGroup.GET("/status", s.handleStatus)

	adminGroup := s.engine.Group("/admin/:station")
	adminGroup.Use(s.requireAdminConfigured())
	adminGroup.GET("/listeners", s.handleListListeners)
	adminGroup.DELETE("/listeners/:codec/:id", s.handleTerminateListener)
}

// requireAdminConfigured returns 503 for the entire admin group when no
// admin credential was configured, rather than silently allowing access;
// only once that gate passes does the bearer-token check run.
func (s *Server) requireAdminConfigured() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.admin == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin API not configured"})
			return
		}
		s.admin.RequireAdmin()(c)
	}
}

func (s *Server) lookupStation(c *gin.Context) (*station.Station, bool) {
	name := c.Param("station")
	st, ok := s.stations[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown station %q", name)})
		return nil, false
	}
	return st, true
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
