package httpapi

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lowpower-fm/broadcaster/internal/auth"
	"github.com/lowpower-fm/broadcaster/internal/broadcast"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleAdminLogin exchanges an operator's configured admin credential for a
// short-lived bearer token to use with the /admin/:station endpoints. 503
// when no admin credential was ever configured, matching the admin group's
// own fail-closed behavior.
func (s *Server) handleAdminLogin(c *gin.Context) {
	if s.admin == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin API not configured"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, err := s.admin.Authenticate(req.Username, req.Password, c.ClientIP())
	if err != nil {
		status := http.StatusUnauthorized
		if err == auth.ErrRateLimited {
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// handleStream attaches a listener to a station's Audio broadcast for
// profile and copies the stream straight into the response, flushing after
// every chunk so the client receives audio as it arrives rather than once
// gin's writer buffer fills.
func (s *Server) handleStream(profile string) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, ok := s.lookupStation(c)
		if !ok {
			return
		}
		audioBroadcast := st.Audio(profile)
		if audioBroadcast == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("profile %q not served by this station", profile)})
			return
		}

		record, stream := audioBroadcast.Attach()
		defer stream.Close()

		if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
			s.enrichListener(record, net.ParseIP(host))
		}

		c.Header("Content-Type", "audio/mpeg")
		c.Header("Cache-Control", "no-store")
		c.Status(http.StatusOK)

		buf := make([]byte, 8192)
		flusher, canFlush := c.Writer.(http.Flusher)
		for {
			n, err := stream.Read(buf)
			if n > 0 {
				if _, werr := c.Writer.Write(buf[:n]); werr != nil {
					return
				}
				if canFlush {
					flusher.Flush()
				}
			}
			if err != nil {
				if err != io.EOF {
					s.log.Debug("stream read ended", zap.Error(err))
				}
				return
			}
			if c.Request.Context().Err() != nil {
				return
			}
		}
	}
}

// enrichListener is a no-op unless a geo resolver was wired in; kept as a
// seam so Server.New callers can attach one without changing this file.
func (s *Server) enrichListener(record *broadcast.ListenerRecord, ip net.IP) {
	if s.geo == nil || ip == nil {
		return
	}
	s.geo.Enrich(record, ip)
}

// handleEvents streams track-change metadata as server-sent events.
func (s *Server) handleEvents(c *gin.Context) {
	st, ok := s.lookupStation(c)
	if !ok {
		return
	}

	stream := st.Metadata().Attach()
	defer stream.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-store")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	flusher, canFlush := c.Writer.(http.Flusher)
	done := c.Request.Context().Done()
	for {
		ev, ok := stream.Next(done)
		if !ok {
			return
		}
		payload, err := ev.MarshalSSE()
		if err != nil {
			s.log.Warn("failed to marshal metadata event", zap.Error(err))
			continue
		}
		if _, err := c.Writer.Write([]byte("data: ")); err != nil {
			return
		}
		if _, err := c.Writer.Write(payload); err != nil {
			return
		}
		if _, err := c.Writer.Write([]byte("\n\n")); err != nil {
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

// handleStatus reports a station's aggregate listener/bandwidth snapshot
// across every profile it serves.
func (s *Server) handleStatus(c *gin.Context) {
	st, ok := s.lookupStation(c)
	if !ok {
		return
	}

	type profileStatus struct {
		Listeners int     `json:"listeners"`
		TotalBps  float64 `json:"total_bps"`
	}

	profiles := make(map[string]profileStatus, len(st.Profiles()))
	for _, name := range st.Profiles() {
		a := st.Audio(name)
		stats := a.BandwidthStats()
		var totalBps float64
		for _, st := range stats {
			totalBps += st.BitsPerSecond
		}
		profiles[name] = profileStatus{Listeners: len(stats), TotalBps: totalBps}
	}

	c.JSON(http.StatusOK, gin.H{
		"station":  st.Name,
		"profiles": profiles,
	})
}

// handleListListeners lists every attached listener id, grouped by each
// profile the station serves.
func (s *Server) handleListListeners(c *gin.Context) {
	st, ok := s.lookupStation(c)
	if !ok {
		return
	}

	out := make(map[string][]uint64, len(st.Profiles()))
	for _, name := range st.Profiles() {
		ids := st.Audio(name).ListClients()
		list := make([]uint64, len(ids))
		for i, id := range ids {
			list[i] = uint64(id)
		}
		out[name] = list
	}
	c.JSON(http.StatusOK, gin.H{"listeners": out})
}

// handleTerminateListener disconnects one listener from one profile.
func (s *Server) handleTerminateListener(c *gin.Context) {
	st, ok := s.lookupStation(c)
	if !ok {
		return
	}
	profile := c.Param("codec")
	a := st.Audio(profile)
	if a == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("profile %q not served by this station", profile)})
		return
	}

	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listener id"})
		return
	}

	a.Terminate(broadcast.ListenerID(id))
	c.Status(http.StatusNoContent)
}
