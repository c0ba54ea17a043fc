// Package api exposes a small read-only HTTP status surface for operators,
// separate from the game protocol listener.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nexus-vr/nexus/internal/core"
	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/relay"
	"github.com/nexus-vr/nexus/internal/serverdb"
)

type Server struct {
	config   *core.Config
	logger   *logrus.Logger
	relay    *relay.Server
	registry *serverdb.Registry

	startedAt  time.Time
	httpServer *http.Server
}

func NewServer(config *core.Config, logger *logrus.Logger, relayServer *relay.Server, registry *serverdb.Registry) *Server {
	if config.Logging.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{
		config:   config,
		logger:   logger,
		relay:    relayServer,
		registry: registry,
	}
}

// Start serves the API in the background on the configured port.
func (s *Server) Start() error {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/status", s.handleStatus)
	router.GET("/gameservers", s.handleGameServers)
	router.GET("/serviceconfig", s.handleServiceConfig)

	s.startedAt = time.Now()
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.config.Hostname, s.config.API.Port),
		Handler: router,
	}

	go func() {
		s.logger.Infof("status API listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("status API stopped: %v", err)
		}
	}()
	return nil
}

func (s *Server) Stop() {
	if s.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(c *gin.Context) {
	services := gin.H{}
	for _, service := range s.relay.Services() {
		services[service.Name()] = service.PeerCount()
	}

	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"peers":          s.relay.PeerCount(),
		"services":       services,
		"gameservers":    s.registry.Count(),
		"dropped_events": s.relay.DroppedEvents(),
	})
}

func (s *Server) handleGameServers(c *gin.Context) {
	type gameServerView struct {
		ServerID    uint64 `json:"server_id"`
		Endpoint    string `json:"endpoint"`
		Region      string `json:"region"`
		PingMillis  int64  `json:"ping_ms"`
		HasSession  bool   `json:"has_session"`
		SessionID   string `json:"session_id,omitempty"`
		LobbyType   string `json:"lobby_type,omitempty"`
		Locked      bool   `json:"locked,omitempty"`
		PlayerCount int    `json:"player_count"`
		PlayerLimit uint8  `json:"player_limit,omitempty"`
	}

	servers := s.registry.All()
	views := make([]gameServerView, 0, len(servers))
	for _, gs := range servers {
		snap := gs.Snapshot()
		view := gameServerView{
			ServerID:    gs.ServerID,
			Endpoint:    fmt.Sprintf("%s:%d", gs.ExternalIP, gs.Port),
			Region:      gs.Region.String(),
			PingMillis:  gs.Ping().Milliseconds(),
			HasSession:  snap.HasSession,
			PlayerCount: snap.PlayerCount,
		}
		if snap.HasSession {
			view.SessionID = snap.SessionID.String()
			view.LobbyType = snap.LobbyType.String()
			view.Locked = snap.Locked
			view.PlayerLimit = snap.PlayerLimit
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleServiceConfig(c *gin.Context) {
	c.JSON(http.StatusOK, game.NewServiceConfig(
		s.config.PublicHost(), s.config.Port, s.config.ServerDB.APIKey, true))
}
