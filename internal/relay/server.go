package relay

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nexus-vr/nexus/internal/core"
)

const eventQueueSize = 256

// Server multiplexes every logical service over one listener. Connections
// are routed to a Service by request path and upgraded to websockets; from
// there the Service owns the peer.
type Server struct {
	config *core.Config
	logger *logrus.Logger

	services []*Service
	mux      *http.ServeMux
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener

	events        chan Event
	droppedEvents atomic.Uint64
	running       atomic.Bool
}

func NewServer(config *core.Config, logger *logrus.Logger) *Server {
	return &Server{
		config: config,
		logger: logger,
		mux:    http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The game client does not send a browser Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		events: make(chan Event, eventQueueSize),
	}
}

// AddService registers a handler at a connection path. Must be called before
// Start. If apiKey is non-empty, connection attempts must carry a matching
// api_key query parameter or they are rejected before the upgrade.
func (s *Server) AddService(name, path string, handler Handler, apiKey string) *Service {
	service := &Service{
		name:    name,
		path:    path,
		handler: handler,
		server:  s,
		logger:  s.logger,
		peers:   make(map[*Peer]struct{}),
	}
	s.services = append(s.services, service)
	s.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		s.serveConnection(service, apiKey, w, r)
	})
	return service
}

func (s *Server) Services() []*Service { return s.services }

// Events delivers lifecycle notifications. The channel is never closed;
// consumers stop when the server context ends.
func (s *Server) Events() <-chan Event { return s.events }

// DroppedEvents reports how many events were discarded because no consumer
// kept up.
func (s *Server) DroppedEvents() uint64 { return s.droppedEvents.Load() }

// Emit publishes an application-level event onto the server's event stream,
// letting adjacent components (the game server registry) share the channel.
func (s *Server) Emit(event Event) { s.emit(event) }

// PeerCount is the number of connected peers across all services.
func (s *Server) PeerCount() int {
	total := 0
	for _, service := range s.services {
		total += service.PeerCount()
	}
	return total
}

// Start binds the listener, initializes every handler and begins serving.
// It returns once the server is accepting connections.
func (s *Server) Start(ctx context.Context) error {
	for _, service := range s.services {
		if err := service.handler.Init(ctx); err != nil {
			return fmt.Errorf("initializing %s service: %w", service.name, err)
		}
	}

	listener, err := net.Listen("tcp", s.config.BindAddress())
	if err != nil {
		return fmt.Errorf("binding %s: %w", s.config.BindAddress(), err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:     s.mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	s.running.Store(true)
	s.emit(ServerStarted{})
	s.logger.Infof("listening on %s", listener.Addr())

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("server stopped: %v", err)
		}
	}()
	return nil
}

// Port returns the port the server is actually bound to.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Stop disconnects every peer and shuts the listener down.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	for _, service := range s.services {
		for _, peer := range service.Peers() {
			peer.Disconnect()
		}
	}
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}
	s.emit(ServerStopped{})
}

func (s *Server) serveConnection(service *Service, apiKey string, w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		remoteAddr = host
	}

	if s.config.MaxConnections > 0 && s.PeerCount() >= s.config.MaxConnections {
		s.logger.Warnf("[%s] rejecting %s: connection limit reached", service.name, remoteAddr)
		http.Error(w, "server full", http.StatusServiceUnavailable)
		return
	}

	approved := apiKey == "" || r.URL.Query().Get("api_key") == apiKey
	s.emit(AuthorizationResult{RemoteAddr: remoteAddr, ServiceName: service.name, Approved: approved})
	if !approved {
		s.logger.Warnf("[%s] rejecting %s: bad API key", service.name, remoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("[%s] upgrade failed for %s: %v", service.name, remoteAddr, err)
		return
	}
	service.accept(r.Context(), conn)
}

func (s *Server) tracing() bool {
	return s.config.Logging.PacketTracingEnabled
}

func (s *Server) emit(event Event) {
	select {
	case s.events <- event:
	default:
		s.droppedEvents.Add(1)
	}
}
