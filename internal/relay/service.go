package relay

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/protocol"
)

// Handler implements the message semantics of one logical service. A Handler
// sees every decoded message from every peer connected to its path and
// replies through Peer.SendMessages.
type Handler interface {
	// Identifier is the service's short name, used in logs and peer stats.
	Identifier() string
	// Init is called once before the server starts accepting connections.
	Init(ctx context.Context) error
	// HandleMessage processes one inbound message. Returning an error
	// disconnects the peer.
	HandleMessage(ctx context.Context, peer *Peer, message protocol.Message) error
}

// DisconnectObserver is implemented by handlers that need to know when a
// peer goes away, whatever the cause. Notified exactly once per peer.
type DisconnectObserver interface {
	PeerDisconnected(peer *Peer)
}

// Service binds a Handler to a connection path and tracks its peers.
type Service struct {
	name    string
	path    string
	handler Handler
	server  *Server
	logger  *logrus.Logger

	mu    sync.RWMutex
	peers map[*Peer]struct{}
}

func (s *Service) Name() string { return s.name }

func (s *Service) Path() string { return s.path }

func (s *Service) PeerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// Peers returns a snapshot of the currently connected peers.
func (s *Service) Peers() []*Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	peers := make([]*Peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	return peers
}

// AuthenticatePeer records the identity a peer proved during login. The
// binding is one-way; a second attempt with a different identity fails.
func (s *Service) AuthenticatePeer(peer *Peer, id game.XPlatformId, displayName string) bool {
	if !peer.setIdentity(id, displayName) {
		return false
	}
	s.server.emit(PeerAuthenticated{Service: s, Peer: peer, UserID: id, DisplayName: displayName})
	return true
}

// ReportAuthorization publishes the outcome of an authentication attempt on
// an established connection, alongside the transport gate's own results.
func (s *Service) ReportAuthorization(peer *Peer, approved bool) {
	s.server.emit(AuthorizationResult{RemoteAddr: peer.Address(), ServiceName: s.name, Approved: approved})
}

// accept owns the peer for the lifetime of the connection: it registers the
// peer, runs the read loop inline and guarantees teardown on exit.
func (s *Service) accept(ctx context.Context, conn *websocket.Conn) {
	peer := newPeer(ctx, s, conn)

	s.mu.Lock()
	s.peers[peer] = struct{}{}
	s.mu.Unlock()

	s.server.emit(PeerConnected{Service: s, Peer: peer})
	s.logger.Infof("[%s] accepted connection from %s", s.name, peer.Address())

	go peer.writeLoop()
	defer peer.Disconnect()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("[%s] panic handling peer %s: %v\n%s", s.name, peer.Address(), r, debug.Stack())
		}
	}()

	s.readLoop(ctx, peer, conn)
}

func (s *Service) readLoop(ctx context.Context, peer *Peer, conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debugf("[%s] read error from %s: %v", s.name, peer.Address(), err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		packet, err := protocol.Decode(data)
		if err != nil {
			if errors.Is(err, protocol.ErrNeedMoreData) {
				// Partial frames are not valid over a message-oriented
				// transport; treat them like corruption.
				err = protocol.ErrCorruptStream
			}
			s.logger.Warnf("[%s] dropping %s: %v", s.name, peer.Address(), err)
			return
		}

		if s.server.tracing() {
			s.server.emit(PacketReceived{Service: s, Peer: peer, Packet: packet})
		}

		for _, message := range packet {
			if err := s.handler.HandleMessage(ctx, peer, message); err != nil {
				s.logger.Warnf("[%s] error handling %s from %s: %v",
					s.name, protocol.MessageName(message.MessageSymbol()), peer.Address(), err)
				return
			}
		}
	}
}

func (s *Service) removePeer(peer *Peer) {
	s.mu.Lock()
	_, present := s.peers[peer]
	delete(s.peers, peer)
	s.mu.Unlock()
	if !present {
		return
	}

	if observer, ok := s.handler.(DisconnectObserver); ok {
		observer.PeerDisconnected(peer)
	}
	s.server.emit(PeerDisconnected{Service: s, Peer: peer})
	s.logger.Infof("[%s] disconnected peer %s", s.name, peer.Address())
}
