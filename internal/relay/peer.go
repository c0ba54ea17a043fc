package relay

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/protocol"
)

// ErrPeerClosed is returned from SendMessages once a peer's connection has
// been torn down.
var ErrPeerClosed = errors.New("peer connection closed")

const outboundQueueSize = 64

// flushTimeout bounds how long a disconnecting peer may spend writing
// already-queued replies before the socket is torn down.
const flushTimeout = time.Second

// Peer is one websocket connection attached to a Service. All inbound
// messages for a peer are dispatched sequentially from a single read loop;
// outbound messages are serialized through a send queue so handlers may send
// from any goroutine.
type Peer struct {
	service *Service
	conn    *websocket.Conn

	remoteAddr string
	remotePort string

	outbound  chan []byte
	writeDone chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu          sync.RWMutex
	userID      *game.XPlatformId
	displayName string
}

func newPeer(parent context.Context, service *Service, conn *websocket.Conn) *Peer {
	ctx, cancel := context.WithCancel(parent)
	host, port, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}
	return &Peer{
		service:    service,
		conn:       conn,
		remoteAddr: host,
		remotePort: port,
		outbound:   make(chan []byte, outboundQueueSize),
		writeDone:  make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (p *Peer) Service() *Service { return p.service }

// Address returns the remote host without the port.
func (p *Peer) Address() string { return p.remoteAddr }

func (p *Peer) Port() string { return p.remotePort }

// Context is canceled when the peer disconnects; long-running work done on a
// peer's behalf should derive from it.
func (p *Peer) Context() context.Context { return p.ctx }

// Identity returns the platform identifier the peer authenticated with, if
// any. The identity is set at most once for the lifetime of the connection.
func (p *Peer) Identity() (game.XPlatformId, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.userID == nil {
		return game.XPlatformId{}, false
	}
	return *p.userID, true
}

func (p *Peer) Authenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.userID != nil
}

func (p *Peer) DisplayName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.displayName
}

// setIdentity binds the peer to a user. It reports false when the peer
// already carries a different identity.
func (p *Peer) setIdentity(id game.XPlatformId, displayName string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.userID != nil {
		return *p.userID == id
	}
	p.userID = &id
	p.displayName = displayName
	return true
}

// SendMessages encodes the messages as one packet and queues it for
// delivery. Ordering is preserved relative to other sends on this peer.
func (p *Peer) SendMessages(messages ...protocol.Message) error {
	data, err := protocol.Encode(protocol.Packet(messages))
	if err != nil {
		return err
	}
	select {
	case <-p.ctx.Done():
		return ErrPeerClosed
	case p.outbound <- data:
	}
	if p.service.server.tracing() {
		p.service.server.emit(PacketSent{Service: p.service, Peer: p, Packet: messages})
	}
	return nil
}

// Disconnect tears the connection down. Safe to call multiple times and from
// any goroutine; the service's disconnect handling runs exactly once. Replies
// already queued when Disconnect is called are given a bounded window to
// reach the wire, so a failure response is not lost to the teardown.
func (p *Peer) Disconnect() {
	p.closeOnce.Do(func() {
		p.cancel()
		select {
		case <-p.writeDone:
		case <-time.After(flushTimeout):
		}
		p.conn.Close()
		p.service.removePeer(p)
	})
}

func (p *Peer) writeLoop() {
	defer close(p.writeDone)
	for {
		select {
		case <-p.ctx.Done():
			p.flush()
			return
		case data := <-p.outbound:
			if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				// A broken socket fails the read loop too, which owns the
				// rest of the teardown.
				p.cancel()
				p.conn.Close()
				return
			}
		}
	}
}

// flush drains replies that were queued before the disconnect.
func (p *Peer) flush() {
	p.conn.SetWriteDeadline(time.Now().Add(flushTimeout))
	for {
		select {
		case data := <-p.outbound:
			if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}
