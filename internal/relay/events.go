package relay

import (
	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/protocol"
)

// Event is a cross-cutting lifecycle notification consumed from
// Server.Events by whichever layer needs it (logging, telemetry, the status
// API). Events are advisory: the server never blocks on a slow consumer and
// will drop events if the channel backs up.
type Event interface {
	event()
}

type ServerStarted struct{}

type ServerStopped struct{}

// AuthorizationResult is emitted whenever a connection attempt passes or
// fails the transport gate, independent of later protocol authentication.
type AuthorizationResult struct {
	RemoteAddr  string
	ServiceName string
	Approved    bool
}

type PeerConnected struct {
	Service *Service
	Peer    *Peer
}

type PeerDisconnected struct {
	Service *Service
	Peer    *Peer
}

type PeerAuthenticated struct {
	Service     *Service
	Peer        *Peer
	UserID      game.XPlatformId
	DisplayName string
}

// GameServerRegistered and GameServerUnregistered mirror registry changes
// onto the event stream so consumers can refresh counters without polling.
type GameServerRegistered struct {
	ServerID uint64
}

type GameServerUnregistered struct {
	ServerID uint64
}

// PacketSent and PacketReceived are only emitted when packet tracing is
// enabled in the config.
type PacketSent struct {
	Service *Service
	Peer    *Peer
	Packet  protocol.Packet
}

type PacketReceived struct {
	Service *Service
	Peer    *Peer
	Packet  protocol.Packet
}

func (ServerStarted) event()          {}
func (ServerStopped) event()          {}
func (AuthorizationResult) event()    {}
func (PeerConnected) event()          {}
func (PeerDisconnected) event()       {}
func (PeerAuthenticated) event()      {}
func (GameServerRegistered) event()   {}
func (GameServerUnregistered) event() {}
func (PacketSent) event()             {}
func (PacketReceived) event()         {}
