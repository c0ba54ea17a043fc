package serverdb

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/protocol"
)

var (
	ErrNoSession        = errors.New("game server has no active session")
	ErrSessionMismatch  = errors.New("session id does not match the active session")
	ErrSessionNotFree   = errors.New("game server already hosts a session")
	ErrSessionFull      = errors.New("session is at its player limit")
	ErrSessionNotLocked = errors.New("session is not locked")
)

// GameServerConn is the registry's view of a game server's connection. The
// relay peer satisfies it.
type GameServerConn interface {
	// Context is canceled once the connection is gone.
	Context() context.Context
	Address() string
	SendMessages(messages ...protocol.Message) error
	Disconnect()
}

// sessionState is the lobby a game server is currently hosting. It only
// exists between a session start and the matching session end or the
// server's disconnect.
type sessionState struct {
	id              uuid.UUID
	started         bool
	locked          bool
	channel         uuid.UUID
	lobbyType       game.LobbyType
	gameType        game.Symbol
	level           game.Symbol
	playerLimit     uint8
	sessionSettings []byte
	entrants        map[uuid.UUID]struct{}
}

// RegisteredGameServer is one live game server connection and the session it
// hosts. Identity fields are immutable after registration; session state is
// guarded by the mutex.
type RegisteredGameServer struct {
	ServerID     uint64
	Peer         GameServerConn
	InternalIP   net.IP
	ExternalIP   net.IP
	Port         uint16
	Region       game.Symbol
	VersionLock  game.Symbol
	RegisteredAt time.Time

	mu      sync.RWMutex
	ping    time.Duration
	session *sessionState
}

// SessionSnapshot is a read-only view of a server's session state, taken
// under the lock so matching sees a consistent picture.
type SessionSnapshot struct {
	HasSession  bool
	SessionID   uuid.UUID
	Started     bool
	Locked      bool
	Channel     uuid.UUID
	LobbyType   game.LobbyType
	GameType    game.Symbol
	Level       game.Symbol
	PlayerCount int
	PlayerLimit uint8
}

func (gs *RegisteredGameServer) Snapshot() SessionSnapshot {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	if gs.session == nil {
		return SessionSnapshot{}
	}
	return SessionSnapshot{
		HasSession:  true,
		SessionID:   gs.session.id,
		Started:     gs.session.started,
		Locked:      gs.session.locked,
		Channel:     gs.session.channel,
		LobbyType:   gs.session.lobbyType,
		GameType:    gs.session.gameType,
		Level:       gs.session.level,
		PlayerCount: len(gs.session.entrants),
		PlayerLimit: gs.session.playerLimit,
	}
}

// Ping is the last measured round trip time to the server's endpoint.
func (gs *RegisteredGameServer) Ping() time.Duration {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.ping
}

// SetPing records a measured round trip time for ranking.
func (gs *RegisteredGameServer) SetPing(d time.Duration) {
	gs.mu.Lock()
	gs.ping = d
	gs.mu.Unlock()
}

// StartSession provisions a new session on an idle server. The session is
// pending until the server confirms it with SessionStarted.
func (gs *RegisteredGameServer) StartSession(id, channel uuid.UUID, lobbyType game.LobbyType, gameType, level game.Symbol, playerLimit uint8, settings []byte) error {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.session != nil {
		return ErrSessionNotFree
	}
	gs.session = &sessionState{
		id:              id,
		channel:         channel,
		lobbyType:       lobbyType,
		gameType:        gameType,
		level:           level,
		playerLimit:     playerLimit,
		sessionSettings: settings,
		entrants:        make(map[uuid.UUID]struct{}),
	}
	return nil
}

// SessionStarted marks the pending session as live.
func (gs *RegisteredGameServer) SessionStarted(id uuid.UUID) error {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.session == nil {
		return ErrNoSession
	}
	if gs.session.id != id {
		return ErrSessionMismatch
	}
	gs.session.started = true
	return nil
}

// EndSession clears all session state, leaving the server idle.
func (gs *RegisteredGameServer) EndSession() error {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.session == nil {
		return ErrNoSession
	}
	gs.session = nil
	return nil
}

func (gs *RegisteredGameServer) LockSession(id uuid.UUID) error {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.session == nil {
		return ErrNoSession
	}
	if gs.session.id != id {
		return ErrSessionMismatch
	}
	gs.session.locked = true
	return nil
}

func (gs *RegisteredGameServer) UnlockSession(id uuid.UUID) error {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.session == nil {
		return ErrNoSession
	}
	if gs.session.id != id {
		return ErrSessionMismatch
	}
	gs.session.locked = false
	return nil
}

// AddEntrants records players the server accepted into its session.
func (gs *RegisteredGameServer) AddEntrants(id uuid.UUID, entrants []uuid.UUID) error {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.session == nil {
		return ErrNoSession
	}
	if gs.session.id != id {
		return ErrSessionMismatch
	}
	if gs.session.playerLimit > 0 && len(gs.session.entrants)+len(entrants) > int(gs.session.playerLimit) {
		return ErrSessionFull
	}
	for _, entrant := range entrants {
		gs.session.entrants[entrant] = struct{}{}
	}
	return nil
}

func (gs *RegisteredGameServer) RemoveEntrant(id, entrant uuid.UUID) error {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.session == nil {
		return ErrNoSession
	}
	if gs.session.id != id {
		return ErrSessionMismatch
	}
	delete(gs.session.entrants, entrant)
	return nil
}
