package protocol

import (
	"fmt"
	"net"

	"github.com/gofrs/uuid/v5"

	"github.com/nexus-vr/nexus/internal/game"
)

// GameServerRegistrationRequest is sent by a dedicated game server when it
// connects to the serverdb service.
type GameServerRegistrationRequest struct {
	ServerID    uint64
	InternalIP  net.IP
	Port        uint16
	Region      game.Symbol
	VersionLock uint64
}

func (m *GameServerRegistrationRequest) MessageSymbol() game.Symbol {
	return SymbolGameServerRegistrationRequest
}

func (m *GameServerRegistrationRequest) MarshalMessage(w *Writer) error {
	w.WriteUint64(m.ServerID)
	w.WriteIPv4(m.InternalIP)
	w.WriteUint16(m.Port)
	w.WriteSymbol(m.Region)
	w.WriteUint64(m.VersionLock)
	return nil
}

func (m *GameServerRegistrationRequest) UnmarshalMessage(r *Reader) {
	m.ServerID = r.ReadUint64()
	m.InternalIP = r.ReadIPv4()
	m.Port = r.ReadUint16()
	m.Region = r.ReadSymbol()
	m.VersionLock = r.ReadUint64()
}

type GameServerRegistrationSuccess struct {
	ServerID   uint64
	ExternalIP net.IP
}

func (m *GameServerRegistrationSuccess) MessageSymbol() game.Symbol {
	return SymbolGameServerRegistrationSuccess
}

func (m *GameServerRegistrationSuccess) MarshalMessage(w *Writer) error {
	w.WriteUint64(m.ServerID)
	w.WriteIPv4(m.ExternalIP)
	return nil
}

func (m *GameServerRegistrationSuccess) UnmarshalMessage(r *Reader) {
	m.ServerID = r.ReadUint64()
	m.ExternalIP = r.ReadIPv4()
}

// Registration failure codes echoed to the registering game server.
const (
	RegistrationFailureDuplicate   uint8 = 1
	RegistrationFailureUnreachable uint8 = 2
	RegistrationFailureInternal    uint8 = 3
)

type GameServerRegistrationFailure struct {
	Code   uint8
	Reason string
}

func (m *GameServerRegistrationFailure) MessageSymbol() game.Symbol {
	return SymbolGameServerRegistrationFailure
}

func (m *GameServerRegistrationFailure) MarshalMessage(w *Writer) error {
	w.WriteUint8(m.Code)
	w.WriteString(m.Reason)
	return nil
}

func (m *GameServerRegistrationFailure) UnmarshalMessage(r *Reader) {
	m.Code = r.ReadUint8()
	m.Reason = r.ReadString()
}

// GameServerSessionStart instructs a registered game server to host a new
// session. Sent by the matching flow, never by clients.
type GameServerSessionStart struct {
	SessionID       uuid.UUID
	Channel         uuid.UUID
	PlayerLimit     uint8
	LobbyType       game.LobbyType
	GameType        game.Symbol
	Level           game.Symbol
	SessionSettings []byte
}

func (m *GameServerSessionStart) MessageSymbol() game.Symbol { return SymbolGameServerSessionStart }

func (m *GameServerSessionStart) MarshalMessage(w *Writer) error {
	w.WriteGUID(m.SessionID)
	w.WriteGUID(m.Channel)
	w.WriteUint8(m.PlayerLimit)
	w.WriteUint8(uint8(m.LobbyType))
	w.WriteSymbol(m.GameType)
	w.WriteSymbol(m.Level)
	w.WriteBlob(m.SessionSettings)
	return nil
}

func (m *GameServerSessionStart) UnmarshalMessage(r *Reader) {
	m.SessionID = r.ReadGUID()
	m.Channel = r.ReadGUID()
	m.PlayerLimit = r.ReadUint8()
	m.LobbyType = game.LobbyType(r.ReadUint8())
	m.GameType = r.ReadSymbol()
	m.Level = r.ReadSymbol()
	m.SessionSettings = r.ReadBlob()
}

// GameServerSessionStarted acknowledges that the requested session is live.
type GameServerSessionStarted struct {
	SessionID uuid.UUID
}

func (m *GameServerSessionStarted) MessageSymbol() game.Symbol { return SymbolGameServerSessionStarted }

func (m *GameServerSessionStarted) MarshalMessage(w *Writer) error {
	w.WriteGUID(m.SessionID)
	return nil
}

func (m *GameServerSessionStarted) UnmarshalMessage(r *Reader) {
	m.SessionID = r.ReadGUID()
}

type GameServerSessionEnded struct{}

func (m *GameServerSessionEnded) MessageSymbol() game.Symbol   { return SymbolGameServerSessionEnded }
func (m *GameServerSessionEnded) MarshalMessage(*Writer) error { return nil }
func (m *GameServerSessionEnded) UnmarshalMessage(*Reader)     {}

// GameServerSessionLock stops matchmaking from adding entrants to a session.
type GameServerSessionLock struct {
	SessionID uuid.UUID
}

func (m *GameServerSessionLock) MessageSymbol() game.Symbol { return SymbolGameServerSessionLock }

func (m *GameServerSessionLock) MarshalMessage(w *Writer) error {
	w.WriteGUID(m.SessionID)
	return nil
}

func (m *GameServerSessionLock) UnmarshalMessage(r *Reader) {
	m.SessionID = r.ReadGUID()
}

type GameServerSessionUnlock struct {
	SessionID uuid.UUID
}

func (m *GameServerSessionUnlock) MessageSymbol() game.Symbol { return SymbolGameServerSessionUnlock }

func (m *GameServerSessionUnlock) MarshalMessage(w *Writer) error {
	w.WriteGUID(m.SessionID)
	return nil
}

func (m *GameServerSessionUnlock) UnmarshalMessage(r *Reader) {
	m.SessionID = r.ReadGUID()
}

// GameServerEntrantsAdded reports players who have joined the session, which
// keeps registry occupancy current.
type GameServerEntrantsAdded struct {
	SessionID  uuid.UUID
	EntrantIDs []uuid.UUID
}

func (m *GameServerEntrantsAdded) MessageSymbol() game.Symbol { return SymbolGameServerEntrantsAdded }

func (m *GameServerEntrantsAdded) MarshalMessage(w *Writer) error {
	w.WriteGUID(m.SessionID)
	w.WriteUint16(uint16(len(m.EntrantIDs)))
	for _, id := range m.EntrantIDs {
		w.WriteGUID(id)
	}
	return nil
}

func (m *GameServerEntrantsAdded) UnmarshalMessage(r *Reader) {
	m.SessionID = r.ReadGUID()
	count := int(r.ReadUint16())
	if r.Err() != nil {
		return
	}
	if count*16 > r.Remaining() {
		r.fail(fmt.Errorf("entrant count %d exceeds remaining payload", count))
		return
	}
	m.EntrantIDs = make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		m.EntrantIDs = append(m.EntrantIDs, r.ReadGUID())
	}
}

type GameServerEntrantRemoved struct {
	SessionID uuid.UUID
	EntrantID uuid.UUID
}

func (m *GameServerEntrantRemoved) MessageSymbol() game.Symbol { return SymbolGameServerEntrantRemoved }

func (m *GameServerEntrantRemoved) MarshalMessage(w *Writer) error {
	w.WriteGUID(m.SessionID)
	w.WriteGUID(m.EntrantID)
	return nil
}

func (m *GameServerEntrantRemoved) UnmarshalMessage(r *Reader) {
	m.SessionID = r.ReadGUID()
	m.EntrantID = r.ReadGUID()
}
