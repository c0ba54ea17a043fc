package protocol

import (
	"net"

	"github.com/gofrs/uuid/v5"

	"github.com/nexus-vr/nexus/internal/game"
)

// CreateSessionRequest asks matchmaking to start a fresh session with
// explicit game type, level, and lobby type.
type CreateSessionRequest struct {
	VersionLock     uint64
	GameType        game.Symbol
	Level           game.Symbol
	Region          game.Symbol
	Channel         uuid.UUID
	LobbyType       game.LobbyType
	TeamIndex       game.TeamIndex
	SessionSettings []byte
}

func (m *CreateSessionRequest) MessageSymbol() game.Symbol { return SymbolCreateSessionRequest }

func (m *CreateSessionRequest) MarshalMessage(w *Writer) error {
	w.WriteUint64(m.VersionLock)
	w.WriteSymbol(m.GameType)
	w.WriteSymbol(m.Level)
	w.WriteSymbol(m.Region)
	w.WriteGUID(m.Channel)
	w.WriteUint8(uint8(m.LobbyType))
	w.WriteInt16(int16(m.TeamIndex))
	w.WriteBlob(m.SessionSettings)
	return nil
}

func (m *CreateSessionRequest) UnmarshalMessage(r *Reader) {
	m.VersionLock = r.ReadUint64()
	m.GameType = r.ReadSymbol()
	m.Level = r.ReadSymbol()
	m.Region = r.ReadSymbol()
	m.Channel = r.ReadGUID()
	m.LobbyType = game.LobbyType(r.ReadUint8())
	m.TeamIndex = game.TeamIndex(r.ReadInt16())
	m.SessionSettings = r.ReadBlob()
}

// FindSessionRequest asks open matchmaking to place the player into an
// existing public session.
type FindSessionRequest struct {
	VersionLock     uint64
	GameType        game.Symbol
	Channel         uuid.UUID
	TeamIndex       game.TeamIndex
	SessionSettings []byte
}

func (m *FindSessionRequest) MessageSymbol() game.Symbol { return SymbolFindSessionRequest }

func (m *FindSessionRequest) MarshalMessage(w *Writer) error {
	w.WriteUint64(m.VersionLock)
	w.WriteSymbol(m.GameType)
	w.WriteGUID(m.Channel)
	w.WriteInt16(int16(m.TeamIndex))
	w.WriteBlob(m.SessionSettings)
	return nil
}

func (m *FindSessionRequest) UnmarshalMessage(r *Reader) {
	m.VersionLock = r.ReadUint64()
	m.GameType = r.ReadSymbol()
	m.Channel = r.ReadGUID()
	m.TeamIndex = game.TeamIndex(r.ReadInt16())
	m.SessionSettings = r.ReadBlob()
}

// JoinSessionRequest asks to join one specific lobby, used when rejoining or
// following another player.
type JoinSessionRequest struct {
	LobbyID   uuid.UUID
	TeamIndex game.TeamIndex
}

func (m *JoinSessionRequest) MessageSymbol() game.Symbol { return SymbolJoinSessionRequest }

func (m *JoinSessionRequest) MarshalMessage(w *Writer) error {
	w.WriteGUID(m.LobbyID)
	w.WriteInt16(int16(m.TeamIndex))
	return nil
}

func (m *JoinSessionRequest) UnmarshalMessage(r *Reader) {
	m.LobbyID = r.ReadGUID()
	m.TeamIndex = game.TeamIndex(r.ReadInt16())
}

// MatchingSuccess directs the client to the game server hosting its session.
type MatchingSuccess struct {
	SessionID uuid.UUID
	GameType  game.Symbol
	Endpoint  net.IP
	Port      uint16
	TeamIndex game.TeamIndex
}

func (m *MatchingSuccess) MessageSymbol() game.Symbol { return SymbolMatchingSuccess }

func (m *MatchingSuccess) MarshalMessage(w *Writer) error {
	w.WriteGUID(m.SessionID)
	w.WriteSymbol(m.GameType)
	w.WriteIPv4(m.Endpoint)
	w.WriteUint16(m.Port)
	w.WriteInt16(int16(m.TeamIndex))
	return nil
}

func (m *MatchingSuccess) UnmarshalMessage(r *Reader) {
	m.SessionID = r.ReadGUID()
	m.GameType = r.ReadSymbol()
	m.Endpoint = r.ReadIPv4()
	m.Port = r.ReadUint16()
	m.TeamIndex = game.TeamIndex(r.ReadInt16())
}

type MatchingFailure struct {
	Channel    uuid.UUID
	GameType   game.Symbol
	StatusCode uint64
	Reason     string
}

func (m *MatchingFailure) MessageSymbol() game.Symbol { return SymbolMatchingFailure }

func (m *MatchingFailure) MarshalMessage(w *Writer) error {
	w.WriteGUID(m.Channel)
	w.WriteSymbol(m.GameType)
	w.WriteUint64(m.StatusCode)
	w.WriteString(m.Reason)
	return nil
}

func (m *MatchingFailure) UnmarshalMessage(r *Reader) {
	m.Channel = r.ReadGUID()
	m.GameType = r.ReadSymbol()
	m.StatusCode = r.ReadUint64()
	m.Reason = r.ReadString()
}
