package matching

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/protocol"
	"github.com/nexus-vr/nexus/internal/relay"
)

// MatchingSession captures one player's placement request, normalized across
// the three request shapes so the engine can treat them uniformly.
type MatchingSession struct {
	Peer      *relay.Peer
	CreatedAt time.Time

	VersionLock     game.Symbol
	GameType        game.Symbol
	Level           game.Symbol
	Region          game.Symbol
	Channel         uuid.UUID
	LobbyType       game.LobbyType
	TeamIndex       game.TeamIndex
	SessionSettings []byte

	// LobbyID is set only for join-specific requests and pins the search to
	// one session.
	LobbyID uuid.UUID
}

// FromCreateSessionCriteria builds a session for an explicit create request.
func FromCreateSessionCriteria(peer *relay.Peer, msg *protocol.CreateSessionRequest) *MatchingSession {
	return &MatchingSession{
		Peer:            peer,
		CreatedAt:       time.Now(),
		VersionLock:     game.Symbol(msg.VersionLock),
		GameType:        msg.GameType,
		Level:           msg.Level,
		Region:          msg.Region,
		Channel:         msg.Channel,
		LobbyType:       msg.LobbyType,
		TeamIndex:       msg.TeamIndex,
		SessionSettings: msg.SessionSettings,
	}
}

// FromFindSessionCriteria builds a session for open matchmaking. Find
// requests always seek a public lobby; the search set is derived from the
// team index.
func FromFindSessionCriteria(peer *relay.Peer, msg *protocol.FindSessionRequest) *MatchingSession {
	return &MatchingSession{
		Peer:            peer,
		CreatedAt:       time.Now(),
		VersionLock:     game.Symbol(msg.VersionLock),
		GameType:        msg.GameType,
		Channel:         msg.Channel,
		LobbyType:       game.LobbyTypePublic,
		TeamIndex:       msg.TeamIndex,
		SessionSettings: msg.SessionSettings,
	}
}

// FromJoinSpecificSessionCriteria builds a session pinned to one lobby.
func FromJoinSpecificSessionCriteria(peer *relay.Peer, msg *protocol.JoinSessionRequest) *MatchingSession {
	return &MatchingSession{
		Peer:      peer,
		CreatedAt: time.Now(),
		LobbyID:   msg.LobbyID,
		LobbyType: game.LobbyTypeUnassigned,
		TeamIndex: msg.TeamIndex,
	}
}

// JoinSpecific reports whether the request targets one known lobby.
func (s *MatchingSession) JoinSpecific() bool {
	return s.LobbyID != uuid.Nil
}

// SearchLobbyTypes derives which lobby states are eligible for this request.
// Private requests may only claim an idle server; spectators may only watch
// sessions that are already public; everything else may join a public
// session or claim an idle server for a new one.
func (s *MatchingSession) SearchLobbyTypes() []game.LobbyType {
	switch {
	case s.LobbyType == game.LobbyTypePrivate:
		return []game.LobbyType{game.LobbyTypeUnassigned}
	case s.TeamIndex == game.TeamSpectator:
		return []game.LobbyType{game.LobbyTypePublic}
	default:
		return []game.LobbyType{game.LobbyTypeUnassigned, game.LobbyTypePublic}
	}
}
