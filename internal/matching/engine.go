package matching

import (
	"errors"
	"sort"

	"github.com/gofrs/uuid/v5"

	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/serverdb"
)

var (
	ErrNoServersAvailable = errors.New("no game server satisfies the request")
	ErrLobbyNotFound      = errors.New("requested lobby does not exist")
	ErrLobbyFull          = errors.New("requested lobby is full")
	ErrLobbyLocked        = errors.New("requested lobby is locked")
)

// Result is the engine's placement decision. When NewSession is set the
// caller must provision the session on the server before directing the
// player to it.
type Result struct {
	Server     *serverdb.RegisteredGameServer
	SessionID  uuid.UUID
	NewSession bool
}

// Engine selects game servers for matching sessions from the live registry.
type Engine struct {
	registry *serverdb.Registry

	// Rank idle ping over population when choosing among candidates.
	lowPingPreference bool
	// Retry with relaxed criteria before failing a request outright.
	forceAnySession bool
}

func NewEngine(registry *serverdb.Registry, lowPingPreference, forceAnySession bool) *Engine {
	return &Engine{
		registry:          registry,
		lowPingPreference: lowPingPreference,
		forceAnySession:   forceAnySession,
	}
}

// Match resolves a session to a concrete server. Join-specific requests are
// answered exactly or not at all; open requests are filtered, ranked, and
// optionally retried with relaxed criteria.
func (e *Engine) Match(session *MatchingSession) (*Result, error) {
	if session.JoinSpecific() {
		return e.matchSpecific(session)
	}

	servers := e.registry.All()
	if result := e.search(servers, session, false); result != nil {
		return result, nil
	}
	if e.forceAnySession {
		if result := e.search(servers, session, true); result != nil {
			return result, nil
		}
	}
	return nil, ErrNoServersAvailable
}

func (e *Engine) matchSpecific(session *MatchingSession) (*Result, error) {
	for _, gs := range e.registry.All() {
		snap := gs.Snapshot()
		if !snap.HasSession || snap.SessionID != session.LobbyID {
			continue
		}
		if snap.Locked && session.TeamIndex != game.TeamModerator {
			return nil, ErrLobbyLocked
		}
		if occupied(snap, session.TeamIndex) {
			return nil, ErrLobbyFull
		}
		return &Result{Server: gs, SessionID: snap.SessionID}, nil
	}
	return nil, ErrLobbyNotFound
}

type candidate struct {
	server *serverdb.RegisteredGameServer
	snap   serverdb.SessionSnapshot
}

func (e *Engine) search(servers []*serverdb.RegisteredGameServer, session *MatchingSession, relaxed bool) *Result {
	var candidates []candidate
	for _, gs := range servers {
		snap := gs.Snapshot()
		if !e.eligible(gs, snap, session, relaxed) {
			continue
		}
		candidates = append(candidates, candidate{server: gs, snap: snap})
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return e.rank(candidates[i], candidates[j])
	})

	best := candidates[0]
	if best.snap.HasSession {
		return &Result{Server: best.server, SessionID: best.snap.SessionID}
	}
	return &Result{Server: best.server, SessionID: uuid.Must(uuid.NewV4()), NewSession: true}
}

func (e *Engine) eligible(gs *serverdb.RegisteredGameServer, snap serverdb.SessionSnapshot, session *MatchingSession, relaxed bool) bool {
	if session.VersionLock != game.SymbolNone && gs.VersionLock != game.SymbolNone &&
		gs.VersionLock != session.VersionLock {
		return false
	}
	if !relaxed && session.Region != game.SymbolNone && gs.Region != session.Region {
		return false
	}

	for _, lobbyType := range session.SearchLobbyTypes() {
		switch lobbyType {
		case game.LobbyTypeUnassigned:
			if !snap.HasSession {
				return true
			}
		case game.LobbyTypePublic:
			if !snap.HasSession || snap.LobbyType != game.LobbyTypePublic || !snap.Started {
				continue
			}
			if snap.Locked || occupied(snap, session.TeamIndex) {
				continue
			}
			if relaxed {
				return true
			}
			if session.GameType != game.SymbolNone && snap.GameType != session.GameType {
				continue
			}
			if session.Level != game.SymbolNone && snap.Level != session.Level {
				continue
			}
			if session.Channel != uuid.Nil && snap.Channel != session.Channel {
				continue
			}
			return true
		}
	}
	return false
}

// rank orders candidates best-first. The default policy fills populated
// sessions before spinning up new ones; the low ping policy prefers the
// closest server. Registration age breaks ties so results are stable.
func (e *Engine) rank(a, b candidate) bool {
	if e.lowPingPreference {
		if a.server.Ping() != b.server.Ping() {
			return a.server.Ping() < b.server.Ping()
		}
	} else {
		if a.snap.PlayerCount != b.snap.PlayerCount {
			return a.snap.PlayerCount > b.snap.PlayerCount
		}
	}
	return a.server.RegisteredAt.Before(b.server.RegisteredAt)
}

// occupied reports whether the session has no room for the requested team.
// Spectators and moderators do not count against the player limit.
func occupied(snap serverdb.SessionSnapshot, team game.TeamIndex) bool {
	if team == game.TeamSpectator || team == game.TeamModerator {
		return false
	}
	return snap.PlayerLimit > 0 && snap.PlayerCount >= int(snap.PlayerLimit)
}
