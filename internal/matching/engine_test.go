package matching

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/protocol"
	"github.com/nexus-vr/nexus/internal/serverdb"
)

type fakeConn struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	sent []protocol.Message
}

func newFakeConn() *fakeConn {
	ctx, cancel := context.WithCancel(context.Background())
	return &fakeConn{ctx: ctx, cancel: cancel}
}

func (f *fakeConn) Context() context.Context { return f.ctx }
func (f *fakeConn) Address() string          { return "127.0.0.1" }
func (f *fakeConn) Disconnect()              { f.cancel() }

func (f *fakeConn) SendMessages(messages ...protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, messages...)
	return nil
}

type serverSpec struct {
	id      uint64
	region  game.Symbol
	ping    time.Duration
	session *sessionSpec
}

type sessionSpec struct {
	id        uuid.UUID
	lobbyType game.LobbyType
	gameType  game.Symbol
	level     game.Symbol
	channel   uuid.UUID
	limit     uint8
	players   int
	locked    bool
}

func buildRegistry(t *testing.T, specs []serverSpec) *serverdb.Registry {
	t.Helper()
	registry := serverdb.NewRegistry()

	for _, spec := range specs {
		gs, err := registry.Register(spec.id, newFakeConn(), net.IP{10, 0, 0, 1},
			net.IP{1, 2, 3, 4}, 6792, spec.region, game.Symbol(1))
		if err != nil {
			t.Fatalf("registering server %d: %v", spec.id, err)
		}
		gs.SetPing(spec.ping)

		if spec.session == nil {
			continue
		}
		s := spec.session
		if err := gs.StartSession(s.id, s.channel, s.lobbyType, s.gameType, s.level, s.limit, nil); err != nil {
			t.Fatalf("starting session on server %d: %v", spec.id, err)
		}
		if err := gs.SessionStarted(s.id); err != nil {
			t.Fatalf("confirming session on server %d: %v", spec.id, err)
		}
		var entrants []uuid.UUID
		for i := 0; i < s.players; i++ {
			entrants = append(entrants, uuid.Must(uuid.NewV4()))
		}
		if len(entrants) > 0 {
			if err := gs.AddEntrants(s.id, entrants); err != nil {
				t.Fatalf("adding entrants on server %d: %v", spec.id, err)
			}
		}
		if s.locked {
			if err := gs.LockSession(s.id); err != nil {
				t.Fatalf("locking session on server %d: %v", spec.id, err)
			}
		}
	}
	return registry
}

var (
	arenaSym  = game.SymbolOf("echo_arena")
	levelSym  = game.SymbolOf("mpl_arena_a")
	regionSym = game.SymbolOf("uscentral")
)

func findRequest(team game.TeamIndex) *MatchingSession {
	return &MatchingSession{
		VersionLock: game.Symbol(1),
		GameType:    arenaSym,
		LobbyType:   game.LobbyTypePublic,
		TeamIndex:   team,
	}
}

func TestMatchEmptyRegistryFails(t *testing.T) {
	engine := NewEngine(serverdb.NewRegistry(), false, true)
	if _, err := engine.Match(findRequest(game.TeamAny)); !errors.Is(err, ErrNoServersAvailable) {
		t.Fatalf("expected ErrNoServersAvailable, got %v", err)
	}
}

func TestMatchPrefersPopulatedSession(t *testing.T) {
	populated := uuid.Must(uuid.NewV4())
	sparse := uuid.Must(uuid.NewV4())
	registry := buildRegistry(t, []serverSpec{
		{id: 1, region: regionSym, ping: 10 * time.Millisecond, session: &sessionSpec{
			id: sparse, lobbyType: game.LobbyTypePublic, gameType: arenaSym, level: levelSym, limit: 8, players: 1,
		}},
		{id: 2, region: regionSym, ping: 90 * time.Millisecond, session: &sessionSpec{
			id: populated, lobbyType: game.LobbyTypePublic, gameType: arenaSym, level: levelSym, limit: 8, players: 6,
		}},
		{id: 3, region: regionSym, ping: 1 * time.Millisecond},
	})
	engine := NewEngine(registry, false, false)

	result, err := engine.Match(findRequest(game.TeamAny))
	if err != nil {
		t.Fatalf("matching: %v", err)
	}
	if result.NewSession || result.SessionID != populated {
		t.Errorf("expected placement into the populated session, got %+v", result)
	}
}

func TestMatchLowPingPreference(t *testing.T) {
	far := uuid.Must(uuid.NewV4())
	registry := buildRegistry(t, []serverSpec{
		{id: 1, region: regionSym, ping: 90 * time.Millisecond, session: &sessionSpec{
			id: far, lobbyType: game.LobbyTypePublic, gameType: arenaSym, level: levelSym, limit: 8, players: 6,
		}},
		{id: 2, region: regionSym, ping: 5 * time.Millisecond},
	})
	engine := NewEngine(registry, true, false)

	result, err := engine.Match(findRequest(game.TeamAny))
	if err != nil {
		t.Fatalf("matching: %v", err)
	}
	if !result.NewSession || result.Server.ServerID != 2 {
		t.Errorf("expected a new session on the closest server, got %+v", result)
	}
}

func TestMatchTieBreakByRegistrationAge(t *testing.T) {
	registry := buildRegistry(t, []serverSpec{
		{id: 1, region: regionSym},
		{id: 2, region: regionSym},
		{id: 3, region: regionSym},
	})
	// Equal population and ping; earliest registration wins.
	first, _ := registry.Lookup(1)
	first.RegisteredAt = first.RegisteredAt.Add(-time.Minute)

	engine := NewEngine(registry, false, false)
	result, err := engine.Match(findRequest(game.TeamAny))
	if err != nil {
		t.Fatalf("matching: %v", err)
	}
	if result.Server.ServerID != 1 {
		t.Errorf("expected the oldest registration to win, got server %d", result.Server.ServerID)
	}
}

func TestMatchPrivateRequiresIdleServer(t *testing.T) {
	public := uuid.Must(uuid.NewV4())
	registry := buildRegistry(t, []serverSpec{
		{id: 1, region: regionSym, session: &sessionSpec{
			id: public, lobbyType: game.LobbyTypePublic, gameType: arenaSym, level: levelSym, limit: 8, players: 2,
		}},
	})
	engine := NewEngine(registry, false, false)

	private := &MatchingSession{
		VersionLock: game.Symbol(1),
		GameType:    game.SymbolOf("echo_arena_private"),
		Level:       levelSym,
		Region:      regionSym,
		LobbyType:   game.LobbyTypePrivate,
		TeamIndex:   game.TeamAny,
	}
	if _, err := engine.Match(private); !errors.Is(err, ErrNoServersAvailable) {
		t.Fatalf("expected private create to fail without an idle server, got %v", err)
	}

	// With an idle server available the private session is provisioned fresh.
	registry2 := buildRegistry(t, []serverSpec{
		{id: 1, region: regionSym, session: &sessionSpec{
			id: public, lobbyType: game.LobbyTypePublic, gameType: arenaSym, level: levelSym, limit: 8, players: 2,
		}},
		{id: 2, region: regionSym},
	})
	engine2 := NewEngine(registry2, false, false)
	result, err := engine2.Match(private)
	if err != nil {
		t.Fatalf("matching: %v", err)
	}
	if !result.NewSession || result.Server.ServerID != 2 {
		t.Errorf("expected a new session on the idle server, got %+v", result)
	}
}

func TestMatchSpectatorOnlyJoinsPublic(t *testing.T) {
	registry := buildRegistry(t, []serverSpec{
		{id: 1, region: regionSym},
	})
	engine := NewEngine(registry, false, false)

	if _, err := engine.Match(findRequest(game.TeamSpectator)); !errors.Is(err, ErrNoServersAvailable) {
		t.Fatalf("expected spectators to skip idle servers, got %v", err)
	}
}

func TestMatchSkipsLockedAndFullSessions(t *testing.T) {
	locked := uuid.Must(uuid.NewV4())
	full := uuid.Must(uuid.NewV4())
	registry := buildRegistry(t, []serverSpec{
		{id: 1, region: regionSym, session: &sessionSpec{
			id: locked, lobbyType: game.LobbyTypePublic, gameType: arenaSym, level: levelSym, limit: 8, players: 2, locked: true,
		}},
		{id: 2, region: regionSym, session: &sessionSpec{
			id: full, lobbyType: game.LobbyTypePublic, gameType: arenaSym, level: levelSym, limit: 2, players: 2,
		}},
	})
	engine := NewEngine(registry, false, false)

	if _, err := engine.Match(findRequest(game.TeamBlue)); !errors.Is(err, ErrNoServersAvailable) {
		t.Fatalf("expected no eligible session, got %v", err)
	}
}

func TestMatchForceAnyRelaxesCriteria(t *testing.T) {
	other := uuid.Must(uuid.NewV4())
	registry := buildRegistry(t, []serverSpec{
		{id: 1, region: regionSym, session: &sessionSpec{
			id: other, lobbyType: game.LobbyTypePublic, gameType: game.SymbolOf("echo_combat"), level: levelSym, limit: 8, players: 3,
		}},
	})

	strict := NewEngine(registry, false, false)
	if _, err := strict.Match(findRequest(game.TeamAny)); !errors.Is(err, ErrNoServersAvailable) {
		t.Fatalf("expected a strict engine to fail, got %v", err)
	}

	relaxed := NewEngine(registry, false, true)
	result, err := relaxed.Match(findRequest(game.TeamAny))
	if err != nil {
		t.Fatalf("matching with relaxed criteria: %v", err)
	}
	if result.SessionID != other {
		t.Errorf("expected placement into the mismatched session, got %+v", result)
	}
}

func TestMatchJoinSpecific(t *testing.T) {
	target := uuid.Must(uuid.NewV4())
	lockedID := uuid.Must(uuid.NewV4())
	fullID := uuid.Must(uuid.NewV4())
	registry := buildRegistry(t, []serverSpec{
		{id: 1, region: regionSym, session: &sessionSpec{
			id: target, lobbyType: game.LobbyTypePrivate, gameType: arenaSym, level: levelSym, limit: 8, players: 2,
		}},
		{id: 2, region: regionSym, session: &sessionSpec{
			id: lockedID, lobbyType: game.LobbyTypePublic, gameType: arenaSym, level: levelSym, limit: 8, players: 2, locked: true,
		}},
		{id: 3, region: regionSym, session: &sessionSpec{
			id: fullID, lobbyType: game.LobbyTypePublic, gameType: arenaSym, level: levelSym, limit: 2, players: 2,
		}},
	})
	engine := NewEngine(registry, false, false)

	result, err := engine.Match(&MatchingSession{LobbyID: target, TeamIndex: game.TeamAny})
	if err != nil {
		t.Fatalf("joining specific lobby: %v", err)
	}
	if result.SessionID != target || result.NewSession {
		t.Errorf("expected to join the target session, got %+v", result)
	}

	if _, err := engine.Match(&MatchingSession{LobbyID: lockedID, TeamIndex: game.TeamAny}); !errors.Is(err, ErrLobbyLocked) {
		t.Fatalf("expected ErrLobbyLocked, got %v", err)
	}

	// Moderators may enter locked sessions.
	if _, err := engine.Match(&MatchingSession{LobbyID: lockedID, TeamIndex: game.TeamModerator}); err != nil {
		t.Fatalf("expected moderators to bypass the lock, got %v", err)
	}

	if _, err := engine.Match(&MatchingSession{LobbyID: fullID, TeamIndex: game.TeamBlue}); !errors.Is(err, ErrLobbyFull) {
		t.Fatalf("expected ErrLobbyFull, got %v", err)
	}

	// Spectators do not count against the limit and may still join.
	if _, err := engine.Match(&MatchingSession{LobbyID: fullID, TeamIndex: game.TeamSpectator}); err != nil {
		t.Fatalf("expected spectators to join the full session, got %v", err)
	}

	if _, err := engine.Match(&MatchingSession{LobbyID: uuid.Must(uuid.NewV4()), TeamIndex: game.TeamAny}); !errors.Is(err, ErrLobbyNotFound) {
		t.Fatalf("expected ErrLobbyNotFound, got %v", err)
	}
}
