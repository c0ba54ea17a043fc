package serverdb

import (
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"

	"github.com/nexus-vr/nexus/internal/game"
)

func TestSessionLifecycle(t *testing.T) {
	gs := &RegisteredGameServer{ServerID: 1}
	sessionID := uuid.Must(uuid.NewV4())
	channel := uuid.Must(uuid.NewV4())

	if snap := gs.Snapshot(); snap.HasSession {
		t.Fatal("expected a fresh server to be idle")
	}

	err := gs.StartSession(sessionID, channel, game.LobbyTypePublic,
		game.SymbolOf("echo_arena"), game.SymbolOf("mpl_arena_a"), 8, []byte(`{}`))
	if err != nil {
		t.Fatalf("starting session: %v", err)
	}

	// A second provisioning attempt must fail while the session is pending.
	err = gs.StartSession(uuid.Must(uuid.NewV4()), channel, game.LobbyTypePublic,
		game.SymbolOf("echo_arena"), game.SymbolOf("mpl_arena_a"), 8, nil)
	if !errors.Is(err, ErrSessionNotFree) {
		t.Fatalf("expected ErrSessionNotFree, got %v", err)
	}

	snap := gs.Snapshot()
	if !snap.HasSession || snap.Started {
		t.Fatalf("expected a pending session, got %+v", snap)
	}

	if err := gs.SessionStarted(uuid.Must(uuid.NewV4())); !errors.Is(err, ErrSessionMismatch) {
		t.Fatalf("expected ErrSessionMismatch for the wrong id, got %v", err)
	}
	if err := gs.SessionStarted(sessionID); err != nil {
		t.Fatalf("confirming session: %v", err)
	}
	if snap := gs.Snapshot(); !snap.Started {
		t.Fatal("expected the session to be live after confirmation")
	}

	if err := gs.EndSession(); err != nil {
		t.Fatalf("ending session: %v", err)
	}
	if snap := gs.Snapshot(); snap.HasSession {
		t.Fatal("expected the server to be idle after session end")
	}
	if err := gs.EndSession(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestSessionLocking(t *testing.T) {
	gs := &RegisteredGameServer{ServerID: 1}
	sessionID := uuid.Must(uuid.NewV4())

	if err := gs.LockSession(sessionID); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	if err := gs.StartSession(sessionID, uuid.Nil, game.LobbyTypePrivate,
		game.SymbolOf("echo_arena_private"), game.SymbolOf("mpl_arena_a"), 8, nil); err != nil {
		t.Fatalf("starting session: %v", err)
	}

	if err := gs.LockSession(sessionID); err != nil {
		t.Fatalf("locking: %v", err)
	}
	if snap := gs.Snapshot(); !snap.Locked {
		t.Fatal("expected the session to be locked")
	}

	if err := gs.UnlockSession(uuid.Must(uuid.NewV4())); !errors.Is(err, ErrSessionMismatch) {
		t.Fatalf("expected ErrSessionMismatch, got %v", err)
	}
	if err := gs.UnlockSession(sessionID); err != nil {
		t.Fatalf("unlocking: %v", err)
	}
	if snap := gs.Snapshot(); snap.Locked {
		t.Fatal("expected the session to be unlocked")
	}
}

func TestSessionEntrants(t *testing.T) {
	gs := &RegisteredGameServer{ServerID: 1}
	sessionID := uuid.Must(uuid.NewV4())

	if err := gs.StartSession(sessionID, uuid.Nil, game.LobbyTypePublic,
		game.SymbolOf("echo_arena"), game.SymbolOf("mpl_arena_a"), 2, nil); err != nil {
		t.Fatalf("starting session: %v", err)
	}

	first := uuid.Must(uuid.NewV4())
	second := uuid.Must(uuid.NewV4())
	if err := gs.AddEntrants(sessionID, []uuid.UUID{first, second}); err != nil {
		t.Fatalf("adding entrants: %v", err)
	}
	if snap := gs.Snapshot(); snap.PlayerCount != 2 {
		t.Fatalf("expected 2 entrants, got %d", snap.PlayerCount)
	}

	if err := gs.AddEntrants(sessionID, []uuid.UUID{uuid.Must(uuid.NewV4())}); !errors.Is(err, ErrSessionFull) {
		t.Fatalf("expected ErrSessionFull at the player limit, got %v", err)
	}

	if err := gs.RemoveEntrant(sessionID, second); err != nil {
		t.Fatalf("removing entrant: %v", err)
	}
	if snap := gs.Snapshot(); snap.PlayerCount != 1 {
		t.Fatalf("expected 1 entrant after removal, got %d", snap.PlayerCount)
	}

	if err := gs.AddEntrants(uuid.Must(uuid.NewV4()), []uuid.UUID{first}); !errors.Is(err, ErrSessionMismatch) {
		t.Fatalf("expected ErrSessionMismatch, got %v", err)
	}
}
