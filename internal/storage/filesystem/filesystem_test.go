package filesystem

import (
	"context"
	"errors"
	"testing"

	"github.com/go-test/deep"

	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/storage"
)

func newTestStorage(t *testing.T, cacheEnabled bool) *storage.Storage {
	t.Helper()
	store, err := NewStorage(t.TempDir(), cacheEnabled)
	if err != nil {
		t.Fatalf("creating storage: %v", err)
	}
	return store
}

func TestSingletonResource(t *testing.T) {
	for name, cacheEnabled := range map[string]bool{"cached": true, "uncached": false} {
		t.Run(name, func(t *testing.T) {
			store := newTestStorage(t, cacheEnabled)
			ctx := context.Background()

			exists, err := store.AccessControlList.Exists(ctx)
			if err != nil {
				t.Fatalf("checking existence: %v", err)
			}
			if exists {
				t.Fatal("expected resource to be absent in a fresh store")
			}
			if _, err := store.AccessControlList.Get(ctx); !errors.Is(err, storage.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			acl := &storage.AccessControlListResource{
				AllowRules:    []string{"*"},
				DisallowRules: []string{"DMO-*"},
			}
			if err := store.AccessControlList.Set(ctx, acl); err != nil {
				t.Fatalf("setting resource: %v", err)
			}

			got, err := store.AccessControlList.Get(ctx)
			if err != nil {
				t.Fatalf("getting resource: %v", err)
			}
			if diff := deep.Equal(got, acl); diff != nil {
				t.Error(diff)
			}

			if _, err := store.AccessControlList.Delete(ctx); err != nil {
				t.Fatalf("deleting resource: %v", err)
			}
			if _, err := store.AccessControlList.Get(ctx); !errors.Is(err, storage.ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestKeyedResource(t *testing.T) {
	store := newTestStorage(t, true)
	ctx := context.Background()

	first := game.XPlatformId{Platform: game.PlatformOculusOrg, AccountID: 100}
	second := game.XPlatformId{Platform: game.PlatformSteam, AccountID: 200}

	if _, err := store.Accounts.Get(ctx, first); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for _, id := range []game.XPlatformId{first, second} {
		account := &storage.AccountResource{ID: id, DisplayName: "player-" + id.String()}
		if err := store.Accounts.Set(ctx, id, account); err != nil {
			t.Fatalf("setting account %s: %v", id, err)
		}
	}

	got, err := store.Accounts.Get(ctx, first)
	if err != nil {
		t.Fatalf("getting account: %v", err)
	}
	if got.DisplayName != "player-"+first.String() {
		t.Errorf("unexpected display name %q", got.DisplayName)
	}

	keys, err := store.Accounts.Keys(ctx)
	if err != nil {
		t.Fatalf("listing keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d: %v", len(keys), keys)
	}

	if _, err := store.Accounts.Delete(ctx, second); err != nil {
		t.Fatalf("deleting account: %v", err)
	}
	exists, err := store.Accounts.Exists(ctx, second)
	if err != nil {
		t.Fatalf("checking existence: %v", err)
	}
	if exists {
		t.Error("expected account to be gone after delete")
	}
}

func TestCompositeKeyedResources(t *testing.T) {
	store := newTestStorage(t, false)
	ctx := context.Background()

	key := storage.ConfigKey{Type: "active_battle_pass_season", Identifier: "default"}
	config := &storage.ConfigResource{
		Type:       key.Type,
		Identifier: key.Identifier,
		Data:       []byte(`{"season":7}`),
	}
	if err := store.Configs.Set(ctx, key, config); err != nil {
		t.Fatalf("setting config: %v", err)
	}

	keys, err := store.Configs.Keys(ctx)
	if err != nil {
		t.Fatalf("listing config keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != key {
		t.Fatalf("unexpected keys %v", keys)
	}

	got, err := store.Configs.Get(ctx, key)
	if err != nil {
		t.Fatalf("getting config: %v", err)
	}
	if diff := deep.Equal(got, config); diff != nil {
		t.Error(diff)
	}
}

func TestDeployInitialResources(t *testing.T) {
	store := newTestStorage(t, true)
	ctx := context.Background()

	exists, err := store.CriticalResourcesExist(ctx)
	if err != nil {
		t.Fatalf("checking critical resources: %v", err)
	}
	if exists {
		t.Fatal("expected a fresh store to be missing critical resources")
	}

	extra := map[string]game.Symbol{"custom_level": game.SymbolOf("custom_level")}
	if err := storage.DeployInitialResources(ctx, store, extra); err != nil {
		t.Fatalf("deploying: %v", err)
	}

	exists, err = store.CriticalResourcesExist(ctx)
	if err != nil {
		t.Fatalf("checking critical resources: %v", err)
	}
	if !exists {
		t.Fatal("expected critical resources after deployment")
	}

	symbols, err := store.SymbolCache.Get(ctx)
	if err != nil {
		t.Fatalf("getting symbol cache: %v", err)
	}
	if symbols.Symbols["custom_level"] != game.SymbolOf("custom_level") {
		t.Error("expected extra symbols to be merged into the cache")
	}
	if symbols.Symbols["echo_arena"] != game.SymbolOf("echo_arena") {
		t.Error("expected seed symbols to be present")
	}
}
