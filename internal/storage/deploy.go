package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/nexus-vr/nexus/internal/game"
)

// Names whose symbols are always seeded into a fresh symbol cache. The cache
// grows as the operator extracts further symbols from the game executable.
var seedSymbolNames = []string{
	"echo_arena",
	"echo_arena_private",
	"echo_combat",
	"echo_combat_private",
	"social_2.0",
	"social_2.0_private",
	"mpl_lobby_b2",
	"mpl_arena_a",
	"mpl_combat_dyson",
	"mpl_combat_combustion",
	"default_region",
}

// DeployInitialResources writes the critical resources a fresh installation
// needs before it can accept logins. Existing resources are left untouched;
// any store failure during deployment is fatal to startup.
func DeployInitialResources(ctx context.Context, store *Storage, extraSymbols map[string]game.Symbol) error {
	if err := deploySingleton(ctx, store.AccessControlList, defaultAccessControlList); err != nil {
		return fmt.Errorf("deploying access control list: %w", err)
	}
	if err := deploySingleton(ctx, store.ChannelInfo, defaultChannelInfo); err != nil {
		return fmt.Errorf("deploying channel info: %w", err)
	}
	if err := deploySingleton(ctx, store.LoginSettings, defaultLoginSettings); err != nil {
		return fmt.Errorf("deploying login settings: %w", err)
	}
	if err := deploySingleton(ctx, store.SymbolCache, func() *SymbolCacheResource {
		return defaultSymbolCache(extraSymbols)
	}); err != nil {
		return fmt.Errorf("deploying symbol cache: %w", err)
	}
	return nil
}

func deploySingleton[V any](ctx context.Context, resource SingletonResource[V], build func() V) error {
	exists, err := resource.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return resource.Set(ctx, build())
}

func defaultAccessControlList() *AccessControlListResource {
	return &AccessControlListResource{
		AllowRules:    []string{"*"},
		DisallowRules: []string{},
	}
}

func defaultChannelInfo() *ChannelInfoResource {
	names := []string{"PLAYGROUND", "THE PERCH", "COMBAT ZONE", "COMPETITIVE"}

	info := &ChannelInfoResource{}
	for _, name := range names {
		info.Channels = append(info.Channels, Channel{
			ChannelID:   uuid.Must(uuid.NewV4()),
			Name:        name,
			Description: fmt.Sprintf("%s channel", name),
		})
	}
	return info
}

func defaultLoginSettings() *LoginSettingsResource {
	return &LoginSettingsResource{
		IAPUnlocked:     true,
		RemoteLogSocial: false,
		ConfigData:      json.RawMessage(`{}`),
	}
}

func defaultSymbolCache(extra map[string]game.Symbol) *SymbolCacheResource {
	cache := &SymbolCacheResource{Symbols: make(map[string]game.Symbol)}
	for _, name := range seedSymbolNames {
		cache.Symbols[name] = game.SymbolOf(name)
	}
	for name, symbol := range extra {
		cache.Symbols[name] = symbol
	}
	return cache
}
