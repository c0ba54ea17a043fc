// Package storage defines the resource-store contract consumed by the
// services. Backends are capability implementations selected at construction
// time; callers treat every operation as a remote dependency that can be slow
// or fail transiently.
package storage

import (
	"context"
	"errors"

	"github.com/nexus-vr/nexus/internal/game"
)

// ErrNotFound is returned by Get/Delete when no resource exists for the key.
// Backend I/O failures are returned as distinct errors and must not be
// conflated with absence.
var ErrNotFound = errors.New("resource not found")

// SingletonResource provides access to a single persisted resource of type V.
type SingletonResource[V any] interface {
	Exists(ctx context.Context) (bool, error)
	Get(ctx context.Context) (V, error)
	Set(ctx context.Context, value V) error
	Delete(ctx context.Context) (V, error)
}

// KeyedResource provides access to a collection of persisted resources of
// type V keyed by K.
type KeyedResource[K comparable, V any] interface {
	Keys(ctx context.Context) ([]K, error)
	Exists(ctx context.Context, key K) (bool, error)
	Get(ctx context.Context, key K) (V, error)
	Set(ctx context.Context, key K, value V) error
	Delete(ctx context.Context, key K) (V, error)
}

// Storage aggregates every resource kind the services consume. A backend
// package populates all fields from one underlying store.
type Storage struct {
	AccessControlList SingletonResource[*AccessControlListResource]
	ChannelInfo       SingletonResource[*ChannelInfoResource]
	LoginSettings     SingletonResource[*LoginSettingsResource]
	SymbolCache       SingletonResource[*SymbolCacheResource]

	Accounts  KeyedResource[game.XPlatformId, *AccountResource]
	Configs   KeyedResource[ConfigKey, *ConfigResource]
	Documents KeyedResource[DocumentKey, *DocumentResource]

	// Closer releases the backend's underlying connection, if any.
	Closer func() error
}

func (s *Storage) Close() error {
	if s.Closer == nil {
		return nil
	}
	return s.Closer()
}

// CriticalResourcesExist reports whether every resource required for the
// server to start is present. A missing critical resource triggers initial
// deployment; a store error here is fatal at startup.
func (s *Storage) CriticalResourcesExist(ctx context.Context) (bool, error) {
	checks := []func(context.Context) (bool, error){
		s.AccessControlList.Exists,
		s.ChannelInfo.Exists,
		s.LoginSettings.Exists,
		s.SymbolCache.Exists,
	}

	for _, exists := range checks {
		ok, err := exists(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
