package serverdb

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/nexus-vr/nexus/internal/game"
)

var ErrDuplicateServerID = errors.New("server id is already registered")

// RegistryObserver is notified after every successful registration and
// unregistration, outside the registry lock. A replaced entry reports as an
// unregistration followed by the new registration.
type RegistryObserver func(serverID uint64, registered bool)

// Registry is the authoritative in-memory set of live game servers, keyed by
// server id. One id maps to at most one server at any time.
type Registry struct {
	mu       sync.RWMutex
	servers  map[uint64]*RegisteredGameServer
	observer RegistryObserver
}

func NewRegistry() *Registry {
	return &Registry{servers: make(map[uint64]*RegisteredGameServer)}
}

// SetObserver installs the change callback. Set it before the registry is
// shared with the services.
func (r *Registry) SetObserver(observer RegistryObserver) {
	r.observer = observer
}

func (r *Registry) notify(serverID uint64, registered bool) {
	if r.observer != nil {
		r.observer(serverID, registered)
	}
}

// Register adds a game server under its id. A server re-registering over its
// own connection atomically replaces its prior entry, as does a new
// registration for an id whose holder has since disconnected. Registration
// fails only when a different peer still holds the id live. Concurrent
// registrations for the same id are serialized and exactly one wins.
func (r *Registry) Register(serverID uint64, conn GameServerConn, internalIP, externalIP net.IP, port uint16, region, versionLock game.Symbol) (*RegisteredGameServer, error) {
	r.mu.Lock()

	existing, replaced := r.servers[serverID]
	if replaced && existing.Peer != conn {
		select {
		case <-existing.Peer.Context().Done():
			// Stale holder, fall through and replace it.
		default:
			r.mu.Unlock()
			return nil, ErrDuplicateServerID
		}
	}

	gs := &RegisteredGameServer{
		ServerID:     serverID,
		Peer:         conn,
		InternalIP:   internalIP,
		ExternalIP:   externalIP,
		Port:         port,
		Region:       region,
		VersionLock:  versionLock,
		RegisteredAt: time.Now(),
	}
	r.servers[serverID] = gs
	r.mu.Unlock()

	if replaced {
		r.notify(serverID, false)
	}
	r.notify(serverID, true)
	return gs, nil
}

// Unregister removes the server only if the given peer is still its owner,
// so a slow disconnect cannot evict a replacement registration.
func (r *Registry) Unregister(serverID uint64, conn GameServerConn) bool {
	r.mu.Lock()
	existing, ok := r.servers[serverID]
	if !ok || existing.Peer != conn {
		r.mu.Unlock()
		return false
	}
	delete(r.servers, serverID)
	r.mu.Unlock()

	r.notify(serverID, false)
	return true
}

func (r *Registry) Lookup(serverID uint64) (*RegisteredGameServer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gs, ok := r.servers[serverID]
	return gs, ok
}

// LookupByPeer finds the server registered by the given connection.
func (r *Registry) LookupByPeer(conn GameServerConn) (*RegisteredGameServer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, gs := range r.servers {
		if gs.Peer == conn {
			return gs, true
		}
	}
	return nil, false
}

// All returns a snapshot of every registered server.
func (r *Registry) All() []*RegisteredGameServer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	servers := make([]*RegisteredGameServer, 0, len(r.servers))
	for _, gs := range r.servers {
		servers = append(servers, gs)
	}
	return servers
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.servers)
}
