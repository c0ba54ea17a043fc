package serverdb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nexus-vr/nexus/internal/core"
	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/protocol"
	"github.com/nexus-vr/nexus/internal/relay"
)

// Service accepts dedicated game server connections, maintains the live
// registry and keeps session occupancy current from the servers' reports.
type Service struct {
	config   *core.Config
	logger   *logrus.Logger
	registry *Registry
}

func NewService(config *core.Config, logger *logrus.Logger, registry *Registry) *Service {
	return &Service{config: config, logger: logger, registry: registry}
}

func (s *Service) Identifier() string { return "serverdb" }

func (s *Service) Init(ctx context.Context) error {
	if s.config.ServerDB.ValidateEndpoints && s.config.ServerDB.SweepInterval > 0 {
		go s.sweepLoop(ctx, time.Duration(s.config.ServerDB.SweepInterval)*time.Second)
	}
	return nil
}

func (s *Service) HandleMessage(ctx context.Context, peer *relay.Peer, message protocol.Message) error {
	switch msg := message.(type) {
	case *protocol.GameServerRegistrationRequest:
		return s.handleRegistration(ctx, peer, msg)
	case *protocol.GameServerSessionStarted:
		return s.withServer(peer, func(gs *RegisteredGameServer) error {
			return gs.SessionStarted(msg.SessionID)
		})
	case *protocol.GameServerSessionEnded:
		return s.withServer(peer, func(gs *RegisteredGameServer) error {
			return gs.EndSession()
		})
	case *protocol.GameServerSessionLock:
		return s.withServer(peer, func(gs *RegisteredGameServer) error {
			return gs.LockSession(msg.SessionID)
		})
	case *protocol.GameServerSessionUnlock:
		return s.withServer(peer, func(gs *RegisteredGameServer) error {
			return gs.UnlockSession(msg.SessionID)
		})
	case *protocol.GameServerEntrantsAdded:
		return s.withServer(peer, func(gs *RegisteredGameServer) error {
			return gs.AddEntrants(msg.SessionID, msg.EntrantIDs)
		})
	case *protocol.GameServerEntrantRemoved:
		return s.withServer(peer, func(gs *RegisteredGameServer) error {
			return gs.RemoveEntrant(msg.SessionID, msg.EntrantID)
		})
	default:
		s.logger.Debugf("[serverdb] ignoring %s from %s", protocol.MessageName(message.MessageSymbol()), peer.Address())
		return nil
	}
}

// PeerDisconnected removes the peer's registration, ending any session it
// was hosting.
func (s *Service) PeerDisconnected(peer *relay.Peer) {
	gs, ok := s.registry.LookupByPeer(peer)
	if !ok {
		return
	}
	if s.registry.Unregister(gs.ServerID, peer) {
		s.logger.Infof("[serverdb] game server %d unregistered (disconnect)", gs.ServerID)
	}
}

func (s *Service) handleRegistration(ctx context.Context, peer *relay.Peer, msg *protocol.GameServerRegistrationRequest) error {
	externalIP := s.externalIPFor(peer)

	var rtt time.Duration
	if s.config.ServerDB.ValidateEndpoints {
		timeout := time.Duration(s.config.ServerDB.ValidationTimeout) * time.Millisecond
		if timeout <= 0 {
			timeout = 3 * time.Second
		}
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		var err error
		rtt, err = ProbeEndpoint(probeCtx, externalIP, msg.Port)
		cancel()
		if err != nil {
			s.logger.Warnf("[serverdb] endpoint probe failed for server %d at %s:%d: %v",
				msg.ServerID, externalIP, msg.Port, err)
			return peer.SendMessages(&protocol.GameServerRegistrationFailure{
				Code:   protocol.RegistrationFailureUnreachable,
				Reason: fmt.Sprintf("endpoint %s:%d did not answer a ping probe", externalIP, msg.Port),
			})
		}
	}

	gs, err := s.registry.Register(msg.ServerID, peer, msg.InternalIP, externalIP, msg.Port,
		msg.Region, game.Symbol(msg.VersionLock))
	if err != nil {
		code := protocol.RegistrationFailureInternal
		if errors.Is(err, ErrDuplicateServerID) {
			code = protocol.RegistrationFailureDuplicate
		}
		return peer.SendMessages(&protocol.GameServerRegistrationFailure{Code: code, Reason: err.Error()})
	}
	gs.SetPing(rtt)

	s.logger.Infof("[serverdb] registered game server %d at %s:%d (region %s)",
		msg.ServerID, externalIP, msg.Port, msg.Region)
	return peer.SendMessages(
		&protocol.GameServerRegistrationSuccess{ServerID: msg.ServerID, ExternalIP: externalIP},
		&protocol.TCPConnectionUnrequireEvent{},
	)
}

// externalIPFor derives the address players should connect to. Servers
// connecting over loopback advertise the relay's own public address so that
// local deployments still hand out a routable endpoint.
func (s *Service) externalIPFor(peer *relay.Peer) net.IP {
	ip := net.ParseIP(peer.Address())
	if ip == nil || ip.IsLoopback() || ip.IsUnspecified() {
		broadcast := s.config.BroadcastIP()
		return net.IPv4(broadcast[0], broadcast[1], broadcast[2], broadcast[3])
	}
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return ip
}

func (s *Service) withServer(peer *relay.Peer, fn func(*RegisteredGameServer) error) error {
	gs, ok := s.registry.LookupByPeer(peer)
	if !ok {
		return errors.New("peer has no registered game server")
	}
	if err := fn(gs); err != nil {
		// Benign races with session teardown, not worth a disconnect.
		s.logger.Warnf("[serverdb] session update from server %d rejected: %v", gs.ServerID, err)
	}
	return nil
}

// sweepLoop periodically re-probes every registered server and evicts the
// ones that stopped answering.
func (s *Service) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	timeout := time.Duration(s.config.ServerDB.ValidationTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, gs := range s.registry.All() {
				probeCtx, cancel := context.WithTimeout(ctx, timeout)
				rtt, err := ProbeEndpoint(probeCtx, gs.ExternalIP, gs.Port)
				cancel()
				if err != nil {
					s.logger.Warnf("[serverdb] evicting game server %d: %v", gs.ServerID, err)
					if s.registry.Unregister(gs.ServerID, gs.Peer) {
						gs.Peer.Disconnect()
					}
					continue
				}
				gs.SetPing(rtt)
			}
		}
	}
}
