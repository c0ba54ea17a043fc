package matching

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/nexus-vr/nexus/internal/core"
	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/protocol"
	"github.com/nexus-vr/nexus/internal/relay"
)

// Status codes carried on MatchingFailure.
const (
	StatusNoServers uint64 = 1
	StatusNotFound  uint64 = 2
	StatusFull      uint64 = 3
	StatusLocked    uint64 = 4
	StatusInternal  uint64 = 5
)

// defaultPlayerLimit caps entrants on sessions created without an explicit
// limit in their settings.
const defaultPlayerLimit = 16

// Service brokers players onto game servers. It owns no persistent state;
// every decision is made against the live registry through the engine.
type Service struct {
	config *core.Config
	logger *logrus.Logger
	engine *Engine
}

func NewService(config *core.Config, logger *logrus.Logger, engine *Engine) *Service {
	return &Service{config: config, logger: logger, engine: engine}
}

func (s *Service) Identifier() string { return "matching" }

func (s *Service) Init(context.Context) error { return nil }

func (s *Service) HandleMessage(ctx context.Context, peer *relay.Peer, message protocol.Message) error {
	switch msg := message.(type) {
	case *protocol.CreateSessionRequest:
		return s.process(peer, FromCreateSessionCriteria(peer, msg))
	case *protocol.FindSessionRequest:
		return s.process(peer, FromFindSessionCriteria(peer, msg))
	case *protocol.JoinSessionRequest:
		return s.process(peer, FromJoinSpecificSessionCriteria(peer, msg))
	default:
		s.logger.Debugf("[matching] ignoring %s from %s", protocol.MessageName(message.MessageSymbol()), peer.Address())
		return nil
	}
}

func (s *Service) process(peer *relay.Peer, session *MatchingSession) error {
	result, err := s.engine.Match(session)
	if err != nil {
		s.logger.Infof("[matching] no placement for %s: %v", peer.Address(), err)
		return peer.SendMessages(
			&protocol.MatchingFailure{
				Channel:    session.Channel,
				GameType:   session.GameType,
				StatusCode: failureStatus(err),
				Reason:     err.Error(),
			},
			&protocol.TCPConnectionUnrequireEvent{},
		)
	}

	if result.NewSession {
		lobbyType := session.LobbyType
		if lobbyType == game.LobbyTypeUnassigned {
			lobbyType = game.LobbyTypePublic
		}
		err := result.Server.StartSession(result.SessionID, session.Channel, lobbyType,
			session.GameType, session.Level, defaultPlayerLimit, session.SessionSettings)
		if err != nil {
			// The server was claimed between ranking and provisioning.
			s.logger.Warnf("[matching] lost server %d to a concurrent placement: %v", result.Server.ServerID, err)
			return peer.SendMessages(
				&protocol.MatchingFailure{
					Channel:    session.Channel,
					GameType:   session.GameType,
					StatusCode: StatusInternal,
					Reason:     "session could not be provisioned",
				},
				&protocol.TCPConnectionUnrequireEvent{},
			)
		}
		err = result.Server.Peer.SendMessages(&protocol.GameServerSessionStart{
			SessionID:       result.SessionID,
			Channel:         session.Channel,
			PlayerLimit:     defaultPlayerLimit,
			LobbyType:       lobbyType,
			GameType:        session.GameType,
			Level:           session.Level,
			SessionSettings: session.SessionSettings,
		})
		if err != nil {
			result.Server.EndSession()
			return peer.SendMessages(
				&protocol.MatchingFailure{
					Channel:    session.Channel,
					GameType:   session.GameType,
					StatusCode: StatusInternal,
					Reason:     "game server is unreachable",
				},
				&protocol.TCPConnectionUnrequireEvent{},
			)
		}
	}

	s.logger.Infof("[matching] placed %s into session %s on server %d (new=%t)",
		peer.Address(), result.SessionID, result.Server.ServerID, result.NewSession)
	return peer.SendMessages(
		&protocol.MatchingSuccess{
			SessionID: result.SessionID,
			GameType:  session.GameType,
			Endpoint:  result.Server.ExternalIP,
			Port:      result.Server.Port,
			TeamIndex: session.TeamIndex,
		},
		&protocol.TCPConnectionUnrequireEvent{},
	)
}

func failureStatus(err error) uint64 {
	switch {
	case errors.Is(err, ErrNoServersAvailable):
		return StatusNoServers
	case errors.Is(err, ErrLobbyNotFound):
		return StatusNotFound
	case errors.Is(err, ErrLobbyFull):
		return StatusFull
	case errors.Is(err, ErrLobbyLocked):
		return StatusLocked
	default:
		return StatusInternal
	}
}
