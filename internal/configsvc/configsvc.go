// Package configsvc serves keyed game configuration resources such as menu
// layouts and seasonal settings. Resources are opaque JSON owned by the game;
// the service only keys and delivers them.
package configsvc

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/nexus-vr/nexus/internal/protocol"
	"github.com/nexus-vr/nexus/internal/relay"
	"github.com/nexus-vr/nexus/internal/storage"
)

type Service struct {
	logger *logrus.Logger
	store  *storage.Storage
}

func NewService(logger *logrus.Logger, store *storage.Storage) *Service {
	return &Service{logger: logger, store: store}
}

func (s *Service) Identifier() string { return "config" }

func (s *Service) Init(context.Context) error { return nil }

func (s *Service) HandleMessage(ctx context.Context, peer *relay.Peer, message protocol.Message) error {
	msg, ok := message.(*protocol.ConfigRequest)
	if !ok {
		s.logger.Debugf("[config] ignoring %s from %s", protocol.MessageName(message.MessageSymbol()), peer.Address())
		return nil
	}

	key := storage.ConfigKey{Type: msg.Type, Identifier: msg.Identifier}
	resource, err := s.store.Configs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return peer.SendMessages(
				&protocol.ConfigFailure{Type: msg.Type, Identifier: msg.Identifier, Reason: "resource not found"},
				&protocol.TCPConnectionUnrequireEvent{},
			)
		}
		s.logger.Errorf("[config] loading %s: %v", key, err)
		return peer.SendMessages(
			&protocol.ConfigFailure{Type: msg.Type, Identifier: msg.Identifier, Reason: "server error"},
			&protocol.TCPConnectionUnrequireEvent{},
		)
	}

	return peer.SendMessages(
		&protocol.ConfigSuccess{Type: resource.Type, Identifier: resource.Identifier, Data: resource.Data},
		&protocol.TCPConnectionUnrequireEvent{},
	)
}
