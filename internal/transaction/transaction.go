// Package transaction implements the in-app purchase reconcile flow. When
// the unlock-everything setting is on, accounts without stored purchase
// state receive a fully unlocked document.
package transaction

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/nexus-vr/nexus/internal/protocol"
	"github.com/nexus-vr/nexus/internal/relay"
	"github.com/nexus-vr/nexus/internal/storage"
)

// unlockedIAPData is served to accounts with no purchase state when IAP
// unlocking is enabled.
var unlockedIAPData = json.RawMessage(`{"balance":{"currency":{"echopoints":{"val":0}}},"transactionid":1,"unlocked":true}`)

type Service struct {
	logger *logrus.Logger
	store  *storage.Storage
}

func NewService(logger *logrus.Logger, store *storage.Storage) *Service {
	return &Service{logger: logger, store: store}
}

func (s *Service) Identifier() string { return "transaction" }

func (s *Service) Init(context.Context) error { return nil }

func (s *Service) HandleMessage(ctx context.Context, peer *relay.Peer, message protocol.Message) error {
	msg, ok := message.(*protocol.ReconcileIAPRequest)
	if !ok {
		s.logger.Debugf("[transaction] ignoring %s from %s", protocol.MessageName(message.MessageSymbol()), peer.Address())
		return nil
	}

	data, err := s.reconcile(ctx, msg)
	if err != nil {
		s.logger.Errorf("[transaction] reconciling IAP for %s: %v", msg.UserID, err)
		data = json.RawMessage(`{}`)
	}

	return peer.SendMessages(
		&protocol.ReconcileIAPResult{UserID: msg.UserID, IAPData: data},
		&protocol.TCPConnectionUnrequireEvent{},
	)
}

func (s *Service) reconcile(ctx context.Context, msg *protocol.ReconcileIAPRequest) (json.RawMessage, error) {
	account, err := s.store.Accounts.Get(ctx, msg.UserID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if account != nil && len(account.IAPData) > 0 {
		return account.IAPData, nil
	}

	settings, err := s.store.LoginSettings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if settings.IAPUnlocked {
		return unlockedIAPData, nil
	}
	return json.RawMessage(`{}`), nil
}
