// Package login implements the authentication service. It validates user
// ids against the access control list, auto-creates accounts on first
// sight, verifies the optional account lock, and hands the client its login
// settings document.
package login

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	"github.com/nexus-vr/nexus/internal/core"
	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/protocol"
	"github.com/nexus-vr/nexus/internal/relay"
	"github.com/nexus-vr/nexus/internal/storage"
)

// Status codes carried on LoginFailure and UserProfileFailure.
const (
	StatusBadRequest   uint64 = 400
	StatusUnauthorized uint64 = 401
	StatusForbidden    uint64 = 403
	StatusNotFound     uint64 = 404
	StatusInternal     uint64 = 500
)

// loginData is the subset of the client's opaque login payload the service
// acts on. Unknown fields pass through untouched.
type loginData struct {
	DisplayName string `json:"displayname"`
	Password    string `json:"auth_password"`
	VersionLock uint64 `json:"version_lock"`
}

type Service struct {
	config *core.Config
	logger *logrus.Logger
	store  *storage.Storage
}

func NewService(config *core.Config, logger *logrus.Logger, store *storage.Storage) *Service {
	return &Service{config: config, logger: logger, store: store}
}

func (s *Service) Identifier() string { return "login" }

func (s *Service) Init(context.Context) error { return nil }

func (s *Service) HandleMessage(ctx context.Context, peer *relay.Peer, message protocol.Message) error {
	switch msg := message.(type) {
	case *protocol.LoginRequest:
		return s.handleLogin(ctx, peer, msg)
	case *protocol.UserProfileRequest:
		return s.handleProfile(ctx, peer, msg)
	default:
		s.logger.Debugf("[login] ignoring %s from %s", protocol.MessageName(message.MessageSymbol()), peer.Address())
		return nil
	}
}

func (s *Service) handleLogin(ctx context.Context, peer *relay.Peer, msg *protocol.LoginRequest) error {
	if !msg.UserID.Valid() {
		return s.fail(peer, msg.UserID, StatusBadRequest, "invalid user identifier")
	}

	var data loginData
	if len(msg.LoginData) > 0 {
		if err := json.Unmarshal(msg.LoginData, &data); err != nil {
			return s.fail(peer, msg.UserID, StatusBadRequest, "malformed login data")
		}
	}
	data.DisplayName = sanitizeDisplayName(data.DisplayName)

	acl, err := s.store.AccessControlList.Get(ctx)
	if err != nil {
		s.logger.Errorf("[login] loading access control list: %v", err)
		return s.fail(peer, msg.UserID, StatusInternal, "server error")
	}
	if !acl.Authorized(msg.UserID) {
		s.logger.Warnf("[login] rejected %s from %s: not authorized", msg.UserID, peer.Address())
		return s.fail(peer, msg.UserID, StatusForbidden, "user is not permitted on this server")
	}

	account, err := s.lookupOrCreateAccount(ctx, msg.UserID, data.DisplayName)
	if err != nil {
		s.logger.Errorf("[login] account lookup for %s: %v", msg.UserID, err)
		return s.fail(peer, msg.UserID, StatusInternal, "server error")
	}

	if account.Banned(time.Now()) {
		reason := fmt.Sprintf("account is banned until %s", account.BannedUntil.Format(time.RFC3339))
		return s.reject(peer, msg.UserID, StatusForbidden, reason)
	}
	if !account.CheckCredentials(data.Password) {
		return s.reject(peer, msg.UserID, StatusUnauthorized, "invalid account lock password")
	}

	if !peer.Service().AuthenticatePeer(peer, msg.UserID, account.DisplayName) {
		return s.fail(peer, msg.UserID, StatusBadRequest, "connection is bound to another user")
	}

	settings, err := s.loginSettings(ctx)
	if err != nil {
		s.logger.Errorf("[login] loading login settings: %v", err)
		return s.fail(peer, msg.UserID, StatusInternal, "server error")
	}

	s.logger.Infof("[login] authenticated %s (%s) from %s", msg.UserID, account.DisplayName, peer.Address())
	return peer.SendMessages(
		&protocol.LoginSuccess{Session: msg.Session, UserID: msg.UserID, Settings: settings},
		&protocol.TCPConnectionUnrequireEvent{},
	)
}

func (s *Service) handleProfile(ctx context.Context, peer *relay.Peer, msg *protocol.UserProfileRequest) error {
	identity, ok := peer.Identity()
	if !ok {
		return s.failProfile(peer, msg.UserID, StatusUnauthorized, "login required")
	}
	if identity != msg.UserID {
		return s.failProfile(peer, msg.UserID, StatusForbidden, "profile belongs to another user")
	}

	account, err := s.store.Accounts.Get(ctx, msg.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s.failProfile(peer, msg.UserID, StatusNotFound, "no profile for user")
		}
		s.logger.Errorf("[login] loading profile for %s: %v", msg.UserID, err)
		return s.failProfile(peer, msg.UserID, StatusInternal, "server error")
	}

	return peer.SendMessages(
		&protocol.UserProfileSuccess{UserID: msg.UserID, Profile: account.Profile},
		&protocol.TCPConnectionUnrequireEvent{},
	)
}

// lookupOrCreateAccount fetches the account, creating a fresh one on first
// login. The display name tracks what the client last reported.
func (s *Service) lookupOrCreateAccount(ctx context.Context, id game.XPlatformId, displayName string) (*storage.AccountResource, error) {
	account, err := s.store.Accounts.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		account = &storage.AccountResource{
			ID:          id,
			DisplayName: displayName,
			CreatedAt:   time.Now().UTC(),
		}
		if account.DisplayName == "" {
			account.DisplayName = id.String()
		}
		if err := s.store.Accounts.Set(ctx, id, account); err != nil {
			return nil, err
		}
		s.logger.Infof("[login] created account for %s", id)
		return account, nil
	}
	if err != nil {
		return nil, err
	}

	if displayName != "" && displayName != account.DisplayName {
		account.DisplayName = displayName
		if err := s.store.Accounts.Set(ctx, id, account); err != nil {
			return nil, err
		}
	}
	return account, nil
}

const maxDisplayNameLength = 20

// sanitizeDisplayName normalizes the client-reported name so the same name
// always compares and stores identically regardless of how the client
// composed it.
func sanitizeDisplayName(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	runes := []rune(name)
	if len(runes) > maxDisplayNameLength {
		name = string(runes[:maxDisplayNameLength])
	}
	return name
}

func (s *Service) loginSettings(ctx context.Context) ([]byte, error) {
	settings, err := s.store.LoginSettings.Get(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(settings)
}

// reject answers a failed authentication. Unlike plain request failures the
// connection does not survive it: the outcome is published as an
// authorization result and the returned error tears the peer down once the
// reply has gone out.
func (s *Service) reject(peer *relay.Peer, id game.XPlatformId, status uint64, reason string) error {
	if err := s.fail(peer, id, status, reason); err != nil {
		return err
	}
	peer.Service().ReportAuthorization(peer, false)
	return fmt.Errorf("authentication failed for %s: %s", id, reason)
}

func (s *Service) fail(peer *relay.Peer, id game.XPlatformId, status uint64, reason string) error {
	return peer.SendMessages(
		&protocol.LoginFailure{UserID: id, StatusCode: status, Reason: reason},
		&protocol.TCPConnectionUnrequireEvent{},
	)
}

func (s *Service) failProfile(peer *relay.Peer, id game.XPlatformId, status uint64, reason string) error {
	return peer.SendMessages(
		&protocol.UserProfileFailure{UserID: id, StatusCode: status, Reason: reason},
		&protocol.TCPConnectionUnrequireEvent{},
	)
}
