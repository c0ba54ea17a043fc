package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/nexus-vr/nexus/internal/game"
)

// AccessControlListResource gates which user ids may use the login service.
// Rules are matched against the id's "PLATFORM-accountid" form and support a
// trailing or embedded '*' wildcard. Disallow rules win over allow rules.
type AccessControlListResource struct {
	AllowRules    []string `json:"allow_rules"`
	DisallowRules []string `json:"disallow_rules"`
}

func (a *AccessControlListResource) Authorized(id game.XPlatformId) bool {
	s := id.String()

	for _, rule := range a.DisallowRules {
		if matchRule(rule, s) {
			return false
		}
	}
	for _, rule := range a.AllowRules {
		if matchRule(rule, s) {
			return true
		}
	}
	return false
}

func matchRule(rule, s string) bool {
	parts := strings.Split(rule, "*")
	if len(parts) == 1 {
		return rule == s
	}

	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}

	return strings.HasSuffix(s, parts[len(parts)-1])
}

// Channel is one social grouping players can queue into.
type Channel struct {
	ChannelID   uuid.UUID `json:"channel_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// ChannelInfoResource is the lobby/channel metadata served to clients.
type ChannelInfoResource struct {
	Channels []Channel `json:"channels"`
}

// LoginSettingsResource is the settings document returned on login success.
type LoginSettingsResource struct {
	IAPUnlocked       bool            `json:"iap_unlocked"`
	RemoteLogSocial   bool            `json:"remote_log_social"`
	RemoteLogWarnings bool            `json:"remote_log_warnings"`
	ConfigData        json.RawMessage `json:"config_data,omitempty"`
}

// SymbolCacheResource maps game-defined names to their symbols, seeded at
// deployment and optionally extended from the game executable.
type SymbolCacheResource struct {
	Symbols map[string]game.Symbol `json:"symbols"`
}

// AccountResource is the stored state for one user: display profile,
// moderation flags, and the optional account lock credentials.
type AccountResource struct {
	ID          game.XPlatformId `json:"xplatform_id"`
	DisplayName string           `json:"display_name"`
	Profile     json.RawMessage  `json:"profile,omitempty"`
	IAPData     json.RawMessage  `json:"iap_data,omitempty"`

	IsModerator bool       `json:"is_moderator"`
	BannedUntil *time.Time `json:"banned_until,omitempty"`

	CredentialHash string `json:"credential_hash,omitempty"`
	CredentialSalt string `json:"credential_salt,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (a *AccountResource) Key() game.XPlatformId { return a.ID }

func (a *AccountResource) Banned(now time.Time) bool {
	return a.BannedUntil != nil && now.Before(*a.BannedUntil)
}

// SetCredentials locks the account with a password. An empty password clears
// the lock.
func (a *AccountResource) SetCredentials(password string) error {
	if password == "" {
		a.CredentialHash = ""
		a.CredentialSalt = ""
		return nil
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generating credential salt: %w", err)
	}

	a.CredentialSalt = hex.EncodeToString(salt)
	a.CredentialHash = hashCredential(a.CredentialSalt, password)
	return nil
}

// CheckCredentials reports whether password unlocks the account. Accounts
// without a lock accept any password.
func (a *AccountResource) CheckCredentials(password string) bool {
	if a.CredentialHash == "" {
		return true
	}
	computed := hashCredential(a.CredentialSalt, password)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(a.CredentialHash)) == 1
}

func hashCredential(salt, password string) string {
	hash := sha256.New()
	hash.Write([]byte(salt))
	hash.Write([]byte(password))
	return hex.EncodeToString(hash.Sum(nil))
}

// keyEncodeSeparator joins composite key parts in their string form. It is
// not permitted within key parts.
const keyEncodeSeparator = "~"

// ConfigKey identifies one keyed config blob.
type ConfigKey struct {
	Type       string
	Identifier string
}

func (k ConfigKey) String() string {
	return k.Type + keyEncodeSeparator + k.Identifier
}

func ParseConfigKey(s string) (ConfigKey, error) {
	parts := strings.SplitN(s, keyEncodeSeparator, 2)
	if len(parts) != 2 {
		return ConfigKey{}, fmt.Errorf("malformed config key %q", s)
	}
	return ConfigKey{Type: parts[0], Identifier: parts[1]}, nil
}

// ConfigResource is an arbitrary keyed config document served by the config
// service; its Data schema belongs to the game.
type ConfigResource struct {
	Type       string          `json:"type"`
	Identifier string          `json:"id"`
	Data       json.RawMessage `json:"data"`
}

func (c *ConfigResource) Key() ConfigKey {
	return ConfigKey{Type: c.Type, Identifier: c.Identifier}
}

// DocumentKey identifies one keyed document blob by type and language.
type DocumentKey struct {
	Type     string
	Language string
}

func (k DocumentKey) String() string {
	return k.Type + keyEncodeSeparator + k.Language
}

func ParseDocumentKey(s string) (DocumentKey, error) {
	parts := strings.SplitN(s, keyEncodeSeparator, 2)
	if len(parts) != 2 {
		return DocumentKey{}, fmt.Errorf("malformed document key %q", s)
	}
	return DocumentKey{Type: parts[0], Language: parts[1]}, nil
}

type DocumentResource struct {
	Type     string          `json:"type"`
	Language string          `json:"lang"`
	Data     json.RawMessage `json:"data"`
}

func (d *DocumentResource) Key() DocumentKey {
	return DocumentKey{Type: d.Type, Language: d.Language}
}
