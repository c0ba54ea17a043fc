package storage

import (
	"testing"
	"time"

	"github.com/nexus-vr/nexus/internal/game"
)

func TestAccessControlListAuthorized(t *testing.T) {
	id := game.XPlatformId{Platform: game.PlatformOculusOrg, AccountID: 3963667097037078}

	tests := map[string]struct {
		acl  AccessControlListResource
		want bool
	}{
		"allow_everything": {
			acl:  AccessControlListResource{AllowRules: []string{"*"}},
			want: true,
		},
		"exact_allow": {
			acl:  AccessControlListResource{AllowRules: []string{"OVR-ORG-3963667097037078"}},
			want: true,
		},
		"prefix_wildcard": {
			acl:  AccessControlListResource{AllowRules: []string{"OVR-ORG-*"}},
			want: true,
		},
		"embedded_wildcard": {
			acl:  AccessControlListResource{AllowRules: []string{"OVR-*-3963667097037078"}},
			want: true,
		},
		"no_matching_rule": {
			acl:  AccessControlListResource{AllowRules: []string{"STM-*"}},
			want: false,
		},
		"empty_list": {
			acl:  AccessControlListResource{},
			want: false,
		},
		"disallow_wins": {
			acl: AccessControlListResource{
				AllowRules:    []string{"*"},
				DisallowRules: []string{"OVR-ORG-3963667097037078"},
			},
			want: false,
		},
		"disallow_wildcard_wins": {
			acl: AccessControlListResource{
				AllowRules:    []string{"*"},
				DisallowRules: []string{"OVR-ORG-*"},
			},
			want: false,
		},
		"disallow_other_user": {
			acl: AccessControlListResource{
				AllowRules:    []string{"*"},
				DisallowRules: []string{"OVR-ORG-999"},
			},
			want: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := tt.acl.Authorized(id); got != tt.want {
				t.Errorf("Authorized() = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestAccountCredentials(t *testing.T) {
	account := &AccountResource{ID: game.XPlatformId{Platform: game.PlatformSteam, AccountID: 1}}

	// Unlocked accounts accept anything.
	if !account.CheckCredentials("") || !account.CheckCredentials("whatever") {
		t.Fatal("expected unlocked account to accept any password")
	}

	if err := account.SetCredentials("hunter2"); err != nil {
		t.Fatalf("setting credentials: %v", err)
	}
	if account.CheckCredentials("wrong") {
		t.Error("expected wrong password to be rejected")
	}
	if !account.CheckCredentials("hunter2") {
		t.Error("expected correct password to be accepted")
	}

	// Clearing the lock reverts to accepting anything.
	if err := account.SetCredentials(""); err != nil {
		t.Fatalf("clearing credentials: %v", err)
	}
	if !account.CheckCredentials("anything") {
		t.Error("expected cleared lock to accept any password")
	}
}

func TestAccountBanned(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := map[string]struct {
		until *time.Time
		want  bool
	}{
		"no_ban":      {nil, false},
		"expired_ban": {&past, false},
		"active_ban":  {&future, true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			account := &AccountResource{BannedUntil: tt.until}
			if got := account.Banned(now); got != tt.want {
				t.Errorf("Banned() = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestCompositeKeyRoundTrip(t *testing.T) {
	configKey := ConfigKey{Type: "active_battle_pass_season", Identifier: "default"}
	parsedConfig, err := ParseConfigKey(configKey.String())
	if err != nil {
		t.Fatalf("parsing config key: %v", err)
	}
	if parsedConfig != configKey {
		t.Errorf("round trip changed %v to %v", configKey, parsedConfig)
	}

	documentKey := DocumentKey{Type: "eula", Language: "en"}
	parsedDocument, err := ParseDocumentKey(documentKey.String())
	if err != nil {
		t.Fatalf("parsing document key: %v", err)
	}
	if parsedDocument != documentKey {
		t.Errorf("round trip changed %v to %v", documentKey, parsedDocument)
	}

	if _, err := ParseConfigKey("no-separator"); err == nil {
		t.Error("expected an error for a key without a separator")
	}
}
