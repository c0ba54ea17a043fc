package game

import (
	"testing"

	"github.com/go-test/deep"
)

func TestParseXPlatformId(t *testing.T) {
	tests := map[string]struct {
		input   string
		want    XPlatformId
		wantErr bool
	}{
		"ovr_org": {
			input: "OVR-ORG-3963667097037078",
			want:  XPlatformId{Platform: PlatformOculusOrg, AccountID: 3963667097037078},
		},
		"steam": {
			input: "STM-76561198000000000",
			want:  XPlatformId{Platform: PlatformSteam, AccountID: 76561198000000000},
		},
		"demo": {
			input: "DMO-1",
			want:  XPlatformId{Platform: PlatformDemo, AccountID: 1},
		},
		"unknown_platform": {
			input:   "XYZ-12345",
			wantErr: true,
		},
		"missing_account": {
			input:   "OVR-ORG-",
			wantErr: true,
		},
		"not_a_number": {
			input:   "STM-abc",
			wantErr: true,
		},
		"empty": {
			input:   "",
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseXPlatformId(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error parsing %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := deep.Equal(got, tt.want); diff != nil {
				t.Error(diff)
			}
		})
	}
}

func TestXPlatformIdRoundTrip(t *testing.T) {
	ids := []XPlatformId{
		{Platform: PlatformSteam, AccountID: 123},
		{Platform: PlatformOculusOrg, AccountID: 3963667097037078},
		{Platform: PlatformDemo, AccountID: 1},
	}

	for _, id := range ids {
		text, err := id.MarshalText()
		if err != nil {
			t.Fatalf("marshaling %v: %v", id, err)
		}
		var parsed XPlatformId
		if err := parsed.UnmarshalText(text); err != nil {
			t.Fatalf("unmarshaling %s: %v", text, err)
		}
		if parsed != id {
			t.Errorf("round trip changed %v to %v", id, parsed)
		}
	}
}

func TestXPlatformIdValid(t *testing.T) {
	tests := map[string]struct {
		id   XPlatformId
		want bool
	}{
		"valid":            {XPlatformId{Platform: PlatformOculusOrg, AccountID: 5}, true},
		"zero_account":     {XPlatformId{Platform: PlatformSteam}, false},
		"zero_platform":    {XPlatformId{AccountID: 5}, false},
		"platform_too_big": {XPlatformId{Platform: PlatformDemo + 1, AccountID: 5}, false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := tt.id.Valid(); got != tt.want {
				t.Errorf("Valid() = %t, want %t", got, tt.want)
			}
		})
	}
}
