package game

import (
	"fmt"
	"strconv"
	"strings"
)

// PlatformCode identifies the platform on which a user account originates.
type PlatformCode uint64

const (
	PlatformSteam     PlatformCode = 1
	PlatformPSN       PlatformCode = 2
	PlatformXbox      PlatformCode = 3
	PlatformOculus    PlatformCode = 4
	PlatformOculusOrg PlatformCode = 5
	PlatformDemo      PlatformCode = 6
)

func (p PlatformCode) String() string {
	switch p {
	case PlatformSteam:
		return "STM"
	case PlatformPSN:
		return "PSN"
	case PlatformXbox:
		return "XBX"
	case PlatformOculus:
		return "OVR"
	case PlatformOculusOrg:
		return "OVR-ORG"
	case PlatformDemo:
		return "DMO"
	default:
		return "UNK"
	}
}

func platformCodeFromString(s string) (PlatformCode, bool) {
	switch s {
	case "STM":
		return PlatformSteam, true
	case "PSN":
		return PlatformPSN, true
	case "XBX":
		return PlatformXbox, true
	case "OVR":
		return PlatformOculus, true
	case "OVR-ORG":
		return PlatformOculusOrg, true
	case "DMO":
		return PlatformDemo, true
	}
	return 0, false
}

// XPlatformId is the cross-platform user identifier used as the join key
// between peers, the game server registry, and stored account resources.
// It is comparable and safe to use as a map key.
type XPlatformId struct {
	Platform  PlatformCode
	AccountID uint64
}

// Valid reports whether the id refers to a known platform and a nonzero account.
func (x XPlatformId) Valid() bool {
	return x.Platform >= PlatformSteam && x.Platform <= PlatformDemo && x.AccountID != 0
}

func (x XPlatformId) String() string {
	return fmt.Sprintf("%s-%d", x.Platform, x.AccountID)
}

// ParseXPlatformId parses the "PLATFORM-accountid" form produced by String.
func ParseXPlatformId(s string) (XPlatformId, error) {
	idx := strings.LastIndex(s, "-")
	if idx < 0 {
		return XPlatformId{}, fmt.Errorf("malformed platform id %q", s)
	}

	platform, ok := platformCodeFromString(s[:idx])
	if !ok {
		return XPlatformId{}, fmt.Errorf("unknown platform code in id %q", s)
	}

	accountID, err := strconv.ParseUint(s[idx+1:], 10, 64)
	if err != nil {
		return XPlatformId{}, fmt.Errorf("malformed account id in %q: %w", s, err)
	}

	return XPlatformId{Platform: platform, AccountID: accountID}, nil
}

// MarshalText implements encoding.TextMarshaler so the id can be used as a
// JSON object key by the storage backends.
func (x XPlatformId) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}

func (x *XPlatformId) UnmarshalText(data []byte) error {
	parsed, err := ParseXPlatformId(string(data))
	if err != nil {
		return err
	}
	*x = parsed
	return nil
}
