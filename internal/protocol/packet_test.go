package protocol

import (
	"encoding/binary"
	"errors"
	"net"
	"testing"

	"github.com/go-test/deep"
	"github.com/gofrs/uuid/v5"

	"github.com/nexus-vr/nexus/internal/game"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	session := uuid.Must(uuid.NewV4())
	lobby := uuid.Must(uuid.NewV4())
	userID := game.XPlatformId{Platform: game.PlatformOculusOrg, AccountID: 3963667097037078}

	tests := map[string]Packet{
		"login_request": {
			&LoginRequest{
				Session:   session,
				UserID:    userID,
				LoginData: []byte(`{"displayname":"tester"}`),
			},
		},
		"login_flow_reply": {
			&LoginSuccess{Session: session, UserID: userID, Settings: []byte(`{"iap_unlocked":true}`)},
			&TCPConnectionUnrequireEvent{},
		},
		"config_request": {
			&ConfigRequest{Type: "main_menu", Identifier: "main_menu"},
		},
		"create_session": {
			&CreateSessionRequest{
				VersionLock:     0xC62F01D78F77910D,
				GameType:        game.SymbolOf("echo_arena"),
				Level:           game.SymbolOf("mpl_arena_a"),
				Region:          game.SymbolOf("uscentral"),
				Channel:         lobby,
				LobbyType:       game.LobbyTypePrivate,
				TeamIndex:       game.TeamAny,
				SessionSettings: []byte(`{}`),
			},
		},
		"matching_success": {
			&MatchingSuccess{
				SessionID: lobby,
				GameType:  game.SymbolOf("echo_arena"),
				Endpoint:  net.IP{192, 168, 1, 50},
				Port:      6792,
				TeamIndex: game.TeamBlue,
			},
		},
		"registration": {
			&GameServerRegistrationRequest{
				ServerID:    0xDEADBEEF,
				InternalIP:  net.IP{10, 0, 0, 4},
				Port:        6792,
				Region:      game.SymbolOf("uscentral"),
				VersionLock: 1,
			},
		},
		"entrants_added": {
			&GameServerEntrantsAdded{
				SessionID:  lobby,
				EntrantIDs: []uuid.UUID{session, lobby},
			},
		},
	}

	for name, packet := range tests {
		t.Run(name, func(t *testing.T) {
			data, err := Encode(packet)
			if err != nil {
				t.Fatalf("encoding packet: %v", err)
			}

			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("decoding packet: %v", err)
			}
			if diff := deep.Equal(decoded, packet); diff != nil {
				t.Error(diff)
			}
		})
	}
}

func TestDecodeUnrecognizedMessage(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	var data [messageHeaderSize]byte
	binary.LittleEndian.PutUint64(data[0:8], messageMarker)
	binary.LittleEndian.PutUint64(data[8:16], uint64(game.SymbolOf("no_such_message")))
	binary.LittleEndian.PutUint64(data[16:24], uint64(len(payload)))

	packet, err := Decode(append(data[:], payload...))
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(packet) != 1 {
		t.Fatalf("expected 1 message, got %d", len(packet))
	}

	msg, ok := packet[0].(*UnrecognizedMessage)
	if !ok {
		t.Fatalf("expected UnrecognizedMessage, got %T", packet[0])
	}
	if msg.Symbol != game.SymbolOf("no_such_message") {
		t.Errorf("unexpected symbol %v", msg.Symbol)
	}
	if diff := deep.Equal(msg.Payload, payload); diff != nil {
		t.Error(diff)
	}
}

func TestDecodeErrors(t *testing.T) {
	valid, err := Encode(Packet{&ConfigRequest{Type: "active_battle_pass", Identifier: "default"}})
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}

	tests := map[string]struct {
		data    []byte
		wantErr error
	}{
		"truncated_header":  {valid[:messageHeaderSize-4], ErrNeedMoreData},
		"truncated_payload": {valid[:len(valid)-2], ErrNeedMoreData},
		"bad_marker": {
			append([]byte{0, 0, 0, 0, 0, 0, 0, 0}, valid[8:]...),
			ErrCorruptStream,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(tt.data); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDecodeOversizePayloadIsCorrupt(t *testing.T) {
	var data [messageHeaderSize]byte
	binary.LittleEndian.PutUint64(data[0:8], messageMarker)
	binary.LittleEndian.PutUint64(data[8:16], uint64(SymbolLoginRequest))
	binary.LittleEndian.PutUint64(data[16:24], maxPayloadSize+1)

	if _, err := Decode(data[:]); !errors.Is(err, ErrCorruptStream) {
		t.Errorf("expected ErrCorruptStream, got %v", err)
	}
}

func TestDecodeEmptyFrame(t *testing.T) {
	packet, err := Decode(nil)
	if err != nil {
		t.Fatalf("decoding empty frame: %v", err)
	}
	if len(packet) != 0 {
		t.Errorf("expected no messages, got %d", len(packet))
	}
}
