package matching

import (
	"testing"

	"github.com/gofrs/uuid/v5"

	"github.com/go-test/deep"

	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/protocol"
)

func TestSearchLobbyTypes(t *testing.T) {
	tests := map[string]struct {
		session *MatchingSession
		want    []game.LobbyType
	}{
		"private_create": {
			session: &MatchingSession{LobbyType: game.LobbyTypePrivate, TeamIndex: game.TeamAny},
			want:    []game.LobbyType{game.LobbyTypeUnassigned},
		},
		"spectator_find": {
			session: &MatchingSession{LobbyType: game.LobbyTypeUnassigned, TeamIndex: game.TeamSpectator},
			want:    []game.LobbyType{game.LobbyTypePublic},
		},
		"open_find": {
			session: &MatchingSession{LobbyType: game.LobbyTypeUnassigned, TeamIndex: game.TeamAny},
			want:    []game.LobbyType{game.LobbyTypeUnassigned, game.LobbyTypePublic},
		},
		"public_create": {
			session: &MatchingSession{LobbyType: game.LobbyTypePublic, TeamIndex: game.TeamBlue},
			want:    []game.LobbyType{game.LobbyTypeUnassigned, game.LobbyTypePublic},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if diff := deep.Equal(tt.session.SearchLobbyTypes(), tt.want); diff != nil {
				t.Error(diff)
			}
		})
	}
}

func TestSessionFactories(t *testing.T) {
	channel := uuid.Must(uuid.NewV4())
	lobby := uuid.Must(uuid.NewV4())

	create := FromCreateSessionCriteria(nil, &protocol.CreateSessionRequest{
		VersionLock: 7,
		GameType:    game.SymbolOf("echo_arena_private"),
		Level:       game.SymbolOf("mpl_arena_a"),
		Region:      game.SymbolOf("uscentral"),
		Channel:     channel,
		LobbyType:   game.LobbyTypePrivate,
		TeamIndex:   game.TeamOrange,
	})
	if create.JoinSpecific() {
		t.Error("create requests must not be pinned to a lobby")
	}
	if create.LobbyType != game.LobbyTypePrivate || create.Region != game.SymbolOf("uscentral") {
		t.Errorf("create criteria not carried over: %+v", create)
	}

	find := FromFindSessionCriteria(nil, &protocol.FindSessionRequest{
		VersionLock: 7,
		GameType:    game.SymbolOf("echo_arena"),
		Channel:     channel,
		TeamIndex:   game.TeamAny,
	})
	if find.LobbyType != game.LobbyTypePublic {
		t.Errorf("find requests always seek a public lobby, got %v", find.LobbyType)
	}
	if diff := deep.Equal(find.SearchLobbyTypes(),
		[]game.LobbyType{game.LobbyTypeUnassigned, game.LobbyTypePublic}); diff != nil {
		t.Error(diff)
	}

	join := FromJoinSpecificSessionCriteria(nil, &protocol.JoinSessionRequest{
		LobbyID:   lobby,
		TeamIndex: game.TeamModerator,
	})
	if !join.JoinSpecific() || join.LobbyID != lobby {
		t.Errorf("join criteria not carried over: %+v", join)
	}
}
