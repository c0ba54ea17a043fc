package game

// LobbyType classifies a game session's visibility to matchmaking.
type LobbyType uint8

const (
	LobbyTypePublic  LobbyType = 0
	LobbyTypePrivate LobbyType = 1
	// LobbyTypeUnassigned marks a game server that has no session running
	// and is available to host a new one.
	LobbyTypeUnassigned LobbyType = 2
)

func (l LobbyType) String() string {
	switch l {
	case LobbyTypePublic:
		return "public"
	case LobbyTypePrivate:
		return "private"
	case LobbyTypeUnassigned:
		return "unassigned"
	default:
		return "unknown"
	}
}

// TeamIndex is the team a player requests to join within a session.
type TeamIndex int16

const (
	TeamAny       TeamIndex = -1
	TeamBlue      TeamIndex = 0
	TeamOrange    TeamIndex = 1
	TeamSpectator TeamIndex = 2
	TeamModerator TeamIndex = 3
)

func (t TeamIndex) String() string {
	switch t {
	case TeamAny:
		return "any"
	case TeamBlue:
		return "blue"
	case TeamOrange:
		return "orange"
	case TeamSpectator:
		return "spectator"
	case TeamModerator:
		return "moderator"
	default:
		return "unknown"
	}
}
