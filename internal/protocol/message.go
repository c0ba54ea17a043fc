package protocol

import "github.com/nexus-vr/nexus/internal/game"

// Message is one (type symbol, payload) pair within a packet. Implementations
// marshal their payload explicitly; there is no reflection on the wire path.
type Message interface {
	MessageSymbol() game.Symbol
	MarshalMessage(w *Writer) error
	UnmarshalMessage(r *Reader)
}

// Message type symbols. Derived from the message names so they are stable
// across builds; the game client ships the same table.
var (
	SymbolTCPConnectionUnrequireEvent = game.SymbolOf("tcp_connection_unrequire_event")

	SymbolLoginRequest       = game.SymbolOf("login_request")
	SymbolLoginSuccess       = game.SymbolOf("login_success")
	SymbolLoginFailure       = game.SymbolOf("login_failure")
	SymbolUserProfileRequest = game.SymbolOf("logged_in_user_profile_request")
	SymbolUserProfileSuccess = game.SymbolOf("logged_in_user_profile_success")
	SymbolUserProfileFailure = game.SymbolOf("logged_in_user_profile_failure")

	SymbolConfigRequest = game.SymbolOf("config_request")
	SymbolConfigSuccess = game.SymbolOf("config_success")
	SymbolConfigFailure = game.SymbolOf("config_failure")

	SymbolCreateSessionRequest = game.SymbolOf("lobby_create_session_request")
	SymbolFindSessionRequest   = game.SymbolOf("lobby_find_session_request")
	SymbolJoinSessionRequest   = game.SymbolOf("lobby_join_session_request")
	SymbolMatchingSuccess      = game.SymbolOf("lobby_session_success")
	SymbolMatchingFailure      = game.SymbolOf("lobby_session_failure")

	SymbolGameServerRegistrationRequest = game.SymbolOf("gameserver_registration_request")
	SymbolGameServerRegistrationSuccess = game.SymbolOf("gameserver_registration_success")
	SymbolGameServerRegistrationFailure = game.SymbolOf("gameserver_registration_failure")
	SymbolGameServerSessionStart        = game.SymbolOf("gameserver_session_start")
	SymbolGameServerSessionStarted      = game.SymbolOf("gameserver_session_started")
	SymbolGameServerSessionEnded        = game.SymbolOf("gameserver_session_ended")
	SymbolGameServerSessionLock         = game.SymbolOf("gameserver_session_lock")
	SymbolGameServerSessionUnlock       = game.SymbolOf("gameserver_session_unlock")
	SymbolGameServerEntrantsAdded       = game.SymbolOf("gameserver_entrants_added")
	SymbolGameServerEntrantRemoved      = game.SymbolOf("gameserver_entrant_removed")

	SymbolReconcileIAPRequest = game.SymbolOf("reconcile_iap_request")
	SymbolReconcileIAPResult  = game.SymbolOf("reconcile_iap_result")
)

// messageTypes is the decode table, resolved at compile time rather than by
// runtime type inspection.
var messageTypes = map[game.Symbol]func() Message{
	SymbolTCPConnectionUnrequireEvent: func() Message { return &TCPConnectionUnrequireEvent{} },

	SymbolLoginRequest:       func() Message { return &LoginRequest{} },
	SymbolLoginSuccess:       func() Message { return &LoginSuccess{} },
	SymbolLoginFailure:       func() Message { return &LoginFailure{} },
	SymbolUserProfileRequest: func() Message { return &UserProfileRequest{} },
	SymbolUserProfileSuccess: func() Message { return &UserProfileSuccess{} },
	SymbolUserProfileFailure: func() Message { return &UserProfileFailure{} },

	SymbolConfigRequest: func() Message { return &ConfigRequest{} },
	SymbolConfigSuccess: func() Message { return &ConfigSuccess{} },
	SymbolConfigFailure: func() Message { return &ConfigFailure{} },

	SymbolCreateSessionRequest: func() Message { return &CreateSessionRequest{} },
	SymbolFindSessionRequest:   func() Message { return &FindSessionRequest{} },
	SymbolJoinSessionRequest:   func() Message { return &JoinSessionRequest{} },
	SymbolMatchingSuccess:      func() Message { return &MatchingSuccess{} },
	SymbolMatchingFailure:      func() Message { return &MatchingFailure{} },

	SymbolGameServerRegistrationRequest: func() Message { return &GameServerRegistrationRequest{} },
	SymbolGameServerRegistrationSuccess: func() Message { return &GameServerRegistrationSuccess{} },
	SymbolGameServerRegistrationFailure: func() Message { return &GameServerRegistrationFailure{} },
	SymbolGameServerSessionStart:        func() Message { return &GameServerSessionStart{} },
	SymbolGameServerSessionStarted:      func() Message { return &GameServerSessionStarted{} },
	SymbolGameServerSessionEnded:        func() Message { return &GameServerSessionEnded{} },
	SymbolGameServerSessionLock:         func() Message { return &GameServerSessionLock{} },
	SymbolGameServerSessionUnlock:       func() Message { return &GameServerSessionUnlock{} },
	SymbolGameServerEntrantsAdded:       func() Message { return &GameServerEntrantsAdded{} },
	SymbolGameServerEntrantRemoved:      func() Message { return &GameServerEntrantRemoved{} },

	SymbolReconcileIAPRequest: func() Message { return &ReconcileIAPRequest{} },
	SymbolReconcileIAPResult:  func() Message { return &ReconcileIAPResult{} },
}

var messageNames = map[game.Symbol]string{
	SymbolTCPConnectionUnrequireEvent:   "TCPConnectionUnrequireEvent",
	SymbolLoginRequest:                  "LoginRequest",
	SymbolLoginSuccess:                  "LoginSuccess",
	SymbolLoginFailure:                  "LoginFailure",
	SymbolUserProfileRequest:            "UserProfileRequest",
	SymbolUserProfileSuccess:            "UserProfileSuccess",
	SymbolUserProfileFailure:            "UserProfileFailure",
	SymbolConfigRequest:                 "ConfigRequest",
	SymbolConfigSuccess:                 "ConfigSuccess",
	SymbolConfigFailure:                 "ConfigFailure",
	SymbolCreateSessionRequest:          "CreateSessionRequest",
	SymbolFindSessionRequest:            "FindSessionRequest",
	SymbolJoinSessionRequest:            "JoinSessionRequest",
	SymbolMatchingSuccess:               "MatchingSuccess",
	SymbolMatchingFailure:               "MatchingFailure",
	SymbolGameServerRegistrationRequest: "GameServerRegistrationRequest",
	SymbolGameServerRegistrationSuccess: "GameServerRegistrationSuccess",
	SymbolGameServerRegistrationFailure: "GameServerRegistrationFailure",
	SymbolGameServerSessionStart:        "GameServerSessionStart",
	SymbolGameServerSessionStarted:      "GameServerSessionStarted",
	SymbolGameServerSessionEnded:        "GameServerSessionEnded",
	SymbolGameServerSessionLock:         "GameServerSessionLock",
	SymbolGameServerSessionUnlock:       "GameServerSessionUnlock",
	SymbolGameServerEntrantsAdded:       "GameServerEntrantsAdded",
	SymbolGameServerEntrantRemoved:      "GameServerEntrantRemoved",
	SymbolReconcileIAPRequest:           "ReconcileIAPRequest",
	SymbolReconcileIAPResult:            "ReconcileIAPResult",
}

// MessageName returns a readable name for a message type symbol, falling back
// to the symbol's hex form for types this build does not know.
func MessageName(symbol game.Symbol) string {
	if name, ok := messageNames[symbol]; ok {
		return name
	}
	return symbol.String()
}

// UnrecognizedMessage carries the raw payload of a message whose type symbol
// is not in the decode table. The session skips it instead of failing.
type UnrecognizedMessage struct {
	Symbol  game.Symbol
	Payload []byte
}

func (m *UnrecognizedMessage) MessageSymbol() game.Symbol { return m.Symbol }

func (m *UnrecognizedMessage) MarshalMessage(w *Writer) error {
	w.buf.Write(m.Payload)
	return nil
}

func (m *UnrecognizedMessage) UnmarshalMessage(r *Reader) {
	m.Payload = make([]byte, r.Remaining())
	_, _ = r.r.Read(m.Payload)
}

// TCPConnectionUnrequireEvent tells the receiving side that the sender has no
// further mandatory traffic for this exchange. Services append it to replies
// as an end-of-turn marker.
type TCPConnectionUnrequireEvent struct{}

func (m *TCPConnectionUnrequireEvent) MessageSymbol() game.Symbol { return SymbolTCPConnectionUnrequireEvent }

func (m *TCPConnectionUnrequireEvent) MarshalMessage(w *Writer) error {
	w.WriteUint8(0)
	return nil
}

func (m *TCPConnectionUnrequireEvent) UnmarshalMessage(r *Reader) {
	if r.Remaining() > 0 {
		r.ReadUint8()
	}
}
