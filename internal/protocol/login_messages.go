package protocol

import (
	"github.com/gofrs/uuid/v5"

	"github.com/nexus-vr/nexus/internal/game"
)

// LoginRequest is the first message a game client sends on the login service.
// LoginData is an opaque JSON document describing the client build and,
// optionally, the account lock password.
type LoginRequest struct {
	Session   uuid.UUID
	UserID    game.XPlatformId
	LoginData []byte
}

func (m *LoginRequest) MessageSymbol() game.Symbol { return SymbolLoginRequest }

func (m *LoginRequest) MarshalMessage(w *Writer) error {
	w.WriteGUID(m.Session)
	w.WritePlatformID(m.UserID)
	w.WriteBlob(m.LoginData)
	return nil
}

func (m *LoginRequest) UnmarshalMessage(r *Reader) {
	m.Session = r.ReadGUID()
	m.UserID = r.ReadPlatformID()
	m.LoginData = r.ReadBlob()
}

// LoginSuccess confirms authentication and carries the client's login
// settings document.
type LoginSuccess struct {
	Session  uuid.UUID
	UserID   game.XPlatformId
	Settings []byte
}

func (m *LoginSuccess) MessageSymbol() game.Symbol { return SymbolLoginSuccess }

func (m *LoginSuccess) MarshalMessage(w *Writer) error {
	w.WriteGUID(m.Session)
	w.WritePlatformID(m.UserID)
	w.WriteBlob(m.Settings)
	return nil
}

func (m *LoginSuccess) UnmarshalMessage(r *Reader) {
	m.Session = r.ReadGUID()
	m.UserID = r.ReadPlatformID()
	m.Settings = r.ReadBlob()
}

type LoginFailure struct {
	UserID     game.XPlatformId
	StatusCode uint64
	Reason     string
}

func (m *LoginFailure) MessageSymbol() game.Symbol { return SymbolLoginFailure }

func (m *LoginFailure) MarshalMessage(w *Writer) error {
	w.WritePlatformID(m.UserID)
	w.WriteUint64(m.StatusCode)
	w.WriteString(m.Reason)
	return nil
}

func (m *LoginFailure) UnmarshalMessage(r *Reader) {
	m.UserID = r.ReadPlatformID()
	m.StatusCode = r.ReadUint64()
	m.Reason = r.ReadString()
}

// UserProfileRequest asks for the authenticated user's profile document.
type UserProfileRequest struct {
	UserID game.XPlatformId
}

func (m *UserProfileRequest) MessageSymbol() game.Symbol { return SymbolUserProfileRequest }

func (m *UserProfileRequest) MarshalMessage(w *Writer) error {
	w.WritePlatformID(m.UserID)
	return nil
}

func (m *UserProfileRequest) UnmarshalMessage(r *Reader) {
	m.UserID = r.ReadPlatformID()
}

type UserProfileSuccess struct {
	UserID  game.XPlatformId
	Profile []byte
}

func (m *UserProfileSuccess) MessageSymbol() game.Symbol { return SymbolUserProfileSuccess }

func (m *UserProfileSuccess) MarshalMessage(w *Writer) error {
	w.WritePlatformID(m.UserID)
	w.WriteBlob(m.Profile)
	return nil
}

func (m *UserProfileSuccess) UnmarshalMessage(r *Reader) {
	m.UserID = r.ReadPlatformID()
	m.Profile = r.ReadBlob()
}

type UserProfileFailure struct {
	UserID     game.XPlatformId
	StatusCode uint64
	Reason     string
}

func (m *UserProfileFailure) MessageSymbol() game.Symbol { return SymbolUserProfileFailure }

func (m *UserProfileFailure) MarshalMessage(w *Writer) error {
	w.WritePlatformID(m.UserID)
	w.WriteUint64(m.StatusCode)
	w.WriteString(m.Reason)
	return nil
}

func (m *UserProfileFailure) UnmarshalMessage(r *Reader) {
	m.UserID = r.ReadPlatformID()
	m.StatusCode = r.ReadUint64()
	m.Reason = r.ReadString()
}
