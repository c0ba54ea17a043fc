package protocol

import (
	"github.com/gofrs/uuid/v5"

	"github.com/nexus-vr/nexus/internal/game"
)

// ReconcileIAPRequest asks the transaction service to reconcile the user's
// in-app purchase state.
type ReconcileIAPRequest struct {
	Session uuid.UUID
	UserID  game.XPlatformId
}

func (m *ReconcileIAPRequest) MessageSymbol() game.Symbol { return SymbolReconcileIAPRequest }

func (m *ReconcileIAPRequest) MarshalMessage(w *Writer) error {
	w.WriteGUID(m.Session)
	w.WritePlatformID(m.UserID)
	return nil
}

func (m *ReconcileIAPRequest) UnmarshalMessage(r *Reader) {
	m.Session = r.ReadGUID()
	m.UserID = r.ReadPlatformID()
}

// ReconcileIAPResult returns the user's purchase balances as an opaque JSON
// document.
type ReconcileIAPResult struct {
	UserID  game.XPlatformId
	IAPData []byte
}

func (m *ReconcileIAPResult) MessageSymbol() game.Symbol { return SymbolReconcileIAPResult }

func (m *ReconcileIAPResult) MarshalMessage(w *Writer) error {
	w.WritePlatformID(m.UserID)
	w.WriteBlob(m.IAPData)
	return nil
}

func (m *ReconcileIAPResult) UnmarshalMessage(r *Reader) {
	m.UserID = r.ReadPlatformID()
	m.IAPData = r.ReadBlob()
}
