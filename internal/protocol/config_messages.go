package protocol

import "github.com/nexus-vr/nexus/internal/game"

// ConfigRequest asks for a keyed config resource, e.g. type "main_menu" with
// identifier "main_menu".
type ConfigRequest struct {
	Type       string
	Identifier string
}

func (m *ConfigRequest) MessageSymbol() game.Symbol { return SymbolConfigRequest }

func (m *ConfigRequest) MarshalMessage(w *Writer) error {
	w.WriteString(m.Type)
	w.WriteString(m.Identifier)
	return nil
}

func (m *ConfigRequest) UnmarshalMessage(r *Reader) {
	m.Type = r.ReadString()
	m.Identifier = r.ReadString()
}

type ConfigSuccess struct {
	Type       string
	Identifier string
	Data       []byte
}

func (m *ConfigSuccess) MessageSymbol() game.Symbol { return SymbolConfigSuccess }

func (m *ConfigSuccess) MarshalMessage(w *Writer) error {
	w.WriteString(m.Type)
	w.WriteString(m.Identifier)
	w.WriteBlob(m.Data)
	return nil
}

func (m *ConfigSuccess) UnmarshalMessage(r *Reader) {
	m.Type = r.ReadString()
	m.Identifier = r.ReadString()
	m.Data = r.ReadBlob()
}

type ConfigFailure struct {
	Type       string
	Identifier string
	Reason     string
}

func (m *ConfigFailure) MessageSymbol() game.Symbol { return SymbolConfigFailure }

func (m *ConfigFailure) MarshalMessage(w *Writer) error {
	w.WriteString(m.Type)
	w.WriteString(m.Identifier)
	w.WriteString(m.Reason)
	return nil
}

func (m *ConfigFailure) UnmarshalMessage(r *Reader) {
	m.Type = r.ReadString()
	m.Identifier = r.ReadString()
	m.Reason = r.ReadString()
}
