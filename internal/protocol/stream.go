package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/gofrs/uuid/v5"

	"github.com/nexus-vr/nexus/internal/game"
)

// Wire limits guarding against hostile length prefixes.
const (
	maxStringLen = 0xFFFF
	maxBlobLen   = 0x400000
)

// Writer serializes message fields in the client's wire format: fixed-width
// little-endian numerics and length-prefixed variable fields.
type Writer struct {
	buf bytes.Buffer
}

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }
func (w *Writer) Len() int      { return w.buf.Len() }

func (w *Writer) WriteUint8(v uint8)   { w.buf.WriteByte(v) }
func (w *Writer) WriteUint16(v uint16) { _ = binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *Writer) WriteUint32(v uint32) { _ = binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *Writer) WriteUint64(v uint64) { _ = binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *Writer) WriteInt16(v int16)   { _ = binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *Writer) WriteInt64(v int64)   { _ = binary.Write(&w.buf, binary.LittleEndian, v) }

func (w *Writer) WriteSymbol(s game.Symbol) { w.WriteInt64(int64(s)) }

func (w *Writer) WriteGUID(id uuid.UUID) { w.buf.Write(id.Bytes()) }

// WriteIPv4 writes an address as 4 bytes; unresolvable addresses write as zeros.
func (w *Writer) WriteIPv4(ip net.IP) {
	var quad [4]byte
	if v4 := ip.To4(); v4 != nil {
		copy(quad[:], v4)
	}
	w.buf.Write(quad[:])
}

func (w *Writer) WritePlatformID(id game.XPlatformId) {
	w.WriteUint64(uint64(id.Platform))
	w.WriteUint64(id.AccountID)
}

// WriteString writes a uint16 length prefix followed by the UTF-8 bytes.
func (w *Writer) WriteString(s string) {
	if len(s) > maxStringLen {
		s = s[:maxStringLen]
	}
	w.WriteUint16(uint16(len(s)))
	w.buf.WriteString(s)
}

// WriteBlob writes a uint32 length prefix followed by raw bytes. Used for
// opaque JSON payloads whose schemas belong to the game, not the transport.
func (w *Writer) WriteBlob(b []byte) {
	w.WriteUint32(uint32(len(b)))
	w.buf.Write(b)
}

// Reader deserializes message fields. The first malformed read poisons the
// reader; callers check Err once after reading all fields.
type Reader struct {
	r   *bytes.Reader
	err error
}

func NewReader(data []byte) *Reader {
	return &Reader{r: bytes.NewReader(data)}
}

func (r *Reader) Err() error     { return r.err }
func (r *Reader) Remaining() int { return r.r.Len() }

func (r *Reader) fail(err error) {
	if r.err == nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = fmt.Errorf("message payload truncated: %w", err)
		}
		r.err = err
	}
}

func (r *Reader) ReadUint8() uint8 {
	if r.err != nil {
		return 0
	}
	b, err := r.r.ReadByte()
	if err != nil {
		r.fail(err)
		return 0
	}
	return b
}

func (r *Reader) ReadUint16() uint16 {
	var v uint16
	r.readBinary(&v)
	return v
}

func (r *Reader) ReadUint32() uint32 {
	var v uint32
	r.readBinary(&v)
	return v
}

func (r *Reader) ReadUint64() uint64 {
	var v uint64
	r.readBinary(&v)
	return v
}

func (r *Reader) ReadInt16() int16 {
	var v int16
	r.readBinary(&v)
	return v
}

func (r *Reader) ReadInt64() int64 {
	var v int64
	r.readBinary(&v)
	return v
}

func (r *Reader) readBinary(v interface{}) {
	if r.err != nil {
		return
	}
	if err := binary.Read(r.r, binary.LittleEndian, v); err != nil {
		r.fail(err)
	}
}

func (r *Reader) ReadSymbol() game.Symbol {
	return game.Symbol(r.ReadInt64())
}

func (r *Reader) ReadGUID() uuid.UUID {
	var raw [16]byte
	if r.err != nil {
		return uuid.Nil
	}
	if _, err := io.ReadFull(r.r, raw[:]); err != nil {
		r.fail(err)
		return uuid.Nil
	}
	return uuid.FromBytesOrNil(raw[:])
}

func (r *Reader) ReadIPv4() net.IP {
	var quad [4]byte
	if r.err != nil {
		return nil
	}
	if _, err := io.ReadFull(r.r, quad[:]); err != nil {
		r.fail(err)
		return nil
	}
	return net.IPv4(quad[0], quad[1], quad[2], quad[3]).To4()
}

func (r *Reader) ReadPlatformID() game.XPlatformId {
	return game.XPlatformId{
		Platform:  game.PlatformCode(r.ReadUint64()),
		AccountID: r.ReadUint64(),
	}
}

func (r *Reader) ReadString() string {
	length := int(r.ReadUint16())
	if r.err != nil {
		return ""
	}
	if length > r.r.Len() {
		r.fail(fmt.Errorf("string length %d exceeds remaining payload %d", length, r.r.Len()))
		return ""
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.fail(err)
		return ""
	}
	return string(buf)
}

func (r *Reader) ReadBlob() []byte {
	length := int(r.ReadUint32())
	if r.err != nil {
		return nil
	}
	if length > maxBlobLen {
		r.fail(fmt.Errorf("blob length %d exceeds limit", length))
		return nil
	}
	if length > r.r.Len() {
		r.fail(fmt.Errorf("blob length %d exceeds remaining payload %d", length, r.r.Len()))
		return nil
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.fail(err)
		return nil
	}
	return buf
}
