// Package protocol implements the binary message framing shared by all of
// the logical services. Decoding is pure: it never touches peer or service
// state, and unknown message types decode into UnrecognizedMessage rather
// than failing the packet they arrived in.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nexus-vr/nexus/internal/game"
)

// Every message on the wire is prefixed with this marker followed by the
// message type symbol and the payload length, all little-endian uint64s.
const (
	messageMarker     uint64 = 0xBB8CE7A278BB40F6
	messageHeaderSize        = 24

	// maxPayloadSize bounds a single message payload. Anything larger is
	// treated as stream corruption rather than an allocation request.
	maxPayloadSize = 0x800000
)

var (
	// ErrNeedMoreData indicates the buffer ends mid-message; the caller
	// should retry once more of the stream has arrived.
	ErrNeedMoreData = errors.New("incomplete message in stream")
	// ErrCorruptStream indicates framing that can never become valid.
	ErrCorruptStream = errors.New("corrupt message stream")
)

// Packet is the ordered sequence of messages carried by one transport frame.
type Packet []Message

// Decode parses a transport frame into its messages. A frame may carry zero
// or more messages back-to-back.
func Decode(data []byte) (Packet, error) {
	var packet Packet

	for offset := 0; offset < len(data); {
		remaining := data[offset:]
		if len(remaining) < messageHeaderSize {
			return nil, ErrNeedMoreData
		}

		marker := binary.LittleEndian.Uint64(remaining[0:8])
		if marker != messageMarker {
			return nil, fmt.Errorf("%w: bad marker 0x%016X at offset %d", ErrCorruptStream, marker, offset)
		}

		symbol := game.Symbol(binary.LittleEndian.Uint64(remaining[8:16]))
		length := binary.LittleEndian.Uint64(remaining[16:24])
		if length > maxPayloadSize {
			return nil, fmt.Errorf("%w: declared payload of %d bytes", ErrCorruptStream, length)
		}
		if uint64(len(remaining)-messageHeaderSize) < length {
			return nil, ErrNeedMoreData
		}

		payload := remaining[messageHeaderSize : messageHeaderSize+int(length)]
		message, err := decodeMessage(symbol, payload)
		if err != nil {
			return nil, err
		}

		packet = append(packet, message)
		offset += messageHeaderSize + int(length)
	}

	return packet, nil
}

func decodeMessage(symbol game.Symbol, payload []byte) (Message, error) {
	newMessage, known := messageTypes[symbol]
	if !known {
		// Preserve the payload so it can be logged or ignored without
		// breaking the rest of the session.
		unrecognized := &UnrecognizedMessage{Symbol: symbol}
		unrecognized.Payload = append(unrecognized.Payload, payload...)
		return unrecognized, nil
	}

	message := newMessage()
	reader := NewReader(payload)
	message.UnmarshalMessage(reader)
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrCorruptStream, MessageName(symbol), err)
	}

	return message, nil
}

// Encode serializes a packet for transmission.
func Encode(packet Packet) ([]byte, error) {
	var out []byte

	for _, message := range packet {
		writer := &Writer{}
		if err := message.MarshalMessage(writer); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", MessageName(message.MessageSymbol()), err)
		}
		payload := writer.Bytes()

		var header [messageHeaderSize]byte
		binary.LittleEndian.PutUint64(header[0:8], messageMarker)
		binary.LittleEndian.PutUint64(header[8:16], uint64(message.MessageSymbol()))
		binary.LittleEndian.PutUint64(header[16:24], uint64(len(payload)))

		out = append(out, header[:]...)
		out = append(out, payload...)
	}

	return out, nil
}
