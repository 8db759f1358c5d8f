package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const headerLen = 5

// MessageType tags one wire message.
type MessageType byte

const (
	TypeHello   MessageType = 0x01
	TypeFrame   MessageType = 0x02
	TypeCommand MessageType = 0x03
	TypePing    MessageType = 0x04
	TypeBye     MessageType = 0x05
)

func (t MessageType) String() string {
	switch t {
	case TypeHello:
		return "hello"
	case TypeFrame:
		return "frame"
	case TypeCommand:
		return "command"
	case TypePing:
		return "ping"
	case TypeBye:
		return "bye"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}

var (
	ErrUnknownType     = errors.New("wire: unknown message type")
	ErrPayloadTooLarge = errors.New("wire: payload exceeds limit")
	ErrUnexpectedBody  = errors.New("wire: unexpected payload on control message")
	ErrIncomplete      = errors.New("wire: incomplete message")
)

// Message is one complete wire message. It exists only during encode/decode;
// the payload is not retained by the codec.
type Message struct {
	Type    MessageType
	Payload []byte
}

// Limits constrains decode/encode memory use. A peer announcing a payload
// larger than MaxPayload is treated as a corrupt stream.
type Limits struct {
	MaxPayload uint32
}

func DefaultLimits() Limits {
	return Limits{MaxPayload: 8 * 1024 * 1024}
}

// HandshakeLimits bounds the HELLO exchange, where only a short device name
// is legitimate.
func HandshakeLimits() Limits {
	return Limits{MaxPayload: 256}
}

func validType(t MessageType) bool {
	return t >= TypeHello && t <= TypeBye
}

func validate(m Message, limits Limits) error {
	if !validType(m.Type) {
		return fmt.Errorf("%w: 0x%02x", ErrUnknownType, byte(m.Type))
	}
	if uint64(len(m.Payload)) > uint64(limits.MaxPayload) {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(m.Payload), limits.MaxPayload)
	}
	if (m.Type == TypePing || m.Type == TypeBye) && len(m.Payload) != 0 {
		return fmt.Errorf("%w: %s", ErrUnexpectedBody, m.Type)
	}
	return nil
}

// AppendEncode appends the encoded form of m to dst and returns the result.
func AppendEncode(dst []byte, m Message, limits Limits) ([]byte, error) {
	if err := validate(m, limits); err != nil {
		return dst, err
	}
	dst = append(dst, byte(m.Type))
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(m.Payload)))
	dst = append(dst, length[:]...)
	dst = append(dst, m.Payload...)
	return dst, nil
}

// WriteMessage encodes m and writes it to w in one call.
func WriteMessage(w io.Writer, m Message, limits Limits) error {
	buf, err := AppendEncode(make([]byte, 0, headerLen+len(m.Payload)), m, limits)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// ReadMessage blocks on r until one complete message has been read. It is the
// convenience path for callers that own the reader outright (the handshake
// gate, client tools); the session command pump uses Decoder instead.
func ReadMessage(r io.Reader, limits Limits) (Message, error) {
	var head [headerLen]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Message{}, err
	}
	t := MessageType(head[0])
	if !validType(t) {
		return Message{}, fmt.Errorf("%w: 0x%02x", ErrUnknownType, head[0])
	}
	length := binary.BigEndian.Uint32(head[1:])
	if length > limits.MaxPayload {
		return Message{}, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, length, limits.MaxPayload)
	}
	msg := Message{Type: t}
	if length > 0 {
		msg.Payload = make([]byte, length)
		if _, err := io.ReadFull(r, msg.Payload); err != nil {
			return Message{}, err
		}
	}
	if err := validate(msg, limits); err != nil {
		return Message{}, err
	}
	return msg, nil
}
