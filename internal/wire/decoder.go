package wire

import (
	"encoding/binary"
	"fmt"
)

// Decoder reassembles messages from a byte stream delivered in arbitrary
// chunks. Feed appends raw input; Next returns the next complete message or
// ErrIncomplete when more input is needed. Any other error means the stream
// has lost framing and the connection must be closed.
type Decoder struct {
	limits Limits
	buf    []byte
}

func NewDecoder(limits Limits) *Decoder {
	return &Decoder{limits: limits}
}

// Feed appends raw stream bytes. The input slice is copied; the caller may
// reuse it immediately.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered reports how many bytes are waiting to be decoded.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next emits exactly one message when a full frame is buffered. The returned
// payload is an independent copy; the internal buffer retains only the
// remainder of the stream.
func (d *Decoder) Next() (Message, error) {
	if len(d.buf) < 1 {
		return Message{}, ErrIncomplete
	}
	t := MessageType(d.buf[0])
	if !validType(t) {
		return Message{}, fmt.Errorf("%w: 0x%02x", ErrUnknownType, d.buf[0])
	}
	if len(d.buf) < headerLen {
		return Message{}, ErrIncomplete
	}
	length := binary.BigEndian.Uint32(d.buf[1:headerLen])
	if length > d.limits.MaxPayload {
		return Message{}, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, length, d.limits.MaxPayload)
	}
	total := headerLen + int(length)
	if len(d.buf) < total {
		return Message{}, ErrIncomplete
	}

	msg := Message{Type: t}
	if length > 0 {
		msg.Payload = make([]byte, length)
		copy(msg.Payload, d.buf[headerLen:total])
	}

	rest := len(d.buf) - total
	copy(d.buf, d.buf[total:])
	d.buf = d.buf[:rest]

	if err := validate(msg, d.limits); err != nil {
		return Message{}, err
	}
	return msg, nil
}
