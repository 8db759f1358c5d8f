package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// CommandKind tags one COMMAND payload variant. Keepalive and disconnect are
// message types of their own (TypePing, TypeBye), not command kinds.
type CommandKind byte

const (
	KindPanTiltDelta    CommandKind = 0x01
	KindPanTiltAbsolute CommandKind = 0x02
)

func (k CommandKind) String() string {
	switch k {
	case KindPanTiltDelta:
		return "pan_tilt_delta"
	case KindPanTiltAbsolute:
		return "pan_tilt_absolute"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(k))
	}
}

var ErrBadCommand = errors.New("wire: malformed command payload")

// Command is one decoded pan/tilt request. For KindPanTiltDelta the angles
// are offsets from the current position; for KindPanTiltAbsolute they are
// target positions. Degrees in both cases.
type Command struct {
	Kind CommandKind
	Pan  float64
	Tilt float64
}

const commandLen = 1 + 8 + 8

// EncodeCommand produces a COMMAND payload: kind tag then two big-endian
// IEEE-754 float64 values (pan, tilt).
func EncodeCommand(cmd Command) []byte {
	buf := make([]byte, commandLen)
	buf[0] = byte(cmd.Kind)
	binary.BigEndian.PutUint64(buf[1:9], math.Float64bits(cmd.Pan))
	binary.BigEndian.PutUint64(buf[9:17], math.Float64bits(cmd.Tilt))
	return buf
}

func DecodeCommand(payload []byte) (Command, error) {
	if len(payload) != commandLen {
		return Command{}, fmt.Errorf("%w: length %d", ErrBadCommand, len(payload))
	}
	kind := CommandKind(payload[0])
	if kind != KindPanTiltDelta && kind != KindPanTiltAbsolute {
		return Command{}, fmt.Errorf("%w: kind 0x%02x", ErrBadCommand, payload[0])
	}
	pan := math.Float64frombits(binary.BigEndian.Uint64(payload[1:9]))
	tilt := math.Float64frombits(binary.BigEndian.Uint64(payload[9:17]))
	if math.IsNaN(pan) || math.IsNaN(tilt) {
		return Command{}, fmt.Errorf("%w: NaN angle", ErrBadCommand)
	}
	return Command{Kind: kind, Pan: pan, Tilt: tilt}, nil
}
