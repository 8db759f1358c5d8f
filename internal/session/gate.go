package session

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/telemote/picamd/internal/actuator"
	"github.com/telemote/picamd/internal/camera"
	"github.com/telemote/picamd/internal/observability"
	"github.com/telemote/picamd/internal/wire"
)

// ErrRejected reports that a connection did not pass the handshake. The
// remote side gets no reply; a viewer with a misconfigured name just looks
// stuck, which is the documented behavior.
var ErrRejected = errors.New("session: connection rejected")

// GateConfig parameterizes the handshake gate.
type GateConfig struct {
	// Name is the configured device identity. The HELLO payload must match
	// it exactly, case-sensitively.
	Name             string
	HandshakeTimeout time.Duration
	// Limits applies to the admitted session's streams. The handshake itself
	// always uses wire.HandshakeLimits.
	Limits wire.Limits
}

func (c GateConfig) withDefaults() GateConfig {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.Limits.MaxPayload == 0 {
		c.Limits = wire.DefaultLimits()
	}
	return c
}

// Gate validates claimed identity on raw connections and builds the session
// for the ones it admits.
type Gate struct {
	cfg    GateConfig
	source camera.Source
	turret *actuator.Turret
	log    zerolog.Logger
}

func NewGate(cfg GateConfig, source camera.Source, turret *actuator.Turret, log zerolog.Logger) *Gate {
	return &Gate{cfg: cfg.withDefaults(), source: source, turret: turret, log: log}
}

// Admit reads exactly one HELLO within the handshake timeout and compares the
// claimed name to the configured identity. On match it acknowledges with a
// HELLO carrying the device name and returns a live session. On mismatch,
// timeout, or malformed input it closes the connection without replying and
// returns an error wrapping ErrRejected.
func (g *Gate) Admit(conn net.Conn) (*Session, error) {
	_ = conn.SetDeadline(time.Now().Add(g.cfg.HandshakeTimeout))

	msg, err := wire.ReadMessage(conn, wire.HandshakeLimits())
	if err != nil {
		return nil, g.reject(conn, fmt.Errorf("%w: read hello: %v", ErrRejected, err))
	}
	if msg.Type != wire.TypeHello {
		return nil, g.reject(conn, fmt.Errorf("%w: first message was %s", ErrRejected, msg.Type))
	}
	claimed := string(msg.Payload)
	if claimed == "" || claimed != g.cfg.Name {
		return nil, g.reject(conn, fmt.Errorf("%w: name mismatch %q", ErrRejected, claimed))
	}

	ack := wire.Message{Type: wire.TypeHello, Payload: []byte(g.cfg.Name)}
	if err := wire.WriteMessage(conn, ack, wire.HandshakeLimits()); err != nil {
		return nil, g.reject(conn, fmt.Errorf("%w: write ack: %v", ErrRejected, err))
	}
	_ = conn.SetDeadline(time.Time{})

	observability.RecordAdmitted()
	g.log.Info().
		Str("remote", conn.RemoteAddr().String()).
		Str("name", claimed).
		Msg("viewer admitted")
	return newSession(conn, g.source, g.turret, g.cfg.Limits, g.log), nil
}

func (g *Gate) reject(conn net.Conn, err error) error {
	_ = conn.Close()
	observability.RecordRejected()
	g.log.Warn().
		Str("remote", conn.RemoteAddr().String()).
		Err(err).
		Msg("viewer rejected")
	return err
}
