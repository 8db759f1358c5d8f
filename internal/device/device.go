// Package device runs the session lifecycle: listen, gate one connection at a
// time, run the admitted session, then stop. Termination is absorbing: the
// process exits and must be restarted externally before a viewer can
// reconnect.
package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/telemote/picamd/internal/actuator"
	"github.com/telemote/picamd/internal/camera"
	"github.com/telemote/picamd/internal/config"
	"github.com/telemote/picamd/internal/session"
	"github.com/telemote/picamd/internal/wire"
)

// State is the lifecycle position of the device.
type State int

const (
	StateIdle State = iota
	StateListening
	StateHandshakeWait
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateHandshakeWait:
		return "handshake_wait"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

var ErrNotListening = errors.New("device: not listening")

// Device wires the gate, camera source, and turret into the accept loop.
type Device struct {
	cfg    config.Config
	source camera.Source
	turret *actuator.Turret
	gate   *session.Gate
	log    zerolog.Logger

	mu         sync.Mutex
	state      State
	listener   net.Listener
	lastReason error
}

func New(cfg config.Config, source camera.Source, turret *actuator.Turret, log zerolog.Logger) *Device {
	gate := session.NewGate(session.GateConfig{
		Name:             cfg.Name,
		HandshakeTimeout: cfg.Session.HandshakeTimeout,
		Limits:           wire.Limits{MaxPayload: cfg.Session.MaxFrameBytes},
	}, source, turret, log)
	return &Device{
		cfg:    cfg,
		source: source,
		turret: turret,
		gate:   gate,
		log:    log,
		state:  StateIdle,
	}
}

func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SessionReason reports what ended the session, nil before termination.
func (d *Device) SessionReason() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastReason
}

// Turret exposes position for the debug surface.
func (d *Device) Turret() *actuator.Turret {
	return d.turret
}

func (d *Device) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
	d.log.Debug().Stringer("state", s).Msg("lifecycle transition")
}

// Listen binds the configured port. Split from Run so callers can learn the
// bound address before the accept loop starts.
func (d *Device) Listen() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", d.cfg.Port))
	if err != nil {
		return fmt.Errorf("device: listen: %w", err)
	}
	d.mu.Lock()
	d.listener = ln
	d.state = StateListening
	d.mu.Unlock()
	d.log.Info().Str("addr", ln.Addr().String()).Str("name", d.cfg.Name).Msg("listening for viewer")
	return nil
}

func (d *Device) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return nil
	}
	return d.listener.Addr()
}

// Run accepts connections until one passes the gate, runs that session to
// completion, and returns. Rejected connections put the device back to
// accepting; an admitted one is exclusive, no new connections are accepted
// while it is active. Run returns nil on normal session termination.
func (d *Device) Run(ctx context.Context) error {
	d.mu.Lock()
	ln := d.listener
	d.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}
	defer ln.Close()
	defer d.setState(StateTerminated)

	unblock := context.AfterFunc(ctx, func() { ln.Close() })
	defer unblock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("device: accept: %w", err)
		}

		d.setState(StateHandshakeWait)
		sess, err := d.gate.Admit(conn)
		if err != nil {
			d.setState(StateListening)
			continue
		}

		d.setState(StateActive)
		reason := sess.Run(ctx)
		d.mu.Lock()
		d.lastReason = reason
		d.mu.Unlock()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Disconnect stops the process; reconnecting requires a restart.
		return nil
	}
}
