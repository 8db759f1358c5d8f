package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/telemote/picamd/internal/actuator"
	"github.com/telemote/picamd/internal/camera"
	"github.com/telemote/picamd/internal/observability"
	"github.com/telemote/picamd/internal/wire"
)

var (
	// ErrRemoteBye means the viewer ended the session cleanly.
	ErrRemoteBye = errors.New("session: remote requested disconnect")
	// ErrRemoteClosed means the viewer half-closed or dropped the transport.
	ErrRemoteClosed = errors.New("session: remote closed connection")
	// ErrProtocol covers malformed or out-of-place inbound messages. The
	// stream has no resynchronization, so this is always fatal.
	ErrProtocol = errors.New("session: protocol violation")
)

const readChunk = 32 * 1024

// Session owns one admitted connection and the two pumps driving it. It is
// created by the gate, run exactly once, and never reused.
type Session struct {
	conn      net.Conn
	source    camera.Source
	turret    *actuator.Turret
	limits    wire.Limits
	log       zerolog.Logger
	createdAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex
	reason error
}

func newSession(conn net.Conn, source camera.Source, turret *actuator.Turret, limits wire.Limits, log zerolog.Logger) *Session {
	return &Session{
		conn:      conn,
		source:    source,
		turret:    turret,
		limits:    limits,
		log:       log,
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Reason returns what ended the session, nil while it is alive.
func (s *Session) Reason() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Done is closed when the session has terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run drives both pumps until the session terminates and returns the
// termination reason. Canceling ctx tears the session down.
func (s *Session) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()
	defer observability.RecordSessionEnd()

	go func() {
		select {
		case <-runCtx.Done():
			s.terminate(runCtx.Err())
		case <-s.done:
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.framePump(runCtx)
	}()
	go func() {
		defer wg.Done()
		s.commandPump()
	}()
	wg.Wait()

	reason := s.Reason()
	s.log.Info().
		Err(reason).
		Dur("uptime", time.Since(s.createdAt)).
		Msg("session terminated")
	return reason
}

// terminate records the first cause, closes the connection (unblocking the
// pending read and write in both pumps), and fires exactly once.
func (s *Session) terminate(cause error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.reason = cause
		s.mu.Unlock()
		if s.cancel != nil {
			s.cancel()
		}
		_ = s.conn.Close()
		close(s.done)
	})
}

// framePump pulls frames at the capture cadence and writes them out. It never
// waits on the command pump.
func (s *Session) framePump(ctx context.Context) {
	for {
		frame, err := s.source.NextFrame(ctx)
		if err != nil {
			s.terminate(err)
			return
		}
		buf, err := wire.AppendEncode(nil, wire.Message{Type: wire.TypeFrame, Payload: frame.Payload}, s.limits)
		if err != nil {
			s.terminate(fmt.Errorf("session: encode frame %d: %w", frame.Seq, err))
			return
		}
		if _, err := s.conn.Write(buf); err != nil {
			s.terminate(fmt.Errorf("session: frame write: %w", err))
			return
		}
		observability.RecordFrame(len(frame.Payload))
		s.log.Trace().Uint64("seq", frame.Seq).Int("bytes", len(frame.Payload)).Msg("frame sent")
	}
}

// commandPump reads the inbound stream and applies commands in arrival order.
func (s *Session) commandPump() {
	dec := wire.NewDecoder(s.limits)
	buf := make([]byte, readChunk)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			if !s.drain(dec) {
				return
			}
		}
		if err != nil {
			s.terminate(fmt.Errorf("%w: %v", ErrRemoteClosed, err))
			return
		}
	}
}

// drain dispatches every complete buffered message. It reports false once the
// session has been terminated.
func (s *Session) drain(dec *wire.Decoder) bool {
	for {
		msg, err := dec.Next()
		if errors.Is(err, wire.ErrIncomplete) {
			return true
		}
		if err != nil {
			s.terminate(fmt.Errorf("%w: %v", ErrProtocol, err))
			return false
		}
		if !s.dispatch(msg) {
			return false
		}
	}
}

func (s *Session) dispatch(msg wire.Message) bool {
	switch msg.Type {
	case wire.TypeCommand:
		cmd, err := wire.DecodeCommand(msg.Payload)
		if err != nil {
			s.terminate(fmt.Errorf("%w: %v", ErrProtocol, err))
			return false
		}
		state := s.turret.Apply(cmd)
		observability.RecordCommand(cmd.Kind.String())
		s.log.Debug().
			Str("kind", cmd.Kind.String()).
			Float64("pan", state.Pan).
			Float64("tilt", state.Tilt).
			Msg("command applied")
		return true
	case wire.TypePing:
		// Keepalive only.
		return true
	case wire.TypeBye:
		s.terminate(ErrRemoteBye)
		return false
	default:
		// HELLO after admission, or a FRAME flowing the wrong way.
		s.terminate(fmt.Errorf("%w: unexpected %s", ErrProtocol, msg.Type))
		return false
	}
}
