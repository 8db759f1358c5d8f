package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/telemote/picamd/internal/actuator"
	"github.com/telemote/picamd/internal/camera"
	"github.com/telemote/picamd/internal/wire"
)

func startSession(t *testing.T, source camera.Source, turret *actuator.Turret) (net.Conn, *Session, chan error) {
	t.Helper()
	server, client := net.Pipe()
	sess := newSession(server, source, turret, wire.DefaultLimits(), zerolog.Nop())
	done := make(chan error, 1)
	go func() {
		done <- sess.Run(context.Background())
	}()
	return client, sess, done
}

func waitRun(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not terminate")
		return nil
	}
}

// drainConn discards outbound traffic so the frame pump never blocks on the
// unbuffered pipe. Safe for background goroutines; read errors just end it.
func drainConn(conn net.Conn) {
	io.Copy(io.Discard, conn)
}

// readFrames consumes n FRAME messages, ignoring nothing else: any other
// inbound type is a test failure.
func readFrames(t *testing.T, conn net.Conn, n int) []wire.Message {
	t.Helper()
	frames := make([]wire.Message, 0, n)
	for len(frames) < n {
		msg, err := wire.ReadMessage(conn, wire.DefaultLimits())
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if msg.Type != wire.TypeFrame {
			t.Fatalf("unexpected outbound %s", msg.Type)
		}
		frames = append(frames, msg)
	}
	return frames
}

func TestFramesFlowWithoutCommands(t *testing.T) {
	client, _, done := startSession(t, &generatorSource{}, testTurret())

	frames := readFrames(t, client, 5)
	last := 0
	for _, f := range frames {
		var seq int
		if _, err := fmt.Sscanf(string(f.Payload), "jpeg-%d", &seq); err != nil {
			t.Fatalf("unexpected frame payload %q", f.Payload)
		}
		if seq <= last {
			t.Fatalf("frames out of capture order: %d after %d", seq, last)
		}
		last = seq
	}

	client.Close()
	// Either pump may notice the dead peer first; the reason just has to be
	// an I/O failure, not a clean BYE.
	if err := waitRun(t, done); err == nil || errors.Is(err, ErrRemoteBye) {
		t.Fatalf("expected an I/O termination reason, got %v", err)
	}
}

func TestRemoteByeTerminates(t *testing.T) {
	client, sess, done := startSession(t, &generatorSource{}, testTurret())

	readFrames(t, client, 2)
	if err := wire.WriteMessage(client, wire.Message{Type: wire.TypeBye}, wire.DefaultLimits()); err != nil {
		t.Fatalf("write bye: %v", err)
	}

	// Drain until the device closes; nothing but frames may arrive meanwhile.
	go func() {
		for {
			if _, err := wire.ReadMessage(client, wire.DefaultLimits()); err != nil {
				return
			}
		}
	}()

	if err := waitRun(t, done); !errors.Is(err, ErrRemoteBye) {
		t.Fatalf("expected ErrRemoteBye, got %v", err)
	}
	if !errors.Is(sess.Reason(), ErrRemoteBye) {
		t.Fatalf("reason not recorded: %v", sess.Reason())
	}
	select {
	case <-sess.Done():
	default:
		t.Fatalf("done channel not closed")
	}
}

func TestCommandsApplyWhileStreaming(t *testing.T) {
	turret := testTurret()
	client, _, done := startSession(t, &generatorSource{}, turret)

	// Current pan 80, delta +30 must clamp at the 90 degree stop.
	abs := wire.EncodeCommand(wire.Command{Kind: wire.KindPanTiltAbsolute, Pan: 80, Tilt: 30})
	delta := wire.EncodeCommand(wire.Command{Kind: wire.KindPanTiltDelta, Pan: 30})
	for _, payload := range [][]byte{abs, delta} {
		if err := wire.WriteMessage(client, wire.Message{Type: wire.TypeCommand, Payload: payload}, wire.DefaultLimits()); err != nil {
			t.Fatalf("write command: %v", err)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for turret.State().Pan != 90 {
		if time.Now().After(deadline) {
			t.Fatalf("pan never reached clamp, state %+v", turret.State())
		}
		readFrames(t, client, 1)
	}

	client.Close()
	waitRun(t, done)
}

func TestCommandsSplitAcrossReads(t *testing.T) {
	turret := testTurret()
	client, _, done := startSession(t, &generatorSource{}, turret)

	payload := wire.EncodeCommand(wire.Command{Kind: wire.KindPanTiltAbsolute, Pan: 45, Tilt: 15})
	stream, err := wire.AppendEncode(nil, wire.Message{Type: wire.TypeCommand, Payload: payload}, wire.DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	go drainConn(client)
	for _, b := range stream {
		if _, err := client.Write([]byte{b}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for turret.State().Pan != 45 {
		if time.Now().After(deadline) {
			t.Fatalf("command never applied, state %+v", turret.State())
		}
		time.Sleep(5 * time.Millisecond)
	}

	client.Close()
	waitRun(t, done)
}

func TestMalformedInboundIsFatal(t *testing.T) {
	client, _, done := startSession(t, &generatorSource{}, testTurret())
	go drainConn(client)

	if _, err := client.Write([]byte{0x7f, 0, 0, 0, 0}); err != nil {
		t.Fatalf("write junk: %v", err)
	}

	if err := waitRun(t, done); !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestHelloAfterAdmissionIsFatal(t *testing.T) {
	client, _, done := startSession(t, &generatorSource{}, testTurret())
	go drainConn(client)

	if err := wire.WriteMessage(client, wire.Message{Type: wire.TypeHello, Payload: []byte("picam")}, wire.DefaultLimits()); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	if err := waitRun(t, done); !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestCameraFaultTerminatesSession(t *testing.T) {
	source := &generatorSource{}
	client, _, done := startSession(t, source, testTurret())

	readFrames(t, client, 2)
	source.fault.Store(true)

	go drainConn(client)
	if err := waitRun(t, done); !errors.Is(err, camera.ErrCameraFault) {
		t.Fatalf("expected camera fault, got %v", err)
	}
}

func TestCloseUnblocksBothPumpsOnce(t *testing.T) {
	client, sess, done := startSession(t, &generatorSource{}, testTurret())

	// Both pumps are in flight; the frame pump may be blocked mid-write on
	// the unbuffered pipe when the peer disappears.
	readFrames(t, client, 1)
	client.Close()

	err := waitRun(t, done)
	if err == nil {
		t.Fatalf("expected a termination reason")
	}
	first := sess.Reason()

	// Late BYE handling after teardown must not fire a second termination.
	sess.terminate(ErrRemoteBye)
	if !errors.Is(sess.Reason(), first) {
		t.Fatalf("termination reason changed: %v -> %v", first, sess.Reason())
	}
}

func TestContextCancelTearsDown(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	sess := newSession(server, &generatorSource{}, testTurret(), wire.DefaultLimits(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()
	go drainConn(client)

	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := waitRun(t, done); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
