// camprobe is a bench client for picamd: it dials the device, performs the
// HELLO handshake, then prints frame statistics while optionally driving the
// turret, ending the session with BYE.
package main

import (
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/rs/zerolog"

	"github.com/telemote/picamd/internal/wire"
)

type args struct {
	Addr   string  `arg:"positional,required" help:"device address, host:port"`
	Name   string  `arg:"-n,--name" default:"picam" help:"device name to claim"`
	Frames int     `arg:"--frames" default:"0" help:"stop after this many frames (0 = run forever)"`
	Pan    float64 `arg:"--pan" help:"pan delta to send once per second"`
	Tilt   float64 `arg:"--tilt" help:"tilt delta to send once per second"`
	Bye    bool    `arg:"--bye" default:"true" help:"send BYE before exiting"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "camprobe: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var a args
	arg.MustParse(&a)
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	conn, err := net.DialTimeout("tcp", a.Addr, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
	if err := wire.WriteMessage(conn, wire.Message{Type: wire.TypeHello, Payload: []byte(a.Name)}, wire.HandshakeLimits()); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}
	ack, err := wire.ReadMessage(conn, wire.HandshakeLimits())
	if err != nil {
		// A silent close here usually means the claimed name is wrong.
		return fmt.Errorf("await ack (name %q rejected?): %w", a.Name, err)
	}
	if ack.Type != wire.TypeHello {
		return fmt.Errorf("unexpected ack %s", ack.Type)
	}
	_ = conn.SetDeadline(time.Time{})
	log.Info().Str("device", string(ack.Payload)).Msg("admitted")

	var frames, frameBytes atomic.Uint64
	stop := make(chan struct{})

	go commandLoop(conn, a, stop)

	start := time.Now()
	limits := wire.DefaultLimits()
	for {
		msg, err := wire.ReadMessage(conn, limits)
		if err != nil {
			return fmt.Errorf("stream ended: %w", err)
		}
		if msg.Type != wire.TypeFrame {
			log.Warn().Stringer("type", msg.Type).Msg("non-frame message from device")
			continue
		}
		n := frames.Add(1)
		frameBytes.Add(uint64(len(msg.Payload)))
		if n%25 == 0 {
			elapsed := time.Since(start).Seconds()
			log.Info().
				Uint64("frames", n).
				Float64("fps", float64(n)/elapsed).
				Uint64("bytes", frameBytes.Load()).
				Msg("streaming")
		}
		if a.Frames > 0 && n >= uint64(a.Frames) {
			break
		}
	}
	close(stop)

	if a.Bye {
		_ = wire.WriteMessage(conn, wire.Message{Type: wire.TypeBye}, limits)
	}
	log.Info().Uint64("frames", frames.Load()).Msg("done")
	return nil
}

// commandLoop sends keepalives, plus pan/tilt deltas when requested, once per
// second until the frame loop finishes.
func commandLoop(conn net.Conn, a args, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	limits := wire.DefaultLimits()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		if a.Pan != 0 || a.Tilt != 0 {
			payload := wire.EncodeCommand(wire.Command{
				Kind: wire.KindPanTiltDelta,
				Pan:  a.Pan,
				Tilt: a.Tilt,
			})
			if err := wire.WriteMessage(conn, wire.Message{Type: wire.TypeCommand, Payload: payload}, limits); err != nil {
				return
			}
			continue
		}
		if err := wire.WriteMessage(conn, wire.Message{Type: wire.TypePing}, limits); err != nil {
			return
		}
	}
}
