// Package camera adapts the capture hardware into a pull-based frame source.
//
// Capture runs at its own cadence and publishes into a single-slot buffer;
// a slow consumer sees the newest frame and older ones are dropped, keeping
// the stream live instead of delayed.
package camera

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCameraFault means the capture hardware stopped producing frames.
	// There is no recovery path; the session ends.
	ErrCameraFault = errors.New("camera: capture unavailable")

	ErrSourceClosed = errors.New("camera: source closed")
)

// Frame is one encoded image. It is never mutated after creation; ownership
// passes to the caller of NextFrame.
type Frame struct {
	Payload    []byte
	Seq        uint64
	CapturedAt time.Time
}

// Source produces a lazy, infinite, non-restartable frame sequence.
type Source interface {
	// NextFrame blocks until the next frame is available or the context is
	// done. A hardware fault surfaces as an error wrapping ErrCameraFault.
	NextFrame(ctx context.Context) (Frame, error)
	Close() error
}
