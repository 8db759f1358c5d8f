package camera

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Latest is a single-slot latest-frame-wins buffer between a capture
// goroutine and the frame pump. Publish overwrites any unconsumed frame and
// counts it as dropped; NextFrame hands out each frame at most once.
type Latest struct {
	mu     sync.Mutex
	frame  *Frame
	err    error
	seq    uint64
	drops  atomic.Uint64
	notify chan struct{}
}

func NewLatest() *Latest {
	return &Latest{notify: make(chan struct{}, 1)}
}

// Publish stores payload as the newest frame. Non-blocking; the payload must
// not be modified by the caller afterwards.
func (l *Latest) Publish(payload []byte) {
	l.mu.Lock()
	if l.err == nil {
		if l.frame != nil {
			l.drops.Add(1)
		}
		l.seq++
		l.frame = &Frame{Payload: payload, Seq: l.seq, CapturedAt: time.Now()}
	}
	l.mu.Unlock()
	l.signal()
}

// Fail records a terminal capture fault. All pending and future NextFrame
// calls return the fault once the slot is drained.
func (l *Latest) Fail(err error) {
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
	l.signal()
}

func (l *Latest) signal() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Drops reports how many frames were overwritten before being consumed.
func (l *Latest) Drops() uint64 {
	return l.drops.Load()
}

func (l *Latest) NextFrame(ctx context.Context) (Frame, error) {
	for {
		l.mu.Lock()
		if l.frame != nil {
			f := *l.frame
			l.frame = nil
			l.mu.Unlock()
			return f, nil
		}
		if l.err != nil {
			err := l.err
			l.mu.Unlock()
			return Frame{}, err
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-l.notify:
		}
	}
}

func (l *Latest) Close() error {
	l.Fail(ErrSourceClosed)
	return nil
}
