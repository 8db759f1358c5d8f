// Package actuator adapts the pan/tilt servo hardware. Requested angles are
// clamped to the hardware's travel, never rejected; with the turret disabled
// every command is a silent no-op so the protocol looks identical whether or
// not servos are fitted.
package actuator

import (
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/telemote/picamd/internal/config"
	"github.com/telemote/picamd/internal/wire"
)

// State is the turret position after the most recent command.
type State struct {
	Pan     float64
	Tilt    float64
	Enabled bool
}

// Driver moves the physical servos. Implementations must tolerate being
// called with already-clamped angles only.
type Driver interface {
	Move(pan, tilt float64) error
	Close() error
}

// NopDriver satisfies Driver without hardware.
type NopDriver struct{}

func (NopDriver) Move(pan, tilt float64) error { return nil }
func (NopDriver) Close() error                 { return nil }

// Turret applies pan/tilt commands. Commands arrive serialized from the
// session's command pump; the mutex only guards State reads from the debug
// server.
type Turret struct {
	cfg    config.TurretConfig
	driver Driver
	log    zerolog.Logger

	mu    sync.Mutex
	state State
}

// NewTurret positions the servos at their start angles. A disabled config
// forces the NopDriver regardless of the driver argument.
func NewTurret(cfg config.TurretConfig, driver Driver, log zerolog.Logger) *Turret {
	if !cfg.Enable || driver == nil {
		driver = NopDriver{}
	}
	t := &Turret{
		cfg:    cfg,
		driver: driver,
		log:    log,
		state: State{
			Pan:     cfg.Pan.Start,
			Tilt:    cfg.Tilt.Start,
			Enabled: cfg.Enable,
		},
	}
	if cfg.Enable {
		if err := driver.Move(t.state.Pan, t.state.Tilt); err != nil {
			log.Warn().Err(err).Msg("turret start position failed")
		}
	}
	return t
}

// Apply executes one command and returns the resulting state. Out-of-range
// requests degrade to the bound value. Driver faults are logged and otherwise
// ignored: the viewer must not see an error a working servo would not report.
func (t *Turret) Apply(cmd wire.Command) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.Enabled {
		return t.state
	}

	pan, tilt := t.state.Pan, t.state.Tilt
	switch cmd.Kind {
	case wire.KindPanTiltDelta:
		pan += cmd.Pan
		tilt += cmd.Tilt
	case wire.KindPanTiltAbsolute:
		pan = cmd.Pan
		tilt = cmd.Tilt
	default:
		return t.state
	}

	t.state.Pan = clamp(pan, t.cfg.Pan.Min, t.cfg.Pan.Max)
	t.state.Tilt = clamp(tilt, t.cfg.Tilt.Min, t.cfg.Tilt.Max)

	if err := t.driver.Move(t.state.Pan, t.state.Tilt); err != nil {
		t.log.Warn().Err(err).
			Float64("pan", t.state.Pan).
			Float64("tilt", t.state.Tilt).
			Msg("servo move failed")
	}
	return t.state
}

// State returns the current position for the debug surface.
func (t *Turret) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Turret) Close() error {
	return t.driver.Close()
}

func clamp(v, min, max float64) float64 {
	return math.Min(math.Max(v, min), max)
}
