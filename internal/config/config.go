// Package config holds the immutable device configuration. It is loaded once
// at startup and passed explicitly to the components that need it; nothing
// reads configuration ambiently after that.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNameRequired = errors.New("config: device name required")
	ErrInvalidPort  = errors.New("config: port out of range")
	ErrBadBounds    = errors.New("config: invalid axis bounds")
)

// Config is the full picamd configuration.
type Config struct {
	// Name is the identity a viewer must claim in its HELLO to be admitted.
	Name string
	// Port is the TCP listen port for viewer connections.
	Port int

	Camera  CameraConfig
	Turret  TurretConfig
	Session SessionConfig

	// DebugAddr, when non-empty, enables the HTTP debug/metrics listener.
	DebugAddr string
	LogLevel  string
}

type CameraConfig struct {
	// Pipeline overrides the generated GStreamer description when set.
	Pipeline string
	Device   string
	Width    int
	Height   int
	FPS      int
	Rotate   bool
}

// AxisConfig bounds one servo axis in degrees. Start is the angle applied at
// power-up.
type AxisConfig struct {
	Min   float64
	Max   float64
	Start float64
}

type TurretConfig struct {
	// Enable gates real servo moves. A disabled turret accepts every command
	// as a no-op so the viewer cannot tell the hardware is absent.
	Enable bool
	I2CBus string
	Pan    AxisConfig
	Tilt   AxisConfig
}

type SessionConfig struct {
	HandshakeTimeout time.Duration
	MaxFrameBytes    uint32
}

// DefaultConfig matches the stock rig: pan servo swings 0..180 centred at
// 90, tilt 0..60 centred at 30, 720x480 capture mounted upside down.
func DefaultConfig() Config {
	return Config{
		Name: "picam",
		Port: 7896,
		Camera: CameraConfig{
			Width:  720,
			Height: 480,
			FPS:    24,
			Rotate: true,
		},
		Turret: TurretConfig{
			Enable: true,
			Pan:    AxisConfig{Min: 0, Max: 180, Start: 90},
			Tilt:   AxisConfig{Min: 0, Max: 60, Start: 30},
		},
		Session: SessionConfig{
			HandshakeTimeout: 10 * time.Second,
			MaxFrameBytes:    8 * 1024 * 1024,
		},
		LogLevel: "info",
	}
}

func (a AxisConfig) validate(axis string) error {
	if a.Min >= a.Max {
		return fmt.Errorf("%w: %s min %.1f >= max %.1f", ErrBadBounds, axis, a.Min, a.Max)
	}
	if a.Start < a.Min || a.Start > a.Max {
		return fmt.Errorf("%w: %s start %.1f outside [%.1f, %.1f]", ErrBadBounds, axis, a.Start, a.Min, a.Max)
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrNameRequired
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if err := c.Turret.Pan.validate("pan"); err != nil {
		return err
	}
	if err := c.Turret.Tilt.validate("tilt"); err != nil {
		return err
	}
	if c.Session.HandshakeTimeout <= 0 {
		return errors.New("config: handshake timeout must be positive")
	}
	if c.Session.MaxFrameBytes == 0 {
		return errors.New("config: max frame bytes must be positive")
	}
	return nil
}
