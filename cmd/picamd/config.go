package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/telemote/picamd/internal/config"
)

type axisFile struct {
	Min   *float64 `toml:"min"`
	Max   *float64 `toml:"max"`
	Start *float64 `toml:"start"`
}

type fileConfig struct {
	Name      string `toml:"name"`
	Port      int    `toml:"port"`
	DebugAddr string `toml:"debug_addr"`
	LogLevel  string `toml:"log_level"`

	Camera struct {
		Pipeline string `toml:"pipeline"`
		Device   string `toml:"device"`
		Width    int    `toml:"width"`
		Height   int    `toml:"height"`
		FPS      int    `toml:"fps"`
		Rotate   *bool  `toml:"rotate"`
	} `toml:"camera"`

	Turret struct {
		Enable *bool    `toml:"enable"`
		I2CBus string   `toml:"i2c_bus"`
		Pan    axisFile `toml:"pan"`
		Tilt   axisFile `toml:"tilt"`
	} `toml:"turret"`

	Session struct {
		HandshakeTimeout string `toml:"handshake_timeout"`
		MaxFrameBytes    uint32 `toml:"max_frame_bytes"`
	} `toml:"session"`
}

// loadConfig layers the TOML file over DefaultConfig, touching only keys the
// file actually defines.
func loadConfig(path string) (config.Config, error) {
	cfg := config.DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("debug_addr") {
		cfg.DebugAddr = strings.TrimSpace(raw.DebugAddr)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("camera", "pipeline") {
		cfg.Camera.Pipeline = raw.Camera.Pipeline
	}
	if meta.IsDefined("camera", "device") {
		cfg.Camera.Device = raw.Camera.Device
	}
	if meta.IsDefined("camera", "width") {
		cfg.Camera.Width = raw.Camera.Width
	}
	if meta.IsDefined("camera", "height") {
		cfg.Camera.Height = raw.Camera.Height
	}
	if meta.IsDefined("camera", "fps") {
		cfg.Camera.FPS = raw.Camera.FPS
	}
	if raw.Camera.Rotate != nil {
		cfg.Camera.Rotate = *raw.Camera.Rotate
	}

	if raw.Turret.Enable != nil {
		cfg.Turret.Enable = *raw.Turret.Enable
	}
	if meta.IsDefined("turret", "i2c_bus") {
		cfg.Turret.I2CBus = raw.Turret.I2CBus
	}
	applyAxis(&cfg.Turret.Pan, raw.Turret.Pan)
	applyAxis(&cfg.Turret.Tilt, raw.Turret.Tilt)

	if meta.IsDefined("session", "handshake_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Session.HandshakeTimeout))
		if err != nil {
			return config.Config{}, fmt.Errorf("parse handshake_timeout: %w", err)
		}
		cfg.Session.HandshakeTimeout = d
	}
	if meta.IsDefined("session", "max_frame_bytes") {
		cfg.Session.MaxFrameBytes = raw.Session.MaxFrameBytes
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func applyAxis(dst *config.AxisConfig, src axisFile) {
	if src.Min != nil {
		dst.Min = *src.Min
	}
	if src.Max != nil {
		dst.Max = *src.Max
	}
	if src.Start != nil {
		dst.Start = *src.Start
	}
}
