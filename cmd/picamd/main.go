package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	arg "github.com/alexflint/go-arg"
	"github.com/rs/zerolog"

	"github.com/telemote/picamd/internal/actuator"
	"github.com/telemote/picamd/internal/camera"
	"github.com/telemote/picamd/internal/config"
	"github.com/telemote/picamd/internal/device"
	"github.com/telemote/picamd/internal/logging"
)

type args struct {
	Config      string `arg:"-c,--config" default:"/etc/picamd.toml" help:"path to configuration file"`
	Debug       bool   `arg:"-d,--debug" help:"force debug logging"`
	WriteConfig bool   `arg:"--write-config" help:"write a starter config to the config path and exit"`
	Force       bool   `arg:"--force" help:"overwrite an existing file with --write-config"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "picamd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var a args
	arg.MustParse(&a)

	if a.WriteConfig {
		return config.WriteTemplate(a.Config, a.Force)
	}

	cfg, err := loadConfig(a.Config)
	if err != nil {
		return err
	}
	if a.Debug {
		cfg.LogLevel = "debug"
	}
	log := logging.Setup(cfg.LogLevel)

	source, err := camera.NewGstSource(camera.GstConfig{
		Pipeline: cfg.Camera.Pipeline,
		Device:   cfg.Camera.Device,
		Width:    cfg.Camera.Width,
		Height:   cfg.Camera.Height,
		FPS:      cfg.Camera.FPS,
		Rotate:   cfg.Camera.Rotate,
	}, log)
	if err != nil {
		return err
	}
	defer source.Close()

	turret := actuator.NewTurret(cfg.Turret, turretDriver(cfg, log), log)
	defer turret.Close()

	d := device.New(cfg, source, turret, log)
	if err := d.Listen(); err != nil {
		return err
	}

	if cfg.DebugAddr != "" {
		debug := device.StartDebugServer(cfg.DebugAddr, d, log)
		defer debug.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run returns when the session ends; a disconnect stops the process and
	// the supervisor (or operator) restarts it.
	if err := d.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info().Err(d.SessionReason()).Msg("session over, exiting")
	return nil
}

// turretDriver opens the PCA9685 when pan/tilt is enabled. If the hardware is
// missing the turret still accepts commands; moves just go nowhere, which the
// protocol deliberately does not distinguish from success.
func turretDriver(cfg config.Config, log zerolog.Logger) actuator.Driver {
	if !cfg.Turret.Enable {
		return actuator.NopDriver{}
	}
	drv, err := actuator.NewPCA9685(cfg.Turret.I2CBus)
	if err != nil {
		log.Warn().Err(err).Msg("pan/tilt hardware unavailable")
		return actuator.NopDriver{}
	}
	return drv
}
