package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemote/picamd/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "picamd.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, `
name = "garagecam"
port = 9000
debug_addr = "127.0.0.1:9090"
log_level = "debug"

[camera]
width = 1280
height = 720
fps = 15
rotate = false

[turret]
enable = false

[turret.pan]
min = -45.0
max = 45.0
start = 0.0

[session]
handshake_timeout = "3s"
max_frame_bytes = 1048576
`))
	require.NoError(t, err)

	assert.Equal(t, "garagecam", cfg.Name)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "127.0.0.1:9090", cfg.DebugAddr)
	assert.Equal(t, 1280, cfg.Camera.Width)
	assert.False(t, cfg.Camera.Rotate)
	assert.False(t, cfg.Turret.Enable)
	assert.Equal(t, config.AxisConfig{Min: -45, Max: 45, Start: 0}, cfg.Turret.Pan)
	// Untouched keys keep their defaults.
	assert.Equal(t, config.DefaultConfig().Turret.Tilt, cfg.Turret.Tilt)
	assert.Equal(t, 3*time.Second, cfg.Session.HandshakeTimeout)
	assert.Equal(t, uint32(1048576), cfg.Session.MaxFrameBytes)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	_, err := loadConfig(writeConfig(t, `port = 0`))
	assert.ErrorIs(t, err, config.ErrInvalidPort)

	_, err = loadConfig(writeConfig(t, `name = "  "`))
	assert.ErrorIs(t, err, config.ErrNameRequired)

	_, err = loadConfig(writeConfig(t, "[turret.pan]\nmin = 50.0\nmax = 10.0\n"))
	assert.ErrorIs(t, err, config.ErrBadBounds)

	_, err = loadConfig(writeConfig(t, "[session]\nhandshake_timeout = \"soon\"\n"))
	assert.Error(t, err)
}

func TestTemplateRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "picamd.toml")
	require.NoError(t, config.WriteTemplate(path, false))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	assert.Error(t, config.WriteTemplate(path, false))
	assert.NoError(t, config.WriteTemplate(path, true))
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
