package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = "   "
	assert.ErrorIs(t, cfg.Validate(), ErrNameRequired)
}

func TestValidatePort(t *testing.T) {
	for _, port := range []int{0, -1, 65536} {
		cfg := DefaultConfig()
		cfg.Port = port
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidPort, "port %d", port)
	}
}

func TestValidateBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Turret.Pan = AxisConfig{Min: 90, Max: 10, Start: 50}
	assert.ErrorIs(t, cfg.Validate(), ErrBadBounds)

	cfg = DefaultConfig()
	cfg.Turret.Tilt = AxisConfig{Min: 0, Max: 60, Start: 70}
	assert.ErrorIs(t, cfg.Validate(), ErrBadBounds)
}

func TestValidateSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.HandshakeTimeout = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBadBounds))

	cfg = DefaultConfig()
	cfg.Session.MaxFrameBytes = 0
	require.Error(t, cfg.Validate())
}
