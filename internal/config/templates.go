package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes an annotated starter config to path. It refuses to
// clobber an existing file unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const template = `name = "picam"
port = 7896
# debug_addr = "127.0.0.1:7897"
log_level = "info"

[camera]
# pipeline = ""      # full gst-launch string; overrides the fields below
width = 720
height = 480
fps = 24
rotate = true

[turret]
enable = true
i2c_bus = ""         # empty picks the platform default bus

[turret.pan]
min = 0.0
max = 180.0
start = 90.0

[turret.tilt]
min = 0.0
max = 60.0
start = 30.0

[session]
handshake_timeout = "10s"
max_frame_bytes = 8388608
`
