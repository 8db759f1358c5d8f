package actuator

import (
	"fmt"
	"math"
	"time"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"
)

// PCA9685 drives the pan/tilt HAT's 16-channel PWM controller over I2C.
// Register map and pulse math follow the NXP datasheet: 50 Hz PWM, servo
// pulse 500..2500 µs across 0..180 degrees. Tilt sits on channel 0, pan on
// channel 1, matching the stock pan/tilt HAT wiring.
type PCA9685 struct {
	bus i2c.BusCloser
	dev i2c.Dev
}

const (
	pca9685Addr = 0x40

	regMode1      = 0x00
	regPrescale   = 0xFE
	regLED0OnLow  = 0x06
	mode1Sleep    = 0x10
	mode1Restart  = 0x80
	mode1AutoInc  = 0x20
	oscClockHz    = 25000000
	pwmResolution = 4096
	pwmFreqHz     = 50
	periodMicros  = 1000000 / pwmFreqHz

	channelTilt = 0
	channelPan  = 1
)

// NewPCA9685 opens busName ("" selects the platform default, /dev/i2c-1 on a
// Pi) and programs the controller for 50 Hz servo PWM.
func NewPCA9685(busName string) (*PCA9685, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("actuator: host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("actuator: open i2c bus: %w", err)
	}
	p := &PCA9685{bus: bus, dev: i2c.Dev{Bus: bus, Addr: pca9685Addr}}
	if err := p.init(); err != nil {
		_ = bus.Close()
		return nil, err
	}
	return p, nil
}

func (p *PCA9685) init() error {
	if err := p.writeReg(regMode1, mode1AutoInc); err != nil {
		return fmt.Errorf("actuator: reset pca9685: %w", err)
	}

	// Prescale can only be set while the oscillator sleeps.
	prescale := byte(math.Round(oscClockHz/(pwmResolution*float64(pwmFreqHz)))) - 1
	if err := p.writeReg(regMode1, mode1AutoInc|mode1Sleep); err != nil {
		return err
	}
	if err := p.writeReg(regPrescale, prescale); err != nil {
		return err
	}
	if err := p.writeReg(regMode1, mode1AutoInc); err != nil {
		return err
	}
	time.Sleep(5 * time.Millisecond)
	return p.writeReg(regMode1, mode1AutoInc|mode1Restart)
}

func (p *PCA9685) Move(pan, tilt float64) error {
	if err := p.setAngle(channelPan, pan); err != nil {
		return err
	}
	return p.setAngle(channelTilt, tilt)
}

func (p *PCA9685) setAngle(channel int, angle float64) error {
	pulseMicros := 500 + angle*2000/180
	off := uint16(pulseMicros * pwmResolution / periodMicros)
	return p.setPWM(channel, 0, off)
}

func (p *PCA9685) setPWM(channel int, on, off uint16) error {
	base := byte(regLED0OnLow + 4*channel)
	buf := []byte{
		base,
		byte(on), byte(on >> 8),
		byte(off), byte(off >> 8),
	}
	if err := p.dev.Tx(buf, nil); err != nil {
		return fmt.Errorf("actuator: write channel %d: %w", channel, err)
	}
	return nil
}

func (p *PCA9685) writeReg(reg, val byte) error {
	return p.dev.Tx([]byte{reg, val}, nil)
}

// Close puts the controller to sleep and releases the bus.
func (p *PCA9685) Close() error {
	_ = p.writeReg(regMode1, mode1Sleep)
	return p.bus.Close()
}
