// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensor

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// HMC5883L / HMC5983 register map.
const (
	hmcRegConfigA = 0x00
	hmcRegConfigB = 0x01
	hmcRegMode    = 0x02
	hmcRegDataX   = 0x03 // X, Z, Y big-endian pairs
	hmcRegIDA     = 0x0A

	hmcConfigA     = 0x70 // 8-sample average, 15 Hz
	hmcConfigB     = 0x20 // ±1.3 Ga
	hmcModeCont    = 0x00
	hmcOverflow    = -4096
	DefaultHMCAddr = 0x1E
)

// Tx is the part of an I2C device the magnetometer needs.
type Tx interface {
	Tx(w, r []byte) error
}

// HMC5883Config selects the bus and polling rate of the magnetometer.
type HMC5883Config struct {
	Bus      string // periph bus name, "" for the first bus
	Addr     uint16
	Interval time.Duration
}

// HMC5883Source reads headings from an HMC5883L-class magnetometer over
// I2C. The heading is the horizontal field angle atan2(y, x), with no
// tilt compensation or declination correction.
type HMC5883Source struct {
	*ticking[HeadingSample]
	dev    Tx
	closer io.Closer
}

// NewHMC5883Source opens the configured I2C bus through periph.
func NewHMC5883Source(cfg HMC5883Config, clk clock.Clock, log *zap.SugaredLogger) (*HMC5883Source, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hmc: periph host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("hmc: i2c open %q: %w", cfg.Bus, err)
	}
	addr := cfg.Addr
	if addr == 0 {
		addr = DefaultHMCAddr
	}
	s := NewHMC5883SourceFromDev(&i2c.Dev{Addr: addr, Bus: bus}, cfg.Interval, clk, log)
	s.closer = bus
	return s, nil
}

// NewHMC5883SourceFromDev wraps an already opened device.
func NewHMC5883SourceFromDev(dev Tx, interval time.Duration, clk clock.Clock, log *zap.SugaredLogger) *HMC5883Source {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	s := &HMC5883Source{dev: dev}
	s.ticking = &ticking[HeadingSample]{
		clk:      clk,
		interval: interval,
		setup:    s.init,
		gen: func(time.Duration) (HeadingSample, error) {
			deg, err := s.ReadHeading()
			return HeadingSample{Degrees: deg, Time: clk.Now()}, err
		},
		onErr: func(err error) {
			log.Debugw("hmc: read error", "error", err)
		},
	}
	return s
}

func (s *HMC5883Source) init() error {
	id := make([]byte, 3)
	if err := s.dev.Tx([]byte{hmcRegIDA}, id); err != nil {
		return fmt.Errorf("hmc: read id: %w", err)
	}
	if string(id) != "H43" {
		return fmt.Errorf("hmc: unexpected id %q: %w", id, ErrUnavailable)
	}
	for _, w := range [][]byte{
		{hmcRegConfigA, hmcConfigA},
		{hmcRegConfigB, hmcConfigB},
		{hmcRegMode, hmcModeCont},
	} {
		if err := s.dev.Tx(w, nil); err != nil {
			return fmt.Errorf("hmc: write reg 0x%02X: %w", w[0], err)
		}
	}
	return nil
}

// ReadHeading reads one field sample and returns its heading in [0,360).
func (s *HMC5883Source) ReadHeading() (float64, error) {
	buf := make([]byte, 6)
	if err := s.dev.Tx([]byte{hmcRegDataX}, buf); err != nil {
		return 0, fmt.Errorf("hmc: read data: %w", err)
	}
	x := int16(uint16(buf[0])<<8 | uint16(buf[1]))
	y := int16(uint16(buf[4])<<8 | uint16(buf[5]))
	if x == hmcOverflow || y == hmcOverflow {
		return 0, fmt.Errorf("hmc: axis overflow")
	}
	deg := math.Atan2(float64(y), float64(x)) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg, nil
}

// Close releases the I2C bus, if this source opened it.
func (s *HMC5883Source) Close() error {
	if s.Monitoring() {
		_ = s.Stop()
	}
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
