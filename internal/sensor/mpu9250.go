// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensor

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/devices/v3/mpu9250/accelerometer"
	"periph.io/x/host/v3"
)

const DefaultMPUAddr = 0x68

// Known WHO_AM_I answers of the MPU9250 family.
var mpuIDs = map[byte]string{0x71: "MPU9250", 0x73: "MPU9255", 0x70: "MPU6500", 0x68: "MPU6050"}

// accelRanges maps the 0..3 range setting to ACCEL_FS_SEL.
var accelRanges = [...]byte{
	accelerometer.ACCEL_FS_SEL_2G,
	accelerometer.ACCEL_FS_SEL_4G,
	accelerometer.ACCEL_FS_SEL_8G,
	accelerometer.ACCEL_FS_SEL_16G,
}

var errZeroAccel = errors.New("mpu: zero acceleration vector")

// MPUDevice is the part of the periph mpu9250 driver the source uses.
type MPUDevice interface {
	Init() error
	GetDeviceID() (byte, error)
	SetAccelRange(rangeVal byte) error
	GetAcceleration() (*mpu9250.AccelerometerData, error)
}

// MPU9250Config selects the bus, full-scale range and polling rate of
// the accelerometer.
type MPU9250Config struct {
	Bus        string // periph bus name, "" for the first bus
	Addr       uint16
	AccelRange byte // 0=±2g, 1=±4g, 2=±8g, 3=±16g
	Interval   time.Duration
}

// MPU9250Source estimates device tilt from the accelerometer of an
// MPU9250-class IMU. Yaw is always 0; the heading comes from the
// magnetometer stream.
type MPU9250Source struct {
	*ticking[OrientationSample]
	imu        MPUDevice
	accelRange byte
	closer     io.Closer
}

// NewMPU9250Source opens the configured I2C bus through periph.
func NewMPU9250Source(cfg MPU9250Config, clk clock.Clock, log *zap.SugaredLogger) (*MPU9250Source, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("mpu: periph host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("mpu: i2c open %q: %w", cfg.Bus, err)
	}
	addr := cfg.Addr
	if addr == 0 {
		addr = DefaultMPUAddr
	}
	tr, err := mpu9250.NewI2cTransport(bus, addr)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("mpu: i2c transport: %w", err)
	}
	imu, err := mpu9250.New(*tr)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("mpu: new device: %w", err)
	}
	s := NewMPU9250SourceFromDevice(imu, cfg.AccelRange, cfg.Interval, clk, log)
	s.closer = bus
	return s, nil
}

// NewMPU9250SourceFromDevice wraps an already constructed driver.
func NewMPU9250SourceFromDevice(imu MPUDevice, accelRange byte, interval time.Duration, clk clock.Clock, log *zap.SugaredLogger) *MPU9250Source {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	s := &MPU9250Source{imu: imu, accelRange: accelRange & 0x03}
	s.ticking = &ticking[OrientationSample]{
		clk:      clk,
		interval: interval,
		setup: func() error {
			model, err := s.init()
			if err == nil {
				log.Infow("mpu: accelerometer ready", "model", model, "range", s.accelRange)
			}
			return err
		},
		gen: func(time.Duration) (OrientationSample, error) {
			roll, pitch, err := s.ReadTilt()
			if err != nil {
				return OrientationSample{}, err
			}
			return OrientationSample{Q: FromEuler(roll, pitch, 0), Time: clk.Now()}, nil
		},
		onErr: func(err error) {
			log.Debugw("mpu: read error", "error", err)
		},
	}
	return s
}

func (s *MPU9250Source) init() (string, error) {
	id, err := s.imu.GetDeviceID()
	if err != nil {
		return "", fmt.Errorf("mpu: read WHO_AM_I: %w", err)
	}
	model, ok := mpuIDs[id]
	if !ok {
		return "", fmt.Errorf("mpu: unexpected WHO_AM_I 0x%02X: %w", id, ErrUnavailable)
	}
	if err := s.imu.Init(); err != nil {
		return "", fmt.Errorf("mpu: init: %w", err)
	}
	if err := s.imu.SetAccelRange(accelRanges[s.accelRange]); err != nil {
		return "", fmt.Errorf("mpu: set accel range: %w", err)
	}
	return model, nil
}

// ReadTilt reads one accelerometer sample and returns roll and pitch in
// radians.
func (s *MPU9250Source) ReadTilt() (roll, pitch float64, err error) {
	a, err := s.imu.GetAcceleration()
	if err != nil {
		return 0, 0, fmt.Errorf("mpu: read accel: %w", err)
	}
	return Tilt(a.X, a.Y, a.Z)
}

// Tilt is the accelerometer-only tilt estimate:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
//
// Only the ratios matter, so the full-scale range does not enter.
func Tilt(ax, ay, az int16) (roll, pitch float64, err error) {
	if ax == 0 && ay == 0 && az == 0 {
		return 0, 0, errZeroAccel
	}
	x, y, z := float64(ax), float64(ay), float64(az)
	roll = math.Atan2(y, z)
	pitch = math.Atan2(-x, math.Sqrt(y*y+z*z))
	return roll, pitch, nil
}

// Close releases the I2C bus, if this source opened it.
func (s *MPU9250Source) Close() error {
	if s.Monitoring() {
		_ = s.Stop()
	}
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
