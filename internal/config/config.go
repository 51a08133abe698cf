// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/compass/internal/location"
)

// Sensor source kinds.
const (
	SourceMock = "mock"
	SourceMQTT = "mqtt"
	SourceI2C  = "i2c"
)

// GPS source kinds.
const (
	GPSNone = "none"
	GPSNMEA = "nmea"
	GPSMQTT = "mqtt"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string `yaml:"mqtt_broker"`
	MQTTClientIDCompass string `yaml:"mqtt_client_id_compass"`
	MQTTClientIDConsole string `yaml:"mqtt_client_id_console"`
	MQTTClientIDGPS     string `yaml:"mqtt_client_id_gps"`

	// Topics
	TopicHeading     string `yaml:"topic_heading"`
	TopicOrientation string `yaml:"topic_orientation"`
	TopicGPS         string `yaml:"topic_gps"`
	TopicState       string `yaml:"topic_state"`
	TopicDetail      string `yaml:"topic_detail"`

	// Sensor sources: "mock", "mqtt" or "i2c"
	HeadingSource      string `yaml:"heading_source"`
	OrientationSource  string `yaml:"orientation_source"`
	MockSampleInterval int    `yaml:"mock_sample_interval"` // milliseconds

	// HMC5883 magnetometer
	HMCI2CBus         string `yaml:"hmc_i2c_bus"` // empty selects the first bus
	HMCI2CAddr        uint16 `yaml:"hmc_i2c_addr"`
	HMCSampleInterval int    `yaml:"hmc_sample_interval"` // milliseconds

	// MPU9250 accelerometer
	MPUI2CBus         string `yaml:"mpu_i2c_bus"` // empty selects the first bus
	MPUI2CAddr        uint16 `yaml:"mpu_i2c_addr"`
	MPUAccelRange     byte   `yaml:"mpu_accel_range"`     // 0=±2g, 1=±4g, 2=±8g, 3=±16g
	MPUSampleInterval int    `yaml:"mpu_sample_interval"` // milliseconds

	// GPS: "nmea", "mqtt" or "none"
	GPSSource     string `yaml:"gps_source"`
	GPSSerialPort string `yaml:"gps_serial_port"`
	GPSBaudRate   int    `yaml:"gps_baud_rate"`

	// Filter
	HeadingRate  float64 `yaml:"heading_rate"`
	BearingRate  float64 `yaml:"bearing_rate"`
	MaxPitchRoll float64 `yaml:"max_pitch_roll"`

	// Timing
	LocationInterval   int    `yaml:"location_interval"`    // milliseconds
	HeadingInterval    int    `yaml:"heading_interval"`     // milliseconds
	LocationTimeout    int    `yaml:"location_timeout"`     // milliseconds
	PublishInterval    int    `yaml:"publish_interval"`     // milliseconds
	ConsoleLogInterval int    `yaml:"console_log_interval"` // milliseconds
	LocationAccuracy   string `yaml:"location_accuracy"`

	// Web Server
	WebServerPort int `yaml:"web_server_port"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration that runs entirely on mock sensors.
func Default() *Config {
	return &Config{
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDCompass: "compass",
		MQTTClientIDConsole: "compass-console",
		MQTTClientIDGPS:     "compass-gps",

		TopicHeading:     "compass/heading",
		TopicOrientation: "compass/orientation",
		TopicGPS:         "compass/gps",
		TopicState:       "compass/state",
		TopicDetail:      "compass/detail",

		HeadingSource:      SourceMock,
		OrientationSource:  SourceMock,
		MockSampleInterval: 50,

		HMCI2CAddr:        0x1E,
		HMCSampleInterval: 100,

		MPUI2CAddr:        0x68,
		MPUSampleInterval: 50,

		GPSSource:     GPSNone,
		GPSSerialPort: "/dev/serial0",
		GPSBaudRate:   9600,

		HeadingRate:  0.1,
		BearingRate:  0.05,
		MaxPitchRoll: 60,

		LocationInterval:   5000,
		HeadingInterval:    100,
		LocationTimeout:    10000,
		LocationAccuracy:   "medium",
		PublishInterval:    100,
		ConsoleLogInterval: 1000,

		WebServerPort: 8080,
		LogLevel:      "info",
	}
}

// Load reads the configuration file and returns a Config struct. Files
// ending in .yaml or .yml are read as YAML, anything else as KEY=VALUE
// lines. Keys missing from the file keep their Default() values.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		return parseYAML(file)
	default:
		return Parse(file)
	}
}

// Parse reads KEY=VALUE lines. Empty lines and lines starting with # are
// skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseYAML(r io.Reader) (*Config, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("invalid yaml config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_COMPASS":
		c.MQTTClientIDCompass = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value

	// Topics
	case "TOPIC_HEADING":
		c.TopicHeading = value
	case "TOPIC_ORIENTATION":
		c.TopicOrientation = value
	case "TOPIC_GPS":
		c.TopicGPS = value
	case "TOPIC_STATE":
		c.TopicState = value
	case "TOPIC_DETAIL":
		c.TopicDetail = value

	// Sensor sources
	case "HEADING_SOURCE":
		c.HeadingSource = strings.ToLower(value)
	case "ORIENTATION_SOURCE":
		c.OrientationSource = strings.ToLower(value)
	case "MOCK_SAMPLE_INTERVAL":
		c.MockSampleInterval, err = parseInt(key, value)

	// HMC5883
	case "HMC_I2C_BUS":
		c.HMCI2CBus = value
	case "HMC_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid HMC_I2C_ADDR %q: %w", value, perr)
		}
		c.HMCI2CAddr = uint16(addr)
	case "HMC_SAMPLE_INTERVAL":
		c.HMCSampleInterval, err = parseInt(key, value)

	// MPU9250
	case "MPU_I2C_BUS":
		c.MPUI2CBus = value
	case "MPU_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid MPU_I2C_ADDR %q: %w", value, perr)
		}
		c.MPUI2CAddr = uint16(addr)
	case "MPU_ACCEL_RANGE":
		rangeVal, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("invalid MPU_ACCEL_RANGE %q: %w", value, perr)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("MPU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.MPUAccelRange = byte(rangeVal)
	case "MPU_SAMPLE_INTERVAL":
		c.MPUSampleInterval, err = parseInt(key, value)

	// GPS
	case "GPS_SOURCE":
		c.GPSSource = strings.ToLower(value)
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = parseInt(key, value)

	// Filter
	case "HEADING_RATE":
		c.HeadingRate, err = parseFloat(key, value)
	case "BEARING_RATE":
		c.BearingRate, err = parseFloat(key, value)
	case "MAX_PITCH_ROLL":
		c.MaxPitchRoll, err = parseFloat(key, value)

	// Timing
	case "LOCATION_INTERVAL":
		c.LocationInterval, err = parseInt(key, value)
	case "HEADING_INTERVAL":
		c.HeadingInterval, err = parseInt(key, value)
	case "LOCATION_TIMEOUT":
		c.LocationTimeout, err = parseInt(key, value)
	case "LOCATION_ACCURACY":
		c.LocationAccuracy = strings.ToLower(value)
	case "PUBLISH_INTERVAL":
		c.PublishInterval, err = parseInt(key, value)
	case "CONSOLE_LOG_INTERVAL":
		c.ConsoleLogInterval, err = parseInt(key, value)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return err
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func parseFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return f, nil
}

// validate checks that the values are usable together.
func (c *Config) validate() error {
	switch c.HeadingSource {
	case SourceMock, SourceMQTT, SourceI2C:
	default:
		return fmt.Errorf("HEADING_SOURCE must be mock, mqtt or i2c, got %q", c.HeadingSource)
	}
	switch c.OrientationSource {
	case SourceMock, SourceMQTT, SourceI2C:
	default:
		return fmt.Errorf("ORIENTATION_SOURCE must be mock, mqtt or i2c, got %q", c.OrientationSource)
	}
	if c.MPUAccelRange > 3 {
		return fmt.Errorf("MPU_ACCEL_RANGE must be 0-3, got %d", c.MPUAccelRange)
	}
	switch c.GPSSource {
	case GPSNone, GPSMQTT:
	case GPSNMEA:
		if c.GPSSerialPort == "" {
			return fmt.Errorf("GPS_SERIAL_PORT is required")
		}
		if c.GPSBaudRate <= 0 {
			return fmt.Errorf("GPS_BAUD_RATE is required")
		}
	default:
		return fmt.Errorf("GPS_SOURCE must be nmea, mqtt or none, got %q", c.GPSSource)
	}
	if c.UsesMQTTInput() && c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}

	if c.HeadingRate <= 0 || c.HeadingRate > 1 {
		return fmt.Errorf("HEADING_RATE must be in (0,1], got %g", c.HeadingRate)
	}
	if c.BearingRate <= 0 || c.BearingRate > 1 {
		return fmt.Errorf("BEARING_RATE must be in (0,1], got %g", c.BearingRate)
	}
	if c.MaxPitchRoll <= 0 || c.MaxPitchRoll > 90 {
		return fmt.Errorf("MAX_PITCH_ROLL must be in (0,90], got %g", c.MaxPitchRoll)
	}

	intervals := []struct {
		name string
		v    int
	}{
		{"MOCK_SAMPLE_INTERVAL", c.MockSampleInterval},
		{"HMC_SAMPLE_INTERVAL", c.HMCSampleInterval},
		{"MPU_SAMPLE_INTERVAL", c.MPUSampleInterval},
		{"LOCATION_INTERVAL", c.LocationInterval},
		{"HEADING_INTERVAL", c.HeadingInterval},
		{"LOCATION_TIMEOUT", c.LocationTimeout},
		{"PUBLISH_INTERVAL", c.PublishInterval},
		{"CONSOLE_LOG_INTERVAL", c.ConsoleLogInterval},
	}
	for _, iv := range intervals {
		if iv.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", iv.name, iv.v)
		}
	}

	if _, err := location.ParseAccuracy(c.LocationAccuracy); err != nil {
		return fmt.Errorf("LOCATION_ACCURACY: %w", err)
	}
	if c.WebServerPort < 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT out of range: %d", c.WebServerPort)
	}
	return nil
}

// UsesMQTTInput reports whether any sensor or location input is read
// from the broker.
func (c *Config) UsesMQTTInput() bool {
	return c.HeadingSource == SourceMQTT || c.OrientationSource == SourceMQTT || c.GPSSource == GPSMQTT
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
