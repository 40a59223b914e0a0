// ppgscope
// Copyright (c) 2026 The ppgscope Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of ppgscope.
//
// ppgscope is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ppgscope is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with ppgscope.  If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/ppgscope/ppgscope/pkg/helpers/syncutil"
	"github.com/ppgscope/ppgscope/pkg/ppg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	SchemaVersion = 1
	CfgEnv        = "PPGSCOPE_CFG"
)

var ErrSchemaMismatch = errors.New("schema version mismatch")

type Values struct {
	Serial       Serial  `toml:"serial"`
	Output       Output  `toml:"output"`
	Device       Device  `toml:"device"`
	Display      Display `toml:"display"`
	ConfigSchema int     `toml:"config_schema"`
	DebugLogging bool    `toml:"debug_logging"`
}

type Serial struct {
	Port     string `toml:"port,omitempty"`
	BaudRate int    `toml:"baud_rate" validate:"gt=0"`
	// delays are in milliseconds
	SettleDelay int `toml:"settle_delay" validate:"gte=0"`
	ApplyDelay  int `toml:"apply_delay" validate:"gte=0"`
	GraceDelay  int `toml:"grace_delay" validate:"gte=0"`
}

// Device holds the sensor settings sent to the board at startup.
type Device struct {
	SamplingRate  int `toml:"sampling_rate" validate:"oneof=50 100 200 400 800 1000 1600 3200"`
	SampleAverage int `toml:"sample_average" validate:"oneof=1 2 4 8 16 32"`
	PulseWidth    int `toml:"pulse_width" validate:"oneof=15 16 17 18"`
}

type Output struct {
	Path string `toml:"path" validate:"required"`
}

type Display struct {
	WindowCapacity int `toml:"window_capacity" validate:"gt=0"`
	// milliseconds between redraws
	Redraw int `toml:"redraw" validate:"gt=0"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Serial: Serial{
		BaudRate:    115200,
		SettleDelay: 2000,
		ApplyDelay:  3000,
		GraceDelay:  100,
	},
	Device: Device{
		SamplingRate:  3200,
		SampleAverage: 1,
		PulseWidth:    18,
	},
	Output: Output{
		Path: "ppg_data.csv",
	},
	Display: Display{
		WindowCapacity: 1000,
		Redraw:         50,
	},
}

type Instance struct {
	fs       afero.Fs
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

// NewConfig loads the config file from configDir, or the path in the
// PPGSCOPE_CFG environment variable. A missing file is created with the
// given defaults.
//
//nolint:gocritic // config struct copied for immutability
func NewConfig(fs afero.Fs, configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		fs:       fs,
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	exists, err := afero.Exists(fs, cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if !exists {
		log.Info().Msg("saving new default config to disk")

		err := fs.MkdirAll(filepath.Dir(cfgPath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		err = cfg.Save()
		if err != nil {
			return nil, err
		}
	}

	err = cfg.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := afero.ReadFile(c.fs, c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then unmarshal file values on top.
	newVals := c.defaults
	err = toml.Unmarshal(data, &newVals)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return ErrSchemaMismatch
	}

	if err := Validate(&newVals); err != nil {
		return err
	}

	c.vals = newVals
	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := afero.WriteFile(c.fs, c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the current values, including any applied by setters
// since the last Load.
func (c *Instance) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vals := c.vals
	return Validate(&vals)
}

func (c *Instance) ConfigPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfgPath
}

func (c *Instance) SerialPort() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Serial.Port
}

func (c *Instance) SetSerialPort(port string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Serial.Port = port
}

func (c *Instance) BaudRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Serial.BaudRate
}

func (c *Instance) SetBaudRate(baud int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Serial.BaudRate = baud
}

func (c *Instance) SettleDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Serial.SettleDelay) * time.Millisecond
}

func (c *Instance) ApplyDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Serial.ApplyDelay) * time.Millisecond
}

func (c *Instance) GraceDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Serial.GraceDelay) * time.Millisecond
}

func (c *Instance) Device() Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Device
}

func (c *Instance) SetDevice(d Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Device = d
}

// Handshake is the configuration sequence sent to the board after the
// port opens, in the order the firmware expects.
func (c *Instance) Handshake() []ppg.Command {
	d := c.Device()
	return []ppg.Command{
		{Text: "samplingRate=" + strconv.Itoa(d.SamplingRate)},
		{Text: "sampleAverage=" + strconv.Itoa(d.SampleAverage)},
		{Text: "pulseWidth=" + strconv.Itoa(d.PulseWidth)},
	}
}

func (c *Instance) OutputPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Output.Path
}

func (c *Instance) SetOutputPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Output.Path = path
}

func (c *Instance) WindowCapacity() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Display.WindowCapacity
}

func (c *Instance) RedrawInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Display.Redraw) * time.Millisecond
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
