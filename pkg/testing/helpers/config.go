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

package helpers

import (
	"github.com/ppgscope/ppgscope/pkg/config"
)

const (
	TestPort   = "/dev/ttyACM0"
	TestOutput = "/data/ppg_data.csv"
)

// TestDefaults are the base defaults with device delays shortened so tests
// never sit through the real settle and apply waits.
func TestDefaults() config.Values {
	vals := config.BaseDefaults
	vals.Serial.Port = TestPort
	vals.Serial.SettleDelay = 0
	vals.Serial.ApplyDelay = 0
	vals.Serial.GraceDelay = 1
	vals.Output.Path = TestOutput
	return vals
}

// NewTestConfig creates a config instance backed by the helper's
// filesystem, writing the file under configDir.
func NewTestConfig(h *FSHelper, configDir string) (*config.Instance, error) {
	cfg, err := config.NewConfig(h.Fs, configDir, TestDefaults())
	if err != nil {
		return nil, err //nolint:wrapcheck // passthrough for test fixtures
	}
	return cfg, nil
}
