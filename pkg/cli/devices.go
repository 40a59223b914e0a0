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


package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ppgscope/ppgscope/pkg/config"
	"github.com/ppgscope/ppgscope/pkg/helpers"
	"github.com/rs/zerolog/log"
)

var ErrAmbiguousPort = errors.New("more than one serial device found, pick one with -port")

// DeviceLister enumerates candidate serial devices.
type DeviceLister func() ([]helpers.SerialDevice, error)

// ListDevices prints one detected device per line.
func ListDevices(out io.Writer, list DeviceLister) error {
	devices, err := list()
	if err != nil {
		return fmt.Errorf("failed to list serial devices: %w", err)
	}

	if len(devices) == 0 {
		_, _ = fmt.Fprintln(out, "No serial devices found.")
		return nil
	}

	for _, d := range devices {
		_, _ = fmt.Fprintln(out, d.String())
	}
	return nil
}

// ResolvePort fills in the serial port when none is configured and exactly
// one device is attached. A configured port is never replaced.
func ResolvePort(cfg *config.Instance, list DeviceLister) error {
	if cfg.SerialPort() != "" {
		return nil
	}

	devices, err := list()
	if err != nil {
		return fmt.Errorf("failed to list serial devices: %w", err)
	}

	switch len(devices) {
	case 0:
		return nil
	case 1:
		log.Info().Str("device", devices[0].String()).Msg("using only detected serial device")
		cfg.SetSerialPort(devices[0].Path)
		return nil
	default:
		paths := make([]string, 0, len(devices))
		for _, d := range devices {
			paths = append(paths, d.Path)
		}
		return fmt.Errorf("%w: %s", ErrAmbiguousPort, strings.Join(paths, ", "))
	}
}
