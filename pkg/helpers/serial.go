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
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial/enumerator"
)

// SerialDevice describes a port a sensor board could be attached to.
type SerialDevice struct {
	Path    string
	VID     string
	PID     string
	Serial  string
	Product string
	IsUSB   bool
}

func (d SerialDevice) String() string {
	if !d.IsUSB {
		return d.Path
	}
	s := fmt.Sprintf("%s (USB %s:%s", d.Path, strings.ToLower(d.VID), strings.ToLower(d.PID))
	if d.Product != "" {
		s += " " + d.Product
	}
	if d.Serial != "" {
		s += " serial " + d.Serial
	}
	return s + ")"
}

// likelySensorPort reports whether a port name looks like a USB serial
// adapter or a native USB CDC device on the given OS.
func likelySensorPort(goos, name string) bool {
	switch goos {
	case "linux":
		return strings.HasPrefix(name, "/dev/ttyUSB") || strings.HasPrefix(name, "/dev/ttyACM")
	case "darwin":
		return strings.HasPrefix(name, "/dev/tty.usb") || strings.HasPrefix(name, "/dev/cu.usb")
	case "windows":
		return strings.HasPrefix(name, "COM")
	default:
		return true
	}
}

func filterSerialDevices(goos string, ports []*enumerator.PortDetails) []SerialDevice {
	devices := make([]SerialDevice, 0, len(ports))
	for _, p := range ports {
		if p == nil {
			continue
		}
		// onboard UARTs are never the sensor, USB ports are always kept
		if !p.IsUSB && !likelySensorPort(goos, p.Name) {
			continue
		}
		devices = append(devices, SerialDevice{
			Path:    p.Name,
			IsUSB:   p.IsUSB,
			VID:     p.VID,
			PID:     p.PID,
			Serial:  p.SerialNumber,
			Product: p.Product,
		})
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Path < devices[j].Path
	})
	return devices
}

// GetSerialDeviceList returns the serial ports that could plausibly be a
// sensor board, sorted by path.
func GetSerialDeviceList() ([]SerialDevice, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports list on %s: %w", runtime.GOOS, err)
	}

	devices := filterSerialDevices(runtime.GOOS, ports)
	log.Debug().Int("ports", len(ports)).Int("candidates", len(devices)).Msg("enumerated serial ports")
	return devices, nil
}
