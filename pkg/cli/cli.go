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


// Package cli holds the flag handling and the run modes shared by the
// command entry points.
package cli

import (
	"flag"
	"fmt"
	"io"

	"github.com/ppgscope/ppgscope/pkg/config"
	"github.com/ppgscope/ppgscope/pkg/helpers"
	"github.com/ppgscope/ppgscope/pkg/ui/tui"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

type Flags struct {
	set       *flag.FlagSet
	Port      *string
	Baud      *int
	Output    *string
	ConfigDir *string
	Theme     *string
	List      *bool
	Headless  *bool
	Version   *bool
	Debug     *bool
}

// SetupFlags defines all CLI flags on the given set.
func SetupFlags(set *flag.FlagSet) *Flags {
	return &Flags{
		set: set,
		Port: set.String(
			"port",
			"",
			"serial device the sensor is attached to",
		),
		Baud: set.Int(
			"baud",
			0,
			"serial baud rate",
		),
		Output: set.String(
			"output",
			"",
			"CSV file samples are recorded to",
		),
		ConfigDir: set.String(
			"config-dir",
			"",
			"directory holding "+config.CfgFile,
		),
		Theme: set.String(
			"theme",
			"",
			"text ui theme (default, high_contrast)",
		),
		List: set.Bool(
			"list",
			false,
			"list serial devices and exit",
		),
		Headless: set.Bool(
			"headless",
			false,
			"record without the text ui, diagnostics go to the console",
		),
		Version: set.Bool(
			"version",
			false,
			"print version and exit",
		),
		Debug: set.Bool(
			"debug",
			false,
			"enable debug logging",
		),
	}
}

func (f *Flags) isFlagPassed(name string) bool {
	found := false
	f.set.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

// Pre parses args and handles the flags that need no environment. It
// reports true when the program should exit straight away.
func (f *Flags) Pre(args []string, out io.Writer) (bool, error) {
	if err := f.set.Parse(args); err != nil {
		return false, fmt.Errorf("failed to parse flags: %w", err)
	}

	if *f.Version {
		_, _ = fmt.Fprintf(out, "%s v%s\n", config.AppName, config.AppVersion)
		return true, nil
	}
	return false, nil
}

// Dirs returns the config and log directories, honouring -config-dir.
func (f *Flags) Dirs() helpers.Dirs {
	dirs := helpers.DefaultDirs()
	if *f.ConfigDir != "" {
		dirs.ConfigDir = *f.ConfigDir
	}
	return dirs
}

// Post applies flag overrides to the loaded config. Overrides live for
// this run only and are never saved.
func (f *Flags) Post(cfg *config.Instance) error {
	if f.isFlagPassed("port") {
		cfg.SetSerialPort(*f.Port)
	}
	if f.isFlagPassed("baud") {
		cfg.SetBaudRate(*f.Baud)
	}
	if f.isFlagPassed("output") {
		cfg.SetOutputPath(*f.Output)
	}
	if *f.Debug {
		cfg.SetDebugLogging(true)
	}

	if cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := tui.SetTheme(*f.Theme); err != nil {
		return fmt.Errorf("invalid -theme: %w", err)
	}
	return nil
}

// Setup initializes the directories, logging and user config.
//
//nolint:gocritic // config struct copied for immutability
func Setup(dirs helpers.Dirs, defaults config.Values, writers []io.Writer) (*config.Instance, error) {
	// Ensure directories exist before logging initialization
	if err := helpers.EnsureDirectories(dirs); err != nil {
		return nil, fmt.Errorf("error creating directories: %w", err)
	}

	if err := helpers.InitLogging(dirs.LogDir, writers); err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	cfg, err := config.NewConfig(afero.NewOsFs(), dirs.ConfigDir, defaults)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}
