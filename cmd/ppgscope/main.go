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


package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppgscope/ppgscope/pkg/cli"
	"github.com/ppgscope/ppgscope/pkg/config"
	"github.com/ppgscope/ppgscope/pkg/helpers"
	"github.com/ppgscope/ppgscope/pkg/service"
	"github.com/ppgscope/ppgscope/pkg/ui/tui"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags(flag.CommandLine)
	exit, err := flags.Pre(os.Args[1:], os.Stdout)
	if err != nil || exit {
		return err //nolint:wrapcheck // already described by Pre
	}

	if *flags.List {
		return cli.ListDevices(os.Stdout, helpers.GetSerialDeviceList) //nolint:wrapcheck // wrapped by cli
	}

	var logWriters []io.Writer
	if *flags.Headless {
		logWriters = []io.Writer{os.Stderr}
	}

	dirs := flags.Dirs()
	cfg, err := cli.Setup(dirs, config.BaseDefaults, logWriters)
	if err != nil {
		return err //nolint:wrapcheck // already described by Setup
	}

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	if err := flags.Post(cfg); err != nil {
		return err //nolint:wrapcheck // already described by Post
	}
	if err := cli.ResolvePort(cfg, helpers.GetSerialDeviceList); err != nil {
		return err //nolint:wrapcheck // already described by ResolvePort
	}

	_, _ = fmt.Printf("%s v%s\n", config.AppName, config.AppVersion)
	_, _ = fmt.Printf("Config: %s\n", cfg.ConfigPath())
	_, _ = fmt.Printf("Logs: %s\n", helpers.LogPath(dirs.LogDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case sig := <-sigs:
			log.Info().Str("signal", sig.String()).Msg("received signal, stopping")
			cancel()
		case <-ctx.Done():
		}
	}()

	if *flags.Headless {
		return cli.RunHeadless(ctx, cfg, service.Deps{}, os.Stdout) //nolint:wrapcheck // wrapped by cli
	}
	return cli.RunTUI(ctx, cfg, service.Deps{}, tui.Options{}, os.Stdout) //nolint:wrapcheck // wrapped by cli
}
