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
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ppgscope/ppgscope/pkg/config"
	"github.com/ppgscope/ppgscope/pkg/service"
	"github.com/ppgscope/ppgscope/pkg/ui/tui"
	"github.com/rs/zerolog/log"
)

const closedMessage = "Serial port and CSV file closed."

// RunHeadless records until ctx is done or the device goes away.
// Diagnostics are written to out unless deps already names a writer.
func RunHeadless(ctx context.Context, cfg *config.Instance, deps service.Deps, out io.Writer) error {
	if deps.DiagnosticOutput == nil {
		deps.DiagnosticOutput = out
	}

	svc, err := service.Start(cfg, deps)
	if err != nil {
		return fmt.Errorf("error starting service: %w", err)
	}
	log.Info().Msg("started in headless mode")

	// nothing renders the window, but its queue still has to be drained
	renderCtx, cancelRender := context.WithCancel(context.Background())
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		svc.Display().Run(renderCtx, deps.Clock, cfg.RedrawInterval())
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("stop requested")
	case <-svc.LinkClosed():
		log.Warn().Msg("serial link closed, stopping")
	}

	cancelRender()
	<-rendered

	stopErr := svc.Stop()
	_, _ = fmt.Fprintln(out, closedMessage)
	if stopErr != nil {
		return fmt.Errorf("error stopping service: %w", stopErr)
	}
	return nil
}

// RunTUI records with the text ui until the user quits or ctx is done. The
// ui stays up when the device goes away so the last messages can be read.
func RunTUI(ctx context.Context, cfg *config.Instance, deps service.Deps, opts tui.Options, out io.Writer) error {
	if opts.Redraw <= 0 {
		opts.Redraw = cfg.RedrawInterval()
	}
	if opts.Clock == nil {
		opts.Clock = deps.Clock
	}
	ui := tui.New(opts)
	if deps.DiagnosticOutput == nil {
		deps.DiagnosticOutput = ui.DiagnosticWriter()
	}

	svc, err := service.Start(cfg, deps)
	if err != nil {
		return fmt.Errorf("error starting service: %w", err)
	}
	ui.Attach(svc)

	runErr := ui.Run(ctx)
	if runErr != nil {
		log.Error().Err(runErr).Msg("text ui exited with error")
	}

	stopErr := svc.Stop()
	_, _ = fmt.Fprintln(out, closedMessage)
	if stopErr != nil {
		stopErr = fmt.Errorf("error stopping service: %w", stopErr)
	}
	return errors.Join(runErr, stopErr)
}
