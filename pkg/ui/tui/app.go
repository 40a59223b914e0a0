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


// Package tui is the interactive front end: a live plot of the rolling
// window, the device message log, a command line and a status bar.
package tui

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jonboulle/clockwork"
	"github.com/ppgscope/ppgscope/internal/telemetry"
	"github.com/ppgscope/ppgscope/pkg/config"
	"github.com/ppgscope/ppgscope/pkg/sinks/display"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	maxDiagnosticLines = 500
	helpPlain          = "q quit  : or Tab command  Esc back"
	helpText           = "[::d]" + helpPlain + "[::-]"
)

// Pipeline is the part of the running service the UI talks to.
type Pipeline interface {
	Display() *display.Sink
	Metrics() *telemetry.Pipeline
	SubmitCommand(text string) bool
	RunID() string
}

type Options struct {
	Clock clockwork.Clock
	// Screen replaces the terminal, used by tests.
	Screen tcell.Screen
	Redraw time.Duration
}

type App struct {
	pipeline    Pipeline
	clock       clockwork.Clock
	app         *tview.Application
	root        *tview.Flex
	plot        *Plot
	diagnostics *tview.TextView
	input       *tview.InputField
	status      *tview.TextView
	redraw      time.Duration
}

// New builds the widgets. The diagnostics view is usable as a writer
// straight away so it can be handed to the service before Attach.
func New(opts Options) *App {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Redraw <= 0 {
		opts.Redraw = display.DefaultRedraw
	}

	a := &App{
		app:    tview.NewApplication(),
		clock:  opts.Clock,
		redraw: opts.Redraw,
	}
	if opts.Screen != nil {
		a.app.SetScreen(opts.Screen)
	}

	a.plot = NewPlot(a.points)

	a.diagnostics = tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(true).
		SetMaxLines(maxDiagnosticLines)
	a.diagnostics.SetBorder(true).SetTitle(" Device ")

	a.input = tview.NewInputField().
		SetLabel("Command: ").
		SetFieldBackgroundColor(CurrentTheme().FieldFocusedBg)
	a.input.SetDoneFunc(a.submit)

	a.status = tview.NewTextView().SetDynamicColors(true)
	help := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignRight).
		SetText(helpText)

	bottom := tview.NewFlex().
		AddItem(a.status, 0, 1, false).
		AddItem(help, len(helpPlain)+1, 0, false)

	a.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.plot, 0, 3, true).
		AddItem(a.diagnostics, 0, 1, false).
		AddItem(a.input, 1, 0, false).
		AddItem(bottom, 1, 0, false)

	a.app.SetRoot(a.root, true).
		SetFocus(a.plot).
		SetInputCapture(a.handleKey)

	return a
}

// DiagnosticWriter receives the formatted diagnostic lines.
func (a *App) DiagnosticWriter() io.Writer {
	return a.diagnostics
}

// Attach connects the UI to a running pipeline.
func (a *App) Attach(p Pipeline) {
	a.pipeline = p
	a.plot.SetTitle(fmt.Sprintf(" %s: PPG Signal (window %d) ", config.AppName, p.Display().Cap()))
	a.updateStatus()
}

func (a *App) points() []display.Point {
	if a.pipeline == nil {
		return nil
	}
	return a.pipeline.Display().Snapshot()
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	// the command line gets every key, including q
	if a.app.GetFocus() == a.input {
		return event
	}

	switch {
	case event.Key() == tcell.KeyRune && (event.Rune() == 'q' || event.Rune() == 'Q'):
		log.Info().Msg("quit requested from UI")
		a.app.Stop()
		return nil
	case event.Key() == tcell.KeyRune && event.Rune() == ':', event.Key() == tcell.KeyTab:
		a.app.SetFocus(a.input)
		return nil
	}
	return event
}

func (a *App) submit(key tcell.Key) {
	switch key {
	case tcell.KeyEnter:
		text := a.input.GetText()
		if a.pipeline != nil && a.pipeline.SubmitCommand(text) {
			a.input.SetText("")
		}
	case tcell.KeyEscape:
		a.input.SetText("")
		a.app.SetFocus(a.plot)
	default:
	}
}

// tick only touches the locked display sink and the status view, so it
// runs on the refresh goroutine rather than the event loop.
func (a *App) tick() {
	if a.pipeline == nil {
		return
	}
	a.pipeline.Display().Poll()
	a.updateStatus()
}

func (a *App) updateStatus() {
	if a.pipeline == nil {
		return
	}
	a.status.SetText(statusLine(a.pipeline))
}

func statusLine(p Pipeline) string {
	snap := p.Metrics().Snapshot()
	runID := p.RunID()
	if len(runID) > 8 {
		runID = runID[:8]
	}

	line := fmt.Sprintf(
		"run %s  samples %.0f  recorded %.0f  window %d/%d  backlog %.0f",
		runID,
		snap["ppgscope_serial_samples_total"],
		snap["ppgscope_persist_records_total"],
		p.Display().Len(),
		p.Display().Cap(),
		snap["ppgscope_queue_depth{queue=persist}"],
	)
	if n := snap["ppgscope_persist_errors_total"] + snap["ppgscope_serial_read_errors_total"] +
		snap["ppgscope_serial_write_errors_total"]; n > 0 {
		line += fmt.Sprintf("  [%s]errors %.0f[-]", CurrentTheme().ErrorColorName, n)
	}
	return line
}

// Run shows the UI until the user quits or ctx is done. The display sink
// is polled and the screen redrawn on every redraw tick.
func (a *App) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	exited := make(chan struct{})
	defer close(exited)
	go a.refresh(ctx, exited)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("failed to run application: %w", err)
	}
	return nil
}

func (a *App) refresh(ctx context.Context, exited <-chan struct{}) {
	ticker := a.clock.NewTicker(a.redraw)
	defer ticker.Stop()

	ctxDone := ctx.Done()
	for {
		select {
		case <-exited:
			return
		case <-ctxDone:
			a.app.Stop()
			ctxDone = nil
		case <-ticker.Chan():
			if ctx.Err() != nil {
				// the first Stop can land before the loop has started
				a.app.Stop()
				continue
			}
			a.tick()
			a.app.Draw()
		}
	}
}

// Stop ends Run from another goroutine.
func (a *App) Stop() {
	a.app.Stop()
}

// SetTheme selects a theme by name before the UI is built.
func SetTheme(name string) error {
	if name == "" {
		return nil
	}
	if !SetCurrentTheme(name) {
		return fmt.Errorf("unknown theme: %s", name)
	}
	return nil
}
