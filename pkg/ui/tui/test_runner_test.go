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


package tui

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ppgscope/ppgscope/pkg/helpers/syncutil"
)

// TestAppRunner manages running the UI in tests with SimulationScreen.
// It handles the complexity of running the app in a goroutine and provides
// methods for injecting events and verifying output.
type TestAppRunner struct {
	runErr  error
	ui      *App
	screen  *TestScreen
	t       *testing.T
	cancel  context.CancelFunc
	done    chan struct{}
	stopMu  syncutil.Mutex
	stopped bool
}

// NewTestAppRunner creates a test runner with a simulation screen. A nil
// clock uses the real one.
func NewTestAppRunner(t *testing.T, width, height int, clock clockwork.Clock) *TestAppRunner {
	t.Helper()

	screen := NewTestScreen(t, width, height)
	ui := New(Options{
		Clock:  clock,
		Screen: screen.SimulationScreen,
		Redraw: 5 * time.Millisecond,
	})

	return &TestAppRunner{
		ui:     ui,
		screen: screen,
		t:      t,
		done:   make(chan struct{}),
	}
}

// Start runs the UI in a goroutine.
func (r *TestAppRunner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go func() {
		err := r.ui.Run(ctx)
		r.stopMu.Lock()
		r.runErr = err
		r.stopped = true
		r.stopMu.Unlock()
		close(r.done)
	}()
	// Brief pause to let app initialize
	time.Sleep(20 * time.Millisecond)
}

// Stop cancels the run context and waits for the UI to exit.
// Note: tview.Application.Stop() internally calls screen.Fini(), so we don't
// call Fini here to avoid double-close panics.
func (r *TestAppRunner) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		r.t.Error("UI did not stop")
	}
}

// Screen returns the test screen for event injection and assertions.
func (r *TestAppRunner) Screen() *TestScreen {
	return r.screen
}

// UI returns the application under test.
func (r *TestAppRunner) UI() *App {
	return r.ui
}

// Done is closed once Run has returned.
func (r *TestAppRunner) Done() <-chan struct{} {
	return r.done
}

// Draw forces a synchronous draw and waits for it to complete.
func (r *TestAppRunner) Draw() {
	r.ui.app.Draw()
	time.Sleep(10 * time.Millisecond)
}

// IsStopped returns whether the application has stopped.
func (r *TestAppRunner) IsStopped() bool {
	r.stopMu.Lock()
	defer r.stopMu.Unlock()
	return r.stopped
}

// RunError returns any error from the app's Run method.
func (r *TestAppRunner) RunError() error {
	r.stopMu.Lock()
	defer r.stopMu.Unlock()
	return r.runErr
}

// WaitForCondition waits for a condition to be true, with a timeout.
func (*TestAppRunner) WaitForCondition(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// WaitForText waits for specific text to appear on screen.
func (r *TestAppRunner) WaitForText(text string, timeout time.Duration) bool {
	return r.WaitForCondition(func() bool {
		r.Draw()
		return r.screen.ContainsText(text)
	}, timeout)
}
