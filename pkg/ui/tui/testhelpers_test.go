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
	"strings"
	"sync"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/ppgscope/ppgscope/internal/telemetry"
	"github.com/ppgscope/ppgscope/pkg/ppg"
	"github.com/ppgscope/ppgscope/pkg/sinks/display"
	"github.com/stretchr/testify/require"
)

// TestScreen wraps a SimulationScreen with helper methods for testing.
type TestScreen struct {
	tcell.SimulationScreen
	t *testing.T
}

// NewTestScreen creates and initializes a simulation screen for testing.
func NewTestScreen(t *testing.T, width, height int) *TestScreen {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	require.NotNil(t, sim, "failed to create simulation screen")

	err := sim.Init()
	require.NoError(t, err, "failed to initialize simulation screen")

	sim.SetSize(width, height)

	return &TestScreen{
		SimulationScreen: sim,
		t:                t,
	}
}

// InjectEnter simulates pressing the Enter key.
func (s *TestScreen) InjectEnter() {
	s.InjectKey(tcell.KeyEnter, 0, tcell.ModNone)
}

// InjectEscape simulates pressing the Escape key.
func (s *TestScreen) InjectEscape() {
	s.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)
}

// InjectTab simulates pressing the Tab key.
func (s *TestScreen) InjectTab() {
	s.InjectKey(tcell.KeyTab, 0, tcell.ModNone)
}

// InjectRune simulates typing a character.
func (s *TestScreen) InjectRune(r rune) {
	s.InjectKey(tcell.KeyRune, r, tcell.ModNone)
}

// InjectString simulates typing a string of characters.
func (s *TestScreen) InjectString(str string) {
	for _, r := range str {
		s.InjectRune(r)
	}
}

// GetLineContent returns the text content of a specific line.
func (s *TestScreen) GetLineContent(y int) string {
	cells, width, height := s.GetContents()
	if y < 0 || y >= height {
		return ""
	}

	var sb strings.Builder
	for x := range width {
		cell := cells[y*width+x]
		if len(cell.Runes) > 0 {
			sb.WriteRune(cell.Runes[0])
		} else {
			sb.WriteRune(' ')
		}
	}
	return strings.TrimRight(sb.String(), " ")
}

// GetScreenText returns all screen content as a single string.
func (s *TestScreen) GetScreenText() string {
	_, _, height := s.GetContents()
	lines := make([]string, 0, height)
	for y := range height {
		lines = append(lines, s.GetLineContent(y))
	}
	return strings.Join(lines, "\n")
}

// ContainsText checks if the screen contains the specified text anywhere.
func (s *TestScreen) ContainsText(text string) bool {
	return strings.Contains(s.GetScreenText(), text)
}

// CountRune counts cells showing r.
func (s *TestScreen) CountRune(r rune) int {
	cells, _, _ := s.GetContents()
	n := 0
	for _, cell := range cells {
		if len(cell.Runes) > 0 && cell.Runes[0] == r {
			n++
		}
	}
	return n
}

// fakePipeline stands in for the running service.
type fakePipeline struct {
	queues   *ppg.Queues
	sink     *display.Sink
	metrics  *telemetry.Pipeline
	runID    string
	commands []string
	mu       sync.Mutex
}

func newFakePipeline(capacity int) *fakePipeline {
	queues := ppg.NewQueues()
	metrics := telemetry.NewPipeline()
	metrics.TrackQueue("persist", queues.Persist.Len)
	return &fakePipeline{
		queues:  queues,
		sink:    display.NewSink(queues, capacity, metrics),
		metrics: metrics,
		runID:   "3f1c9a2e-5b7d-4e0f-9c1a-2b3c4d5e6f70",
	}
}

func (f *fakePipeline) Display() *display.Sink {
	return f.sink
}

func (f *fakePipeline) Metrics() *telemetry.Pipeline {
	return f.metrics
}

func (f *fakePipeline) RunID() string {
	return f.runID
}

func (f *fakePipeline) SubmitCommand(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, text)
	return true
}

func (f *fakePipeline) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func (f *fakePipeline) publish(samples ...ppg.Sample) {
	for _, s := range samples {
		f.queues.PublishSample(s)
		f.metrics.SamplesParsed.Inc()
	}
}
