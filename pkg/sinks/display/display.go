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

// Package display is the live view sink. It keeps a rolling window of the
// most recent samples, timed relative to the first sample of the run, for
// a render loop to poll.
package display

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ppgscope/ppgscope/internal/telemetry"
	"github.com/ppgscope/ppgscope/pkg/helpers/syncutil"
	"github.com/ppgscope/ppgscope/pkg/ppg"
)

const (
	DefaultCapacity = 1000
	DefaultRedraw   = 50 * time.Millisecond
)

// Sink is driven by the render loop rather than running on its own. The
// display queue is unbounded, so a slow render tick lets it grow until the
// next Poll.
type Sink struct {
	queues    *ppg.Queues
	metrics   *telemetry.Pipeline
	window    *Window
	origin    float64
	mu        syncutil.Mutex
	hasOrigin bool
}

func NewSink(queues *ppg.Queues, capacity int, metrics *telemetry.Pipeline) *Sink {
	if metrics == nil {
		metrics = telemetry.NewPipeline()
	}
	return &Sink{
		queues:  queues,
		metrics: metrics,
		window:  NewWindow(capacity),
	}
}

// Poll moves every sample currently in the display queue into the window
// and reports how many were added. It never waits.
func (s *Sink) Poll() int {
	batch := s.queues.Display.PopBatch(0)
	if len(batch) == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sample := range batch {
		if !s.hasOrigin {
			s.origin = sample.Timestamp
			s.hasOrigin = true
		}
		s.window.Append(Point{
			RelativeTime: sample.Timestamp - s.origin,
			Value:        sample.Value,
		})
	}
	s.metrics.SamplesShown.Add(float64(len(batch)))
	return len(batch)
}

// Snapshot returns a copy of the window, oldest point first.
func (s *Sink) Snapshot() []Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.Points()
}

func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.Len()
}

// Cap is the number of points the window keeps.
func (s *Sink) Cap() int {
	return s.window.Cap()
}

// Origin is the device timestamp of the first sample seen, if any.
func (s *Sink) Origin() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.origin, s.hasOrigin
}

// Run polls on a fixed tick until ctx is done. It stands in for the render
// loop when nothing is drawn, so the display queue stays bounded by the
// tick rate.
func (s *Sink) Run(ctx context.Context, clock clockwork.Clock, every time.Duration) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if every <= 0 {
		every = DefaultRedraw
	}

	ticker := clock.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Poll()
			return
		case <-ticker.Chan():
			s.Poll()
		}
	}
}
