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

// Package ppg holds the value types that flow through the acquisition
// pipeline and the parser for the device's line protocol.
package ppg

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ppgscope/ppgscope/pkg/queue"
)

// Sample is a single reading reported by the device. Timestamp is the
// device-reported time in seconds.
type Sample struct {
	Timestamp float64
	Value     float64
}

// Diagnostic is a line or error meant for a human rather than the data log.
type Diagnostic struct {
	ObservedAt time.Time
	Text       string
}

// Command is an opaque line sent to the device. A newline is appended on
// the wire.
type Command struct {
	Text string
}

// Queues are the channels connecting the pipeline stages. Samples are
// pushed by value into both Persist and Display.
type Queues struct {
	Persist     *queue.Queue[Sample]
	Display     *queue.Queue[Sample]
	Diagnostics *queue.Queue[Diagnostic]
	Commands    *queue.Queue[Command]
}

func NewQueues() *Queues {
	return NewQueuesWithClock(nil)
}

// NewQueuesWithClock creates the queues with their bounded waits running on
// clock.
func NewQueuesWithClock(clock clockwork.Clock) *Queues {
	return &Queues{
		Persist:     queue.NewWithClock[Sample](clock),
		Display:     queue.NewWithClock[Sample](clock),
		Diagnostics: queue.NewWithClock[Diagnostic](clock),
		Commands:    queue.NewWithClock[Command](clock),
	}
}

// PublishSample fans a sample out to the persistence and display queues.
// The two pushes are independent; a consumer draining one queue never
// affects the other.
func (q *Queues) PublishSample(s Sample) {
	q.Persist.Push(s)
	q.Display.Push(s)
}

// Diagnose pushes a diagnostic stamped with the given time.
func (q *Queues) Diagnose(at time.Time, text string) {
	q.Diagnostics.Push(Diagnostic{
		ObservedAt: at,
		Text:       text,
	})
}
