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

// Package diagnostics surfaces device chatter and pipeline errors to the
// operator. Every message is shown; nothing is filtered or deduplicated.
package diagnostics

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ppgscope/ppgscope/pkg/helpers/syncutil"
	"github.com/ppgscope/ppgscope/pkg/ppg"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	TimeFormat          = "15:04:05.000"
)

// Format renders a diagnostic as a single output line.
func Format(d ppg.Diagnostic) string {
	return fmt.Sprintf("[%s] %s\n", d.ObservedAt.Format(TimeFormat), d.Text)
}

type Sink struct {
	out          io.Writer
	queues       *ppg.Queues
	pollInterval time.Duration
	mu           syncutil.Mutex
}

// NewSink writes to out, which must be safe to call from the sink's
// goroutine.
func NewSink(queues *ppg.Queues, out io.Writer, pollInterval time.Duration) *Sink {
	if out == nil {
		out = io.Discard
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Sink{
		out:          out,
		queues:       queues,
		pollInterval: pollInterval,
	}
}

// Run surfaces diagnostics until ctx is done and the queue is empty.
func (s *Sink) Run(ctx context.Context) error {
	for {
		d, ok := s.queues.Diagnostics.Pop(ctx, s.pollInterval)
		if !ok {
			if ctx.Err() != nil && s.queues.Diagnostics.Len() == 0 {
				return nil
			}
			continue
		}
		s.emit(d)
	}
}

// Flush surfaces whatever is still queued without waiting. It is used
// after the serial link has closed, to show its final messages.
func (s *Sink) Flush() int {
	n := 0
	for {
		d, ok := s.queues.Diagnostics.TryPop()
		if !ok {
			return n
		}
		s.emit(d)
		n++
	}
}

func (s *Sink) emit(d ppg.Diagnostic) {
	log.Info().Time("observed", d.ObservedAt).Str("text", d.Text).Msg("diagnostic")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.out, Format(d)); err != nil {
		log.Warn().Err(err).Msg("failed to write diagnostic")
	}
}
