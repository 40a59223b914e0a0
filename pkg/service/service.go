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

// Package service wires the acquisition pipeline together and owns its
// lifecycle: open the device, open the record stream, run the workers and
// shut them down in order.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/ppgscope/ppgscope/internal/telemetry"
	"github.com/ppgscope/ppgscope/pkg/config"
	"github.com/ppgscope/ppgscope/pkg/ppg"
	"github.com/ppgscope/ppgscope/pkg/readers/ppgserial"
	"github.com/ppgscope/ppgscope/pkg/readers/testutils"
	"github.com/ppgscope/ppgscope/pkg/sinks/csvlog"
	"github.com/ppgscope/ppgscope/pkg/sinks/diagnostics"
	"github.com/ppgscope/ppgscope/pkg/sinks/display"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

var ErrNoPort = errors.New("no serial port configured")

// Deps are the collaborators Start needs from the outside. Zero values
// fall back to the real implementations.
type Deps struct {
	Fs          afero.Fs
	PortFactory testutils.SerialPortFactory
	Clock       clockwork.Clock
	Metrics     *telemetry.Pipeline
	// DiagnosticOutput receives one formatted line per diagnostic.
	DiagnosticOutput io.Writer
}

type Service struct {
	queues      *ppg.Queues
	link        *ppgserial.Link
	persist     *csvlog.Sink
	diagnostics *diagnostics.Sink
	display     *display.Sink
	metrics     *telemetry.Pipeline
	cancel      context.CancelFunc
	group       *errgroup.Group
	linkErr     chan error
	done        chan struct{}
	stopErr     error
	runID       string
	stopOnce    sync.Once
}

// Start opens the device, sends the configuration sequence and opens the
// record stream, then starts the workers. Failing to open either the
// device or the record stream is fatal and leaves nothing running.
func Start(cfg *config.Instance, deps Deps) (*Service, error) {
	log.Info().Msgf("version: %s", config.AppVersion)

	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.PortFactory == nil {
		deps.PortFactory = testutils.DefaultSerialPortFactory
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NewPipeline()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	port := cfg.SerialPort()
	if port == "" {
		return nil, ErrNoPort
	}

	runID := uuid.New().String()
	log.Info().Msgf("run id: %s", runID)

	queues := ppg.NewQueuesWithClock(deps.Clock)
	deps.Metrics.TrackQueue("persist", queues.Persist.Len)
	deps.Metrics.TrackQueue("display", queues.Display.Len)
	deps.Metrics.TrackQueue("diagnostics", queues.Diagnostics.Len)
	deps.Metrics.TrackQueue("commands", queues.Commands.Len)

	log.Info().Msg("opening serial link")
	link, err := ppgserial.Open(ppgserial.Options{
		PortFactory: deps.PortFactory,
		Clock:       deps.Clock,
		Metrics:     deps.Metrics,
		Path:        port,
		Handshake:   cfg.Handshake(),
		BaudRate:    cfg.BaudRate(),
		SettleDelay: cfg.SettleDelay(),
		ApplyDelay:  cfg.ApplyDelay(),
		GraceDelay:  cfg.GraceDelay(),
	}, queues)
	if err != nil {
		log.Error().Err(err).Msg("error opening serial link")
		return nil, err
	}

	log.Info().Msg("opening record stream")
	persist, err := csvlog.Open(csvlog.Options{
		Fs:      deps.Fs,
		Clock:   deps.Clock,
		Metrics: deps.Metrics,
		Path:    cfg.OutputPath(),
	}, queues)
	if err != nil {
		log.Error().Err(err).Msg("error opening record stream")
		if closeErr := link.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to release serial link")
		}
		return nil, err
	}

	queues.Diagnose(deps.Clock.Now(), fmt.Sprintf("recording to %s (run %s)", persist.Path(), runID))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		queues:      queues,
		link:        link,
		persist:     persist,
		diagnostics: diagnostics.NewSink(queues, deps.DiagnosticOutput, 0),
		display:     display.NewSink(queues, cfg.WindowCapacity(), deps.Metrics),
		metrics:     deps.Metrics,
		cancel:      cancel,
		group:       &errgroup.Group{},
		linkErr:     make(chan error, 1),
		done:        make(chan struct{}),
		runID:       runID,
	}

	log.Info().Msg("starting persistence worker")
	s.group.Go(func() error {
		return s.persist.Run(ctx)
	})

	log.Info().Msg("starting diagnostics worker")
	s.group.Go(func() error {
		return s.diagnostics.Run(ctx)
	})

	log.Info().Msg("starting serial link")
	go func() {
		s.linkErr <- s.link.Run(ctx)
	}()

	log.Info().Msg("service fully initialized")
	return s, nil
}

// Stop shuts the pipeline down: it signals every worker, waits for the
// persistence and diagnostics workers to drain their queues, then waits
// for the serial link to close the device. Samples the link reads after
// the sinks have drained are not guaranteed to be written. Stop is safe to
// call more than once; later calls return the first result.
func (s *Service) Stop() error {
	s.stopOnce.Do(func() {
		log.Info().Msg("stopping service")
		s.cancel()

		var errs []error
		if err := s.group.Wait(); err != nil {
			log.Error().Err(err).Msg("worker exited with error")
			errs = append(errs, err)
		}

		if err := <-s.linkErr; err != nil {
			log.Error().Err(err).Msg("serial link exited with error")
			errs = append(errs, err)
		}

		// the link reports its own shutdown after the sinks have exited
		if n := s.diagnostics.Flush(); n > 0 {
			log.Debug().Int("count", n).Msg("flushed late diagnostics")
		}

		s.metrics.LogSummary()
		log.Info().
			Str("port", s.link.Path()).
			Str("output", s.persist.Path()).
			Int("records", s.persist.Written()).
			Msg("serial port and record stream closed")

		s.stopErr = errors.Join(errs...)
		close(s.done)
	})
	return s.stopErr
}

// Done is closed once Stop has completed.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// LinkClosed is closed when the serial link stops, either because Stop was
// called or because the device went away.
func (s *Service) LinkClosed() <-chan struct{} {
	return s.link.Done()
}

// Display is the sink the render loop polls.
func (s *Service) Display() *display.Sink {
	return s.display
}

func (s *Service) Metrics() *telemetry.Pipeline {
	return s.metrics
}

func (s *Service) RunID() string {
	return s.runID
}

func (s *Service) LinkState() ppgserial.State {
	return s.link.State()
}

// SubmitCommand queues a command for the device. Blank input is ignored.
func (s *Service) SubmitCommand(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	log.Debug().Str("command", text).Msg("command submitted")
	s.queues.Commands.Push(ppg.Command{Text: text})
	return true
}
