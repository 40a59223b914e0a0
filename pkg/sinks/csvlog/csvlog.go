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

// Package csvlog is the persistence sink. It writes every sample it is
// handed to an append-only CSV stream, in arrival order and unmodified.
package csvlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/jonboulle/clockwork"
	"github.com/ppgscope/ppgscope/internal/telemetry"
	"github.com/ppgscope/ppgscope/pkg/ppg"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	// samples already queued are written in batches of at most this size
	maxBatch = 512
)

var ErrPersistence = errors.New("persistence failure")

// Record is one row of the output. The csv tags are the header labels.
type Record struct {
	Time  float64 `csv:"Time (s)"`
	Value float64 `csv:"PPG Value"`
}

type Options struct {
	Fs           afero.Fs
	Clock        clockwork.Clock
	Metrics      *telemetry.Pipeline
	Path         string
	PollInterval time.Duration
}

// Sink owns the output file from Open until Run returns.
type Sink struct {
	file         afero.File
	writer       *gocsv.SafeCSVWriter
	clock        clockwork.Clock
	queues       *ppg.Queues
	metrics      *telemetry.Pipeline
	path         string
	pollInterval time.Duration
	written      int
}

// Open creates (or truncates) the output file and writes the header. Any
// failure here is fatal to startup and is wrapped in ErrPersistence.
//
//nolint:gocritic // options struct copied for immutability
func Open(opts Options, queues *ppg.Queues) (*Sink, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewPipeline()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := opts.Fs.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("%w: failed to create output directory: %w", ErrPersistence, err)
		}
	}

	f, err := opts.Fs.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", ErrPersistence, opts.Path, err)
	}

	s := &Sink{
		file:         f,
		writer:       gocsv.DefaultCSVWriter(f),
		clock:        opts.Clock,
		queues:       queues,
		metrics:      opts.Metrics,
		path:         opts.Path,
		pollInterval: opts.PollInterval,
	}

	// marshalling an empty slice writes just the header row
	if err := gocsv.MarshalCSV([]Record{}, s.writer); err != nil {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close output file")
		}
		return nil, fmt.Errorf("%w: failed to write header: %w", ErrPersistence, err)
	}

	log.Info().Str("path", opts.Path).Msg("opened record stream")
	return s, nil
}

func (s *Sink) Path() string {
	return s.path
}

// Written is the number of records successfully written so far. It is only
// meaningful once Run has returned.
func (s *Sink) Written() int {
	return s.written
}

// Run drains the persistence queue until ctx is done and the queue is
// empty, then flushes and closes the output. Anything queued before the
// cancellation is observed is written before the file is closed.
func (s *Sink) Run(ctx context.Context) error {
	for {
		sample, ok := s.queues.Persist.Pop(ctx, s.pollInterval)
		if !ok {
			if ctx.Err() != nil && s.queues.Persist.Len() == 0 {
				break
			}
			continue
		}

		batch := append([]ppg.Sample{sample}, s.queues.Persist.PopBatch(maxBatch-1)...)
		s.write(batch)
	}

	return s.close()
}

func (s *Sink) write(batch []ppg.Sample) {
	records := make([]Record, len(batch))
	for i, sample := range batch {
		records[i] = Record{Time: sample.Timestamp, Value: sample.Value}
	}

	if err := gocsv.MarshalCSVWithoutHeaders(records, s.writer); err != nil {
		s.metrics.PersistErrors.Inc()
		log.Error().Err(err).Int("records", len(records)).Msg("failed to write records")
		s.queues.Diagnose(s.clock.Now(), fmt.Errorf("%w: failed to write %d records: %w",
			ErrPersistence, len(records), err).Error())
		// csv.Writer keeps its first error, so later batches need a fresh one
		s.writer = gocsv.DefaultCSVWriter(s.file)
		return
	}

	s.written += len(records)
	s.metrics.RecordsWritten.Add(float64(len(records)))
}

func (s *Sink) close() error {
	var errs []error

	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush records: %w", err))
	}
	if err := s.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("failed to sync output: %w", err))
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close output: %w", err))
	}

	log.Info().Str("path", s.path).Int("records", s.written).Msg("closed record stream")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrPersistence, errors.Join(errs...))
	}
	return nil
}
