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

// Package ppgserial owns the serial connection to the PPG sensor board. It
// sends the configuration handshake, reads and classifies incoming lines,
// and forwards queued commands to the device.
package ppgserial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ppgscope/ppgscope/internal/telemetry"
	"github.com/ppgscope/ppgscope/pkg/ppg"
	"github.com/ppgscope/ppgscope/pkg/readers/testutils"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

const (
	DefaultBaudRate   = 115200
	DefaultGraceDelay = 100 * time.Millisecond
	readTimeout       = 100 * time.Millisecond
	idleDelay         = 10 * time.Millisecond
	readBufferSize    = 1024
	// a command response is drained for at most this many reads so a
	// device that never stops streaming cannot stall the write path
	maxDrainReads = 16
	maxLineLength = 4096
)

var (
	ErrOpen  = errors.New("failed to open serial device")
	ErrRead  = errors.New("serial read failed")
	ErrWrite = errors.New("serial write failed")
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateRunning
	StateStopping
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Options struct {
	PortFactory testutils.SerialPortFactory
	Clock       clockwork.Clock
	Metrics     *telemetry.Pipeline
	Path        string
	// Handshake is sent in order once the port is open.
	Handshake []ppg.Command
	BaudRate  int
	// SettleDelay is waited after opening, before the handshake. Most
	// boards reset when the port opens.
	SettleDelay time.Duration
	// ApplyDelay is waited after the handshake so the device can apply
	// its new settings.
	ApplyDelay time.Duration
	GraceDelay time.Duration
}

// Link is the sole owner of the device handle. Open it, then call Run from
// a dedicated goroutine.
type Link struct {
	port       testutils.SerialPort
	clock      clockwork.Clock
	queues     *ppg.Queues
	metrics    *telemetry.Pipeline
	done       chan struct{}
	path       string
	buf        []byte
	lineBuf    []byte
	graceDelay time.Duration
	state      atomic.Int32
	overflowed bool
	// set while a command response is drained
	responding bool
}

// Open connects to the device and performs the configuration handshake.
// A failure to open is returned wrapped in ErrOpen and leaves nothing
// running.
//
//nolint:gocritic // options struct copied for immutability
func Open(opts Options, queues *ppg.Queues) (*Link, error) {
	if opts.PortFactory == nil {
		opts.PortFactory = testutils.DefaultSerialPortFactory
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewPipeline()
	}
	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}

	l := &Link{
		clock:      opts.Clock,
		queues:     queues,
		metrics:    opts.Metrics,
		done:       make(chan struct{}),
		path:       opts.Path,
		buf:        make([]byte, readBufferSize),
		graceDelay: opts.GraceDelay,
	}
	l.setState(StateConnecting)

	log.Info().Str("path", opts.Path).Int("baud", opts.BaudRate).Msg("opening serial port")

	port, err := opts.PortFactory(opts.Path, &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		l.setState(StateClosed)
		return nil, fmt.Errorf("%w %s: %w", ErrOpen, opts.Path, err)
	}

	err = port.SetReadTimeout(readTimeout)
	if err != nil {
		if closeErr := port.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close serial port")
		}
		l.setState(StateClosed)
		return nil, fmt.Errorf("%w %s: failed to set read timeout: %w", ErrOpen, opts.Path, err)
	}
	l.port = port

	l.clock.Sleep(opts.SettleDelay)
	l.diagnose("serial port now open: " + opts.Path)
	log.Info().Str("path", opts.Path).Msg("serial port open")

	for _, cmd := range opts.Handshake {
		// write failures are reported as diagnostics, the handshake carries on
		_ = l.SendCommand(cmd)
	}
	l.clock.Sleep(opts.ApplyDelay)

	l.setState(StateRunning)
	return l, nil
}

func (l *Link) setState(s State) {
	l.state.Store(int32(s))
}

func (l *Link) State() State {
	return State(l.state.Load())
}

func (l *Link) Path() string {
	return l.path
}

// Done is closed once Run has returned and the port is released.
func (l *Link) Done() <-chan struct{} {
	return l.done
}

func (l *Link) diagnose(text string) {
	l.metrics.Diagnostics.Inc()
	l.queues.Diagnose(l.clock.Now(), text)
}

// SendCommand writes cmd followed by a newline, waits the grace delay and
// then drains whatever the device answered. Every non-blank line completed
// during the drain is a diagnostic, even one shaped like a sample. Write
// failures are reported as a diagnostic and returned wrapped in ErrWrite.
func (l *Link) SendCommand(cmd ppg.Command) error {
	l.diagnose("sending command: " + cmd.Text)

	_, err := l.port.Write([]byte(cmd.Text + "\n"))
	if err != nil {
		l.metrics.WriteErrors.Inc()
		werr := fmt.Errorf("%w: %q: %w", ErrWrite, cmd.Text, err)
		log.Error().Err(err).Str("command", cmd.Text).Msg("failed to write command")
		l.diagnose(werr.Error())
		return werr
	}
	l.metrics.CommandsSent.Inc()
	log.Debug().Str("command", cmd.Text).Msg("sent command")

	l.clock.Sleep(l.graceDelay)

	l.responding = true
	defer func() { l.responding = false }()

	for range maxDrainReads {
		n, err := l.readOnce()
		if err != nil {
			if !isPortClosed(err) {
				l.reportReadError(err)
			}
			return nil
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// Run is the read loop. Each iteration forwards pending commands, then
// reads whatever the device has sent. It returns when ctx is cancelled or
// the port is closed underneath it, and always releases the port.
func (l *Link) Run(ctx context.Context) error {
	defer close(l.done)

	var runErr error
	for ctx.Err() == nil {
		for {
			cmd, ok := l.queues.Commands.TryPop()
			if !ok {
				break
			}
			_ = l.SendCommand(cmd)
		}

		n, err := l.readOnce()
		if err != nil {
			if isPortClosed(err) {
				log.Error().Err(err).Str("path", l.path).Msg("serial port closed unexpectedly")
				runErr = fmt.Errorf("%w: %w", ErrRead, err)
				l.diagnose("serial port closed unexpectedly: " + err.Error())
				break
			}
			l.reportReadError(err)
			l.clock.Sleep(idleDelay)
			continue
		}

		if n == 0 {
			l.clock.Sleep(idleDelay)
		}
	}

	l.setState(StateStopping)
	if len(l.lineBuf) > 0 {
		log.Debug().Int("bytes", len(l.lineBuf)).Msg("discarding incomplete line on shutdown")
	}

	if err := l.port.Close(); err != nil && !isPortClosed(err) {
		log.Warn().Err(err).Msg("failed to close serial port")
	}
	l.setState(StateClosed)
	l.diagnose("serial port closed: " + l.path)
	log.Info().Str("path", l.path).Msg("serial port closed")

	return runErr
}

// Close releases a link that was opened but never run. Run closes the port
// itself on exit.
func (l *Link) Close() error {
	l.setState(StateClosed)
	if err := l.port.Close(); err != nil && !isPortClosed(err) {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	log.Info().Str("path", l.path).Msg("serial port closed")
	return nil
}

func (l *Link) reportReadError(err error) {
	l.metrics.ReadErrors.Inc()
	log.Error().Err(err).Str("path", l.path).Msg("failed to read from serial port")
	l.diagnose(fmt.Errorf("%w: %w", ErrRead, err).Error())
}

// readOnce performs a single read and dispatches any complete lines. Bytes
// are processed even when the read also returned an error.
func (l *Link) readOnce() (int, error) {
	n, err := l.port.Read(l.buf)
	if n > 0 {
		l.consume(l.buf[:n])
	}
	return n, err //nolint:wrapcheck // callers inspect the raw port error
}

func (l *Link) consume(data []byte) {
	for _, b := range data {
		if b == '\n' {
			if l.overflowed {
				l.overflowed = false
				l.lineBuf = l.lineBuf[:0]
				continue
			}
			line := strings.TrimSuffix(string(l.lineBuf), "\r")
			l.lineBuf = l.lineBuf[:0]
			l.dispatch(line)
			continue
		}

		if l.overflowed {
			continue
		}

		if len(l.lineBuf) >= maxLineLength {
			log.Warn().Str("path", l.path).Msg("line too long, discarding until next newline")
			l.diagnose(fmt.Sprintf("discarded line longer than %d bytes", maxLineLength))
			l.lineBuf = l.lineBuf[:0]
			l.overflowed = true
			continue
		}

		l.lineBuf = append(l.lineBuf, b)
	}
}

func (l *Link) dispatch(line string) {
	ev, ok := ppg.ParseLine(line)
	if !ok {
		return
	}
	l.metrics.LinesRead.Inc()

	switch {
	case l.responding:
		l.diagnose(line)
	case ev.Kind == ppg.EventSample:
		l.metrics.SamplesParsed.Inc()
		l.queues.PublishSample(ev.Sample)
	case ev.Kind == ppg.EventDiagnostic:
		l.diagnose(ev.Text)
	}
}

func isPortClosed(err error) bool {
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
		return true
	}
	return errors.Is(err, os.ErrClosed) || errors.Is(err, io.EOF)
}
