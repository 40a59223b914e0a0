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

package testutils

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppgscope/ppgscope/pkg/helpers/syncutil"
	"go.bug.st/serial"
)

// ErrPortClosed is returned by MockSerialPort once it has been closed.
var ErrPortClosed = fmt.Errorf("port closed: %w", os.ErrClosed)

// MockSerialPort is an in-memory serial port. Bytes queued with Feed are
// returned by Read; writes are recorded and may trigger canned responses.
type MockSerialPort struct {
	ReadError  error
	WriteError error
	CloseError error
	TimeoutErr error
	ReadFunc   func(p []byte) (n int, err error)
	// Responses maps a command (without its newline) to the text the
	// device answers with.
	Responses map[string]string
	pending   []byte
	writes    []string
	mu        syncutil.Mutex
	Closed    bool
}

func NewMockSerialPort() *MockSerialPort {
	return &MockSerialPort{
		Responses: make(map[string]string),
	}
}

// Factory returns a SerialPortFactory handing out this mock and recording
// the mode it was opened with into mode, if non-nil.
func (m *MockSerialPort) Factory(mode **serial.Mode) SerialPortFactory {
	return func(_ string, md *serial.Mode) (SerialPort, error) {
		if mode != nil {
			*mode = md
		}
		return m, nil
	}
}

// Feed queues bytes for subsequent reads.
func (m *MockSerialPort) Feed(data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, data...)
}

func (m *MockSerialPort) Read(p []byte) (n int, err error) {
	m.mu.Lock()
	closed := m.Closed
	readFunc := m.ReadFunc
	readErr := m.ReadError
	m.mu.Unlock()

	if closed {
		return 0, ErrPortClosed
	}

	if readFunc != nil {
		return readFunc(p)
	}

	if readErr != nil {
		return 0, readErr
	}

	m.mu.Lock()
	if len(m.pending) > 0 {
		n = copy(p, m.pending)
		m.pending = m.pending[n:]
		m.mu.Unlock()
		return n, nil
	}
	m.mu.Unlock()

	// nothing buffered, behave like a short read timeout
	time.Sleep(5 * time.Millisecond)
	return 0, nil
}

func (m *MockSerialPort) Write(p []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return 0, ErrPortClosed
	}
	if m.WriteError != nil {
		return 0, m.WriteError
	}

	m.writes = append(m.writes, string(p))
	if resp, ok := m.Responses[strings.TrimSuffix(string(p), "\n")]; ok {
		m.pending = append(m.pending, resp...)
	}
	return len(p), nil
}

func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return m.CloseError
}

func (m *MockSerialPort) SetReadTimeout(_ time.Duration) error {
	return m.TimeoutErr
}

// SetReadError changes the read error while the port is in use.
func (m *MockSerialPort) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadError = err
}

// Writes returns every write made so far, in order.
func (m *MockSerialPort) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.writes))
	copy(out, m.writes)
	return out
}

func (m *MockSerialPort) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed
}
