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

package ppgserial

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ppgscope/ppgscope/internal/telemetry"
	"github.com/ppgscope/ppgscope/pkg/ppg"
	"github.com/ppgscope/ppgscope/pkg/readers/testutils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testHandshake = []ppg.Command{
	{Text: "samplingRate=3200"},
	{Text: "sampleAverage=1"},
	{Text: "pulseWidth=18"},
}

func testOptions(port *testutils.MockSerialPort) Options {
	return Options{
		PortFactory: port.Factory(nil),
		Path:        "/dev/ttyACM0",
		BaudRate:    DefaultBaudRate,
		GraceDelay:  time.Millisecond,
		Metrics:     telemetry.NewPipeline(),
	}
}

// startLink runs the link in the background and returns a stop function
// that cancels it and waits for Run to return.
func startLink(t *testing.T, l *Link) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Run(ctx)
	}()

	return func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("link did not stop")
			return nil
		}
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestOpen_FactoryError(t *testing.T) {
	t.Parallel()

	opts := testOptions(testutils.NewMockSerialPort())
	opts.PortFactory = func(string, *serial.Mode) (testutils.SerialPort, error) {
		return nil, errors.New("no such device")
	}

	l, err := Open(opts, ppg.NewQueues())
	require.Error(t, err)
	assert.Nil(t, l)
	require.ErrorIs(t, err, ErrOpen)
	assert.Contains(t, err.Error(), "/dev/ttyACM0")
	assert.Contains(t, err.Error(), "no such device")
}

func TestOpen_ReadTimeoutError(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	port.TimeoutErr = errors.New("ioctl failed")

	l, err := Open(testOptions(port), ppg.NewQueues())
	require.ErrorIs(t, err, ErrOpen)
	assert.Nil(t, l)
	assert.True(t, port.IsClosed(), "port must be released when setup fails")
}

func TestOpen_ModeAndHandshake(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	port.Responses["samplingRate=3200"] = "samplingRate Updated\n"
	port.Responses["pulseWidth=18"] = "SUCCESS\r\n"

	var mode *serial.Mode
	opts := testOptions(port)
	opts.PortFactory = port.Factory(&mode)
	opts.Handshake = testHandshake

	q := ppg.NewQueues()
	l, err := Open(opts, q)
	require.NoError(t, err)
	t.Cleanup(func() { _ = port.Close() })

	require.NotNil(t, mode)
	assert.Equal(t, 115200, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.NoParity, mode.Parity)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)

	assert.Equal(t, []string{
		"samplingRate=3200\n",
		"sampleAverage=1\n",
		"pulseWidth=18\n",
	}, port.Writes())

	assert.Equal(t, StateRunning, l.State())
	assert.Equal(t, "/dev/ttyACM0", l.Path())

	diags := testutils.DrainDiagnostics(q)
	assert.Equal(t, []string{
		"serial port now open: /dev/ttyACM0",
		"sending command: samplingRate=3200",
		"samplingRate Updated",
		"sending command: sampleAverage=1",
		"sending command: pulseWidth=18",
		"SUCCESS",
	}, diags)
	assert.Equal(t, 0, q.Persist.Len())
}

func TestOpen_HandshakeResponsesAreDiagnostics(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	port.Responses["samplingRate=3200"] = "1.5,200\nsamplingRate Updated\n"

	opts := testOptions(port)
	opts.Handshake = testHandshake

	q := ppg.NewQueues()
	l, err := Open(opts, q)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"serial port now open: /dev/ttyACM0",
		"sending command: samplingRate=3200",
		"1.5,200",
		"samplingRate Updated",
		"sending command: sampleAverage=1",
		"sending command: pulseWidth=18",
	}, testutils.DrainDiagnostics(q))
	assert.Equal(t, 0, q.Persist.Len())
	assert.Equal(t, 0, q.Display.Len())
	assert.InDelta(t, 0, testutil.ToFloat64(opts.Metrics.SamplesParsed), 0)

	// sample lines go back to the data path once the drain is over
	stop := startLink(t, l)
	port.Feed("2.5,300\n")
	testutils.AwaitLen(t, q.Persist.Len, 1, 2*time.Second)
	require.NoError(t, stop())
	assert.Equal(t, []ppg.Sample{{Timestamp: 2.5, Value: 300}}, testutils.DrainSamples(q))
}

func TestOpen_DefaultBaudRate(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	var mode *serial.Mode
	opts := testOptions(port)
	opts.PortFactory = port.Factory(&mode)
	opts.BaudRate = 0

	_, err := Open(opts, ppg.NewQueues())
	require.NoError(t, err)
	require.NotNil(t, mode)
	assert.Equal(t, DefaultBaudRate, mode.BaudRate)
}

func TestSendCommand_WriteError(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	opts := testOptions(port)
	q := ppg.NewQueues()
	l, err := Open(opts, q)
	require.NoError(t, err)
	testutils.DrainDiagnostics(q)

	port.WriteError = errors.New("device busy")
	err = l.SendCommand(ppg.Command{Text: "ledOff"})
	require.ErrorIs(t, err, ErrWrite)

	diags := testutils.DrainDiagnostics(q)
	require.Len(t, diags, 2)
	assert.Equal(t, "sending command: ledOff", diags[0])
	assert.Contains(t, diags[1], "device busy")
	assert.Contains(t, diags[1], "ledOff")
	assert.InDelta(t, 1.0, testutil.ToFloat64(opts.Metrics.WriteErrors), 0)
	assert.Equal(t, StateRunning, l.State(), "write errors are not fatal")
}

func TestRun_ScenarioA_SampleFannedOut(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	q := ppg.NewQueues()
	l, err := Open(testOptions(port), q)
	require.NoError(t, err)
	testutils.DrainDiagnostics(q)

	stop := startLink(t, l)
	port.Feed("1.234,567.8\n")

	testutils.AwaitLen(t, q.Display.Len, 1, 2*time.Second)
	require.NoError(t, stop())

	samples := testutils.DrainSamples(q)
	require.Len(t, samples, 1)
	assert.Equal(t, ppg.Sample{Timestamp: 1.234, Value: 567.8}, samples[0])

	shown, ok := q.Display.TryPop()
	require.True(t, ok)
	assert.Equal(t, ppg.Sample{Timestamp: 1.234, Value: 567.8}, shown)

	for _, d := range testutils.DrainDiagnostics(q) {
		assert.NotContains(t, d, "567.8")
	}
}

func TestRun_ScenarioBC_Diagnostics(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	q := ppg.NewQueues()
	l, err := Open(testOptions(port), q)
	require.NoError(t, err)
	testutils.DrainDiagnostics(q)

	stop := startLink(t, l)
	port.Feed("garbage\n1,2,3\n")

	testutils.AwaitLen(t, q.Diagnostics.Len, 2, 2*time.Second)
	require.NoError(t, stop())

	diags := testutils.DrainDiagnostics(q)
	require.GreaterOrEqual(t, len(diags), 2)
	assert.Equal(t, "garbage", diags[0])
	assert.Equal(t, "1,2,3", diags[1])
	assert.Equal(t, 0, q.Persist.Len())
	assert.Equal(t, 0, q.Display.Len())
}

func TestRun_LinesSplitAcrossReads(t *testing.T) {
	t.Parallel()

	chunks := []string{"0.1,1", "0\r\n0.2,", "20\n\n", "0.3,30\n"}
	port := testutils.NewMockSerialPort()
	q := ppg.NewQueues()
	l, err := Open(testOptions(port), q)
	require.NoError(t, err)
	testutils.DrainDiagnostics(q)

	idx := 0
	port.ReadFunc = func(p []byte) (int, error) {
		if idx >= len(chunks) {
			time.Sleep(2 * time.Millisecond)
			return 0, nil
		}
		n := copy(p, chunks[idx])
		idx++
		return n, nil
	}

	stop := startLink(t, l)
	testutils.AwaitLen(t, q.Persist.Len, 3, 2*time.Second)
	require.NoError(t, stop())

	assert.Equal(t, []ppg.Sample{
		{Timestamp: 0.1, Value: 10},
		{Timestamp: 0.2, Value: 20},
		{Timestamp: 0.3, Value: 30},
	}, testutils.DrainSamples(q))
}

func TestRun_ForwardsQueuedCommands(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	port.Responses["ledBrightness=40"] = "ledBrightness Updated\n"
	q := ppg.NewQueues()
	l, err := Open(testOptions(port), q)
	require.NoError(t, err)
	testutils.DrainDiagnostics(q)

	stop := startLink(t, l)
	q.Commands.Push(ppg.Command{Text: "ledBrightness=40"})
	q.Commands.Push(ppg.Command{Text: "status"})

	require.Eventually(t, func() bool {
		return len(port.Writes()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	testutils.AwaitLen(t, q.Diagnostics.Len, 3, 2*time.Second)
	require.NoError(t, stop())

	assert.Equal(t, []string{"ledBrightness=40\n", "status\n"}, port.Writes())
	diags := testutils.DrainDiagnostics(q)
	assert.Contains(t, diags, "ledBrightness Updated")
	assert.Equal(t, 0, q.Commands.Len())
}

func TestRun_ReadErrorIsRecoverable(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	opts := testOptions(port)
	q := ppg.NewQueues()
	l, err := Open(opts, q)
	require.NoError(t, err)
	testutils.DrainDiagnostics(q)

	port.SetReadError(errors.New("framing error"))
	stop := startLink(t, l)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(opts.Metrics.ReadErrors) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	port.SetReadError(nil)
	port.Feed("5,6\n")
	testutils.AwaitLen(t, q.Persist.Len, 1, 2*time.Second)
	require.NoError(t, stop())

	diags := testutils.DrainDiagnostics(q)
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0], "framing error")
	assert.Contains(t, diags[0], ErrRead.Error())
}

func TestRun_PortClosedTerminates(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	q := ppg.NewQueues()
	l, err := Open(testOptions(port), q)
	require.NoError(t, err)
	testutils.DrainDiagnostics(q)

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Run(context.Background())
	}()

	require.NoError(t, port.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrRead)
	case <-time.After(2 * time.Second):
		t.Fatal("link kept running after port closed")
	}

	<-l.Done()
	assert.Equal(t, StateClosed, l.State())
	diags := testutils.DrainDiagnostics(q)
	require.Len(t, diags, 2)
	assert.True(t, strings.HasPrefix(diags[0], "serial port closed unexpectedly"))
	assert.Equal(t, "serial port closed: /dev/ttyACM0", diags[1])
}

func TestRun_StopClosesPort(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	q := ppg.NewQueues()
	l, err := Open(testOptions(port), q)
	require.NoError(t, err)
	testutils.DrainDiagnostics(q)

	stop := startLink(t, l)
	require.NoError(t, stop())

	select {
	case <-l.Done():
	default:
		t.Fatal("done channel not closed after Run returned")
	}
	assert.True(t, port.IsClosed())
	assert.Equal(t, StateClosed, l.State())
	assert.Equal(t, []string{"serial port closed: /dev/ttyACM0"}, testutils.DrainDiagnostics(q))
}

func TestRun_OverlongLineDiscarded(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	q := ppg.NewQueues()
	l, err := Open(testOptions(port), q)
	require.NoError(t, err)
	testutils.DrainDiagnostics(q)

	stop := startLink(t, l)
	port.Feed(strings.Repeat("9", maxLineLength+10) + "\n7,8\n")
	testutils.AwaitLen(t, q.Persist.Len, 1, 2*time.Second)
	require.NoError(t, stop())

	assert.Equal(t, []ppg.Sample{{Timestamp: 7, Value: 8}}, testutils.DrainSamples(q))
	diags := testutils.DrainDiagnostics(q)
	require.NotEmpty(t, diags)
	assert.Equal(t, "discarded line longer than 4096 bytes", diags[0])
}

func TestMetricsCountSamplesAndDiagnostics(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	opts := testOptions(port)
	q := ppg.NewQueues()
	l, err := Open(opts, q)
	require.NoError(t, err)

	stop := startLink(t, l)
	port.Feed("1,1\n2,2\nhello\n")
	testutils.AwaitLen(t, q.Persist.Len, 2, 2*time.Second)
	require.NoError(t, stop())

	assert.InDelta(t, 3.0, testutil.ToFloat64(opts.Metrics.LinesRead), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(opts.Metrics.SamplesParsed), 0)
}

func TestClose_WithoutRun(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	l, err := Open(testOptions(port), ppg.NewQueues())
	require.NoError(t, err)

	require.NoError(t, l.Close())
	assert.True(t, port.IsClosed())
	assert.Equal(t, StateClosed, l.State())
}

func TestClose_Error(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	port.CloseError = errors.New("device busy")
	l, err := Open(testOptions(port), ppg.NewQueues())
	require.NoError(t, err)

	err = l.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")
}
