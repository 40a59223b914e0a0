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

// Package testutils provides serial port mocks and queue assertions shared
// by pipeline tests.
package testutils

import (
	"testing"
	"time"

	"github.com/ppgscope/ppgscope/pkg/ppg"
	"github.com/stretchr/testify/require"
)

// AwaitLen waits until the queue length reported by length reaches n.
func AwaitLen(t *testing.T, length func() int, n int, timeout time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		return length() >= n
	}, timeout, 5*time.Millisecond, "expected at least %d queued items", n)
}

// DrainDiagnostics pops every queued diagnostic and returns their texts.
func DrainDiagnostics(q *ppg.Queues) []string {
	var out []string
	for {
		d, ok := q.Diagnostics.TryPop()
		if !ok {
			return out
		}
		out = append(out, d.Text)
	}
}

// DrainSamples pops every sample queued for persistence.
func DrainSamples(q *ppg.Queues) []ppg.Sample {
	var out []ppg.Sample
	for {
		s, ok := q.Persist.TryPop()
		if !ok {
			return out
		}
		out = append(out, s)
	}
}
