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

package ppg

import (
	"strconv"
	"strings"
)

type EventKind int

const (
	EventSample EventKind = iota + 1
	EventDiagnostic
)

func (k EventKind) String() string {
	switch k {
	case EventSample:
		return "sample"
	case EventDiagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

// Event is a classified line. Sample is only set for EventSample and Text
// only for EventDiagnostic.
type Event struct {
	Text   string
	Sample Sample
	Kind   EventKind
}

// ParseLine classifies one line received from the device. Lines of the
// form "<timestamp>,<value>" where both fields are floats become samples,
// any other non-blank line becomes a diagnostic carrying the line as given.
// Blank lines produce no event.
func ParseLine(line string) (Event, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Event{}, false
	}

	fields := strings.Split(trimmed, ",")
	if len(fields) == 2 {
		ts, tsErr := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		val, valErr := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if tsErr == nil && valErr == nil {
			return Event{
				Kind:   EventSample,
				Sample: Sample{Timestamp: ts, Value: val},
			}, true
		}
	}

	return Event{
		Kind: EventDiagnostic,
		Text: line,
	}, true
}
