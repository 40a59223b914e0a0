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

// Package telemetry keeps local pipeline counters. Nothing is exported over
// the network; values are read back for the status line and the shutdown
// summary.
package telemetry

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const namespace = "ppgscope"

// Pipeline groups the counters updated by each pipeline stage. All
// counters are registered on a private registry so several pipelines (as
// in tests) never collide.
type Pipeline struct {
	registry       *prometheus.Registry
	LinesRead      prometheus.Counter
	SamplesParsed  prometheus.Counter
	Diagnostics    prometheus.Counter
	CommandsSent   prometheus.Counter
	ReadErrors     prometheus.Counter
	WriteErrors    prometheus.Counter
	RecordsWritten prometheus.Counter
	PersistErrors  prometheus.Counter
	SamplesShown   prometheus.Counter
}

func NewPipeline() *Pipeline {
	counter := func(subsystem, name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}

	p := &Pipeline{
		registry:       prometheus.NewRegistry(),
		LinesRead:      counter("serial", "lines_read_total", "Non-blank lines received from the device."),
		SamplesParsed:  counter("serial", "samples_total", "Lines classified as samples."),
		Diagnostics:    counter("serial", "diagnostics_total", "Diagnostics emitted by the serial link."),
		CommandsSent:   counter("serial", "commands_sent_total", "Commands written to the device."),
		ReadErrors:     counter("serial", "read_errors_total", "Failed device reads."),
		WriteErrors:    counter("serial", "write_errors_total", "Failed device writes."),
		RecordsWritten: counter("persist", "records_total", "Samples written to the record stream."),
		PersistErrors:  counter("persist", "errors_total", "Failed record writes."),
		SamplesShown:   counter("display", "samples_total", "Samples added to the rolling window."),
	}

	p.registry.MustRegister(
		p.LinesRead,
		p.SamplesParsed,
		p.Diagnostics,
		p.CommandsSent,
		p.ReadErrors,
		p.WriteErrors,
		p.RecordsWritten,
		p.PersistErrors,
		p.SamplesShown,
	)

	return p
}

// TrackQueue registers a gauge reporting the current depth of a queue.
func (p *Pipeline) TrackQueue(name string, length func() int) {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "queue",
		Name:        "depth",
		Help:        "Items waiting in a pipeline queue.",
		ConstLabels: prometheus.Labels{"queue": name},
	}, func() float64 {
		return float64(length())
	})
	if err := p.registry.Register(gauge); err != nil {
		log.Warn().Err(err).Str("queue", name).Msg("failed to register queue gauge")
	}
}

// Snapshot returns the current value of every counter and gauge keyed by
// metric name, with the queue label appended for queue gauges.
func (p *Pipeline) Snapshot() map[string]float64 {
	out := make(map[string]float64)

	families, err := p.registry.Gather()
	if err != nil {
		log.Warn().Err(err).Msg("failed to gather pipeline metrics")
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}

	return out
}

// LogSummary writes every metric at info level, sorted by name.
func (p *Pipeline) LogSummary() {
	snap := p.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ev := log.Info()
	for _, k := range keys {
		ev = ev.Float64(strings.TrimPrefix(k, namespace+"_"), snap[k])
	}
	ev.Msg("pipeline summary")
}
