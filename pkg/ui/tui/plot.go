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


package tui

import (
	"math"
	"strconv"

	"github.com/gdamore/tcell/v2"
	"github.com/ppgscope/ppgscope/pkg/sinks/display"
	"github.com/rivo/tview"
)

const (
	labelWidth = 10
	traceRune  = '•'
	joinRune   = '│'
)

// Plot draws the rolling window as a single trace scaled to fit its inner
// rect. The value axis sits on the left and the time axis on the bottom row.
type Plot struct {
	*tview.Box
	source func() []display.Point
}

func NewPlot(source func() []display.Point) *Plot {
	p := &Plot{
		Box:    tview.NewBox(),
		source: source,
	}
	p.SetBorder(true).SetTitle(" PPG Signal ")
	return p
}

// trace is the window mapped onto a grid, one row per column.
type trace struct {
	rows   []int
	lo     float64
	hi     float64
	start  float64
	end    float64
	points int
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// rasterize scales points into a width x height grid. Row 0 is the top.
// Columns no point lands in hold -1. When several points share a column
// the latest one wins. Non-finite points are skipped.
func rasterize(points []display.Point, width, height int) trace {
	var tr trace
	if width <= 0 || height <= 0 {
		return tr
	}

	tr.rows = make([]int, width)
	for i := range tr.rows {
		tr.rows[i] = -1
	}

	for _, p := range points {
		if !finite(p.Value) || !finite(p.RelativeTime) {
			continue
		}
		if tr.points == 0 {
			tr.lo, tr.hi = p.Value, p.Value
			tr.start, tr.end = p.RelativeTime, p.RelativeTime
		} else {
			tr.lo = min(tr.lo, p.Value)
			tr.hi = max(tr.hi, p.Value)
			tr.start = min(tr.start, p.RelativeTime)
			tr.end = max(tr.end, p.RelativeTime)
		}
		tr.points++
	}
	if tr.points == 0 {
		return tr
	}

	for _, p := range points {
		if !finite(p.Value) || !finite(p.RelativeTime) {
			continue
		}

		col := 0
		if tr.end > tr.start {
			col = int((p.RelativeTime - tr.start) / (tr.end - tr.start) * float64(width-1))
		}
		col = max(0, min(width-1, col))

		row := height / 2
		if tr.hi > tr.lo {
			row = int(math.Round((tr.hi - p.Value) / (tr.hi - tr.lo) * float64(height-1)))
		}
		tr.rows[col] = max(0, min(height-1, row))
	}

	return tr
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "s"
}

// Draw implements tview.Primitive.
func (p *Plot) Draw(screen tcell.Screen) {
	p.DrawForSubclass(screen, p)

	x, y, width, height := p.GetInnerRect()
	theme := CurrentTheme()

	plotWidth := width - labelWidth
	plotHeight := height - 1
	if plotWidth <= 0 || plotHeight <= 0 {
		return
	}

	var points []display.Point
	if p.source != nil {
		points = p.source()
	}
	tr := rasterize(points, plotWidth, plotHeight)
	if tr.points == 0 {
		tview.Print(screen, "waiting for samples", x, y+height/2, width, tview.AlignCenter,
			theme.SecondaryTextColor)
		return
	}

	axisStyle := tcell.StyleDefault.
		Background(theme.PrimitiveBackgroundColor).
		Foreground(theme.AxisColor)
	for row := range plotHeight {
		screen.SetContent(x+labelWidth-1, y+row, joinRune, nil, axisStyle)
	}
	tview.Print(screen, formatValue(tr.hi), x, y, labelWidth-1, tview.AlignRight, theme.AxisColor)
	tview.Print(screen, formatValue(tr.lo), x, y+plotHeight-1, labelWidth-1, tview.AlignRight,
		theme.AxisColor)
	tview.Print(screen, formatSeconds(tr.start), x+labelWidth, y+plotHeight, plotWidth, tview.AlignLeft,
		theme.AxisColor)
	tview.Print(screen, formatSeconds(tr.end), x+labelWidth, y+plotHeight, plotWidth, tview.AlignRight,
		theme.AxisColor)

	traceStyle := tcell.StyleDefault.
		Background(theme.PrimitiveBackgroundColor).
		Foreground(theme.TraceColor)
	prev := -1
	for col, row := range tr.rows {
		if row < 0 {
			continue
		}
		if prev >= 0 {
			for r := min(prev, row) + 1; r < max(prev, row); r++ {
				screen.SetContent(x+labelWidth+col, y+r, joinRune, nil, traceStyle)
			}
		}
		screen.SetContent(x+labelWidth+col, y+row, traceRune, nil, traceStyle)
		prev = row
	}
}
