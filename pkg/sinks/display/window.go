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

package display

// Point is a sample positioned relative to the first sample of the run.
type Point struct {
	RelativeTime float64
	Value        float64
}

// Window is a fixed-capacity ring of points. Appending to a full window
// evicts the oldest point.
type Window struct {
	points []Point
	head   int
	size   int
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{points: make([]Point, capacity)}
}

func (w *Window) Append(p Point) {
	c := len(w.points)
	w.points[(w.head+w.size)%c] = p
	if w.size < c {
		w.size++
		return
	}
	w.head = (w.head + 1) % c
}

func (w *Window) Len() int {
	return w.size
}

func (w *Window) Cap() int {
	return len(w.points)
}

// Points copies the window contents, oldest first.
func (w *Window) Points() []Point {
	out := make([]Point, w.size)
	c := len(w.points)
	for i := range w.size {
		out[i] = w.points[(w.head+i)%c]
	}
	return out
}
