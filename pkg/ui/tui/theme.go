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
	"github.com/gdamore/tcell/v2"
	"github.com/ppgscope/ppgscope/pkg/helpers/syncutil"
	"github.com/rivo/tview"
)

// Theme defines all colors used in the TUI.
type Theme struct {
	Name                     string
	DisplayName              string
	AccentColorName          string
	ErrorColorName           string
	PrimitiveBackgroundColor tcell.Color
	ContrastBackgroundColor  tcell.Color
	BorderColor              tcell.Color
	PrimaryTextColor         tcell.Color
	SecondaryTextColor       tcell.Color
	InverseTextColor         tcell.Color
	FieldFocusedBg           tcell.Color
	TraceColor               tcell.Color
	AxisColor                tcell.Color
}

// ThemeDefault is the dark blue/yellow theme.
var ThemeDefault = Theme{
	Name:        "default",
	DisplayName: "Default (Dark Blue)",

	PrimitiveBackgroundColor: tcell.ColorDarkBlue,
	ContrastBackgroundColor:  tcell.ColorBlue,
	BorderColor:              tcell.ColorLightYellow,
	PrimaryTextColor:         tcell.ColorWhite,
	SecondaryTextColor:       tcell.ColorGray,
	InverseTextColor:         tcell.ColorDarkBlue,
	FieldFocusedBg:           tcell.ColorBlue,

	AccentColorName: "yellow",
	ErrorColorName:  "red",

	TraceColor: tcell.ColorLightGreen,
	AxisColor:  tcell.ColorGray,
}

// ThemeHighContrast uses true black background with bright yellow for accessibility.
var ThemeHighContrast = Theme{
	Name:        "high_contrast",
	DisplayName: "High Contrast",

	PrimitiveBackgroundColor: tcell.NewHexColor(0x000000),
	ContrastBackgroundColor:  tcell.NewHexColor(0x000000),
	BorderColor:              tcell.ColorYellow,
	PrimaryTextColor:         tcell.ColorWhite,
	SecondaryTextColor:       tcell.ColorWhite,
	InverseTextColor:         tcell.NewHexColor(0x000000),
	FieldFocusedBg:           tcell.ColorYellow,

	AccentColorName: "yellow",
	ErrorColorName:  "red",

	TraceColor: tcell.ColorYellow,
	AxisColor:  tcell.ColorWhite,
}

// AvailableThemes maps theme names to themes.
var AvailableThemes = map[string]*Theme{
	ThemeDefault.Name:      &ThemeDefault,
	ThemeHighContrast.Name: &ThemeHighContrast,
}

var (
	currentTheme = &ThemeDefault
	themeMu      syncutil.RWMutex
)

// CurrentTheme returns the currently active theme.
func CurrentTheme() *Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

// SetCurrentTheme sets the current theme by name.
// Returns false if the theme name is not found.
func SetCurrentTheme(name string) bool {
	theme, ok := AvailableThemes[name]
	if !ok {
		return false
	}
	themeMu.Lock()
	currentTheme = theme
	themeMu.Unlock()
	ApplyTheme(theme)
	return true
}

// ApplyTheme applies the given theme to tview's global styles.
func ApplyTheme(theme *Theme) {
	tview.Styles.PrimitiveBackgroundColor = theme.PrimitiveBackgroundColor
	tview.Styles.ContrastBackgroundColor = theme.ContrastBackgroundColor
	tview.Styles.BorderColor = theme.BorderColor
	tview.Styles.PrimaryTextColor = theme.PrimaryTextColor
	tview.Styles.SecondaryTextColor = theme.SecondaryTextColor
	tview.Styles.InverseTextColor = theme.InverseTextColor
}
