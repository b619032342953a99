package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Theme holds the TUI colors.
type Theme struct {
	BorderColor    tcell.Color
	TitleColor     tcell.Color
	TableHeaderFg  tcell.Color
	TableCursorFg  tcell.Color
	TableCursorBg  tcell.Color
	UndoneFg       tcell.Color
	ReadyColor     tcell.Color
	NotReadyColor  tcell.Color
	FlashInfoColor tcell.Color
	FlashErrColor  tcell.Color
}

// DefaultTheme returns a k9s-inspired dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BorderColor:    tcell.ColorDodgerBlue,
		TitleColor:     tcell.ColorFuchsia,
		TableHeaderFg:  tcell.ColorWhite,
		TableCursorFg:  tcell.ColorBlack,
		TableCursorBg:  tcell.ColorAqua,
		UndoneFg:       tcell.ColorGray,
		ReadyColor:     tcell.ColorGreen,
		NotReadyColor:  tcell.ColorOrange,
		FlashInfoColor: tcell.ColorNavajoWhite,
		FlashErrColor:  tcell.ColorOrangeRed,
	}
}

// Apply installs the theme into tview's global styles.
func (t *Theme) Apply() {
	tview.Styles.BorderColor = t.BorderColor
	tview.Styles.TitleColor = t.TitleColor
	tview.Styles.SecondaryTextColor = t.TableHeaderFg
}

// Tag formats c as a tview color tag, e.g. "[#ff4500]".
func Tag(c tcell.Color) string {
	return "[" + c.CSS() + "]"
}
