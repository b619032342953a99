package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/zpw/internal/tui/ui"
)

func tcellStyle(theme *ui.Theme) tcell.Style {
	return tcell.StyleDefault.Foreground(theme.TableCursorFg).Background(theme.TableCursorBg)
}
