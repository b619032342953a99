package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/zpw/internal/api"
	"github.com/matheus3301/zpw/internal/status"
	"github.com/matheus3301/zpw/internal/tui/model"
	"github.com/matheus3301/zpw/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar shows the session state, pending undos, key hints and the flash.
type StatusBar struct {
	*tview.TextView
	theme      *ui.Theme
	st         api.Status
	hints      []string
	flash      string
	flashLevel model.FlashLevel
}

func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	return &StatusBar{TextView: tv, theme: theme}
}

func (sb *StatusBar) SetStatus(st api.Status) {
	sb.st = st
	sb.render()
}

func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

func (sb *StatusBar) SetFlash(msg string, level model.FlashLevel) {
	sb.flash = msg
	sb.flashLevel = level
	sb.render()
}

// Line returns the rendered text including color tags.
func (sb *StatusBar) Line() string {
	stateColor := sb.theme.NotReadyColor
	if sb.st.State == string(status.Ready) {
		stateColor = sb.theme.ReadyColor
	}
	state := sb.st.State
	if state == "" {
		state = "CONNECTING"
	}

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s%s[-] | pending %d | %s",
		sb.st.Session, ui.Tag(stateColor), state, sb.st.PendingUndos, time.Now().Format("15:04"))
	if len(sb.hints) > 0 {
		line += " | " + strings.Join(sb.hints, " ")
	}
	if sb.flash != "" {
		color := sb.theme.FlashInfoColor
		if sb.flashLevel == model.FlashErr {
			color = sb.theme.FlashErrColor
		}
		line += " | " + ui.Tag(color) + tview.Escape(sb.flash) + "[-]"
	}
	return line
}

func (sb *StatusBar) render() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, sb.Line())
}
