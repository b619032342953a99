package views

import (
	"strings"
	"time"

	"github.com/matheus3301/zpw/internal/store"
	"github.com/matheus3301/zpw/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageList is the tracked-message table.
type MessageList struct {
	*tview.Table
	theme    *ui.Theme
	messages []store.Message
}

// NewMessageList creates the table.
func NewMessageList(theme *ui.Theme) *MessageList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Sent messages ")
	table.SetSelectedStyle(tcellStyle(theme))

	return &MessageList{Table: table, theme: theme}
}

// Update replaces the rows, keeping the cursor on the same message when it is
// still listed.
func (ml *MessageList) Update(msgs []store.Message, thread string) {
	keep := ""
	if sel := ml.Selected(); sel != nil {
		keep = sel.GlobalMsgID
	}

	ml.messages = msgs
	ml.Clear()

	title := " Sent messages "
	if thread != "" {
		title = " Sent messages: " + thread + " "
	}
	ml.SetTitle(title)

	for col, h := range []string{"ID", "Kind", "Thread", "Status", "Sent", "Text"} {
		ml.SetCell(0, col, tview.NewTableCell(" "+h).
			SetSelectable(false).
			SetTextColor(ml.theme.TableHeaderFg))
	}

	selectRow := 1
	for i, m := range msgs {
		row := i + 1
		color := tview.Styles.PrimaryTextColor
		if m.Status == store.StatusUndone {
			color = ml.theme.UndoneFg
		}
		cells := []string{m.GlobalMsgID, m.Kind.String(), m.ThreadID, m.Status, formatTimestamp(m.SentAt), preview(m.Body)}
		for col, text := range cells {
			cell := tview.NewTableCell(" " + text).SetTextColor(color)
			if col == len(cells)-1 {
				cell.SetExpansion(1)
			}
			ml.SetCell(row, col, cell)
		}
		if m.GlobalMsgID == keep {
			selectRow = row
		}
	}
	if len(msgs) > 0 {
		ml.Select(selectRow, 0)
	}
}

// Selected returns the message under the cursor, or nil.
func (ml *MessageList) Selected() *store.Message {
	row, _ := ml.GetSelection()
	idx := row - 1 // header
	if idx >= 0 && idx < len(ml.messages) {
		m := ml.messages[idx]
		return &m
	}
	return nil
}

func preview(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	r := []rune(body)
	if len(r) > 60 {
		return string(r[:59]) + "…"
	}
	return body
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04:05")
	}
	return t.Format("01/02 15:04")
}
