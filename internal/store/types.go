package store

import "github.com/matheus3301/zpw/internal/message"

// Message status values.
const (
	StatusSent   = "sent"
	StatusUndone = "undone"
)

// Undo request status values.
const (
	UndoQueued  = "queued"
	UndoSending = "sending"
	UndoDone    = "done"
	UndoFailed  = "failed"
)

// Message is a sent message tracked so it can be undone later.
type Message struct {
	ID          int64
	ThreadID    string
	Kind        message.Kind
	GlobalMsgID string
	CliMsgID    string
	Body        string
	Status      string // sent, undone
	SentAt      int64
	UndoneAt    int64
}

// ToMessage rebuilds the typed message whose quote points at this record.
func (m *Message) ToMessage() (message.Message, error) {
	return message.New(m.Kind, m.ThreadID, message.Data{
		MsgID:     m.GlobalMsgID,
		CliMsgID:  m.CliMsgID,
		Content:   m.Body,
		Timestamp: m.SentAt,
		Quote: &message.Quote{
			GlobalMsgID: m.GlobalMsgID,
			CliMsgID:    m.CliMsgID,
			Text:        m.Body,
			Timestamp:   m.SentAt,
		},
	})
}

// UndoRequest is a queued asynchronous undo.
type UndoRequest struct {
	ID           int64
	RequestID    string
	GlobalMsgID  string
	Status       string // queued, sending, done, failed
	ResultStatus int
	ErrorMessage string
	CreatedAt    int64
	UpdatedAt    int64
}
