package zpw

import (
	"context"
	"fmt"

	"github.com/matheus3301/zpw/internal/message"
	"go.uber.org/zap"
)

const (
	undoDirectPath = "/api/message/undo"
	undoGroupPath  = "/api/group/undomsg"
)

// UndoResponse is the service's answer to an undo request. Status values are
// defined by the service and are not interpreted here.
type UndoResponse struct {
	Status int `json:"status"`
}

// undoParams carries msgId and cliMsgIdUndo as JSON strings whatever the
// quote's original representation; the service accepts either form.
type undoParams struct {
	MsgID        string `json:"msgId"`
	ClientID     int64  `json:"clientId"`
	CliMsgIDUndo string `json:"cliMsgIdUndo"`
}

type directUndoParams struct {
	undoParams
	ToID string `json:"toid"`
}

type groupUndoParams struct {
	undoParams
	GroupID    string `json:"grid"`
	Visibility int    `json:"visibility"`
	IMEI       string `json:"imei"`
}

// Undo retracts a previously sent message identified by the quote reference
// carried on msg. clientId is taken from the wall clock and is only an
// ordering hint for the service, not a unique idempotency key.
func (c *Client) Undo(ctx context.Context, msg message.Message) (*UndoResponse, error) {
	var (
		path   string
		params any
	)
	switch m := msg.(type) {
	case *message.DirectMessage:
		if m == nil {
			return nil, &PreconditionError{Reason: "expected DirectMessage or GroupMessage, got: nil *message.DirectMessage"}
		}
		base, err := c.baseUndoParams(m.Data.Quote)
		if err != nil {
			return nil, err
		}
		path = undoDirectPath
		params = directUndoParams{undoParams: base, ToID: m.ThreadID}
	case *message.GroupMessage:
		if m == nil {
			return nil, &PreconditionError{Reason: "expected DirectMessage or GroupMessage, got: nil *message.GroupMessage"}
		}
		base, err := c.baseUndoParams(m.Data.Quote)
		if err != nil {
			return nil, err
		}
		path = undoGroupPath
		params = groupUndoParams{
			undoParams: base,
			GroupID:    m.ThreadID,
			Visibility: 0,
			IMEI:       c.session.IMEI,
		}
	default:
		return nil, &PreconditionError{Reason: fmt.Sprintf("expected DirectMessage or GroupMessage, got: %T", msg)}
	}

	base, err := c.endpoints.BaseURL(msg.Kind())
	if err != nil {
		return nil, err
	}
	endpoint, err := c.makeURL(base, path)
	if err != nil {
		return nil, err
	}

	var resp UndoResponse
	if err := c.call(ctx, endpoint, params, &resp); err != nil {
		return nil, err
	}
	c.logger.Debug("message undone",
		zap.Stringer("kind", msg.Kind()),
		zap.String("thread_id", msg.Thread()),
		zap.Int("status", resp.Status),
	)
	return &resp, nil
}

func (c *Client) baseUndoParams(q *message.Quote) (undoParams, error) {
	if q == nil {
		return undoParams{}, &PreconditionError{Reason: "message does not have quote"}
	}
	return undoParams{
		MsgID:        q.GlobalMsgID,
		ClientID:     c.now().UnixMilli(),
		CliMsgIDUndo: q.CliMsgID,
	}, nil
}
