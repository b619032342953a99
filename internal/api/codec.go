package api

import (
	"encoding/json"
	"time"

	"github.com/matheus3301/zpw/internal/bus"
	"github.com/matheus3301/zpw/internal/message"
	"github.com/matheus3301/zpw/internal/store"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Status is the GetStatus response.
type Status struct {
	Session      string
	State        string
	UptimeMs     int64
	MessageCount int64
	PendingUndos int64
}

// UndoResult is the Undo response.
type UndoResult struct {
	RequestID   string
	GlobalMsgID string
	Status      int
}

// Event is one WatchEvents item. Payload keeps the JSON shape of the bus payload.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   map[string]any
}

// Field readers. Numbers travel as float64 on the wire.

func getString(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func getInt(s *structpb.Struct, key string) int64 {
	return int64(s.GetFields()[key].GetNumberValue())
}

func getStruct(s *structpb.Struct, key string) *structpb.Struct {
	return s.GetFields()[key].GetStructValue()
}

// EncodeStatus builds {session, state, uptime_ms, message_count, pending_undos}.
func EncodeStatus(st Status) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"session":       st.Session,
		"state":         st.State,
		"uptime_ms":     st.UptimeMs,
		"message_count": st.MessageCount,
		"pending_undos": st.PendingUndos,
	})
}

func DecodeStatus(s *structpb.Struct) Status {
	return Status{
		Session:      getString(s, "session"),
		State:        getString(s, "state"),
		UptimeMs:     getInt(s, "uptime_ms"),
		MessageCount: getInt(s, "message_count"),
		PendingUndos: getInt(s, "pending_undos"),
	}
}

func messageFields(m *store.Message) map[string]any {
	return map[string]any{
		"thread_id":     m.ThreadID,
		"kind":          m.Kind.String(),
		"global_msg_id": m.GlobalMsgID,
		"cli_msg_id":    m.CliMsgID,
		"body":          m.Body,
		"status":        m.Status,
		"sent_at":       m.SentAt,
		"undone_at":     m.UndoneAt,
	}
}

// EncodeMessage builds a tracked message object. It doubles as the
// TrackMessage request.
func EncodeMessage(m *store.Message) (*structpb.Struct, error) {
	return structpb.NewStruct(messageFields(m))
}

// DecodeMessage reads a message object. An unknown kind is an error.
func DecodeMessage(s *structpb.Struct) (*store.Message, error) {
	kind, err := message.ParseKind(getString(s, "kind"))
	if err != nil {
		return nil, err
	}
	return &store.Message{
		ThreadID:    getString(s, "thread_id"),
		Kind:        kind,
		GlobalMsgID: getString(s, "global_msg_id"),
		CliMsgID:    getString(s, "cli_msg_id"),
		Body:        getString(s, "body"),
		Status:      getString(s, "status"),
		SentAt:      getInt(s, "sent_at"),
		UndoneAt:    getInt(s, "undone_at"),
	}, nil
}

// EncodeMessages builds {messages: [...]}.
func EncodeMessages(msgs []store.Message) (*structpb.Struct, error) {
	list := make([]any, 0, len(msgs))
	for i := range msgs {
		list = append(list, messageFields(&msgs[i]))
	}
	return structpb.NewStruct(map[string]any{"messages": list})
}

func DecodeMessages(s *structpb.Struct) ([]store.Message, error) {
	values := s.GetFields()["messages"].GetListValue().GetValues()
	msgs := make([]store.Message, 0, len(values))
	for _, v := range values {
		m, err := DecodeMessage(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, nil
}

func EncodeUndoResult(r UndoResult) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"request_id":    r.RequestID,
		"global_msg_id": r.GlobalMsgID,
		"status":        r.Status,
	})
}

func DecodeUndoResult(s *structpb.Struct) UndoResult {
	return UndoResult{
		RequestID:   getString(s, "request_id"),
		GlobalMsgID: getString(s, "global_msg_id"),
		Status:      int(getInt(s, "status")),
	}
}

// EncodeUndoRequest builds {request: {...}}.
func EncodeUndoRequest(r *store.UndoRequest) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"request": map[string]any{
			"request_id":    r.RequestID,
			"global_msg_id": r.GlobalMsgID,
			"status":        r.Status,
			"result_status": r.ResultStatus,
			"error":         r.ErrorMessage,
			"created_at":    r.CreatedAt,
			"updated_at":    r.UpdatedAt,
		},
	})
}

func DecodeUndoRequest(s *structpb.Struct) *store.UndoRequest {
	r := getStruct(s, "request")
	return &store.UndoRequest{
		RequestID:    getString(r, "request_id"),
		GlobalMsgID:  getString(r, "global_msg_id"),
		Status:       getString(r, "status"),
		ResultStatus: int(getInt(r, "result_status")),
		ErrorMessage: getString(r, "error"),
		CreatedAt:    getInt(r, "created_at"),
		UpdatedAt:    getInt(r, "updated_at"),
	}
}

// EncodeEvent builds {id, kind, timestamp_ms, payload}. The payload is the
// JSON form of the bus payload; non-object payloads land under "value".
func EncodeEvent(evt bus.Event) (*structpb.Struct, error) {
	payload := &structpb.Struct{}
	if evt.Payload != nil {
		raw, err := json.Marshal(evt.Payload)
		if err != nil {
			return nil, err
		}
		if err := protojson.Unmarshal(raw, payload); err != nil {
			v := &structpb.Value{}
			if err := protojson.Unmarshal(raw, v); err != nil {
				return nil, err
			}
			payload = &structpb.Struct{Fields: map[string]*structpb.Value{"value": v}}
		}
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":           structpb.NewStringValue(evt.ID),
		"kind":         structpb.NewStringValue(evt.Kind),
		"timestamp_ms": structpb.NewNumberValue(float64(evt.Timestamp.UnixMilli())),
		"payload":      structpb.NewStructValue(payload),
	}}, nil
}

func DecodeEvent(s *structpb.Struct) Event {
	return Event{
		ID:        getString(s, "id"),
		Kind:      getString(s, "kind"),
		Timestamp: time.UnixMilli(getInt(s, "timestamp_ms")),
		Payload:   getStruct(s, "payload").AsMap(),
	}
}
