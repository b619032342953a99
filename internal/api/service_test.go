package api

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/zpw/internal/bus"
	"github.com/matheus3301/zpw/internal/message"
	"github.com/matheus3301/zpw/internal/status"
	"github.com/matheus3301/zpw/internal/store"
	"github.com/matheus3301/zpw/internal/zpw"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type stubUndoer struct {
	calls []message.Message
	err   error
}

func (s *stubUndoer) Undo(_ context.Context, msg message.Message) (*zpw.UndoResponse, error) {
	s.calls = append(s.calls, msg)
	if s.err != nil {
		return nil, s.err
	}
	return &zpw.UndoResponse{Status: 1}, nil
}

type stubReloader struct{ err error }

func (r stubReloader) Reload() error { return r.err }

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestService(t *testing.T, undoer *stubUndoer, ready bool) (*Service, *bus.Bus) {
	t.Helper()
	b := bus.New()
	m := status.NewMachine(b)
	if ready {
		if err := m.Transition(status.Ready); err != nil {
			t.Fatal(err)
		}
	}
	return NewService("main", m, testDB(t), b, undoer, stubReloader{}, nil), b
}

func req(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func track(t *testing.T, svc *Service, kind message.Kind, id string) {
	t.Helper()
	in, err := EncodeMessage(&store.Message{ThreadID: "t1", Kind: kind, GlobalMsgID: id, CliMsgID: "c" + id, Body: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.TrackMessage(context.Background(), in); err != nil {
		t.Fatal(err)
	}
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if got := grpcstatus.Code(err); got != code {
		t.Errorf("code = %s, want %s (err: %v)", got, code, err)
	}
}

func TestGetStatus(t *testing.T) {
	svc, _ := newTestService(t, &stubUndoer{}, true)
	track(t, svc, message.KindDirect, "1")

	out, err := svc.GetStatus(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	st := DecodeStatus(out)
	if st.Session != "main" || st.State != string(status.Ready) || st.MessageCount != 1 {
		t.Errorf("status = %+v", st)
	}
}

func TestTrackAndListMessages(t *testing.T) {
	svc, b := newTestService(t, &stubUndoer{}, false)
	ch, unsub := b.Subscribe(bus.KindMessageTracked, 10)
	defer unsub()

	track(t, svc, message.KindGroup, "42")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message.tracked")
	}

	out, err := svc.ListMessages(context.Background(), req(t, map[string]any{"thread_id": "t1"}))
	if err != nil {
		t.Fatal(err)
	}
	msgs, err := DecodeMessages(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Kind != message.KindGroup || msgs[0].CliMsgID != "c42" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestTrackMessageRejectsBadKind(t *testing.T) {
	svc, _ := newTestService(t, &stubUndoer{}, false)
	_, err := svc.TrackMessage(context.Background(), req(t, map[string]any{"kind": "broadcast", "global_msg_id": "1"}))
	wantCode(t, err, codes.InvalidArgument)
}

func TestUndoRequiresReady(t *testing.T) {
	undoer := &stubUndoer{}
	svc, _ := newTestService(t, undoer, false)
	track(t, svc, message.KindDirect, "1")

	_, err := svc.Undo(context.Background(), req(t, map[string]any{"global_msg_id": "1"}))
	wantCode(t, err, codes.Unavailable)
	if len(undoer.calls) != 0 {
		t.Error("undoer called while not ready")
	}
}

func TestUndoPublishesOutcome(t *testing.T) {
	undoer := &stubUndoer{}
	svc, b := newTestService(t, undoer, true)
	track(t, svc, message.KindDirect, "1")

	ch, unsub := b.Subscribe(bus.KindUndoSucceeded, 10)
	defer unsub()

	out, err := svc.Undo(context.Background(), req(t, map[string]any{"global_msg_id": "1"}))
	if err != nil {
		t.Fatal(err)
	}
	res := DecodeUndoResult(out)
	if res.Status != 1 || res.GlobalMsgID != "1" || res.RequestID == "" {
		t.Errorf("result = %+v", res)
	}

	// No ledger runs here: the store write belongs to Undo itself.
	if m, _ := svc.db.GetMessage("1"); m.Status != store.StatusUndone {
		t.Errorf("message status = %q, want undone", m.Status)
	}

	dm, ok := undoer.calls[0].(*message.DirectMessage)
	if !ok || dm.ThreadID != "t1" || dm.QuoteRef().CliMsgID != "c1" {
		t.Errorf("undo message = %#v", undoer.calls[0])
	}

	select {
	case evt := <-ch:
		if out := evt.Payload.(bus.UndoOutcome); out.GlobalMsgID != "1" {
			t.Errorf("outcome = %+v", out)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for undo.succeeded")
	}
}

func TestUndoErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"precondition", &zpw.PreconditionError{Reason: "message does not have quote"}, codes.FailedPrecondition},
		{"encryption", &zpw.EncryptionError{}, codes.Internal},
		{"api", &zpw.APIError{Code: 114, Message: "not found"}, codes.Aborted},
		{"transport", errors.New("connection reset"), codes.Unavailable},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, &stubUndoer{err: tt.err}, true)
			track(t, svc, message.KindDirect, "1")
			_, err := svc.Undo(context.Background(), req(t, map[string]any{"global_msg_id": "1"}))
			wantCode(t, err, tt.want)
			if m, _ := svc.db.GetMessage("1"); m.Status != store.StatusSent {
				t.Errorf("failed undo changed status to %q", m.Status)
			}
		})
	}
}

func TestUndoUnknownMessage(t *testing.T) {
	svc, _ := newTestService(t, &stubUndoer{}, true)
	_, err := svc.Undo(context.Background(), req(t, map[string]any{"global_msg_id": "nope"}))
	wantCode(t, err, codes.NotFound)
	_, err = svc.Undo(context.Background(), req(t, nil))
	wantCode(t, err, codes.InvalidArgument)
}

func TestQueueAndGetUndo(t *testing.T) {
	svc, _ := newTestService(t, &stubUndoer{}, false)
	track(t, svc, message.KindGroup, "7")

	out, err := svc.QueueUndo(context.Background(), req(t, map[string]any{"global_msg_id": "7"}))
	if err != nil {
		t.Fatal(err)
	}
	id := DecodeUndoResult(out).RequestID
	if id == "" {
		t.Fatal("empty request id")
	}

	got, err := svc.GetUndo(context.Background(), req(t, map[string]any{"request_id": id}))
	if err != nil {
		t.Fatal(err)
	}
	r := DecodeUndoRequest(got)
	if r.Status != store.UndoQueued || r.GlobalMsgID != "7" {
		t.Errorf("request = %+v", r)
	}

	_, err = svc.GetUndo(context.Background(), req(t, map[string]any{"request_id": "missing"}))
	wantCode(t, err, codes.NotFound)
}

func TestReloadCredentials(t *testing.T) {
	b := bus.New()
	svc := NewService("main", status.NewMachine(b), testDB(t), b, &stubUndoer{}, stubReloader{err: errors.New("no credentials")}, nil)
	_, err := svc.ReloadCredentials(context.Background(), nil)
	wantCode(t, err, codes.FailedPrecondition)

	svc.reloader = nil
	_, err = svc.ReloadCredentials(context.Background(), nil)
	wantCode(t, err, codes.Unimplemented)
}
