package api

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/zpw/internal/bus"
	"github.com/matheus3301/zpw/internal/message"
	"github.com/matheus3301/zpw/internal/recall"
	"github.com/matheus3301/zpw/internal/status"
	"github.com/matheus3301/zpw/internal/store"
	"github.com/matheus3301/zpw/internal/zpw"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Reloader re-reads session credentials and rebuilds the API client.
type Reloader interface {
	Reload() error
}

// Service implements UndoService on top of the store, the bus and an Undoer.
type Service struct {
	sessionName string
	startedAt   time.Time
	machine     *status.Machine
	db          *store.DB
	bus         *bus.Bus
	undoer      recall.Undoer
	reloader    Reloader
	logger      *zap.Logger
}

var _ UndoServer = (*Service)(nil)

// NewService creates the service. reloader may be nil, in which case
// ReloadCredentials is unimplemented.
func NewService(sessionName string, machine *status.Machine, db *store.DB, b *bus.Bus, undoer recall.Undoer, reloader Reloader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessionName: sessionName,
		startedAt:   time.Now(),
		machine:     machine,
		db:          db,
		bus:         b,
		undoer:      undoer,
		reloader:    reloader,
		logger:      logger,
	}
}

func (s *Service) GetStatus(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	st := Status{
		Session:  s.sessionName,
		State:    string(s.machine.Current()),
		UptimeMs: time.Since(s.startedAt).Milliseconds(),
	}
	if s.db != nil {
		if n, err := s.db.MessageCount(); err == nil {
			st.MessageCount = n
		}
		if n, err := s.db.PendingUndoCount(); err == nil {
			st.PendingUndos = n
		}
	}
	return EncodeStatus(st)
}

func (s *Service) ReloadCredentials(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.reloader == nil {
		return nil, grpcstatus.Errorf(codes.Unimplemented, "credential reload not available")
	}
	if err := s.reloader.Reload(); err != nil {
		return nil, grpcstatus.Errorf(codes.FailedPrecondition, "reload credentials: %v", err)
	}
	return s.GetStatus(ctx, in)
}

func (s *Service) TrackMessage(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	m, err := DecodeMessage(in)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
	}
	if err := s.db.TrackMessage(m); err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "track message: %v", err)
	}
	stored, err := s.db.GetMessage(m.GlobalMsgID)
	if err != nil || stored == nil {
		return nil, grpcstatus.Errorf(codes.Internal, "reload tracked message: %v", err)
	}

	s.bus.Publish(bus.Event{
		Kind: bus.KindMessageTracked,
		Payload: map[string]string{
			"thread_id":     stored.ThreadID,
			"global_msg_id": stored.GlobalMsgID,
		},
	})
	return EncodeMessage(stored)
}

func (s *Service) ListMessages(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	msgs, err := s.db.ListMessages(getString(in, "thread_id"), int(getInt(in, "limit")))
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list messages: %v", err)
	}
	return EncodeMessages(msgs)
}

// Undo retracts a tracked message synchronously and marks it undone in the
// store before replying.
func (s *Service) Undo(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if !s.machine.IsReady() {
		return nil, grpcstatus.Errorf(codes.Unavailable, "session is %s", s.machine.Current())
	}
	rec, msg, err := s.lookup(getString(in, "global_msg_id"))
	if err != nil {
		return nil, err
	}

	outcome := bus.UndoOutcome{RequestID: uuid.NewString(), GlobalMsgID: rec.GlobalMsgID, ThreadID: rec.ThreadID}
	resp, err := s.undoer.Undo(ctx, msg)
	if err != nil {
		s.logger.Warn("undo failed", zap.Error(err), zap.String("global_msg_id", rec.GlobalMsgID))
		outcome.Error = err.Error()
		s.bus.Publish(bus.Event{Kind: bus.KindUndoFailed, Payload: outcome})
		return nil, undoStatus(err)
	}

	outcome.Status = resp.Status
	if err := s.db.MarkMessageUndone(rec.GlobalMsgID, time.Now().UnixMilli()); err != nil {
		s.logger.Error("failed to mark message undone", zap.Error(err), zap.String("global_msg_id", rec.GlobalMsgID))
	}
	s.bus.Publish(bus.Event{Kind: bus.KindUndoSucceeded, Payload: outcome})
	return EncodeUndoResult(UndoResult{RequestID: outcome.RequestID, GlobalMsgID: rec.GlobalMsgID, Status: resp.Status})
}

// QueueUndo records an undo for the recall worker. Requests queued while the
// session is not ready wait until it is.
func (s *Service) QueueUndo(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	rec, _, err := s.lookup(getString(in, "global_msg_id"))
	if err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	if err := s.db.QueueUndo(requestID, rec.GlobalMsgID); err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "queue undo: %v", err)
	}
	s.bus.Publish(bus.Event{
		Kind:    bus.KindUndoQueued,
		Payload: bus.UndoOutcome{RequestID: requestID, GlobalMsgID: rec.GlobalMsgID, ThreadID: rec.ThreadID},
	})
	return EncodeUndoResult(UndoResult{RequestID: requestID, GlobalMsgID: rec.GlobalMsgID})
}

func (s *Service) GetUndo(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := getString(in, "request_id")
	if id == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "request_id is required")
	}
	req, err := s.db.GetUndo(id)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "get undo: %v", err)
	}
	if req == nil {
		return nil, grpcstatus.Errorf(codes.NotFound, "undo request %s not found", id)
	}
	return EncodeUndoRequest(req)
}

// WatchEvents streams bus events whose kind starts with the optional "prefix".
func (s *Service) WatchEvents(in *structpb.Struct, stream grpc.ServerStream) error {
	ch, unsub := s.bus.Subscribe(getString(in, "prefix"), 256)
	defer unsub()

	ctx := stream.Context()
	for {
		select {
		case evt := <-ch:
			out, err := EncodeEvent(evt)
			if err != nil {
				s.logger.Warn("drop unencodable event", zap.Error(err), zap.String("kind", evt.Kind))
				continue
			}
			if err := stream.SendMsg(out); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Service) lookup(globalMsgID string) (*store.Message, message.Message, error) {
	if globalMsgID == "" {
		return nil, nil, grpcstatus.Errorf(codes.InvalidArgument, "global_msg_id is required")
	}
	rec, err := s.db.GetMessage(globalMsgID)
	if err != nil {
		return nil, nil, grpcstatus.Errorf(codes.Internal, "get message: %v", err)
	}
	if rec == nil {
		return nil, nil, grpcstatus.Errorf(codes.NotFound, "message %s is not tracked", globalMsgID)
	}
	msg, err := rec.ToMessage()
	if err != nil {
		return nil, nil, grpcstatus.Errorf(codes.Internal, "rebuild message: %v", err)
	}
	return rec, msg, nil
}

// undoStatus maps the undo error taxonomy onto gRPC codes.
func undoStatus(err error) error {
	var (
		pre *zpw.PreconditionError
		enc *zpw.EncryptionError
		api *zpw.APIError
	)
	switch {
	case errors.As(err, &pre):
		return grpcstatus.Errorf(codes.FailedPrecondition, "%v", err)
	case errors.As(err, &enc):
		return grpcstatus.Errorf(codes.Internal, "%v", err)
	case errors.As(err, &api):
		return grpcstatus.Errorf(codes.Aborted, "%v", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.FromContextError(err).Err()
	default:
		return grpcstatus.Errorf(codes.Unavailable, "%v", err)
	}
}
