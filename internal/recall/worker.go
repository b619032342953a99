package recall

import (
	"context"
	"time"

	"github.com/matheus3301/zpw/internal/bus"
	"github.com/matheus3301/zpw/internal/message"
	"github.com/matheus3301/zpw/internal/store"
	"github.com/matheus3301/zpw/internal/zpw"
	"go.uber.org/zap"
)

// Undoer retracts a previously sent message.
type Undoer interface {
	Undo(ctx context.Context, msg message.Message) (*zpw.UndoResponse, error)
}

// Worker drains queued undo requests, issuing one Undo call per request.
// Failed requests are recorded and not retried.
type Worker struct {
	db       *store.DB
	undoer   Undoer
	bus      *bus.Bus
	ready    func() bool
	logger   *zap.Logger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWorker creates a worker. ready gates each drain; requests stay queued
// while it reports false. A nil ready always drains.
func NewWorker(db *store.DB, undoer Undoer, b *bus.Bus, ready func() bool, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Worker{
		db:       db,
		undoer:   undoer,
		bus:      b,
		ready:    ready,
		logger:   logger,
		interval: 500 * time.Millisecond,
	}
}

// Start begins polling for queued requests.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.loop(ctx)
}

// Stop stops the loop and waits for an in-flight drain to finish.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if w.ready() {
				w.Drain(ctx)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Drain processes every currently queued request once.
func (w *Worker) Drain(ctx context.Context) {
	pending, err := w.db.PendingUndos()
	if err != nil {
		w.logger.Error("failed to read undo queue", zap.Error(err))
		return
	}

	for _, req := range pending {
		if ctx.Err() != nil {
			return
		}
		claimed, err := w.db.MarkUndoSending(req.RequestID)
		if err != nil {
			w.logger.Error("failed to mark sending", zap.Error(err), zap.String("request_id", req.RequestID))
			continue
		}
		if !claimed {
			continue
		}
		w.process(ctx, req)
	}
}

func (w *Worker) process(ctx context.Context, req store.UndoRequest) {
	outcome := bus.UndoOutcome{RequestID: req.RequestID, GlobalMsgID: req.GlobalMsgID}

	rec, err := w.db.GetMessage(req.GlobalMsgID)
	if err == nil && rec == nil {
		err = &zpw.PreconditionError{Reason: "message " + req.GlobalMsgID + " is not tracked"}
	}
	var resp *zpw.UndoResponse
	if err == nil {
		outcome.ThreadID = rec.ThreadID
		var msg message.Message
		msg, err = rec.ToMessage()
		if err == nil {
			resp, err = w.undoer.Undo(ctx, msg)
		}
	}

	if err != nil {
		w.logger.Error("undo failed", zap.Error(err), zap.String("request_id", req.RequestID), zap.String("global_msg_id", req.GlobalMsgID))
		if markErr := w.db.MarkUndoFailed(req.RequestID, err.Error()); markErr != nil {
			w.logger.Error("failed to mark failed", zap.Error(markErr), zap.String("request_id", req.RequestID))
		}
		outcome.Error = err.Error()
		w.bus.Publish(bus.Event{Kind: bus.KindUndoFailed, Payload: outcome})
		return
	}

	if err := w.db.MarkUndoDone(req.RequestID, resp.Status); err != nil {
		w.logger.Error("failed to mark done", zap.Error(err), zap.String("request_id", req.RequestID))
	}
	if err := w.db.MarkMessageUndone(req.GlobalMsgID, time.Now().UnixMilli()); err != nil {
		w.logger.Error("failed to mark message undone", zap.Error(err), zap.String("global_msg_id", req.GlobalMsgID))
	}
	outcome.Status = resp.Status
	w.logger.Info("message undone", zap.String("request_id", req.RequestID), zap.String("global_msg_id", req.GlobalMsgID), zap.Int("status", resp.Status))
	w.bus.Publish(bus.Event{Kind: bus.KindUndoSucceeded, Payload: outcome})
}
