// Package ledger announces retracted messages to bus subscribers.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/zpw/internal/bus"
	"github.com/matheus3301/zpw/internal/store"
	"go.uber.org/zap"
)

// Ledger turns undo.succeeded events into message.undone events. The undo
// paths write the store themselves; the ledger's own mark only fills in a
// message they could not record.
type Ledger struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	now    func() time.Time
	cancel context.CancelFunc
}

// New creates a ledger.
func New(db *store.DB, b *bus.Bus, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		db:     db,
		bus:    b,
		logger: logger,
		now:    time.Now,
	}
}

// Start subscribes to successful undos on the bus.
func (l *Ledger) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	ch, unsub := l.bus.Subscribe(bus.KindUndoSucceeded, 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				l.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the ledger.
func (l *Ledger) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
}

func (l *Ledger) handleEvent(evt bus.Event) {
	if evt.Kind != bus.KindUndoSucceeded {
		return
	}
	out, ok := evt.Payload.(bus.UndoOutcome)
	if !ok {
		return
	}
	if err := l.Apply(out); err != nil {
		l.logger.Error("failed to apply undo", zap.Error(err), zap.String("global_msg_id", out.GlobalMsgID))
	}
}

// Apply makes sure the outcome's message is undone and publishes
// message.undone. Applying the same outcome twice is harmless.
func (l *Ledger) Apply(out bus.UndoOutcome) error {
	if out.GlobalMsgID == "" {
		return fmt.Errorf("apply undo: empty global message id")
	}
	if err := l.db.MarkMessageUndone(out.GlobalMsgID, l.now().UnixMilli()); err != nil {
		return fmt.Errorf("mark undone: %w", err)
	}
	l.bus.Publish(bus.Event{
		Kind: bus.KindMessageUndone,
		Payload: map[string]string{
			"thread_id":     out.ThreadID,
			"global_msg_id": out.GlobalMsgID,
		},
	})
	return nil
}
