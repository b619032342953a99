package model

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/zpw/internal/api"
	"github.com/matheus3301/zpw/internal/status"
	"github.com/matheus3301/zpw/internal/store"
)

// Daemon is the subset of the daemon client the TUI needs.
type Daemon interface {
	Status(ctx context.Context) (api.Status, error)
	ListMessages(ctx context.Context, threadID string, limit int) ([]store.Message, error)
	Undo(ctx context.Context, globalMsgID string) (api.UndoResult, error)
	QueueUndo(ctx context.Context, globalMsgID string) (string, error)
}

// FlashLevel selects the flash color.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashErr
)

// Flash holds a transient notification.
type Flash struct {
	mu      sync.RWMutex
	message string
	level   FlashLevel
	expires time.Time
}

// Set stores a message that expires after d.
func (f *Flash) Set(level FlashLevel, msg string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.level = level
	f.expires = time.Now().Add(d)
}

// Get returns the current message, or "" once expired.
func (f *Flash) Get() (string, FlashLevel) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if time.Now().After(f.expires) {
		return "", FlashInfo
	}
	return f.message, f.level
}

const pageSize = 200

// ViewModel caches daemon state for the views.
type ViewModel struct {
	mu sync.RWMutex

	daemon   Daemon
	status   api.Status
	messages []store.Message
	thread   string
	Flash    Flash
}

// NewViewModel creates a view model backed by d.
func NewViewModel(d Daemon) *ViewModel {
	return &ViewModel{daemon: d}
}

func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	st, err := vm.daemon.Status(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = st
	vm.mu.Unlock()
	return nil
}

// LoadMessages reloads tracked messages for the current thread filter.
func (vm *ViewModel) LoadMessages(ctx context.Context) error {
	vm.mu.RLock()
	thread := vm.thread
	vm.mu.RUnlock()

	msgs, err := vm.daemon.ListMessages(ctx, thread, pageSize)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.messages = msgs
	vm.mu.Unlock()
	return nil
}

// SetThread filters the list to one thread; "" shows every thread.
func (vm *ViewModel) SetThread(thread string) {
	vm.mu.Lock()
	vm.thread = thread
	vm.mu.Unlock()
}

func (vm *ViewModel) Thread() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.thread
}

func (vm *ViewModel) GetStatus() api.Status {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

func (vm *ViewModel) GetMessages() []store.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.messages
}

// Undo retracts a message now and reports the outcome through Flash.
func (vm *ViewModel) Undo(ctx context.Context, m *store.Message) error {
	if err := vm.checkUndoable(m); err != nil {
		vm.Flash.Set(FlashErr, err.Error(), 5*time.Second)
		return err
	}
	res, err := vm.daemon.Undo(ctx, m.GlobalMsgID)
	if err != nil {
		vm.Flash.Set(FlashErr, "Undo failed: "+err.Error(), 5*time.Second)
		return err
	}
	vm.Flash.Set(FlashInfo, fmt.Sprintf("Undone %s (status %d)", res.GlobalMsgID, res.Status), 3*time.Second)
	return nil
}

// Queue hands the message to the daemon's recall worker.
func (vm *ViewModel) Queue(ctx context.Context, m *store.Message) error {
	if m == nil || m.Status == store.StatusUndone {
		err := fmt.Errorf("nothing to queue")
		vm.Flash.Set(FlashErr, err.Error(), 5*time.Second)
		return err
	}
	id, err := vm.daemon.QueueUndo(ctx, m.GlobalMsgID)
	if err != nil {
		vm.Flash.Set(FlashErr, "Queue failed: "+err.Error(), 5*time.Second)
		return err
	}
	vm.Flash.Set(FlashInfo, "Queued "+id, 3*time.Second)
	return nil
}

func (vm *ViewModel) checkUndoable(m *store.Message) error {
	if m == nil {
		return fmt.Errorf("no message selected")
	}
	if m.Status == store.StatusUndone {
		return fmt.Errorf("%s is already undone", m.GlobalMsgID)
	}
	if st := vm.GetStatus(); st.State != string(status.Ready) {
		return fmt.Errorf("session is %s; press U to queue instead", st.State)
	}
	return nil
}
