package status

import (
	"testing"

	"github.com/matheus3301/zpw/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
	if m.IsReady() {
		t.Error("IsReady() = true while booting")
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, CredentialsRequired},
		{Booting, Ready},
		{Booting, Error},
		{CredentialsRequired, Ready},
		{CredentialsRequired, Stopping},
		{Ready, CredentialsRequired},
		{Ready, Stopping},
		{Error, Booting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, Stopping},
		{Error, Ready},
		{Stopping, Ready},
		{Stopping, Booting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err == nil {
				t.Errorf("Transition(%s -> %s) should fail", tt.from, tt.to)
			}
			if m.Current() != tt.from {
				t.Errorf("state = %s, want unchanged %s", m.Current(), tt.from)
			}
		})
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Ready); err != nil {
		t.Fatal(err)
	}
	if !m.IsReady() {
		t.Error("IsReady() = false after transition to READY")
	}

	evt := <-ch
	if evt.Kind != bus.KindStatusChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != Ready {
		t.Errorf("change = %v -> %v, want BOOTING -> READY", change.From, change.To)
	}
}

// TestCredentialsArriveLater covers a daemon started before `zpwctl login`.
func TestCredentialsArriveLater(t *testing.T) {
	m := NewMachine(nil)
	for _, s := range []State{CredentialsRequired, Ready, Stopping} {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
}

// walkTo transitions the machine from BOOTING to target.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:             {},
		CredentialsRequired: {CredentialsRequired},
		Ready:               {Ready},
		Error:               {Error},
		Stopping:            {Ready, Stopping},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
