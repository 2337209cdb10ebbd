package vosk

import (
	"sync"
	"time"
)

// State is a step of the recognition exchange.
type State int

const (
	StateInit State = iota
	StateConfigured
	StateStreaming
	StateEOFSent
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateConfigured:
		return "CONFIGURED"
	case StateStreaming:
		return "STREAMING"
	case StateEOFSent:
		return "EOF_SENT"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// StateChange describes one transition of a run.
type StateChange struct {
	RunID     string
	From      State
	To        State
	Timestamp time.Time
	Reason    string
}

// StateListener observes run state changes.
type StateListener interface {
	OnStateChange(event StateChange)
}

// StateListenerFunc adapts a function to StateListener.
type StateListenerFunc func(event StateChange)

func (f StateListenerFunc) OnStateChange(event StateChange) { f(event) }

var validTransitions = map[State][]State{
	StateInit:       {StateConfigured, StateFailed},
	StateConfigured: {StateStreaming, StateFailed},
	StateStreaming:  {StateEOFSent, StateFailed},
	StateEOFSent:    {StateDone, StateFailed},
}

// stateMachine tracks a single run. Listeners are called synchronously, outside the lock.
type stateMachine struct {
	runID     string
	mu        sync.Mutex
	current   State
	listeners []StateListener
}

func newStateMachine(runID string, listeners []StateListener) *stateMachine {
	return &stateMachine{runID: runID, current: StateInit, listeners: listeners}
}

func (m *stateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *stateMachine) Transition(to State, reason string) error {
	m.mu.Lock()
	from := m.current
	if !transitionValid(from, to) {
		m.mu.Unlock()
		return &InvalidTransitionError{From: from, To: to}
	}
	m.current = to
	m.mu.Unlock()

	event := StateChange{RunID: m.runID, From: from, To: to, Timestamp: time.Now(), Reason: reason}
	for _, l := range m.listeners {
		l.OnStateChange(event)
	}
	return nil
}

// fail moves to FAILED unless the run already ended.
func (m *stateMachine) fail(reason string) {
	if m.State().Terminal() {
		return
	}
	_ = m.Transition(StateFailed, reason)
}

func transitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError represents an out-of-order state change.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}
