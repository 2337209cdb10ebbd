package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/harunnryd/voskstream/pkg/errorsx"
	"github.com/harunnryd/voskstream/pkg/transports"
)

// Responder produces the reply to the n-th Receive (0-based). sent holds everything
// the client has sent so far, config message included.
type Responder func(n int, sent []transports.Message) (transports.Message, error)

// Session is an in-memory transports.Session for tests.
// It records every outbound message and answers each Receive from a Responder.
type Session struct {
	endpoint  string
	responder Responder

	mu       sync.Mutex
	sent     []transports.Message
	receives int
	// failAfter closes the session abruptly on the receive with this index (-1 disables).
	failAfter int
	closed    atomic.Bool
	closes    atomic.Int32
}

func NewSession(endpoint string, responder Responder) *Session {
	return &Session{endpoint: endpoint, responder: responder, failAfter: -1}
}

// FailOnReceive makes the n-th Receive (0-based) behave like the peer dropped the connection.
func (s *Session) FailOnReceive(n int) *Session {
	s.mu.Lock()
	s.failAfter = n
	s.mu.Unlock()
	return s
}

func (s *Session) Endpoint() string { return s.endpoint }

func (s *Session) Send(ctx context.Context, msg transports.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return errorsx.Wrap(errors.New("mock: send on closed session"), errorsx.ReasonTransmission)
	}
	s.mu.Lock()
	s.sent = append(s.sent, transports.Message{Type: msg.Type, Data: append([]byte(nil), msg.Data...)})
	s.mu.Unlock()
	return nil
}

func (s *Session) Receive(ctx context.Context) (transports.Message, error) {
	if err := ctx.Err(); err != nil {
		return transports.Message{}, err
	}
	if s.closed.Load() {
		return transports.Message{}, errorsx.Wrap(errors.New("mock: receive on closed session"), errorsx.ReasonTransmission)
	}
	s.mu.Lock()
	n := s.receives
	s.receives++
	fail := s.failAfter >= 0 && n >= s.failAfter
	sent := append([]transports.Message(nil), s.sent...)
	s.mu.Unlock()

	if fail {
		s.closed.Store(true)
		return transports.Message{}, errorsx.Wrap(fmt.Errorf("mock: connection reset on receive %d", n), errorsx.ReasonTransmission)
	}
	if s.responder == nil {
		return transports.Message{Type: transports.TextMessage, Data: []byte(`{"partial" : ""}`)}, nil
	}
	return s.responder(n, sent)
}

func (s *Session) Close() error {
	s.closes.Add(1)
	s.closed.Store(true)
	return nil
}

func (s *Session) Closed() bool { return s.closed.Load() }

// CloseCalls reports how many times Close was invoked.
func (s *Session) CloseCalls() int { return int(s.closes.Load()) }

// Sent exposes outbound messages for inspection.
func (s *Session) Sent() []transports.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transports.Message(nil), s.sent...)
}

// Receives reports how many Receive calls were made.
func (s *Session) Receives() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receives
}

// Dialer hands out a prepared session, or fails like an unreachable endpoint.
// When New is set, every Dial gets its own session from it.
type Dialer struct {
	Session *Session
	New     func(endpoint string) (*Session, error)
	Err     error
	dials   atomic.Int32
	mu      sync.Mutex
}

func (d *Dialer) Name() string { return "mock" }

func (d *Dialer) Dial(ctx context.Context, endpoint string) (transports.Session, error) {
	d.dials.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Err != nil {
		return nil, errorsx.Wrap(d.Err, errorsx.ReasonConnect)
	}
	if d.New != nil {
		sess, err := d.New(endpoint)
		if err != nil {
			return nil, errorsx.Wrap(err, errorsx.ReasonConnect)
		}
		sess.endpoint = endpoint
		return sess, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Session == nil {
		d.Session = NewSession(endpoint, nil)
	}
	d.Session.endpoint = endpoint
	return d.Session, nil
}

// Dials reports how many times Dial was called.
func (d *Dialer) Dials() int { return int(d.dials.Load()) }

// Text is a convenience for building text replies.
func Text(s string) transports.Message {
	return transports.Message{Type: transports.TextMessage, Data: []byte(s)}
}

var (
	_ transports.Session = (*Session)(nil)
	_ transports.Dialer  = (*Dialer)(nil)
)
