package transports

import (
	"context"
	"fmt"
)

// MessageType distinguishes the two discrete message kinds a session carries.
type MessageType int

const (
	TextMessage MessageType = iota + 1
	BinaryMessage
)

func (t MessageType) String() string {
	switch t {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	default:
		return fmt.Sprintf("message_type(%d)", int(t))
	}
}

// Message is one complete unit on the wire.
type Message struct {
	Type MessageType
	Data []byte
}

// Session is one live duplex connection to a recognizer endpoint.
// Callers serialize Send and Receive; implementations need not support concurrent senders.
type Session interface {
	Endpoint() string
	// Send transmits exactly one message.
	Send(ctx context.Context, msg Message) error
	// Receive blocks until the next inbound message. A context deadline is reported as a
	// transmission failure; cancellation is reported as the context's error.
	Receive(ctx context.Context) (Message, error)
	// Close releases the connection. It is idempotent.
	Close() error
	Closed() bool
}

// Dialer opens sessions.
type Dialer interface {
	Name() string
	Dial(ctx context.Context, endpoint string) (Session, error)
}
