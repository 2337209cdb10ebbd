package bus

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/voskstream/pkg/errorsx"
	"github.com/harunnryd/voskstream/pkg/vosk"
)

// MessagePublisher is the part of a NATS connection the Publisher needs.
type MessagePublisher interface {
	Publish(subject string, data []byte) error
}

// Publisher mirrors recognizer output onto NATS subjects under a prefix:
// <prefix>.partial, <prefix>.final and <prefix>.error.
type Publisher struct {
	pub    MessagePublisher
	prefix string
}

func NewPublisher(pub MessagePublisher, prefix string) *Publisher {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "vosk.transcripts"
	}
	return &Publisher{pub: pub, prefix: prefix}
}

func (p *Publisher) Subject(kind string) string { return p.prefix + "." + kind }

func (p *Publisher) Partial(_ context.Context, raw []byte) error {
	return p.publish("partial", raw)
}

func (p *Publisher) Final(_ context.Context, result *vosk.AggregatedResult) error {
	data, err := result.MarshalJSON()
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonPublish)
	}
	return p.publish("final", data)
}

func (p *Publisher) Invalid(_ context.Context, payload []byte) error {
	return p.publish("error", payload)
}

func (p *Publisher) publish(kind string, data []byte) error {
	subject := p.Subject(kind)
	if err := p.pub.Publish(subject, data); err != nil {
		return errorsx.Wrap(fmt.Errorf("publish %s: %w", subject, err), errorsx.ReasonPublish)
	}
	return nil
}

var _ vosk.Sink = (*Publisher)(nil)
