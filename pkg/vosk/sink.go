package vosk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/harunnryd/voskstream/pkg/logging"
)

// Sink receives the output of a run in arrival order.
type Sink interface {
	Partial(ctx context.Context, raw []byte) error
	Final(ctx context.Context, result *AggregatedResult) error
	Invalid(ctx context.Context, payload []byte) error
}

// LineSink writes one message per line.
type LineSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLineSink(w io.Writer) *LineSink {
	return &LineSink{w: w}
}

func (s *LineSink) Partial(_ context.Context, raw []byte) error {
	return s.writeLine(raw)
}

func (s *LineSink) Final(_ context.Context, result *AggregatedResult) error {
	b, err := result.MarshalJSON()
	if err != nil {
		return err
	}
	return s.writeLine(b)
}

func (s *LineSink) Invalid(_ context.Context, payload []byte) error {
	return s.writeLine(payload)
}

func (s *LineSink) writeLine(b []byte) error {
	line := make([]byte, 0, len(b)+1)
	line = append(line, b...)
	line = append(line, '\n')
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(line)
	return err
}

// MultiSink fans every message out to each sink in order.
type MultiSink []Sink

func (m MultiSink) Partial(ctx context.Context, raw []byte) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Partial(ctx, raw))
	}
	return errors.Join(errs...)
}

func (m MultiSink) Final(ctx context.Context, result *AggregatedResult) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Final(ctx, result))
	}
	return errors.Join(errs...)
}

func (m MultiSink) Invalid(ctx context.Context, payload []byte) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Invalid(ctx, payload))
	}
	return errors.Join(errs...)
}

// DiscardSink drops everything.
type DiscardSink struct{}

func (DiscardSink) Partial(context.Context, []byte) error          { return nil }
func (DiscardSink) Final(context.Context, *AggregatedResult) error { return nil }
func (DiscardSink) Invalid(context.Context, []byte) error          { return nil }

// BestEffortSink logs failures of a secondary sink instead of failing the run.
type BestEffortSink struct {
	inner  Sink
	logger *slog.Logger
}

func NewBestEffortSink(inner Sink, logger *slog.Logger) *BestEffortSink {
	return &BestEffortSink{inner: inner, logger: logging.NewComponentLogger(logger, "sink")}
}

func (b *BestEffortSink) Partial(ctx context.Context, raw []byte) error {
	b.report("partial", b.inner.Partial(ctx, raw))
	return nil
}

func (b *BestEffortSink) Final(ctx context.Context, result *AggregatedResult) error {
	b.report("final", b.inner.Final(ctx, result))
	return nil
}

func (b *BestEffortSink) Invalid(ctx context.Context, payload []byte) error {
	b.report("invalid", b.inner.Invalid(ctx, payload))
	return nil
}

func (b *BestEffortSink) report(kind string, err error) {
	if err != nil {
		b.logger.Warn("sink_emit_failed", slog.String("kind", kind), slog.Any("error", err))
	}
}

var (
	_ Sink = (*LineSink)(nil)
	_ Sink = MultiSink(nil)
	_ Sink = DiscardSink{}
	_ Sink = (*BestEffortSink)(nil)
)
