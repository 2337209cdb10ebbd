package vosk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harunnryd/voskstream/pkg/audio"
	"github.com/harunnryd/voskstream/pkg/errorsx"
	"github.com/harunnryd/voskstream/pkg/frames"
	"github.com/harunnryd/voskstream/pkg/logging"
	"github.com/harunnryd/voskstream/pkg/metrics"
	"github.com/harunnryd/voskstream/pkg/redact"
	"github.com/harunnryd/voskstream/pkg/transports"
	"github.com/harunnryd/voskstream/pkg/transports/websocket"
)

// DefaultEndpoint is the address of a locally running recognizer.
const DefaultEndpoint = "ws://localhost:2700"

const tracerName = "github.com/harunnryd/voskstream/pkg/vosk"

// Outcome summarises one recognition run.
type Outcome struct {
	RunID        string
	Endpoint     string
	State        State
	Result       *AggregatedResult
	Malformed    bool
	SampleRate   int
	ChunkSamples int
	ChunksSent   int
	BytesSent    int
	Receives     int
	Duration     time.Duration
}

// Client runs the streaming exchange against one endpoint. A Client holds no per-run
// state and may be shared between goroutines.
type Client struct {
	endpoint       string
	dialer         transports.Dialer
	receiveTimeout time.Duration
	logger         *slog.Logger
	observer       metrics.Observer
	listeners      []StateListener
	tracer         trace.Tracer
	redactor       *redact.Redactor
	newRunID       func() string
}

type Option func(*Client)

func WithDialer(d transports.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithReceiveTimeout bounds every receive; expiry fails the run with a transmission error.
func WithReceiveTimeout(d time.Duration) Option {
	return func(c *Client) { c.receiveTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithObserver(o metrics.Observer) Option {
	return func(c *Client) { c.observer = o }
}

func WithStateListener(l StateListener) Option {
	return func(c *Client) { c.listeners = append(c.listeners, l) }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

func WithRedactor(r *redact.Redactor) Option {
	return func(c *Client) { c.redactor = r }
}

func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{endpoint: endpoint, newRunID: uuid.NewString}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = websocket.NewDialer(websocket.Config{})
	}
	if c.observer == nil {
		c.observer = metrics.NoopObserver{}
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	c.logger = logging.NewComponentLogger(c.logger, "vosk_client")
	return c
}

func (c *Client) Endpoint() string { return c.endpoint }

// WithEndpoint returns a copy of the client bound to another endpoint.
func (c *Client) WithEndpoint(endpoint string) *Client {
	cp := *c
	cp.endpoint = endpoint
	cp.listeners = append([]StateListener(nil), c.listeners...)
	return &cp
}

// Recognize streams src to the recognizer and reports every response to sink.
//
// Each chunk is sent only after the response to the previous one has been received.
// A final message that is not a JSON object is reported through sink.Invalid and the
// run still ends in DONE with a nil error. Transport and audio failures end in FAILED.
// The session is closed before Recognize returns on every path.
func (c *Client) Recognize(ctx context.Context, src audio.Source, sink Sink) (Outcome, error) {
	start := time.Now()
	out := Outcome{
		RunID:        c.newRunID(),
		Endpoint:     c.endpoint,
		SampleRate:   src.SampleRate(),
		ChunkSamples: audio.ChunkSamples(src.SampleRate()),
	}
	fsm := newStateMachine(out.RunID, c.listeners)
	logger := c.logger.With(slog.String("run_id", out.RunID), slog.String("endpoint", c.endpoint))

	ctx, span := c.tracer.Start(ctx, "vosk.recognize", trace.WithAttributes(
		attribute.String("vosk.run_id", out.RunID),
		attribute.String("vosk.endpoint", c.endpoint),
		attribute.Int("vosk.sample_rate", out.SampleRate),
		attribute.Int("vosk.chunk_samples", out.ChunkSamples),
	))
	defer span.End()

	err := c.run(ctx, fsm, src, sink, &out, logger)
	if err != nil {
		reason := errorsx.Reason(err)
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			reason = "cancelled"
		}
		// Must precede fail: a run's timeline file is closed on its terminal state.
		metrics.Record(c.observer, metrics.EventRunFailed, 1, c.tags(out.RunID, "reason", string(reason)))
		fsm.fail(string(reason))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("vosk_run_failed",
			slog.String("reason", string(reason)),
			slog.String("state", fsm.State().String()),
			slog.Any("error", err),
		)
	}
	out.State = fsm.State()
	out.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("vosk.chunks_sent", out.ChunksSent),
		attribute.Int("vosk.receives", out.Receives),
		attribute.String("vosk.state", out.State.String()),
	)
	return out, err
}

func (c *Client) run(ctx context.Context, fsm *stateMachine, src audio.Source, sink Sink, out *Outcome, logger *slog.Logger) error {
	if out.SampleRate <= 0 {
		return errorsx.Newf(errorsx.ReasonAudioRead, "vosk: invalid sample rate %d", out.SampleRate)
	}

	sess, err := c.dialer.Dial(ctx, c.endpoint)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errorsx.Wrap(err, errorsx.ReasonConnect)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Debug("vosk_session_close_failed", slog.Any("error", cerr))
		}
	}()
	logger.Info("vosk_connected", slog.Int("sample_rate", out.SampleRate))

	if err := c.send(ctx, sess, frames.ConfigFrame{SampleRate: out.SampleRate}); err != nil {
		return err
	}
	if err := fsm.Transition(StateConfigured, "config_sent"); err != nil {
		return err
	}
	if err := fsm.Transition(StateStreaming, "streaming"); err != nil {
		return err
	}

	for {
		chunk, err := src.ReadChunk(out.ChunkSamples)
		if err != nil {
			return errorsx.Wrap(fmt.Errorf("vosk: read audio: %w", err), errorsx.ReasonAudioRead)
		}
		if len(chunk) == 0 {
			break
		}
		if err := c.send(ctx, sess, frames.AudioFrame{Data: chunk}); err != nil {
			return err
		}
		out.ChunksSent++
		out.BytesSent += len(chunk)
		metrics.Record(c.observer, metrics.EventChunkSent, float64(len(chunk)), c.tags(out.RunID))

		msg, err := c.receive(ctx, sess, out)
		if err != nil {
			return err
		}
		partial := frames.Decode(msg, false).(frames.PartialFrame)
		if err := sink.Partial(ctx, partial.Raw); err != nil {
			return errorsx.Wrap(fmt.Errorf("vosk: emit partial: %w", err), errorsx.ReasonEmit)
		}
		logger.Debug("vosk_chunk_acknowledged",
			slog.Int("chunk", out.ChunksSent),
			slog.Int("bytes", len(chunk)),
		)
	}

	if err := c.send(ctx, sess, frames.EOFFrame{}); err != nil {
		return err
	}
	if err := fsm.Transition(StateEOFSent, "eof_sent"); err != nil {
		return err
	}

	msg, err := c.receive(ctx, sess, out)
	if err != nil {
		return err
	}
	final := frames.Decode(msg, true).(frames.FinalFrame)

	result, aggErr := Aggregate(final.Raw)
	if aggErr != nil {
		out.Malformed = true
		logger.Warn("vosk_final_malformed", slog.Any("error", aggErr), slog.Int("bytes", len(final.Raw)))
		if err := sink.Invalid(ctx, []byte(InvalidJSONPayload)); err != nil {
			return errorsx.Wrap(fmt.Errorf("vosk: emit invalid payload: %w", err), errorsx.ReasonEmit)
		}
		return fsm.Transition(StateDone, string(errorsx.ReasonMalformedFinal))
	}

	out.Result = result
	metrics.Record(c.observer, metrics.EventFinalConf, result.Conf, c.tags(out.RunID))
	logger.Info("vosk_final_received",
		slog.String("conf", strconv.FormatFloat(result.Conf, 'f', -1, 64)),
		slog.String("text", c.redactor.Text(result.Text())),
		slog.Int("chunks", out.ChunksSent),
	)
	if err := sink.Final(ctx, result); err != nil {
		return errorsx.Wrap(fmt.Errorf("vosk: emit final: %w", err), errorsx.ReasonEmit)
	}
	return fsm.Transition(StateDone, "final_received")
}

func (c *Client) send(ctx context.Context, sess transports.Session, f frames.Frame) error {
	msg, err := frames.Encode(f)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonProtocol)
	}
	if err := sess.Send(ctx, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errorsx.Wrap(fmt.Errorf("vosk: send %s: %w", f.Kind(), err), errorsx.ReasonTransmission)
	}
	return nil
}

// receive waits for exactly one message, bounded by the per-receive timeout if set.
func (c *Client) receive(ctx context.Context, sess transports.Session, out *Outcome) (transports.Message, error) {
	rctx := ctx
	if c.receiveTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, c.receiveTimeout)
		defer cancel()
	}
	started := time.Now()
	msg, err := sess.Receive(rctx)
	out.Receives++
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return transports.Message{}, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) && !errorsx.IsTransport(err) {
			return transports.Message{}, errorsx.Newf(errorsx.ReasonTransmission, "vosk: receive timeout after %s: %w", c.receiveTimeout, err)
		}
		return transports.Message{}, errorsx.Wrap(fmt.Errorf("vosk: receive: %w", err), errorsx.ReasonTransmission)
	}
	metrics.Record(c.observer, metrics.EventReceiveLatency, float64(time.Since(started).Milliseconds()), c.tags(out.RunID))
	return msg, nil
}

func (c *Client) tags(runID string, kv ...string) map[string]string {
	tags := map[string]string{"endpoint": c.endpoint, "run_id": runID}
	for i := 0; i+1 < len(kv); i += 2 {
		tags[kv[i]] = kv[i+1]
	}
	return tags
}
