package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/harunnryd/voskstream/pkg/errorsx"
	"github.com/harunnryd/voskstream/pkg/logging"
	"github.com/harunnryd/voskstream/pkg/transports"
)

const closeGrace = time.Second

var errSessionClosed = errors.New("websocket: session closed")

// Dialer opens gorilla/websocket sessions.
type Dialer struct {
	cfg    Config
	dialer *gws.Dialer
	logger *slog.Logger
}

func NewDialer(cfg Config) *Dialer {
	cfg = cfg.withDefaults()
	return &Dialer{
		cfg: cfg,
		dialer: &gws.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  cfg.HandshakeTimeout,
			EnableCompression: cfg.EnableCompression,
			ReadBufferSize:    4096,
			WriteBufferSize:   4096,
		},
		logger: logging.NewComponentLogger(slog.Default(), "websocket_transport"),
	}
}

// Register adds the websocket provider to a transport registry.
func Register(r *transports.Registry) {
	r.Register(ProviderName, func(settings map[string]any) (transports.Dialer, error) {
		cfg, err := ConfigFromSettings(settings)
		if err != nil {
			return nil, errorsx.Wrap(err, errorsx.ReasonConfigInvalid)
		}
		return NewDialer(cfg), nil
	})
}

func (d *Dialer) Name() string { return ProviderName }

func (d *Dialer) Dial(ctx context.Context, endpoint string) (transports.Session, error) {
	conn, resp, err := d.dialer.DialContext(ctx, endpoint, d.cfg.header())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, errorsx.Wrap(fmt.Errorf("websocket: dial %s: %w", endpoint, err), errorsx.ReasonConnect)
	}
	if d.cfg.ReadLimit > 0 {
		conn.SetReadLimit(d.cfg.ReadLimit)
	}
	d.logger.Debug("websocket_connected", slog.String("endpoint", endpoint))
	return &Session{endpoint: endpoint, conn: conn, writeTimeout: d.cfg.WriteTimeout, logger: d.logger}, nil
}

// Session is a transports.Session over one websocket connection.
type Session struct {
	endpoint     string
	conn         *gws.Conn
	writeTimeout time.Duration
	logger       *slog.Logger

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

func (s *Session) Endpoint() string { return s.endpoint }

func (s *Session) Closed() bool { return s.closed.Load() }

func (s *Session) Send(ctx context.Context, msg transports.Message) error {
	if s.closed.Load() {
		return errorsx.Wrap(errSessionClosed, errorsx.ReasonTransmission)
	}
	if err := ctx.Err(); err != nil {
		return contextError(err, "send")
	}
	var mt int
	switch msg.Type {
	case transports.TextMessage:
		mt = gws.TextMessage
	case transports.BinaryMessage:
		mt = gws.BinaryMessage
	default:
		return fmt.Errorf("websocket: unsupported message type %s", msg.Type)
	}

	deadline := time.Time{}
	if s.writeTimeout > 0 {
		deadline = time.Now().Add(s.writeTimeout)
	}
	_ = s.conn.SetWriteDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.UnderlyingConn().SetWriteDeadline(time.Now())
	})
	err := s.conn.WriteMessage(mt, msg.Data)
	stop()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return contextError(ctxErr, "send")
		}
		return classify(err, "send")
	}
	return nil
}

func (s *Session) Receive(ctx context.Context) (transports.Message, error) {
	if s.closed.Load() {
		return transports.Message{}, errorsx.Wrap(errSessionClosed, errorsx.ReasonTransmission)
	}
	if err := ctx.Err(); err != nil {
		return transports.Message{}, contextError(err, "receive")
	}
	_ = s.conn.SetReadDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	mt, data, err := s.conn.ReadMessage()
	stop()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return transports.Message{}, contextError(ctxErr, "receive")
		}
		return transports.Message{}, classify(err, "receive")
	}
	switch mt {
	case gws.TextMessage:
		return transports.Message{Type: transports.TextMessage, Data: data}, nil
	case gws.BinaryMessage:
		return transports.Message{Type: transports.BinaryMessage, Data: data}, nil
	default:
		return transports.Message{}, errorsx.Newf(errorsx.ReasonProtocol, "websocket: unexpected message type %d", mt)
	}
}

// Close sends a normal-closure frame (best effort) and releases the socket. Idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		msg := gws.FormatCloseMessage(gws.CloseNormalClosure, "")
		_ = s.conn.WriteControl(gws.CloseMessage, msg, time.Now().Add(closeGrace))
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.closeErr = err
		}
		s.logger.Debug("websocket_closed", slog.String("endpoint", s.endpoint))
	})
	return s.closeErr
}

func contextError(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errorsx.Newf(errorsx.ReasonTransmission, "websocket: %s timeout: %w", op, err)
	}
	return err
}

// classify maps gorilla/net failures onto the transport error taxonomy.
func classify(err error, op string) error {
	wrapped := fmt.Errorf("websocket: %s: %w", op, err)

	var closeErr *gws.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case gws.CloseProtocolError, gws.CloseUnsupportedData,
			gws.CloseInvalidFramePayloadData, gws.CloseMessageTooBig:
			return errorsx.Wrap(wrapped, errorsx.ReasonProtocol)
		default:
			return errorsx.Wrap(wrapped, errorsx.ReasonTransmission)
		}
	}
	if errors.Is(err, gws.ErrReadLimit) {
		return errorsx.Wrap(wrapped, errorsx.ReasonProtocol)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errorsx.Wrap(wrapped, errorsx.ReasonTransmission)
	}
	// gorilla reports framing violations as plain "websocket: ..." errors.
	if strings.HasPrefix(err.Error(), "websocket: ") && !errors.Is(err, gws.ErrCloseSent) {
		return errorsx.Wrap(wrapped, errorsx.ReasonProtocol)
	}
	return errorsx.Wrap(wrapped, errorsx.ReasonTransmission)
}

var (
	_ transports.Dialer  = (*Dialer)(nil)
	_ transports.Session = (*Session)(nil)
)
