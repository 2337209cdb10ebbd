package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/harunnryd/voskstream/pkg/errorsx"
	"github.com/harunnryd/voskstream/pkg/transports"
)

func newServer(t *testing.T, handle func(conn *gws.Conn)) string {
	t.Helper()
	upgrader := gws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSessionEchoesInLockStep(t *testing.T) {
	url := newServer(t, func(conn *gws.Conn) {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == gws.BinaryMessage {
				data = []byte(`{"partial" : "bin"}`)
			}
			if err := conn.WriteMessage(gws.TextMessage, data); err != nil {
				return
			}
		}
	})

	sess, err := NewDialer(Config{}).Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sess.Close()

	ctx := context.Background()
	if err := sess.Send(ctx, transports.Message{Type: transports.TextMessage, Data: []byte(`{"eof" : 1}`)}); err != nil {
		t.Fatalf("send text: %v", err)
	}
	msg, err := sess.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msg.Type != transports.TextMessage || string(msg.Data) != `{"eof" : 1}` {
		t.Fatalf("unexpected echo %s %q", msg.Type, msg.Data)
	}

	if err := sess.Send(ctx, transports.Message{Type: transports.BinaryMessage, Data: []byte{1, 2, 3}}); err != nil {
		t.Fatalf("send binary: %v", err)
	}
	msg, err = sess.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if string(msg.Data) != `{"partial" : "bin"}` {
		t.Fatalf("unexpected reply %q", msg.Data)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	url := newServer(t, func(conn *gws.Conn) {
		_, _, _ = conn.ReadMessage()
	})
	sess, err := NewDialer(Config{}).Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !sess.Closed() {
		t.Fatalf("expected session closed")
	}
	err = sess.Send(context.Background(), transports.Message{Type: transports.TextMessage, Data: []byte("x")})
	if !errorsx.IsTransmission(err) {
		t.Fatalf("expected transmission error after close, got %v", err)
	}
}

func TestDialFailureIsConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	_, err := NewDialer(Config{HandshakeTimeout: time.Second}).Dial(context.Background(), url)
	if err == nil {
		t.Fatalf("expected dial error")
	}
	if !errorsx.IsConnection(err) {
		t.Fatalf("expected connection reason, got %v (%s)", err, errorsx.Reason(err))
	}
}

func TestHandshakeRejectedIsConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, err := NewDialer(Config{}).Dial(context.Background(), url)
	if !errorsx.IsConnection(err) {
		t.Fatalf("expected connection reason, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestAbruptCloseIsTransmissionError(t *testing.T) {
	url := newServer(t, func(conn *gws.Conn) {
		_, _, _ = conn.ReadMessage()
		_ = conn.UnderlyingConn().Close()
	})
	sess, err := NewDialer(Config{}).Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sess.Close()

	if err := sess.Send(context.Background(), transports.Message{Type: transports.BinaryMessage, Data: []byte{0, 0}}); err != nil {
		t.Fatalf("send: %v", err)
	}
	_, err = sess.Receive(context.Background())
	if !errorsx.IsTransmission(err) {
		t.Fatalf("expected transmission error, got %v (%s)", err, errorsx.Reason(err))
	}
}

func TestProtocolCloseCodeIsProtocolError(t *testing.T) {
	url := newServer(t, func(conn *gws.Conn) {
		_, _, _ = conn.ReadMessage()
		msg := gws.FormatCloseMessage(gws.CloseProtocolError, "bad frame")
		_ = conn.WriteControl(gws.CloseMessage, msg, time.Now().Add(time.Second))
		_, _, _ = conn.ReadMessage()
	})
	sess, err := NewDialer(Config{}).Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sess.Close()

	_ = sess.Send(context.Background(), transports.Message{Type: transports.TextMessage, Data: []byte("{}")})
	_, err = sess.Receive(context.Background())
	if !errorsx.IsProtocol(err) {
		t.Fatalf("expected protocol error, got %v (%s)", err, errorsx.Reason(err))
	}
}

func TestReceiveTimeoutIsTransmissionError(t *testing.T) {
	release := make(chan struct{})
	url := newServer(t, func(conn *gws.Conn) {
		<-release
	})
	t.Cleanup(func() { close(release) })

	sess, err := NewDialer(Config{}).Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = sess.Receive(ctx)
	if !errorsx.IsTransmission(err) {
		t.Fatalf("expected transmission error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded in chain, got %v", err)
	}
}

func TestReceiveCancelledReturnsContextError(t *testing.T) {
	release := make(chan struct{})
	url := newServer(t, func(conn *gws.Conn) {
		<-release
	})
	t.Cleanup(func() { close(release) })

	sess, err := NewDialer(Config{}).Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sess.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err = sess.Receive(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errorsx.IsTransport(err) {
		t.Fatalf("cancellation should not be a transport failure: %v", err)
	}
}

func TestReadLimitIsProtocolError(t *testing.T) {
	url := newServer(t, func(conn *gws.Conn) {
		_ = conn.WriteMessage(gws.TextMessage, []byte(strings.Repeat("x", 256)))
		_, _, _ = conn.ReadMessage()
	})
	sess, err := NewDialer(Config{ReadLimit: 16}).Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sess.Close()

	_, err = sess.Receive(context.Background())
	if !errorsx.IsProtocol(err) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestRegisterBuildsFromSettings(t *testing.T) {
	reg := transports.NewRegistry()
	Register(reg)

	d, err := reg.Build(ProviderName, map[string]any{
		"handshake_timeout": "2s",
		"read_limit_bytes":  1 << 20,
		"headers":           map[string]any{"X-Client": "voskstream"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	wd, ok := d.(*Dialer)
	if !ok {
		t.Fatalf("unexpected dialer type %T", d)
	}
	if wd.cfg.HandshakeTimeout != 2*time.Second || wd.cfg.ReadLimit != 1<<20 {
		t.Fatalf("unexpected config %+v", wd.cfg)
	}
	if wd.cfg.header().Get("X-Client") != "voskstream" {
		t.Fatalf("expected header to be set")
	}

	if _, err := reg.Build(ProviderName, map[string]any{"bogus": 1}); !errorsx.HasReason(err, errorsx.ReasonConfigInvalid) {
		t.Fatalf("expected config_invalid for unknown key, got %v", err)
	}
}
