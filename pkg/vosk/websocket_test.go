package vosk

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/harunnryd/voskstream/pkg/errorsx"
	"github.com/harunnryd/voskstream/pkg/logging"
	"github.com/harunnryd/voskstream/pkg/transports/websocket"
)

// fakeRecognizer speaks the server side of the protocol. With stall set it stops
// answering after the config message.
func fakeRecognizer(t *testing.T, final string, stall bool) (string, func() []int) {
	t.Helper()
	var mu sync.Mutex
	var chunkSizes []int
	upgrader := gws.Upgrader{}
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, cfg, err := conn.ReadMessage(); err != nil || !bytes.Contains(cfg, []byte("sample_rate")) {
			return
		}
		if stall {
			<-done
			return
		}
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == gws.TextMessage && bytes.Contains(data, []byte("eof")) {
				_ = conn.WriteMessage(gws.TextMessage, []byte(final))
				_, _, _ = conn.ReadMessage()
				return
			}
			mu.Lock()
			chunkSizes = append(chunkSizes, len(data))
			mu.Unlock()
			_ = conn.WriteMessage(gws.TextMessage, []byte("{\n  \"partial\" : \"\"\n}"))
		}
	}))
	t.Cleanup(func() {
		close(done)
		srv.Close()
	})
	sizes := func() []int {
		mu.Lock()
		defer mu.Unlock()
		return append([]int(nil), chunkSizes...)
	}
	return "ws" + strings.TrimPrefix(srv.URL, "http"), sizes
}

func TestRecognizeOverWebSocket(t *testing.T) {
	url, sizes := fakeRecognizer(t, `{"result":[{"word":"hi","conf":0.8},{"word":"yo","conf":0.7}],"text":"hi yo"}`, false)
	client := NewClient(url, WithLogger(logging.Discard()), WithReceiveTimeout(5*time.Second))
	src, _ := pcmSource(t, 16000, 16000)
	var buf bytes.Buffer

	out, err := client.Recognize(context.Background(), src, NewLineSink(&buf))
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if out.ChunksSent != 5 || out.Receives != 6 || out.State != StateDone {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if got := sizes(); len(got) != 5 || got[0] != 6400 {
		t.Fatalf("server saw chunks %v", got)
	}
	if out.Result.Conf != 0.75 {
		t.Fatalf("expected conf 0.75, got %v", out.Result.Conf)
	}
	if !strings.HasSuffix(buf.String(), `"text":"hi yo","conf":0.75}`+"\n") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestRecognizeReceiveTimeout(t *testing.T) {
	url, _ := fakeRecognizer(t, `{}`, true)
	client := NewClient(url,
		WithDialer(websocket.NewDialer(websocket.Config{HandshakeTimeout: time.Second})),
		WithLogger(logging.Discard()),
		WithReceiveTimeout(100*time.Millisecond),
	)
	src, _ := pcmSource(t, 8000, 1600)
	sink := &recordingSink{}

	out, err := client.Recognize(context.Background(), src, sink)
	if !errorsx.IsTransmission(err) {
		t.Fatalf("expected transmission error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline in chain, got %v", err)
	}
	if out.State != StateFailed || out.ChunksSent != 1 || len(sink.partials) != 0 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestRecognizeUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	client := NewClient(url, WithLogger(logging.Discard()))
	src, _ := pcmSource(t, 8000, 1600)
	out, err := client.Recognize(context.Background(), src, DiscardSink{})
	if !errorsx.IsConnection(err) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if out.State != StateFailed {
		t.Fatalf("expected FAILED, got %s", out.State)
	}
}
