package vosk

import (
	"context"
	"errors"
	"testing"

	"github.com/harunnryd/voskstream/pkg/audio"
	"github.com/harunnryd/voskstream/pkg/transports/mock"
)

func finalsByEndpoint(finals map[string]string, failing map[string]bool) *mock.Dialer {
	return &mock.Dialer{New: func(endpoint string) (*mock.Session, error) {
		if failing[endpoint] {
			return nil, errors.New("host unreachable")
		}
		return mock.NewSession(endpoint, voskResponder(finals[endpoint])), nil
	}}
}

func openPCM(t *testing.T) SourceOpener {
	return func(context.Context) (audio.Source, error) {
		src, _ := pcmSource(t, 8000, 2000)
		return src, nil
	}
}

func TestBestOfPicksLongestText(t *testing.T) {
	dialer := finalsByEndpoint(map[string]string{
		"ws://ru": `{"text":"  privet  "}`,
		"ws://uz": `{"text":"salom dunyo"}`,
	}, map[string]bool{"ws://down": true})
	client := newTestClient(dialer)

	best, all, err := BestOf(context.Background(), client, []string{"ws://ru", "ws://uz", "ws://down"}, openPCM(t))
	if err != nil {
		t.Fatalf("best of: %v", err)
	}
	if best.Endpoint != "ws://uz" || best.Text != "salom dunyo" {
		t.Fatalf("unexpected winner %+v", best)
	}
	if len(all) != 3 || all[0].Text != "privet" || all[2].Err == nil {
		t.Fatalf("unexpected candidates %+v", all)
	}
}

func TestBestOfTieKeepsFirstEndpoint(t *testing.T) {
	dialer := finalsByEndpoint(map[string]string{
		"ws://a": `{"text":"abc"}`,
		"ws://b": `{"text":"xyz"}`,
	}, nil)
	best, _, err := BestOf(context.Background(), newTestClient(dialer), []string{"ws://a", "ws://b"}, openPCM(t))
	if err != nil {
		t.Fatalf("best of: %v", err)
	}
	if best.Endpoint != "ws://a" {
		t.Fatalf("tie should keep the first endpoint, got %s", best.Endpoint)
	}
}

func TestBestOfAllEmpty(t *testing.T) {
	dialer := finalsByEndpoint(map[string]string{
		"ws://a": `{"text":"   "}`,
		"ws://b": `not json`,
	}, map[string]bool{"ws://c": true})
	_, all, err := BestOf(context.Background(), newTestClient(dialer), []string{"ws://a", "ws://b", "ws://c"}, openPCM(t))
	if !errors.Is(err, ErrNoTranscription) {
		t.Fatalf("expected ErrNoTranscription, got %v", err)
	}
	if !all[1].Outcome.Malformed {
		t.Fatalf("expected malformed candidate, got %+v", all[1])
	}
}

func TestBestOfRequiresEndpoints(t *testing.T) {
	if _, _, err := BestOf(context.Background(), newTestClient(&mock.Dialer{}), nil, openPCM(t)); err == nil {
		t.Fatalf("expected error without endpoints")
	}
}
