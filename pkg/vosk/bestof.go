package vosk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/harunnryd/voskstream/pkg/audio"
)

// ErrNoTranscription is returned by BestOf when no endpoint produced any text.
var ErrNoTranscription = errors.New("vosk: no transcription result from any endpoint")

// SourceOpener opens a fresh audio source for one endpoint. Sources that implement
// io.Closer are closed once the run ends.
type SourceOpener func(ctx context.Context) (audio.Source, error)

// Candidate is the result of one endpoint in a BestOf run.
type Candidate struct {
	Endpoint string
	Text     string
	Outcome  Outcome
	Err      error
}

// BestOf recognizes the same recording against every endpoint concurrently and keeps the
// longest transcript. Failing endpoints only count as empty. Ties go to the endpoint listed
// first.
func BestOf(ctx context.Context, client *Client, endpoints []string, open SourceOpener) (Candidate, []Candidate, error) {
	if len(endpoints) == 0 {
		return Candidate{}, nil, errors.New("vosk: no endpoints given")
	}
	candidates := make([]Candidate, len(endpoints))

	var g errgroup.Group
	for i, endpoint := range endpoints {
		g.Go(func() error {
			candidates[i] = recognizeOne(ctx, client.WithEndpoint(endpoint), open)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Candidate{}, candidates, err
	}

	best := -1
	bestLen := 0
	for i, c := range candidates {
		if c.Err != nil {
			client.logger.Warn("vosk_endpoint_failed", slog.String("endpoint", c.Endpoint), slog.Any("error", c.Err))
			continue
		}
		if n := utf8.RuneCountInString(c.Text); n > bestLen {
			best, bestLen = i, n
		}
	}
	if best < 0 {
		return Candidate{}, candidates, ErrNoTranscription
	}
	return candidates[best], candidates, nil
}

func recognizeOne(ctx context.Context, client *Client, open SourceOpener) Candidate {
	c := Candidate{Endpoint: client.Endpoint()}
	src, err := open(ctx)
	if err != nil {
		c.Err = err
		return c
	}
	if closer, ok := src.(io.Closer); ok {
		defer closer.Close()
	}
	c.Outcome, c.Err = client.Recognize(ctx, src, DiscardSink{})
	if c.Err == nil && c.Outcome.Result != nil {
		c.Text = strings.TrimSpace(c.Outcome.Result.Text())
	}
	return c
}
