package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/harunnryd/voskstream/pkg/errorsx"
	"github.com/harunnryd/voskstream/pkg/logging"
)

type Config struct {
	URL            string
	Name           string
	ConnectTimeout time.Duration
}

// Client wraps a NATS connection used to publish transcripts.
type Client struct {
	conn *nats.Conn
	log  *slog.Logger
}

func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("no NATS url configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = "voskstream"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 2 * time.Second
	}
	log := logging.NewComponentLogger(logger, "bus")

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats_disconnected", slog.String("error", err.Error()))
			}
		}),
	)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("connect to nats: %w", err), errorsx.ReasonPublish)
	}
	log.Info("nats_connected", slog.String("url", conn.ConnectedUrlRedacted()))
	return &Client{conn: conn, log: log}, nil
}

func (c *Client) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Close flushes pending publishes and closes the connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	c.log.Debug("nats_closing")
	err := c.conn.FlushTimeout(2 * time.Second)
	c.conn.Close()
	if errors.Is(err, nats.ErrConnectionClosed) {
		return nil
	}
	return err
}

func (c *Client) Conn() *nats.Conn { return c.conn }
