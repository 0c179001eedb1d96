// Package bus mirrors UI events onto NATS and accepts remote recording
// commands.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.aimuz.me/dictate/config"
	"go.aimuz.me/dictate/internal/types"
)

// Control commands accepted on <subject>.control.
const (
	CommandStart = "start"
	CommandStop  = "stop"
)

// Envelope is the payload published for every UI event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
	AtMs  int64  `json:"atMs"`
}

// Client wraps a NATS connection.
type Client struct {
	conn    *nats.Conn
	subject string
	sub     *nats.Subscription
}

var _ types.Emitter = (*Client)(nil)

// Connect dials the configured servers.
func Connect(ctx context.Context, cfg config.BusConfig) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}
	subject := strings.TrimSpace(cfg.Subject)
	if subject == "" {
		subject = "dictate.events"
	}

	timeout := time.Duration(cfg.ConnectTimeout) * time.Millisecond
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); timeout <= 0 || left < timeout {
			timeout = left
		}
	}

	options := []nats.Option{
		nats.Name("dictate"),
		nats.Timeout(timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	slog.Info("connected to NATS", "servers", url, "subject", subject)
	return &Client{conn: conn, subject: subject}, nil
}

// Emit publishes the event on <subject>.<name>. Failures are logged; the
// UI path never waits on the bus.
func (c *Client) Emit(name string, data any) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(Envelope{Event: name, Data: data, AtMs: time.Now().UnixMilli()})
	if err != nil {
		slog.Debug("marshal bus event", "event", name, "error", err)
		return
	}
	if err := c.conn.Publish(c.subject+"."+name, payload); err != nil {
		slog.Debug("publish bus event", "event", name, "error", err)
	}
}

// HandleControl answers requests on <subject>.control. The request body
// is a command name; the reply is "ok" or the error text.
func (c *Client) HandleControl(start, stop func(context.Context) error) error {
	sub, err := c.conn.Subscribe(c.subject+".control", func(msg *nats.Msg) {
		cmd := strings.ToLower(strings.TrimSpace(string(msg.Data)))
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		var err error
		switch cmd {
		case CommandStart:
			err = start(ctx)
		case CommandStop:
			err = stop(ctx)
		default:
			err = fmt.Errorf("unknown command %q", cmd)
		}

		reply := "ok"
		if err != nil {
			reply = err.Error()
			slog.Warn("bus control command failed", "command", cmd, "error", err)
		}
		if msg.Reply != "" {
			_ = msg.Respond([]byte(reply))
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe control: %w", err)
	}
	if err := c.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("flush control subscription: %w", err)
	}
	c.sub = sub
	return nil
}

// Healthy reports whether the connection is up.
func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

// Close drains and closes the connection.
func (c *Client) Close() {
	if c == nil {
		return
	}
	slog.Info("closing NATS connection")
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}
