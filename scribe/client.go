// Package scribe is a streaming client for the realtime speech-to-text
// WebSocket API.
package scribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"nhooyr.io/websocket"

	"go.aimuz.me/dictate/audiocapture"
)

var (
	// ErrNotConnected is returned when sending without an open session.
	ErrNotConnected = errors.New("scribe: not connected")
	// ErrHandshake wraps every failed connect.
	ErrHandshake = errors.New("scribe: handshake failed")
	// ErrMissingAPIKey is returned by Connect when no key is configured.
	ErrMissingAPIKey = errors.New("scribe: missing api key")
)

// State is the connection state.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds client settings.
type Config struct {
	APIKey       string
	LanguageCode string
	URL          string // defaults to DefaultURL
	URLOptions   URLOptions

	ConnectTimeout    time.Duration
	DisconnectTimeout time.Duration
	RetryAttempts     int // extra attempts after the first
	RetryDelay        time.Duration
	SubscriberBuffer  int

	HTTPClient *http.Client
}

// DefaultConfig returns the default client settings.
func DefaultConfig() Config {
	return Config{
		URL:               DefaultURL,
		URLOptions:        DefaultURLOptions(),
		ConnectTimeout:    10 * time.Second,
		DisconnectTimeout: 3 * time.Second,
		RetryAttempts:     2,
		RetryDelay:        250 * time.Millisecond,
		SubscriberBuffer:  64,
	}
}

// Client owns at most one live WebSocket session.
type Client struct {
	cfg   Config
	state atomic.Int32

	mu   sync.Mutex // guards conn
	conn *session

	writeMu sync.Mutex

	subsMu sync.RWMutex
	subs   map[int]chan Event
	nextID int

	sessionID atomic.Pointer[string]
}

type session struct {
	ws      *websocket.Conn
	closing atomic.Bool
	done    chan struct{}
}

// NewClient creates a Client. Zero fields in cfg take defaults.
func NewClient(cfg Config) *Client {
	d := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = d.URL
	}
	if cfg.URLOptions == (URLOptions{}) {
		cfg.URLOptions = d.URLOptions
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = d.ConnectTimeout
	}
	if cfg.DisconnectTimeout <= 0 {
		cfg.DisconnectTimeout = d.DisconnectTimeout
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = d.RetryDelay
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = d.SubscriberBuffer
	}
	cfg.URLOptions.LanguageCode = cfg.LanguageCode

	return &Client{cfg: cfg, subs: make(map[int]chan Event)}
}

// APIKey returns the key the client authenticates with.
func (c *Client) APIKey() string { return c.cfg.APIKey }

// LanguageCode returns the session language.
func (c *Client) LanguageCode() string { return c.cfg.LanguageCode }

// State returns the current connection state.
func (c *Client) State() State { return State(c.state.Load()) }

// SessionID returns the backend session id, or "" before session_started.
func (c *Client) SessionID() string {
	if p := c.sessionID.Load(); p != nil {
		return *p
	}
	return ""
}

// Subscribe registers a listener for every subsequent event. Slow listeners
// miss events. Call the returned function to unsubscribe.
func (c *Client) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, c.cfg.SubscriberBuffer)

	c.subsMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			c.subsMu.Unlock()
		})
	}
}

func (c *Client) broadcast(ev Event) {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			slog.Debug("scribe subscriber lagging, event dropped", "type", ev.eventType())
		}
	}
}

// Connect opens a session, retrying the handshake. It is a no-op when a
// session is already open.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.State() == StateOpen {
		return nil
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return fmt.Errorf("%w: %w", ErrHandshake, ErrMissingAPIKey)
	}
	if c.conn != nil {
		c.conn.closing.Store(true)
		c.conn.ws.CloseNow()
		c.conn = nil
	}

	target, err := BuildURL(c.cfg.URL, c.cfg.URLOptions)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	c.state.Store(int32(StateConnecting))
	c.sessionID.Store(nil)

	attempt := 0
	dial := func() (*websocket.Conn, error) {
		attempt++
		dctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()

		ws, resp, err := websocket.Dial(dctx, target, &websocket.DialOptions{
			HTTPClient: c.cfg.HTTPClient,
			HTTPHeader: http.Header{"xi-api-key": {c.cfg.APIKey}},
		})
		if err == nil {
			return ws, nil
		}

		slog.Warn("scribe connect attempt failed", "attempt", attempt, "error", err)
		c.broadcast(TransportErrorEvent{Message: fmt.Sprintf("connection attempt %d failed: %v", attempt, err)})
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	ws, err := backoff.Retry(ctx, dial,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.cfg.RetryDelay)),
		backoff.WithMaxTries(uint(c.cfg.RetryAttempts+1)),
	)
	if err != nil {
		c.state.Store(int32(StateFailed))
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	s := &session{ws: ws, done: make(chan struct{})}
	c.conn = s
	c.state.Store(int32(StateOpen))
	slog.Info("scribe websocket connected", "attempts", attempt, "language", c.cfg.LanguageCode)

	go c.readLoop(s)
	return nil
}

// SendAudio sends one PCM16 batch. A write failure marks the session failed.
func (c *Client) SendAudio(ctx context.Context, samples []int16) error {
	if len(samples) == 0 {
		return nil
	}

	c.mu.Lock()
	s := c.conn
	c.mu.Unlock()
	if s == nil || c.State() != StateOpen {
		return ErrNotConnected
	}

	data, err := json.Marshal(audioChunk{
		MessageType: TypeInputAudioChunk,
		Audio:       EncodeAudio(samples),
		SampleRate:  SampleRate,
	})
	if err != nil {
		return fmt.Errorf("marshal audio chunk: %w", err)
	}

	c.writeMu.Lock()
	err = s.ws.Write(ctx, websocket.MessageText, data)
	c.writeMu.Unlock()
	if err != nil {
		c.fail(s, fmt.Sprintf("websocket send error: %v", err))
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

// Flush waits for any in-flight write to finish.
func (c *Client) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.writeMu.Lock()
		close(done)
		c.writeMu.Unlock()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect closes the session, waiting a bounded time for the close
// handshake before forcing it.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	s := c.conn
	c.conn = nil
	c.mu.Unlock()

	if s == nil {
		if c.State() != StateIdle {
			c.state.Store(int32(StateClosed))
		}
		return nil
	}
	s.closing.Store(true)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.DisconnectTimeout)
	defer cancel()

	closed := make(chan error, 1)
	go func() {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		closed <- s.ws.Close(websocket.StatusNormalClosure, "")
	}()

	var err error
	select {
	case err = <-closed:
	case <-ctx.Done():
		slog.Warn("scribe close handshake timed out, forcing close")
		err = s.ws.CloseNow()
	}

	select {
	case <-s.done:
	case <-ctx.Done():
	}

	c.state.Store(int32(StateClosed))
	slog.Info("scribe websocket disconnected")
	if err != nil && !isExpectedClose(err) {
		return fmt.Errorf("close websocket: %w", err)
	}
	return nil
}

// fail marks s failed and tells subscribers why. Sessions already closing
// are left alone.
func (c *Client) fail(s *session, reason string) {
	c.mu.Lock()
	current := c.conn == s
	if current {
		c.conn = nil
	}
	c.mu.Unlock()

	if !current || s.closing.Load() {
		return
	}
	c.state.Store(int32(StateFailed))
	s.closing.Store(true)
	_ = s.ws.CloseNow()
	c.broadcast(TransportErrorEvent{Message: reason})
}

func (c *Client) readLoop(s *session) {
	defer close(s.done)

	for {
		typ, data, err := s.ws.Read(context.Background())
		if err != nil {
			if s.closing.Load() {
				return
			}
			msg := fmt.Sprintf("websocket receive error: %v", err)
			if status := websocket.CloseStatus(err); status != -1 {
				reason := "remote closed"
				var ce websocket.CloseError
				if errors.As(err, &ce) && strings.TrimSpace(ce.Reason) != "" {
					reason = ce.Reason
				}
				msg = "websocket closed: " + reason
			}
			slog.Warn("scribe read loop ended", "error", err)
			c.fail(s, msg)
			return
		}

		if typ != websocket.MessageText {
			slog.Debug("ignored websocket binary payload", "bytes", len(data))
			continue
		}

		ev, err := ParseEvent(data)
		if err != nil {
			if msg, ok := ExtractErrorMessage(data); ok {
				slog.Warn("unparseable scribe frame", "message", msg)
			} else {
				slog.Warn("failed to parse scribe event", "error", err, "payload", string(data))
			}
			continue
		}

		switch e := ev.(type) {
		case SessionStartedEvent:
			id := e.SessionID
			c.sessionID.Store(&id)
			slog.Info("scribe session started", "session_id", id)
		case UnknownEvent:
			if msg, ok := ExtractErrorMessage(data); ok {
				slog.Warn("unknown scribe frame", "message", msg)
			}
		}
		c.broadcast(ev)
	}
}

// EncodeAudio encodes samples as base64 little-endian PCM16.
func EncodeAudio(samples []int16) string {
	return base64.StdEncoding.EncodeToString(audiocapture.EncodePCM16(samples))
}

// DecodeAudio reverses EncodeAudio.
func DecodeAudio(s string) ([]int16, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return audiocapture.DecodePCM16(b)
}

func isExpectedClose(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return strings.Contains(err.Error(), "already wrote close")
}
