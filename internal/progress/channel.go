// Package progress relays the events the backend pushes for one session over
// a WebSocket. A Channel is single-use: open one per submitted request.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vrsandeep/seo-batch/internal/metrics"
	"github.com/vrsandeep/seo-batch/internal/models"
	"go.uber.org/zap"
)

// DefaultHandshakeTimeout bounds the opening handshake of a channel.
const DefaultHandshakeTimeout = 5 * time.Second

// closeGrace is how long Close waits for the server to acknowledge a close frame.
const closeGrace = time.Second

// Consumer receives the events of one channel, one at a time.
type Consumer interface {
	HandleEvent(models.ProgressEvent)
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(models.ProgressEvent)

func (f ConsumerFunc) HandleEvent(e models.ProgressEvent) { f(e) }

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// State of a channel's connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateDegraded // handshake failed or the connection dropped; no live progress
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateDegraded:
		return "degraded"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Dialer opens progress channels against a backend.
type Dialer struct {
	BaseURL          string
	HandshakeTimeout time.Duration
	Logger           *zap.Logger
}

// NewDialer creates a Dialer for the backend at baseURL (http or https).
func NewDialer(baseURL string, logger *zap.Logger) *Dialer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dialer{
		BaseURL:          baseURL,
		HandshakeTimeout: DefaultHandshakeTimeout,
		Logger:           logger,
	}
}

// Channel is one live-update pipe for a single session.
type Channel struct {
	sessionID string
	consumer  Consumer
	logger    *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	conn   *websocket.Conn
	state  State
	closed bool
}

// Open starts connecting a channel for sessionID and returns immediately.
// A failed handshake leaves the channel degraded; it is never an error for
// the caller.
func (d *Dialer) Open(ctx context.Context, sessionID string, consumer Consumer) *Channel {
	ctx, cancel := context.WithCancel(ctx)
	c := &Channel{
		sessionID: sessionID,
		consumer:  consumer,
		logger:    d.Logger.With(zap.String("session_id", sessionID)),
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateConnecting,
	}

	endpoint, err := SessionURL(d.BaseURL, sessionID)
	if err != nil {
		c.logger.Warn("progress channel disabled", zap.Error(err))
		c.setState(StateDegraded)
		metrics.ProgressChannelFailures.Inc()
		close(c.done)
		return c
	}

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	go c.run(ctx, endpoint, timeout)
	return c
}

// SessionID returns the identifier this channel was opened for.
func (c *Channel) SessionID() string { return c.sessionID }

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the channel's reader has stopped.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Close stops the channel. It is safe to call more than once and before the
// handshake has completed.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	c.closed = true
	conn := c.conn
	c.state = StateClosed
	c.mu.Unlock()

	c.cancel()
	var err error
	if conn != nil {
		deadline := time.Now().Add(closeGrace)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := conn.WriteControl(websocket.CloseMessage, msg, deadline); werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			c.logger.Debug("failed to send close frame", zap.Error(werr))
		}
		select {
		case <-c.done:
		case <-time.After(closeGrace):
		}
		err = conn.Close()
	}
	<-c.done
	if err != nil && !isClosedConnErr(err) {
		return fmt.Errorf("closing progress channel: %w", err)
	}
	return nil
}

func (c *Channel) run(ctx context.Context, endpoint string, timeout time.Duration) {
	defer close(c.done)

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	conn, _, err := dialer.DialContext(dialCtx, endpoint, nil)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("progress channel unavailable, continuing without live progress", zap.Error(err))
			metrics.ProgressChannelFailures.Inc()
		}
		c.setState(StateDegraded)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()
	c.logger.Debug("progress channel open")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !c.isClosed() {
				c.logger.Warn("progress channel dropped", zap.Error(err))
				c.setState(StateDegraded)
			}
			return
		}
		event, err := decodeEvent(data)
		if err != nil {
			c.logger.Debug("ignoring malformed progress message", zap.Error(err))
			continue
		}
		if !event.Type.Known() {
			continue
		}
		event.SessionID = c.sessionID
		metrics.ProgressEventsTotal.WithLabelValues(string(event.Type)).Inc()
		if c.consumer != nil {
			c.consumer.HandleEvent(event)
		}
	}
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateClosed {
		c.state = s
	}
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SessionURL maps the backend base URL onto its per-session WebSocket endpoint.
func SessionURL(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid backend URL %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported backend URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("backend URL %q has no host", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + url.PathEscape(sessionID)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// wireEvent is the backend message shape; agent_update nests its timing under data.
type wireEvent struct {
	models.ProgressEvent
	Data *struct {
		ExecutionTime *float64 `json:"execution_time"`
		Confidence    *float64 `json:"confidence"`
		Errors        []string `json:"errors"`
	} `json:"data,omitempty"`
}

func decodeEvent(data []byte) (models.ProgressEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return models.ProgressEvent{}, err
	}
	e := w.ProgressEvent
	if w.Data != nil {
		if e.ExecutionTime == nil {
			e.ExecutionTime = w.Data.ExecutionTime
		}
		if e.Confidence == nil {
			e.Confidence = w.Data.Confidence
		}
		if e.Errors == nil {
			e.Errors = w.Data.Errors
		}
	}
	return e, nil
}

func isClosedConnErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "use of closed network connection")
}
