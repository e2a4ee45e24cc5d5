package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"orpheus/internal/adapters/config"
	"orpheus/pkg/logger"
)

// EventHandler receives decoded upstream events. Handlers run on the
// read goroutine so event order is preserved; slow handlers stall the
// read loop, keep them cheap.
type EventHandler func(ev ServerEvent)

// Client is a websocket connection to the realtime speech model.
// One client serves exactly one call.
type Client struct {
	cfg config.RealtimeConfig
	log *logger.Logger

	conn      *websocket.Conn
	connected bool
	mu        sync.RWMutex
	writeMu   sync.Mutex

	handler EventHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	errChan chan error
}

// NewClient creates an upstream client. The handler must be set before
// Connect; it is invoked for every decoded event.
func NewClient(cfg config.RealtimeConfig, handler EventHandler) *Client {
	return &Client{
		cfg:     cfg,
		log:     logger.Get().With("component", "realtime_client"),
		handler: handler,
		errChan: make(chan error, 10),
	}
}

// Connect dials the upstream endpoint and starts the read and ping
// loops. Safe to call again after a disconnect.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid realtime base URL: %w", err)
	}
	q := u.Query()
	q.Set("model", c.cfg.Model)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	c.log.Infow("Connecting to realtime upstream", "url", u.Host, "model", c.cfg.Model)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect to realtime upstream (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("failed to connect to realtime upstream: %w", err)
	}

	// Pongs extend the read deadline so quiet stretches of a call do
	// not look like a dead connection.
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	c.conn = conn
	c.connected = true
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.wg.Add(2)
	go c.readMessages()
	go c.pingLoop()

	c.log.Infow("Connected to realtime upstream", "model", c.cfg.Model)
	return nil
}

// Disconnect closes the connection gracefully
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	c.log.Info("Disconnecting from realtime upstream")

	if c.cancel != nil {
		c.cancel()
	}

	if c.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		_ = c.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		c.log.Warn("Timeout waiting for realtime goroutines to stop")
	}

	c.connected = false
	c.conn = nil

	c.log.Info("Disconnected from realtime upstream")
	return nil
}

// IsConnected reports the connection state
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Send serializes one client event and writes it upstream. Events from
// concurrent goroutines interleave at message boundaries.
func (c *Client) Send(ev interface{}) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return fmt.Errorf("realtime upstream is not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("failed to send realtime event: %w", err)
	}
	return nil
}

// Errors exposes fatal connection errors for the reconnect manager
func (c *Client) Errors() <-chan error {
	return c.errChan
}

func (c *Client) readMessages() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
			}

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Info("Realtime upstream closed the connection")
			} else {
				c.log.Errorw("Realtime read error", "error", err)
			}

			c.markDisconnected()
			select {
			case c.errChan <- err:
			default:
			}
			return
		}

		c.dispatchMessage(message)
	}
}

// dispatchMessage decodes one frame and hands it to the handler
// inline. Audio deltas and transcript deltas must arrive in order, so
// no per-message goroutine here.
func (c *Client) dispatchMessage(message []byte) {
	var ev ServerEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		c.log.Warnw("Failed to decode realtime event", "error", err)
		return
	}

	if ev.Type == EventTypeError && ev.Error != nil {
		c.log.Errorw("Realtime upstream error event",
			"error_type", ev.Error.Type,
			"code", ev.Error.Code,
			"message", ev.Error.Message)
	}

	if c.handler != nil {
		c.handler(ev)
	}
}

func (c *Client) pingLoop() {
	defer c.wg.Done()

	interval := c.cfg.PingInterval
	if interval <= 0 {
		interval = 20 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			connected := c.connected
			c.mu.RUnlock()

			if !connected || conn == nil {
				return
			}

			c.writeMu.Lock()
			err := conn.WriteControl(
				websocket.PingMessage,
				nil,
				time.Now().Add(5*time.Second),
			)
			c.writeMu.Unlock()

			if err != nil {
				c.log.Warnw("Realtime ping failed", "error", err)
				return
			}
		}
	}
}

func (c *Client) markDisconnected() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}
