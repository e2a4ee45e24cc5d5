package realtime

import (
	"context"
	"sync"
	"time"

	"orpheus/internal/adapters/config"
	"orpheus/internal/metrics"
	"orpheus/pkg/errors"
	"orpheus/pkg/logger"
	"orpheus/pkg/reconnect"
)

// Manager supervises one upstream connection for the lifetime of a
// call: health checks, reconnection with backoff, and re-advertising
// the session after a reconnect.
type Manager struct {
	client       *Client
	reconnectMgr *reconnect.Manager
	log          *logger.Logger

	// onReconnect re-sends session.update after the socket comes back.
	// Set by the session layer before Start.
	onReconnect func(ctx context.Context) error

	// onGiveUp fires when reconnection is exhausted and the circuit
	// opens. The caller is still on the line at that point; the session
	// layer uses this to fail the call instead of leaving it hanging.
	onGiveUp func(err error)

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewManager creates a connection manager. handler receives every
// upstream event in order.
func NewManager(cfg config.RealtimeConfig, handler EventHandler) *Manager {
	log := logger.Get().With("component", "realtime_manager")

	m := &Manager{
		log:      log,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}

	// Short backoffs: the caller is on the line, a reconnect that takes
	// minutes is the same as a failed call.
	m.reconnectMgr = reconnect.NewManager(reconnect.Config{
		MinBackoff:          500 * time.Millisecond,
		MaxBackoff:          10 * time.Second,
		BackoffMultiplier:   2.0,
		MaxRetries:          5,
		HealthCheckInterval: 5 * time.Second,
		HeartbeatTimeout:    2 * cfg.ReadTimeout,
		CircuitResetAfter:   time.Minute,
	}, log)

	wrapped := func(ev ServerEvent) {
		m.reconnectMgr.RecordMessageReceived()
		handler(ev)
	}
	m.client = NewClient(cfg, wrapped)

	return m
}

// OnReconnect registers the hook invoked after a successful reconnect
func (m *Manager) OnReconnect(fn func(ctx context.Context) error) {
	m.onReconnect = fn
}

// OnGiveUp registers the hook invoked when reconnection attempts are
// exhausted
func (m *Manager) OnGiveUp(fn func(err error)) {
	m.onGiveUp = fn
}

// Start connects upstream and begins health monitoring
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.mu.Unlock()

	if err := m.client.Connect(ctx); err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return errors.Wrap(err, "initial upstream connect failed")
	}
	m.reconnectMgr.RecordMessageReceived()

	go m.healthCheckLoop(ctx)

	return nil
}

// Stop disconnects and halts health monitoring
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopChan)

	select {
	case <-m.doneChan:
	case <-time.After(5 * time.Second):
		m.log.Warn("Timeout waiting for health check loop to stop")
	}

	return m.client.Disconnect()
}

// Send forwards one client event upstream
func (m *Manager) Send(ev interface{}) error {
	return m.client.Send(ev)
}

// IsConnected reports whether the upstream socket is up
func (m *Manager) IsConnected() bool {
	return m.client.IsConnected()
}

func (m *Manager) healthCheckLoop(ctx context.Context) {
	defer close(m.doneChan)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case err := <-m.client.Errors():
			m.log.Warnw("Upstream connection lost", "error", err)
			m.reconnectUpstream(ctx)
		case <-ticker.C:
			if !m.client.IsConnected() || !m.reconnectMgr.IsHealthy() {
				m.log.Warn("Upstream connection unhealthy, reconnecting")
				m.reconnectUpstream(ctx)
			}
		}
	}
}

func (m *Manager) reconnectUpstream(ctx context.Context) {
	err := m.reconnectMgr.ReconnectWithBackoff(ctx, func(ctx context.Context) error {
		_ = m.client.Disconnect()
		if err := m.client.Connect(ctx); err != nil {
			return err
		}
		if m.onReconnect != nil {
			return m.onReconnect(ctx)
		}
		return nil
	})
	if err != nil {
		metrics.UpstreamReconnects.WithLabelValues("failed").Inc()
		m.log.Errorw("Upstream reconnection failed", "error", err)
		if m.onGiveUp != nil {
			// The hook tears the session down, which in turn stops this
			// loop. Run it off the health check goroutine so Stop does
			// not wait on its own caller.
			go m.onGiveUp(err)
		}
		return
	}

	metrics.UpstreamReconnects.WithLabelValues("success").Inc()
	m.reconnectMgr.RecordMessageReceived()
	m.log.Info("Upstream reconnected")
}

// GetStats returns connection statistics for health endpoints
func (m *Manager) GetStats() map[string]interface{} {
	stats := m.reconnectMgr.GetStats()
	return map[string]interface{}{
		"connected":        m.client.IsConnected(),
		"total_reconnects": stats.TotalReconnects,
		"circuit_open":     stats.CircuitOpen,
		"last_message_ago": stats.TimeSinceLastMessage.String(),
	}
}
