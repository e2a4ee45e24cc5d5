package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"orpheus/internal/adapters/config"
	"orpheus/pkg/errors"
	"orpheus/pkg/logger"
)

// Manager tracks live sessions, enforces the concurrency bound, and
// cuts calls that exceed the maximum duration.
type Manager struct {
	cfg config.SessionConfig
	log *logger.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	stopChan chan struct{}
	doneChan chan struct{}
	started  bool
}

// NewManager creates the live session registry
func NewManager(cfg config.SessionConfig) *Manager {
	return &Manager{
		cfg:      cfg,
		log:      logger.Get().With("component", "session_manager"),
		sessions: make(map[uuid.UUID]*Session),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start launches the duration watchdog
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go m.watchLoop()
}

// Add registers a live session. Fails when the concurrency bound is
// reached; the caller should reject the call before dialing upstream.
func (m *Manager) Add(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxConcurrent > 0 && len(m.sessions) >= m.cfg.MaxConcurrent {
		return errors.Wrapf(errors.ErrSessionLimit, "limit=%d", m.cfg.MaxConcurrent)
	}

	m.sessions[s.ID()] = s
	return nil
}

// Remove drops a session from the registry
func (m *Manager) Remove(id uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Get returns a live session by call ID
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Has reports whether this process is serving the call. The session
// reaper uses it to leave locally owned records alone.
func (m *Manager) Has(id uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[id]
	return ok
}

// ActiveCount returns the number of live sessions
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown ends every live session and waits for them to wind down,
// bounded by the given timeout.
func (m *Manager) Shutdown(timeout time.Duration) {
	close(m.stopChan)

	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()

	if len(live) == 0 {
		return
	}

	m.log.Infow("Ending live sessions for shutdown", "count", len(live))

	var wg sync.WaitGroup
	for _, s := range live {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.End("gateway shutting down")
			<-s.Done()
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		m.log.Warn("Timeout waiting for sessions to end")
	}
}

// watchLoop cuts calls that exceeded the maximum duration and prunes
// finished sessions that were never removed.
func (m *Manager) watchLoop() {
	defer close(m.doneChan)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	m.mu.RLock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.RUnlock()

	for _, s := range live {
		snap := s.Snapshot()

		select {
		case <-s.Done():
			m.Remove(snap.ID)
			continue
		default:
		}

		if m.cfg.MaxDuration > 0 && snap.Duration() > m.cfg.MaxDuration {
			m.log.Infow("Cutting over-long call", "call_id", snap.ID, "duration", snap.Duration())
			go s.End("maximum call duration reached")
		}
	}
}
