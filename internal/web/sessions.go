package web

import (
	"context"
	"sync"
	"time"

	"coinboard/internal/metrics"
	"coinboard/internal/page"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ControllerFactory builds a fresh, unmounted page controller
type ControllerFactory func() *page.Controller

type session struct {
	controller *page.Controller
	lastSeen   time.Time
}

// SessionStore maps browser sessions to their own page controller.
// A controller is mounted when its session is created and unmounted
// when the session is swept or the store is closed.
type SessionStore struct {
	factory     ControllerFactory
	idleTimeout time.Duration
	logger      *logrus.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func NewSessionStore(factory ControllerFactory, idleTimeout time.Duration, logger *logrus.Logger) *SessionStore {
	return &SessionStore{
		factory:     factory,
		idleTimeout: idleTimeout,
		logger:      logger,
		now:         time.Now,
		sessions:    make(map[string]*session),
	}
}

// Get returns the controller for id, creating and mounting a new session
// when id is unknown. The returned id is the one the caller should keep.
func (s *SessionStore) Get(id string) (*page.Controller, string, bool) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok && id != "" {
		sess.lastSeen = s.now()
		s.mu.Unlock()
		return sess.controller, id, false
	}

	newID := uuid.NewString()
	controller := s.factory()
	s.sessions[newID] = &session{controller: controller, lastSeen: s.now()}
	s.mu.Unlock()

	metrics.ActiveSessions.Inc()
	s.logger.WithField("session", newID).Debug("Mounted page session")
	controller.Mount()

	return controller, newID, true
}

// Lookup returns the controller for a known session and marks it as used
func (s *SessionStore) Lookup(id string) (*page.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.lastSeen = s.now()
	return sess.controller, true
}

// Len returns the number of live sessions
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep unmounts sessions idle for longer than the idle timeout
func (s *SessionStore) Sweep() int {
	cutoff := s.now().Add(-s.idleTimeout)

	var expired []*page.Controller
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			expired = append(expired, sess.controller)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, controller := range expired {
		controller.Unmount()
		metrics.ActiveSessions.Dec()
	}

	if len(expired) > 0 {
		s.logger.Infof("Unmounted %d idle sessions", len(expired))
	}
	return len(expired)
}

// StartJanitor sweeps idle sessions every interval until ctx is done
func (s *SessionStore) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Session janitor stopped")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Close unmounts every session
func (s *SessionStore) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.controller.Unmount()
		metrics.ActiveSessions.Dec()
	}
}
