package csvimport

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStore keeps import sessions in memory and expires idle ones.
type SessionStore struct {
	ttl time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	stop     chan struct{}
	once     sync.Once
}

// NewSessionStore creates a store whose sessions expire after ttl without
// activity. Close stops the cleanup goroutine.
func NewSessionStore(ttl time.Duration) *SessionStore {
	s := &SessionStore{
		ttl:      ttl,
		sessions: make(map[uuid.UUID]*Session),
		stop:     make(chan struct{}),
	}
	go s.cleanup()
	return s
}

// Put registers a session.
func (s *SessionStore) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

// Get returns a live session and refreshes its expiry.
func (s *SessionStore) Get(id uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.touch()
	return sess, true
}

// Delete removes a session.
func (s *SessionStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops background cleanup.
func (s *SessionStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *SessionStore) cleanup() {
	interval := s.ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.expire(time.Now())
		}
	}
}

// expire drops sessions idle longer than ttl. Sessions that are committing
// are kept.
func (s *SessionStore) expire(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.idleSince(now) > s.ttl && !sess.isCommitting() {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
