package dashboard

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an untouched session is kept.
const DefaultSessionTTL = 30 * time.Minute

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// StoreConfig holds configuration for a Store.
type StoreConfig struct {
	Session Config

	// TTL is the idle time after which a session is evicted (default: 30 minutes).
	TTL time.Duration
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Store keeps sessions in memory. Expired sessions are evicted lazily on
// Create and Get.
type Store struct {
	cfg Config
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewStore creates an empty session store.
func NewStore(cfg StoreConfig) *Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	sessionCfg := cfg.Session.withDefaults()

	return &Store{
		cfg:      sessionCfg,
		ttl:      ttl,
		now:      sessionCfg.Now,
		sessions: make(map[string]*entry),
	}
}

// Create starts a new session.
func (s *Store) Create() *Session {
	id := "ses_" + uuid.NewString()
	session := NewSession(id, s.cfg)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked()
	s.sessions[id] = &entry{session: session, lastSeen: s.now()}
	return session
}

// Get returns the session with the given ID and marks it as used.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked()
	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastSeen = s.now()
	return e.session, nil
}

// Delete closes and removes the session.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	e.session.Close()
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close closes every session.
func (s *Store) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*entry)
	s.mu.Unlock()

	for _, e := range sessions {
		e.session.Close()
	}
}

func (s *Store) evictExpiredLocked() {
	cutoff := s.now().Add(-s.ttl)
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			e.session.Close()
		}
	}
}
