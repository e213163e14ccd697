package session

import (
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Sessions are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	locks    userLocks
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*Session),
		locks:    userLocks{locks: make(map[int64]*userLock)},
		now:      time.Now,
	}
}

// Get returns a copy of the user's session
func (s *MemoryStore) Get(userID int64) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return Session{}, false
	}
	cp := *sess
	cp.Pending = clonePending(sess.Pending)
	return cp, true
}

// Set replaces the user's session
func (s *MemoryStore) Set(userID int64, mode Mode, pending *Pending) {
	s.put(&Session{
		UserID:    userID,
		Mode:      mode,
		Pending:   clonePending(pending),
		UpdatedAt: s.now(),
	})
}

func (s *MemoryStore) put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = sess
}

// Clear removes the user's session
func (s *MemoryStore) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// Lock acquires the per-user lock
func (s *MemoryStore) Lock(userID int64) func() {
	return s.locks.lock(userID)
}

// Len returns the number of active sessions
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}

// userLocks is a keyed mutex. Entries are dropped once nobody holds or
// waits on them.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func (l *userLocks) lock(userID int64) func() {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			ul.mu.Unlock()

			l.mu.Lock()
			ul.refs--
			if ul.refs == 0 {
				delete(l.locks, userID)
			}
			l.mu.Unlock()
		})
	}
}
