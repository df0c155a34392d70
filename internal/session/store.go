// Package session keeps short-lived per-chat state so follow-up commands
// like "cancel" and "#3 delete" can resolve what they refer to.
//
// State is process-local and expires; losing it on restart is acceptable,
// the user just runs "list" again.
package session

import (
	"sync"
	"time"
)

// DefaultTTL is how long a session survives without being touched.
const DefaultTTL = 30 * time.Minute

const maxCleanupInterval = 5 * time.Minute

// Session is the per-chat memory used to resolve positional references.
type Session struct {
	// LastExpenseID is the most recently created expense, target of
	// "cancel" and "edit".
	LastExpenseID int

	// Listing holds the expense ids from the last "list" reply, in display
	// order, so "#3" means Listing[2].
	Listing []int
}

type entry struct {
	session   Session
	expiresAt time.Time
}

// Store is an in-memory TTL map of chat identity to Session.
type Store struct {
	ttl time.Duration

	mu          sync.RWMutex
	sessions    map[string]entry
	lastCleanup time.Time
}

// NewStore returns a session store with the given TTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:      ttl,
		sessions: make(map[string]entry),
	}
}

// Get returns the session for a chat key, or a zero session if none exists
// or it has expired.
func (s *Store) Get(key string) Session {
	now := time.Now()

	s.mu.RLock()
	e, ok := s.sessions[key]
	s.mu.RUnlock()

	if !ok || now.After(e.expiresAt) {
		return Session{}
	}
	return e.session
}

// Put stores the session for a chat key and refreshes its TTL.
func (s *Store) Put(key string, session Session) {
	now := time.Now()

	s.mu.Lock()
	s.sessions[key] = entry{session: session, expiresAt: now.Add(s.ttl)}
	s.cleanupLocked(now)
	s.mu.Unlock()
}

// SetLastExpense records the id of a newly created expense.
func (s *Store) SetLastExpense(key string, expenseID int) {
	session := s.Get(key)
	session.LastExpenseID = expenseID
	s.Put(key, session)
}

// ClearLastExpense forgets the last-expense pointer after cancel/undo.
func (s *Store) ClearLastExpense(key string) {
	session := s.Get(key)
	session.LastExpenseID = 0
	s.Put(key, session)
}

// SetListing caches the ids shown by the last "list" reply.
func (s *Store) SetListing(key string, ids []int) {
	session := s.Get(key)
	session.Listing = ids
	s.Put(key, session)
}

// cleanupLocked drops expired sessions. Runs at most every
// maxCleanupInterval; callers must hold the write lock.
func (s *Store) cleanupLocked(now time.Time) {
	if now.Sub(s.lastCleanup) < maxCleanupInterval {
		return
	}
	s.lastCleanup = now
	for key, e := range s.sessions {
		if now.After(e.expiresAt) {
			delete(s.sessions, key)
		}
	}
}
