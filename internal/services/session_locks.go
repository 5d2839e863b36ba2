package services

import (
	"sync"

	"github.com/google/uuid"
)

// SessionLocks serializes turn and completion writes per (user, scenario)
// pair within this process. The persisted lock_version is the cross-instance
// backstop; this keeps the common single-instance case free of spurious
// version conflicts. One instance is shared by every service that writes
// session rows.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[sessionKey]*sync.Mutex
}

type sessionKey struct {
	userID     uuid.UUID
	scenarioID uuid.UUID
}

func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[sessionKey]*sync.Mutex)}
}

// Acquire blocks until the per-session lock is held and returns the unlock
// func. Entries are never evicted; the map is bounded by users x scenarios.
func (l *SessionLocks) Acquire(userID, scenarioID uuid.UUID) func() {
	key := sessionKey{userID: userID, scenarioID: scenarioID}

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
