package services

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"
)

// Conversation steps, in the only order they can occur. There is no back
// step: correcting an answer means cancelling and restarting.
type FlowStep string

const (
	StepSelectingStudent      FlowStep = "selecting_student"
	StepEnteringDate          FlowStep = "entering_date"
	StepEnteringReason        FlowStep = "entering_reason"
	StepAwaitingJustification FlowStep = "awaiting_justification"
	StepConfirming            FlowStep = "confirming"
)

// StudentRef is the slice of a student the conversation needs.
type StudentRef struct {
	ID   uint
	Name string
}

// CollectedData accumulates the answers across steps.
type CollectedData struct {
	Candidates        []StudentRef // list presented at StepSelectingStudent, 1-indexed for the user
	Student           *StudentRef
	Date              string // as entered, DD/MM/YYYY
	Reason            string
	JustificationURL  string
	JustificationMime string
}

// ConversationSession tracks one guardian's progress through the absence
// flow. A session exists for a phone number exactly while that guardian is
// mid-flow; no session means free-form command routing applies.
type ConversationSession struct {
	Phone        string
	GuardianID   uint
	Step         FlowStep
	Collected    CollectedData
	CreatedAt    time.Time
	LastActivity time.Time
}

// SessionManager owns the per-phone conversation sessions. Access for one
// phone number is serialized through WithLock; different numbers proceed in
// parallel. An idle sweeper reclaims abandoned conversations; only accepted
// step transitions refresh the idle clock, so invalid spam cannot keep a
// session alive.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*ConversationSession
	keyLocks map[string]*sync.Mutex

	idleTimeout   time.Duration
	sweepInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// NewSessionManager creates a session manager and starts its sweeper.
func NewSessionManager() *SessionManager {
	sm := &SessionManager{
		sessions:      make(map[string]*ConversationSession),
		keyLocks:      make(map[string]*sync.Mutex),
		idleTimeout:   envMinutes("SESSION_IDLE_TIMEOUT_MIN", 10),
		sweepInterval: envMinutes("SESSION_SWEEP_INTERVAL_MIN", 2),
		stop:          make(chan struct{}),
	}

	go sm.sweepLoop()

	return sm
}

func envMinutes(key string, fallback int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
	}
	return time.Duration(fallback) * time.Minute
}

// WithLock runs fn while holding the per-phone lock, serializing all
// read-modify-write sequences for that number.
func (sm *SessionManager) WithLock(phone string, fn func()) {
	l := sm.keyLock(phone)
	l.Lock()
	defer l.Unlock()
	fn()
}

// keyLock returns the mutex for a phone, creating it on first use. Locks are
// kept for the life of the process; the set is bounded by the user base.
func (sm *SessionManager) keyLock(phone string) *sync.Mutex {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	l, exists := sm.keyLocks[phone]
	if !exists {
		l = &sync.Mutex{}
		sm.keyLocks[phone] = l
	}
	return l
}

// Create starts a fresh session for a phone, discarding any existing one.
func (sm *SessionManager) Create(phone string, guardianID uint, step FlowStep) *ConversationSession {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session := &ConversationSession{
		Phone:        phone,
		GuardianID:   guardianID,
		Step:         step,
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
	}
	sm.sessions[phone] = session

	log.Printf("Session created for %s", phone)
	return session
}

// Get returns the active session for a phone, if any.
func (sm *SessionManager) Get(phone string) (*ConversationSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[phone]
	return session, exists
}

// Refresh marks an accepted step transition, extending the idle clock.
// Rejected inputs must not call this.
func (sm *SessionManager) Refresh(session *ConversationSession) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session.LastActivity = time.Now()
}

// Delete removes a session on completion or cancellation.
func (sm *SessionManager) Delete(phone string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.sessions[phone]; exists {
		delete(sm.sessions, phone)
		log.Printf("Session cleared for %s", phone)
	}
}

// ActiveCount returns the number of live sessions (for monitoring).
func (sm *SessionManager) ActiveCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return len(sm.sessions)
}

// Stop shuts the sweeper down.
func (sm *SessionManager) Stop() {
	sm.stopOnce.Do(func() { close(sm.stop) })
}

// sweepLoop periodically removes sessions idle beyond the threshold.
func (sm *SessionManager) sweepLoop() {
	ticker := time.NewTicker(sm.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.SweepExpired()
		case <-sm.stop:
			return
		}
	}
}

// SweepExpired deletes every session untouched for longer than the idle
// timeout and returns how many were removed.
func (sm *SessionManager) SweepExpired() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	cutoff := time.Now().Add(-sm.idleTimeout)
	removed := 0
	for phone, session := range sm.sessions {
		if session.LastActivity.Before(cutoff) {
			delete(sm.sessions, phone)
			removed++
			log.Printf("Swept idle session for %s (last activity %s)", phone, session.LastActivity.Format(time.RFC3339))
		}
	}
	return removed
}
