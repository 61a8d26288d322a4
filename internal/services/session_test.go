package services

import (
	"sync"
	"testing"
	"time"
)

func newTestSessionManager(t *testing.T) *SessionManager {
	t.Helper()
	sm := NewSessionManager()
	t.Cleanup(sm.Stop)
	return sm
}

func TestSessionCreateGetDelete(t *testing.T) {
	sm := newTestSessionManager(t)

	if _, exists := sm.Get("+23761112222"); exists {
		t.Fatal("expected no session before Create")
	}

	sm.Create("+23761112222", 1, StepSelectingStudent)

	session, exists := sm.Get("+23761112222")
	if !exists {
		t.Fatal("expected session after Create")
	}
	if session.Step != StepSelectingStudent {
		t.Errorf("expected step %q, got %q", StepSelectingStudent, session.Step)
	}
	if session.GuardianID != 1 {
		t.Errorf("expected guardian 1, got %d", session.GuardianID)
	}

	sm.Delete("+23761112222")
	if _, exists := sm.Get("+23761112222"); exists {
		t.Error("expected no session after Delete")
	}
}

func TestSessionCreateOverwrites(t *testing.T) {
	sm := newTestSessionManager(t)

	first := sm.Create("+23761112222", 1, StepConfirming)
	first.Collected.Reason = "Maladie"

	second := sm.Create("+23761112222", 1, StepSelectingStudent)
	if second.Collected.Reason != "" {
		t.Error("expected fresh collected data after re-Create")
	}
	if second.Step != StepSelectingStudent {
		t.Errorf("expected step reset, got %q", second.Step)
	}
}

func TestSessionsAreKeyedPerPhone(t *testing.T) {
	sm := newTestSessionManager(t)

	a := sm.Create("+23761112222", 1, StepEnteringReason)
	b := sm.Create("+23769998888", 2, StepEnteringDate)
	a.Collected.Reason = "Maladie"

	gotB, _ := sm.Get("+23769998888")
	if gotB.Collected.Reason != "" {
		t.Error("session data leaked across phone numbers")
	}
	if gotB.GuardianID != 2 {
		t.Errorf("expected guardian 2, got %d", gotB.GuardianID)
	}
	_ = b
}

func TestSweepExpiredRemovesOnlyStaleSessions(t *testing.T) {
	sm := newTestSessionManager(t)

	stale := sm.Create("+23761112222", 1, StepEnteringDate)
	fresh := sm.Create("+23769998888", 2, StepEnteringDate)

	stale.LastActivity = time.Now().Add(-sm.idleTimeout - time.Minute)
	fresh.LastActivity = time.Now()

	removed := sm.SweepExpired()
	if removed != 1 {
		t.Fatalf("expected 1 removed session, got %d", removed)
	}
	if _, exists := sm.Get("+23761112222"); exists {
		t.Error("stale session should have been swept")
	}
	if _, exists := sm.Get("+23769998888"); !exists {
		t.Error("fresh session should have survived the sweep")
	}
}

func TestRefreshExtendsIdleClock(t *testing.T) {
	sm := newTestSessionManager(t)

	session := sm.Create("+23761112222", 1, StepEnteringDate)
	session.LastActivity = time.Now().Add(-sm.idleTimeout - time.Minute)

	sm.Refresh(session)

	if removed := sm.SweepExpired(); removed != 0 {
		t.Errorf("refreshed session should not be swept, removed %d", removed)
	}
}

func TestWithLockSerializesPerPhone(t *testing.T) {
	sm := newTestSessionManager(t)
	session := sm.Create("+23761112222", 1, StepEnteringReason)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sm.WithLock("+23761112222", func() {
				session.Collected.Reason += "x"
			})
		}()
	}
	wg.Wait()

	if len(session.Collected.Reason) != 50 {
		t.Errorf("expected 50 serialized appends, got %d", len(session.Collected.Reason))
	}
}

func TestActiveCount(t *testing.T) {
	sm := newTestSessionManager(t)

	sm.Create("+23761112222", 1, StepEnteringDate)
	sm.Create("+23769998888", 2, StepEnteringDate)
	if got := sm.ActiveCount(); got != 2 {
		t.Errorf("expected 2 active sessions, got %d", got)
	}

	sm.Delete("+23761112222")
	if got := sm.ActiveCount(); got != 1 {
		t.Errorf("expected 1 active session, got %d", got)
	}
}
