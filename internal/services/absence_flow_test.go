package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fokamtech/skolink-backend/internal/models"
	"github.com/fokamtech/skolink-backend/internal/storage"
)

const (
	alicePhone  = "+23761112222"
	aliceSender = "23761112222" // as the gateway delivers it, without the plus
)

func newTestBot(t *testing.T) (*BotService, *storage.MemoryStore, *SessionManager) {
	t.Helper()
	t.Setenv("DEFAULT_COUNTRY_CODE", "237")

	store := storage.NewMemoryStore()
	guardian, err := store.CreateGuardian(&models.Guardian{Name: "Alice", Phone: alicePhone})
	if err != nil {
		t.Fatalf("seeding guardian: %v", err)
	}
	if _, err := store.CreateStudent(&models.Student{GuardianID: guardian.ID, FirstName: "Léo"}); err != nil {
		t.Fatalf("seeding student: %v", err)
	}

	sessions := NewSessionManager()
	t.Cleanup(sessions.Stop)

	return NewBotService(store, sessions), store, sessions
}

func say(t *testing.T, bot *BotService, from, body string) string {
	t.Helper()
	reply, err := bot.ProcessMessage(&models.InboundMessage{From: from, Body: body, Kind: "text"})
	if err != nil {
		t.Fatalf("ProcessMessage(%q): %v", body, err)
	}
	return reply
}

func TestFullAbsenceFlow(t *testing.T) {
	bot, store, sessions := newTestBot(t)

	reply := say(t, bot, aliceSender, "absence")
	if !strings.Contains(reply, "1. Léo") {
		t.Fatalf("expected student list, got:\n%s", reply)
	}

	reply = say(t, bot, aliceSender, "1")
	if !strings.Contains(reply, "date") {
		t.Fatalf("expected date prompt, got:\n%s", reply)
	}

	reply = say(t, bot, aliceSender, "aujourd'hui")
	if !strings.Contains(reply, "motif") {
		t.Fatalf("expected reason prompt, got:\n%s", reply)
	}

	reply = say(t, bot, aliceSender, "Maladie")
	if !strings.Contains(reply, "justificatif") {
		t.Fatalf("expected justification prompt, got:\n%s", reply)
	}

	reply = say(t, bot, aliceSender, "non")
	if !strings.Contains(reply, "Léo") || !strings.Contains(reply, "Maladie") {
		t.Fatalf("expected confirmation summary with student and reason, got:\n%s", reply)
	}

	reply = say(t, bot, aliceSender, "oui")
	if !strings.Contains(reply, "signalée") {
		t.Fatalf("expected success template, got:\n%s", reply)
	}

	if _, exists := sessions.Get(alicePhone); exists {
		t.Error("session should be cleared after confirmation")
	}

	absences, err := store.GetRecentAbsences(1, 5)
	if err != nil {
		t.Fatalf("GetRecentAbsences: %v", err)
	}
	if len(absences) != 1 {
		t.Fatalf("expected exactly 1 absence record, got %d", len(absences))
	}
	a := absences[0]
	if a.Status != models.AbsenceStatusPending {
		t.Errorf("expected status pending, got %q", a.Status)
	}
	if a.Reason != "Maladie" {
		t.Errorf("expected reason Maladie, got %q", a.Reason)
	}
	if want := time.Now().Format("2006-01-02"); a.Date != want {
		t.Errorf("expected ISO date %s, got %s", want, a.Date)
	}
}

func TestInvalidDateIsRejectedThenAccepted(t *testing.T) {
	bot, _, sessions := newTestBot(t)

	say(t, bot, aliceSender, "absence")
	say(t, bot, aliceSender, "1")

	reply := say(t, bot, aliceSender, "32/13/2024")
	if !strings.Contains(reply, "invalide") {
		t.Fatalf("expected date format error, got:\n%s", reply)
	}

	session, exists := sessions.Get(alicePhone)
	if !exists || session.Step != StepEnteringDate {
		t.Fatalf("session should remain at date step, got %+v", session)
	}

	reply = say(t, bot, aliceSender, "15/01/2024")
	if !strings.Contains(reply, "motif") {
		t.Fatalf("expected reason prompt after valid date, got:\n%s", reply)
	}
	if session.Collected.Date != "15/01/2024" {
		t.Errorf("expected stored date 15/01/2024, got %q", session.Collected.Date)
	}
}

func TestRejectedInputDoesNotMutateSession(t *testing.T) {
	bot, _, sessions := newTestBot(t)

	say(t, bot, aliceSender, "absence")
	session, _ := sessions.Get(alicePhone)
	before := session.Collected
	lastSeen := session.LastActivity

	for _, junk := range []string{"abc", "0", "5", "-1", "1.5"} {
		say(t, bot, aliceSender, junk)
		if session.Step != StepSelectingStudent {
			t.Fatalf("input %q advanced the step to %q", junk, session.Step)
		}
		if session.Collected.Student != before.Student {
			t.Fatalf("input %q mutated collected data", junk)
		}
		if !session.LastActivity.Equal(lastSeen) {
			t.Fatalf("input %q refreshed the idle clock", junk)
		}
	}
}

func TestInvalidSpamDoesNotKeepSessionAlive(t *testing.T) {
	bot, _, sessions := newTestBot(t)

	say(t, bot, aliceSender, "absence")
	session, _ := sessions.Get(alicePhone)
	session.LastActivity = time.Now().Add(-sessions.idleTimeout - time.Minute)

	// Re-prompts must not extend the session's life.
	say(t, bot, aliceSender, "abc")
	say(t, bot, aliceSender, "99")

	if removed := sessions.SweepExpired(); removed != 1 {
		t.Fatalf("expected the spammed session to be swept, removed %d", removed)
	}
	if _, exists := sessions.Get(alicePhone); exists {
		t.Error("session should not survive the sweep on invalid input alone")
	}
}

func TestCancellationAtConfirmation(t *testing.T) {
	bot, store, sessions := newTestBot(t)

	say(t, bot, aliceSender, "absence")
	say(t, bot, aliceSender, "1")
	say(t, bot, aliceSender, "15/01/2024")
	say(t, bot, aliceSender, "Maladie")
	say(t, bot, aliceSender, "non")

	reply := say(t, bot, aliceSender, "non")
	if !strings.Contains(reply, "annulé") {
		t.Fatalf("expected cancellation template, got:\n%s", reply)
	}
	if _, exists := sessions.Get(alicePhone); exists {
		t.Error("session should be deleted on cancellation")
	}

	absences, _ := store.GetRecentAbsences(1, 5)
	if len(absences) != 0 {
		t.Errorf("no absence should exist after cancellation, got %d", len(absences))
	}
}

func TestConfirmationReprompt(t *testing.T) {
	bot, _, sessions := newTestBot(t)

	say(t, bot, aliceSender, "absence")
	say(t, bot, aliceSender, "1")
	say(t, bot, aliceSender, "15/01/2024")
	say(t, bot, aliceSender, "Maladie")
	say(t, bot, aliceSender, "non")

	reply := say(t, bot, aliceSender, "peut-être")
	if !strings.Contains(reply, "oui") || !strings.Contains(reply, "non") {
		t.Fatalf("expected yes/no re-prompt, got:\n%s", reply)
	}

	session, exists := sessions.Get(alicePhone)
	if !exists || session.Step != StepConfirming {
		t.Error("session should remain at confirmation after unrecognized answer")
	}
}

func TestJustificationIsLenient(t *testing.T) {
	bot, _, sessions := newTestBot(t)

	say(t, bot, aliceSender, "absence")
	say(t, bot, aliceSender, "1")
	say(t, bot, aliceSender, "15/01/2024")
	say(t, bot, aliceSender, "Maladie")

	// Any non-media answer counts as declining, typos included.
	reply := say(t, bot, aliceSender, "nno")
	if !strings.Contains(reply, "aucun") {
		t.Fatalf("expected summary without justification, got:\n%s", reply)
	}

	session, _ := sessions.Get(alicePhone)
	if session.Collected.JustificationURL != "" {
		t.Error("no justification should be recorded for a text answer")
	}
}

func TestJustificationMediaIsRecorded(t *testing.T) {
	bot, store, _ := newTestBot(t)

	say(t, bot, aliceSender, "absence")
	say(t, bot, aliceSender, "1")
	say(t, bot, aliceSender, "15/01/2024")
	say(t, bot, aliceSender, "Maladie")

	reply, err := bot.ProcessMessage(&models.InboundMessage{
		From:      aliceSender,
		Kind:      "image",
		MediaURL:  "https://media.example.com/justif.jpg",
		MediaMime: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("ProcessMessage with media: %v", err)
	}
	if !strings.Contains(reply, "fourni") {
		t.Fatalf("expected summary noting the justification, got:\n%s", reply)
	}

	say(t, bot, aliceSender, "oui")

	absences, _ := store.GetRecentAbsences(1, 5)
	if len(absences) != 1 {
		t.Fatalf("expected 1 absence, got %d", len(absences))
	}
	if absences[0].JustificationURL != "https://media.example.com/justif.jpg" {
		t.Errorf("justification reference not persisted: %+v", absences[0])
	}
	if absences[0].JustificationMime != "image/jpeg" {
		t.Errorf("justification mime not persisted: %+v", absences[0])
	}
}

func TestUnknownSenderIsTerminal(t *testing.T) {
	bot, _, sessions := newTestBot(t)

	reply := say(t, bot, "23700000000", "absence")
	if reply != RenderNotRegistered() {
		t.Fatalf("expected not-registered template, got:\n%s", reply)
	}
	if _, exists := sessions.Get("+23700000000"); exists {
		t.Fatal("no session may be created for unknown senders")
	}

	// A second message must hit the same terminal branch, not a flow step.
	reply = say(t, bot, "23700000000", "1")
	if reply != RenderNotRegistered() {
		t.Fatalf("expected not-registered again, got:\n%s", reply)
	}
}

func TestKeywordsPreemptActiveSession(t *testing.T) {
	bot, _, sessions := newTestBot(t)

	say(t, bot, aliceSender, "absence")
	say(t, bot, aliceSender, "1")

	// Restarting mid-flow silently discards the old session.
	reply := say(t, bot, aliceSender, "absence")
	if !strings.Contains(reply, "1. Léo") {
		t.Fatalf("expected a fresh student list, got:\n%s", reply)
	}
	session, _ := sessions.Get(alicePhone)
	if session.Step != StepSelectingStudent || session.Collected.Student != nil {
		t.Error("restart should have reset the session")
	}

	// Help abandons the conversation entirely.
	say(t, bot, aliceSender, "aide")
	if _, exists := sessions.Get(alicePhone); exists {
		t.Error("help keyword should abandon the session")
	}
}

func TestGreetingKeywordPreemptsReasonStep(t *testing.T) {
	bot, _, sessions := newTestBot(t)

	say(t, bot, aliceSender, "absence")
	say(t, bot, aliceSender, "1")
	say(t, bot, aliceSender, "15/01/2024")

	// Command words are never captured as a reason; they abandon the flow.
	reply := say(t, bot, aliceSender, "bonjour")
	if reply != RenderHelp() {
		t.Fatalf("expected help reply for greeting mid-flow, got:\n%s", reply)
	}
	if _, exists := sessions.Get(alicePhone); exists {
		t.Error("greeting keyword should abandon the session")
	}
}

func TestNoChildrenBlocksFlow(t *testing.T) {
	t.Setenv("DEFAULT_COUNTRY_CODE", "237")

	store := storage.NewMemoryStore()
	if _, err := store.CreateGuardian(&models.Guardian{Name: "Bob", Phone: "+23768887777"}); err != nil {
		t.Fatal(err)
	}
	sessions := NewSessionManager()
	t.Cleanup(sessions.Stop)
	bot := NewBotService(store, sessions)

	reply := say(t, bot, "23768887777", "absence")
	if reply != RenderNoChildren() {
		t.Fatalf("expected no-children template, got:\n%s", reply)
	}
	if _, exists := sessions.Get("+23768887777"); exists {
		t.Error("no session should exist without linked children")
	}
}

func TestFallbackWithoutSession(t *testing.T) {
	bot, _, _ := newTestBot(t)

	reply := say(t, bot, aliceSender, "n'importe quoi")
	if reply != RenderFallback() {
		t.Fatalf("expected fallback template, got:\n%s", reply)
	}
}

func TestHelpKeyword(t *testing.T) {
	bot, _, _ := newTestBot(t)

	for _, kw := range []string{"aide", "AIDE", "help", "  Aide  "} {
		reply := say(t, bot, aliceSender, kw)
		if reply != RenderHelp() {
			t.Fatalf("keyword %q should render help, got:\n%s", kw, reply)
		}
	}
}

func TestHistoryKeyword(t *testing.T) {
	bot, store, _ := newTestBot(t)

	reply := say(t, bot, aliceSender, "mes absences")
	if reply != RenderHistoryEmpty() {
		t.Fatalf("expected empty history, got:\n%s", reply)
	}

	for i := 0; i < 7; i++ {
		_, err := store.CreateAbsence(&models.Absence{
			GuardianID: 1,
			StudentID:  1,
			Date:       fmt.Sprintf("2024-01-%02d", i+1),
			Reason:     "Maladie",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	reply = say(t, bot, aliceSender, "mes absences")
	if !strings.Contains(reply, "Léo") || !strings.Contains(reply, "en attente") {
		t.Fatalf("expected history entries, got:\n%s", reply)
	}
	// 5 most recent only: header line + 5 bullets.
	if got := strings.Count(reply, "•"); got != 5 {
		t.Errorf("expected 5 history entries, got %d:\n%s", got, reply)
	}
	if !strings.Contains(reply, "2024-01-07") {
		t.Errorf("expected most recent absence in history:\n%s", reply)
	}
	if strings.Contains(reply, "2024-01-01") {
		t.Errorf("oldest absences should be cut off at 5:\n%s", reply)
	}
}

// failingStore simulates a database outage on absence creation.
type failingStore struct {
	storage.Store
}

func (f *failingStore) CreateAbsence(a *models.Absence) (*models.Absence, error) {
	return nil, fmt.Errorf("db down")
}

func TestPersistenceFailureClearsSession(t *testing.T) {
	t.Setenv("DEFAULT_COUNTRY_CODE", "237")

	mem := storage.NewMemoryStore()
	guardian, _ := mem.CreateGuardian(&models.Guardian{Name: "Alice", Phone: alicePhone})
	mem.CreateStudent(&models.Student{GuardianID: guardian.ID, FirstName: "Léo"})

	sessions := NewSessionManager()
	t.Cleanup(sessions.Stop)
	bot := NewBotService(&failingStore{Store: mem}, sessions)

	say(t, bot, aliceSender, "absence")
	say(t, bot, aliceSender, "1")
	say(t, bot, aliceSender, "15/01/2024")
	say(t, bot, aliceSender, "Maladie")
	say(t, bot, aliceSender, "non")

	reply := say(t, bot, aliceSender, "oui")
	if reply != RenderPersistenceError() {
		t.Fatalf("expected persistence error template, got:\n%s", reply)
	}
	if _, exists := sessions.Get(alicePhone); exists {
		t.Error("session must be cleared even when persistence fails")
	}
}
