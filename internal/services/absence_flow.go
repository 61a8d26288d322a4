package services

import (
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fokamtech/skolink-backend/internal/models"
	"github.com/fokamtech/skolink-backend/internal/storage"
)

// dateTokenRe enforces the strict JJ/MM/AAAA shape before real calendar
// validation. No partial dates, no natural language.
var dateTokenRe = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

const (
	dateLayout = "02/01/2006"
	isoLayout  = "2006-01-02"
)

// AbsenceFlow drives the absence-reporting conversation. Each inbound
// message advances the machine by exactly one transition; suspension between
// steps lives in the messaging channel, not in-process. Callers must hold
// the per-phone session lock.
type AbsenceFlow struct {
	store    storage.Store
	sessions *SessionManager
}

// NewAbsenceFlow creates the conversation state machine.
func NewAbsenceFlow(store storage.Store, sessions *SessionManager) *AbsenceFlow {
	return &AbsenceFlow{
		store:    store,
		sessions: sessions,
	}
}

// Start opens a new conversation, discarding any session already in flight.
// Entry requires at least one linked child.
func (f *AbsenceFlow) Start(phone string, guardian *models.Guardian) string {
	if len(guardian.Students) == 0 {
		f.sessions.Delete(phone)
		return RenderNoChildren()
	}

	session := f.sessions.Create(phone, guardian.ID, StepSelectingStudent)

	names := make([]string, 0, len(guardian.Students))
	for _, s := range guardian.Students {
		session.Collected.Candidates = append(session.Collected.Candidates, StudentRef{
			ID:   s.ID,
			Name: s.DisplayName(),
		})
		names = append(names, s.DisplayName())
	}

	return RenderStudentList(names)
}

// HandleStep routes an inbound message to the current step's handler.
func (f *AbsenceFlow) HandleStep(session *ConversationSession, msg *models.InboundMessage) string {
	switch session.Step {
	case StepSelectingStudent:
		return f.handleStudentSelection(session, msg)
	case StepEnteringDate:
		return f.handleDate(session, msg)
	case StepEnteringReason:
		return f.handleReason(session, msg)
	case StepAwaitingJustification:
		return f.handleJustification(session, msg)
	case StepConfirming:
		return f.handleConfirmation(session, msg)
	default:
		// Unknown step means the session is corrupt; drop it.
		log.Printf("⚠️  Session for %s in unknown step %q, clearing", session.Phone, session.Step)
		f.sessions.Delete(session.Phone)
		return RenderFallback()
	}
}

// handleStudentSelection accepts a bare 1-indexed list position.
func (f *AbsenceFlow) handleStudentSelection(session *ConversationSession, msg *models.InboundMessage) string {
	choice, err := strconv.Atoi(strings.TrimSpace(msg.Body))
	if err != nil || choice < 1 || choice > len(session.Collected.Candidates) {
		return RenderStudentSelectionError(len(session.Collected.Candidates))
	}

	student := session.Collected.Candidates[choice-1]
	session.Collected.Student = &student
	session.Step = StepEnteringDate
	f.sessions.Refresh(session)

	return RenderDatePrompt(student.Name)
}

// handleDate accepts the "today" keyword or a strict JJ/MM/AAAA token.
func (f *AbsenceFlow) handleDate(session *ConversationSession, msg *models.InboundMessage) string {
	body := strings.ToLower(strings.TrimSpace(msg.Body))

	var date string
	switch {
	case body == "aujourd'hui" || body == "aujourdhui" || body == "today":
		date = time.Now().Format(dateLayout)
	case dateTokenRe.MatchString(body):
		if _, err := time.Parse(dateLayout, body); err != nil {
			return RenderDateError()
		}
		date = body
	default:
		return RenderDateError()
	}

	session.Collected.Date = date
	session.Step = StepEnteringReason
	f.sessions.Refresh(session)

	return RenderReasonPrompt()
}

// handleReason takes the whole message body verbatim. Always advances.
func (f *AbsenceFlow) handleReason(session *ConversationSession, msg *models.InboundMessage) string {
	session.Collected.Reason = msg.Body
	session.Step = StepAwaitingJustification
	f.sessions.Refresh(session)

	return RenderJustificationPrompt()
}

// handleJustification records an attachment when one is present. Anything
// else, "non" or not, counts as declining; this step is not a validation
// gate. Always advances to confirmation.
func (f *AbsenceFlow) handleJustification(session *ConversationSession, msg *models.InboundMessage) string {
	if msg.HasMedia() {
		session.Collected.JustificationURL = msg.MediaURL
		session.Collected.JustificationMime = msg.MediaMime
	}

	session.Step = StepConfirming
	f.sessions.Refresh(session)

	c := session.Collected
	return RenderConfirmation(c.Student.Name, c.Date, c.Reason, c.JustificationURL != "")
}

// handleConfirmation persists on yes, cancels on no, re-prompts otherwise.
func (f *AbsenceFlow) handleConfirmation(session *ConversationSession, msg *models.InboundMessage) string {
	body := strings.ToLower(strings.TrimSpace(msg.Body))

	switch {
	case isYes(body):
		return f.persist(session)
	case isNo(body):
		f.sessions.Delete(session.Phone)
		return RenderCancelled()
	default:
		return RenderConfirmError()
	}
}

// persist converts the date to ISO, writes the absence record and clears the
// session. On failure the session is cleared anyway: the flow never retries,
// the guardian restarts from scratch.
func (f *AbsenceFlow) persist(session *ConversationSession) string {
	c := session.Collected

	parsed, err := time.Parse(dateLayout, c.Date)
	if err != nil {
		// Date was validated on entry; reaching this means a corrupt session.
		log.Printf("❌ Unparseable date %q in session for %s: %v", c.Date, session.Phone, err)
		f.sessions.Delete(session.Phone)
		return RenderPersistenceError()
	}

	absence := &models.Absence{
		GuardianID:        session.GuardianID,
		StudentID:         c.Student.ID,
		Date:              parsed.Format(isoLayout),
		Reason:            c.Reason,
		Status:            models.AbsenceStatusPending,
		JustificationURL:  c.JustificationURL,
		JustificationMime: c.JustificationMime,
	}

	if _, err := f.store.CreateAbsence(absence); err != nil {
		log.Printf("❌ Failed to save absence for %s: %v", session.Phone, err)
		f.sessions.Delete(session.Phone)
		return RenderPersistenceError()
	}

	f.sessions.Delete(session.Phone)
	log.Printf("✅ Absence %s recorded for student %d (%s)", absence.AbsenceID, c.Student.ID, absence.Date)

	return RenderSuccess(c.Student.Name, c.Date)
}

func isYes(body string) bool {
	switch body {
	case "oui", "yes", "o", "y", "confirmer":
		return true
	}
	return false
}

func isNo(body string) bool {
	switch body {
	case "non", "no", "n", "annuler":
		return true
	}
	return false
}
