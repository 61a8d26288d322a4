package services

import (
	"log"
	"strings"

	"github.com/fokamtech/skolink-backend/internal/models"
	"github.com/fokamtech/skolink-backend/internal/storage"
)

// BotService routes inbound WhatsApp messages: keyword commands first, then
// the active conversation if one exists, then the fallback reply. It returns
// the reply to send; the webhook handler owns the actual send.
type BotService struct {
	store    storage.Store
	sessions *SessionManager
	flow     *AbsenceFlow
}

// NewBotService creates the message router and its conversation engine.
func NewBotService(store storage.Store, sessions *SessionManager) *BotService {
	return &BotService{
		store:    store,
		sessions: sessions,
		flow:     NewAbsenceFlow(store, sessions),
	}
}

// ProcessMessage handles one inbound message and returns the reply body.
// All session access for the sender's number happens under its key lock, so
// two near-simultaneous messages from the same number cannot interleave.
func (b *BotService) ProcessMessage(msg *models.InboundMessage) (string, error) {
	phone := NormalizePhone(msg.From)

	var reply string
	b.sessions.WithLock(phone, func() {
		reply = b.route(phone, msg)
	})
	return reply, nil
}

func (b *BotService) route(phone string, msg *models.InboundMessage) string {
	guardian, _ := b.store.GetGuardianByPhone(phone)
	if guardian == nil {
		// Terminal: no session is ever created for unknown senders.
		log.Printf("Unknown sender %s, replying not-registered", phone)
		return RenderNotRegistered()
	}

	command := strings.ToLower(strings.TrimSpace(msg.Body))
	log.Printf("Processing '%s' from %s", command, phone)

	// Keywords always preempt an in-progress conversation.
	switch command {
	case "aide", "help", "menu", "bonjour", "salut":
		b.sessions.Delete(phone)
		return RenderHelp()

	case "absence":
		return b.flow.Start(phone, guardian)

	case "mes absences", "historique", "history":
		b.sessions.Delete(phone)
		return b.renderHistory(guardian)
	}

	if session, exists := b.sessions.Get(phone); exists {
		return b.flow.HandleStep(session, msg)
	}

	return RenderFallback()
}

// renderHistory lists the guardian's 5 most recent absence reports.
func (b *BotService) renderHistory(guardian *models.Guardian) string {
	absences, err := b.store.GetRecentAbsences(guardian.ID, 5)
	if err != nil {
		log.Printf("❌ Failed to load absences for guardian %d: %v", guardian.ID, err)
		return RenderPersistenceError()
	}
	if len(absences) == 0 {
		return RenderHistoryEmpty()
	}

	names := make(map[uint]string, len(guardian.Students))
	for _, s := range guardian.Students {
		names[s.ID] = s.DisplayName()
	}
	return RenderHistory(absences, names)
}
