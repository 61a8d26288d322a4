package handlers

import (
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/fokamtech/skolink-backend/internal/models"
	"github.com/fokamtech/skolink-backend/internal/services"
	"github.com/fokamtech/skolink-backend/internal/storage"
)

// WebhookEnvelope is the gateway's callback payload.
type WebhookEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// webhookMessage is the data of a "messages" event.
type webhookMessage struct {
	ID    string        `json:"id"`
	From  string        `json:"from"`
	Body  string        `json:"body"`
	Type  string        `json:"type"` // text, image, document
	Media *webhookMedia `json:"media"`
}

type webhookMedia struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// webhookStatus is the data of a "message.status" event.
type webhookStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	ChatID string `json:"chat_id"`
}

// WebhookHandler processes the gateway's inbound callbacks.
type WebhookHandler struct {
	store  storage.Store
	bot    *services.BotService
	sender services.MessageSender
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(store storage.Store, bot *services.BotService, sender services.MessageSender) *WebhookHandler {
	return &WebhookHandler{
		store:  store,
		bot:    bot,
		sender: sender,
	}
}

// HandleWebhook classifies and dispatches one callback. Signature checking
// happens in middleware before this runs. Everything past the signature must
// answer 200: a non-2xx here would make the gateway retry the whole webhook
// and double-process it.
func (h *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	var envelope WebhookEnvelope
	if err := json.Unmarshal(c.Body(), &envelope); err != nil {
		log.Printf("⚠️  Malformed webhook payload: %v", err)
		return c.JSON(fiber.Map{"success": true})
	}

	switch envelope.Event {
	case "messages":
		h.handleMessage(envelope.Data)
	case "message.status":
		h.handleStatus(envelope.Data)
	default:
		log.Printf("⚠️  Unrecognized webhook event %q, ignoring", envelope.Event)
	}

	return c.JSON(fiber.Map{"success": true})
}

// handleMessage logs the inbound message durably, then runs the bot and
// sends its reply. Failures are logged and swallowed.
func (h *WebhookHandler) handleMessage(data json.RawMessage) {
	var wm webhookMessage
	if err := json.Unmarshal(data, &wm); err != nil {
		log.Printf("⚠️  Malformed messages event: %v", err)
		return
	}

	phone := services.NormalizePhone(wm.From)
	log.Printf("📱 WhatsApp message from %s: %s", phone, wm.Body)

	// Durable log first, so no inbound message is lost even if processing
	// fails downstream.
	entry := &models.MessageLog{
		ProviderID: wm.ID,
		Direction:  models.DirectionInbound,
		Phone:      phone,
		Body:       wm.Body,
		Kind:       wm.Type,
		Status:     models.MessageStatusReceived,
		RawPayload: string(data),
	}
	if _, err := h.store.LogMessage(entry); err != nil {
		log.Printf("❌ Failed to log inbound message %s: %v", wm.ID, err)
	}

	msg := &models.InboundMessage{
		ID:   wm.ID,
		From: wm.From,
		Body: wm.Body,
		Kind: wm.Type,
	}
	if wm.Media != nil {
		msg.MediaURL = wm.Media.URL
		msg.MediaMime = wm.Media.MimeType
	}

	reply, err := h.bot.ProcessMessage(msg)
	if err != nil {
		log.Printf("❌ Error processing message from %s: %v", phone, err)
		reply = services.RenderPersistenceError()
	}

	if reply == "" {
		return
	}
	if err := h.sender.SendText(phone, reply); err != nil {
		// No retry: the guardian can always query history.
		log.Printf("❌ Failed to send reply to %s: %v", phone, err)
	}
}

// handleStatus upserts the delivery status of a previously logged message.
func (h *WebhookHandler) handleStatus(data json.RawMessage) {
	var ws webhookStatus
	if err := json.Unmarshal(data, &ws); err != nil {
		log.Printf("⚠️  Malformed message.status event: %v", err)
		return
	}

	if err := h.store.UpdateMessageStatus(ws.ID, ws.Status); err != nil {
		log.Printf("❌ Failed to update status for message %s: %v", ws.ID, err)
		return
	}
	log.Printf("📬 Message %s status: %s", ws.ID, ws.Status)
}

// TestWebhookPayload drives the bot without the gateway, for development.
type TestWebhookPayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// HandleTestWebhook processes a simulated inbound message and returns the
// bot's reply in the response body instead of sending it.
func (h *WebhookHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}

	log.Printf("🧪 Test webhook from %s: %s", payload.From, payload.Message)

	reply, err := h.bot.ProcessMessage(&models.InboundMessage{
		From: payload.From,
		Body: payload.Message,
		Kind: "text",
	})
	if err != nil {
		log.Printf("Error processing test message: %v", err)
		reply = services.RenderPersistenceError()
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"response": reply,
	})
}
