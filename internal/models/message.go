package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message directions and statuses for the WhatsApp message log.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	MessageStatusReceived  = "received"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

// MessageLog records every WhatsApp message crossing the webhook or the
// outbound gateway. Inbound rows are written before any business logic runs
// so no message is lost when processing fails downstream.
type MessageLog struct {
	gorm.Model

	LogID      string `json:"log_id" gorm:"uniqueIndex"`
	// Message id assigned by the gateway. Unique when present; outbound rows
	// keep an empty id when the gateway response could not be decoded, and
	// those must not collide with each other.
	ProviderID string `json:"provider_id" gorm:"index:idx_message_logs_provider_id,unique,where:provider_id <> ''"`
	Direction  string `json:"direction" gorm:"size:10"`
	Phone      string `json:"phone" gorm:"index"`
	Body       string `json:"body" gorm:"type:text"`
	Kind       string `json:"kind" gorm:"size:20"` // text, image, document
	Status     string `json:"status" gorm:"size:20"`
	RawPayload string `json:"raw_payload" gorm:"type:text"`
}

// BeforeCreate auto-generates the internal LogID.
func (m *MessageLog) BeforeCreate(tx *gorm.DB) error {
	if m.LogID == "" {
		m.LogID = "MSG-" + uuid.NewString()[:8]
	}
	return nil
}

// InboundMessage is the unit the webhook hands to the bot. It is transient;
// the bot reads it and never stores it directly.
type InboundMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Body      string `json:"body"`
	Kind      string `json:"type"` // text, image, document
	MediaURL  string `json:"media_url"`
	MediaMime string `json:"media_mime"`
}

// HasMedia reports whether the message carries an attachment reference.
func (m *InboundMessage) HasMedia() bool {
	return m.MediaURL != ""
}
