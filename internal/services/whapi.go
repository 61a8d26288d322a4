package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/fokamtech/skolink-backend/internal/models"
	"github.com/fokamtech/skolink-backend/internal/storage"
)

// MessageSender is the outbound side of the WhatsApp gateway. Handlers and
// the bot depend on this interface so tests can substitute a fake.
type MessageSender interface {
	SendText(to, body string) error
	SendImage(to, mediaURL, caption string) error
	SendDocument(to, mediaURL, filename, caption string) error
}

// WhapiService talks to the hosted WhatsApp gateway over its HTTP API.
// Every send is one POST; a non-2xx response is a failure.
type WhapiService struct {
	client  *http.Client
	baseURL string
	token   string
	store   storage.Store
}

// NewWhapiService creates the gateway client from environment configuration.
func NewWhapiService(store storage.Store) (*WhapiService, error) {
	baseURL := os.Getenv("WHAPI_BASE_URL")
	token := os.Getenv("WHAPI_TOKEN")

	if baseURL == "" || token == "" {
		return nil, fmt.Errorf("missing WHAPI_BASE_URL or WHAPI_TOKEN in environment variables")
	}

	return &WhapiService{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: baseURL,
		token:   token,
		store:   store,
	}, nil
}

// whapiSendResponse is the gateway's reply to a send request.
type whapiSendResponse struct {
	Sent    bool `json:"sent"`
	Message struct {
		ID string `json:"id"`
	} `json:"message"`
}

// SendText sends a plain text message.
func (w *WhapiService) SendText(to, body string) error {
	payload := map[string]interface{}{
		"to":          to,
		"body":        body,
		"typing_time": 0,
	}
	return w.send("/messages/text", to, body, "text", payload)
}

// SendImage sends an image by URL with an optional caption.
func (w *WhapiService) SendImage(to, mediaURL, caption string) error {
	payload := map[string]interface{}{
		"to":    to,
		"media": mediaURL,
	}
	if caption != "" {
		payload["caption"] = caption
	}
	return w.send("/messages/image", to, caption, "image", payload)
}

// SendDocument sends a document by URL with an optional filename and caption.
func (w *WhapiService) SendDocument(to, mediaURL, filename, caption string) error {
	payload := map[string]interface{}{
		"to":    to,
		"media": mediaURL,
	}
	if filename != "" {
		payload["filename"] = filename
	}
	if caption != "" {
		payload["caption"] = caption
	}
	return w.send("/messages/document", to, caption, "document", payload)
}

// CheckPhone asks the gateway whether a number is registered on WhatsApp.
func (w *WhapiService) CheckPhone(phone string) (bool, error) {
	payload := map[string]interface{}{
		"blocking": "wait",
		"contacts": []string{phone},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequest(http.MethodPost, w.baseURL+"/contacts", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.token)

	resp, err := w.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("contact check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("contact check returned status %d", resp.StatusCode)
	}

	var result struct {
		Contacts []struct {
			Status string `json:"status"`
		} `json:"contacts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}
	if len(result.Contacts) == 0 {
		return false, nil
	}
	return result.Contacts[0].Status == "valid", nil
}

// send performs one outbound request and records it in the message log.
func (w *WhapiService) send(path, to, body, kind string, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, w.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.token)

	resp, err := w.client.Do(req)
	if err != nil {
		log.Printf("❌ Failed to send WhatsApp %s to %s: %v", kind, to, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("❌ Gateway rejected %s to %s: status %d body %s", kind, to, resp.StatusCode, raw)
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var sendResp whapiSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sendResp); err != nil {
		// The message left anyway; only the id is lost.
		log.Printf("⚠️  Could not decode gateway response for %s: %v", to, err)
	}

	if w.store != nil {
		_, err := w.store.LogMessage(&models.MessageLog{
			ProviderID: sendResp.Message.ID,
			Direction:  models.DirectionOutbound,
			Phone:      to,
			Body:       body,
			Kind:       kind,
			Status:     models.MessageStatusSent,
		})
		if err != nil {
			log.Printf("⚠️  Failed to log outbound message to %s: %v", to, err)
		}
	}

	log.Printf("✅ WhatsApp %s sent to %s (id: %s)", kind, to, sendResp.Message.ID)
	return nil
}
