package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"os"
	"sync"

	"github.com/gofiber/fiber/v2"
)

const signatureHeader = "X-Webhook-Signature"

var permissiveWarnOnce sync.Once

// ValidateWebhookSignature verifies the gateway's HMAC-SHA256 signature over
// the raw request body. When no secret is configured the check is skipped, a
// deliberate but weak default for local development.
func ValidateWebhookSignature() fiber.Handler {
	return func(c *fiber.Ctx) error {
		secret := os.Getenv("WEBHOOK_SECRET")
		if secret == "" {
			permissiveWarnOnce.Do(func() {
				log.Println("⚠️  WEBHOOK_SECRET not set - webhook signature validation is OFF")
			})
			return c.Next()
		}

		signature := c.Get(signatureHeader)

		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(c.Body())
		expected := hex.EncodeToString(mac.Sum(nil))

		// hmac.Equal compares in constant time.
		if !hmac.Equal([]byte(signature), []byte(expected)) {
			log.Printf("❌ Webhook signature mismatch from %s", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}

		return c.Next()
	}
}
