package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/fokamtech/skolink-backend/internal/handlers"
	"github.com/fokamtech/skolink-backend/internal/middleware"
	"github.com/fokamtech/skolink-backend/internal/services"
	"github.com/fokamtech/skolink-backend/internal/storage"
)

// SetupRoutes configures all API routes.
func SetupRoutes(app *fiber.App, store storage.Store, bot *services.BotService, sender services.MessageSender) {
	webhookHandler := handlers.NewWebhookHandler(store, bot, sender)
	absenceHandler := handlers.NewAbsenceHandler(store)

	// API routes
	api := app.Group("/api")
	api.Get("/absences/:guardianID", absenceHandler.GetRecentAbsences)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	if os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true" {
		// Development: skip signature validation for tunneled callbacks
		log.Println("⚠️  WhatsApp webhook validation DISABLED")
		webhooks.Post("/whatsapp", webhookHandler.HandleWebhook)
	} else {
		webhooks.Post("/whatsapp", middleware.ValidateWebhookSignature(), webhookHandler.HandleWebhook)
	}

	// ========== TEST ROUTES (Development Only) ==========
	if os.Getenv("ENVIRONMENT") != "production" {
		app.Post("/test/whatsapp", webhookHandler.HandleTestWebhook)
	}
}
