package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/fokamtech/skolink-backend/database"
	"github.com/fokamtech/skolink-backend/internal/models"
	"github.com/fokamtech/skolink-backend/internal/routes"
	"github.com/fokamtech/skolink-backend/internal/services"
	"github.com/fokamtech/skolink-backend/internal/storage"
)

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("⚠️  No .env file found - relying on environment variables")
		}
	}

	if os.Getenv("WHAPI_TOKEN") == "" {
		log.Println("⚠️  WHAPI_TOKEN not set - WhatsApp features will be limited")
	}

	// Initialize storage
	var store storage.Store

	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		if err := database.Connect(); err != nil {
			log.Fatal(err)
		}

		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.Guardian{},
			&models.Student{},
			&models.Absence{},
			&models.MessageLog{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)
	}

	// Initialize the gateway client
	whapiService, err := services.NewWhapiService(store)
	if err != nil {
		log.Fatal("Failed to initialize gateway client:", err)
	}
	log.Println("✅ WhatsApp gateway client initialized")

	// Sessions and conversation engine
	sessionManager := services.NewSessionManager()
	botService := services.NewBotService(store, sessionManager)
	log.Println("✅ Bot services initialized, session sweeper running")

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "SkoLink Backend v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Health check endpoint with database status
	app.Get("/health", func(c *fiber.Ctx) error {
		status := "healthy"
		statusCode := 200

		if os.Getenv("USE_MEMORY_STORE") != "true" && database.DB != nil {
			sqlDB, err := database.DB.DB()
			if err != nil || sqlDB.Ping() != nil {
				status = "unhealthy"
				statusCode = 503
			}
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"services": fiber.Map{
				"database":        status == "healthy",
				"whatsapp":        os.Getenv("WHAPI_TOKEN") != "",
				"active_sessions": sessionManager.ActiveCount(),
			},
		})
	})

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		response := fiber.Map{
			"service": "SkoLink Backend API",
			"version": "1.0.0",
			"status":  "healthy",
			"storage": getStorageType(),
			"whatsapp": fiber.Map{
				"configured": os.Getenv("WHAPI_TOKEN") != "",
			},
			"sessions": sessionManager.ActiveCount(),
		}

		if os.Getenv("USE_MEMORY_STORE") != "true" && database.DB != nil {
			var guardianCount, studentCount, absenceCount, messageCount int64
			database.DB.Model(&models.Guardian{}).Count(&guardianCount)
			database.DB.Model(&models.Student{}).Count(&studentCount)
			database.DB.Model(&models.Absence{}).Count(&absenceCount)
			database.DB.Model(&models.MessageLog{}).Count(&messageCount)

			response["database"] = fiber.Map{
				"guardians": guardianCount,
				"students":  studentCount,
				"absences":  absenceCount,
				"messages":  messageCount,
			}
		}

		return c.JSON(response)
	})

	// Setup routes
	routes.SetupRoutes(app, store, botService, whapiService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		log.Println("⏹️  Stopping session sweeper...")
		sessionManager.Stop()
		log.Println("⏹️  Shutting down server...")
		_ = app.Shutdown()
	}()

	log.Println("========================================")
	log.Printf("🚀 SkoLink Backend starting on port %s", port)
	log.Printf("📊 Storage: %s", getStorageType())
	log.Printf("📱 WhatsApp gateway: %s", getWhatsAppStatus())
	log.Println("========================================")

	log.Fatal(app.Listen(":" + port))
}

func getStorageType() string {
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}

func getWhatsAppStatus() string {
	if os.Getenv("WHAPI_TOKEN") == "" {
		return "Not configured"
	}
	return "Configured"
}
