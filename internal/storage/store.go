package storage

import (
	"github.com/fokamtech/skolink-backend/internal/models"
)

// Store defines the interface for storage operations the bot and the REST
// glue need. The web dashboard owns the rest of the schema.
type Store interface {
	// Guardian operations
	CreateGuardian(guardian *models.Guardian) (*models.Guardian, error)
	GetGuardianByPhone(phone string) (*models.Guardian, error)
	GetGuardianByID(id uint) (*models.Guardian, error)

	// Student operations
	CreateStudent(student *models.Student) (*models.Student, error)
	GetStudentsByGuardian(guardianID uint) ([]*models.Student, error)

	// Absence operations
	CreateAbsence(absence *models.Absence) (*models.Absence, error)
	GetRecentAbsences(guardianID uint, limit int) ([]*models.Absence, error)

	// Message log operations
	LogMessage(msg *models.MessageLog) (*models.MessageLog, error)
	UpdateMessageStatus(providerID, status string) error
}
