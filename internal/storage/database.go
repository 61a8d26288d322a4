package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fokamtech/skolink-backend/internal/models"
)

// DatabaseStore implements Store on top of PostgreSQL via GORM.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a new database-backed store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Guardian operations

func (d *DatabaseStore) CreateGuardian(guardian *models.Guardian) (*models.Guardian, error) {
	if err := d.db.Create(guardian).Error; err != nil {
		return nil, fmt.Errorf("failed to create guardian: %w", err)
	}
	return guardian, nil
}

func (d *DatabaseStore) GetGuardianByPhone(phone string) (*models.Guardian, error) {
	var guardian models.Guardian
	err := d.db.Preload("Students").Where("phone = ?", phone).First(&guardian).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("guardian not found")
		}
		return nil, err
	}
	return &guardian, nil
}

func (d *DatabaseStore) GetGuardianByID(id uint) (*models.Guardian, error) {
	var guardian models.Guardian
	err := d.db.Preload("Students").First(&guardian, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("guardian not found")
		}
		return nil, err
	}
	return &guardian, nil
}

// Student operations

func (d *DatabaseStore) CreateStudent(student *models.Student) (*models.Student, error) {
	if err := d.db.Create(student).Error; err != nil {
		return nil, fmt.Errorf("failed to create student: %w", err)
	}
	return student, nil
}

func (d *DatabaseStore) GetStudentsByGuardian(guardianID uint) ([]*models.Student, error) {
	var students []*models.Student
	err := d.db.Where("guardian_id = ?", guardianID).Order("id asc").Find(&students).Error
	if err != nil {
		return nil, err
	}
	return students, nil
}

// Absence operations

func (d *DatabaseStore) CreateAbsence(absence *models.Absence) (*models.Absence, error) {
	if err := d.db.Create(absence).Error; err != nil {
		return nil, fmt.Errorf("failed to create absence: %w", err)
	}
	return absence, nil
}

func (d *DatabaseStore) GetRecentAbsences(guardianID uint, limit int) ([]*models.Absence, error) {
	var absences []*models.Absence
	err := d.db.Where("guardian_id = ?", guardianID).
		Order("created_at desc").
		Limit(limit).
		Find(&absences).Error
	if err != nil {
		return nil, err
	}
	return absences, nil
}

// Message log operations

func (d *DatabaseStore) LogMessage(msg *models.MessageLog) (*models.MessageLog, error) {
	if err := d.db.Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to log message: %w", err)
	}
	return msg, nil
}

// UpdateMessageStatus overwrites the delivery status of the message with the
// given provider id. Repeated callbacks for the same id are idempotent; a
// status for an unknown id creates a stub row so nothing gets dropped.
func (d *DatabaseStore) UpdateMessageStatus(providerID, status string) error {
	result := d.db.Model(&models.MessageLog{}).
		Where("provider_id = ?", providerID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		stub := &models.MessageLog{ProviderID: providerID, Status: status}
		return d.db.Create(stub).Error
	}
	return nil
}
