package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Absence statuses. The bot only ever writes "pending"; approval and
// rejection happen in the web dashboard.
const (
	AbsenceStatusPending  = "pending"
	AbsenceStatusApproved = "approved"
	AbsenceStatusRejected = "rejected"
)

// Absence is an absence report created once per confirmed bot conversation.
type Absence struct {
	gorm.Model

	AbsenceID  string `json:"absence_id" gorm:"uniqueIndex"`
	GuardianID uint   `json:"guardian_id" gorm:"index;not null"`
	StudentID  uint   `json:"student_id" gorm:"index;not null"`
	Date       string `json:"date" gorm:"size:10;not null"` // YYYY-MM-DD
	Reason     string `json:"reason" gorm:"type:text"`
	Status     string `json:"status" gorm:"size:20;default:pending"`

	// Optional justification attachment as reported by the provider. The bot
	// records the reference only; downloading the media is not its job.
	JustificationURL  string `json:"justification_url"`
	JustificationMime string `json:"justification_mime"`

	DecidedAt *time.Time `json:"decided_at"`
	DecidedBy *uint      `json:"decided_by"` // staff user id, set by the dashboard
}

// BeforeCreate auto-generates the public AbsenceID and defaults the status.
func (a *Absence) BeforeCreate(tx *gorm.DB) error {
	if a.AbsenceID == "" {
		a.AbsenceID = "ABS-" + uuid.NewString()[:8]
	}
	if a.Status == "" {
		a.Status = AbsenceStatusPending
	}
	return nil
}
