package models

import (
	"strings"

	"gorm.io/gorm"
)

// Guardian represents a parent account linked to one or more students.
// The phone number is the join key with inbound WhatsApp messages, so it is
// always stored in normalized international format (+237...).
type Guardian struct {
	gorm.Model

	Name     string    `json:"name"`
	Phone    string    `json:"phone" gorm:"uniqueIndex"` // WhatsApp number - unique
	Email    string    `json:"email"`
	IsActive bool      `json:"is_active" gorm:"default:true"`
	Students []Student `json:"students" gorm:"foreignKey:GuardianID"`
}

// Student represents a child linked to a guardian account.
type Student struct {
	gorm.Model

	GuardianID uint   `json:"guardian_id" gorm:"index;not null"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	ClassName  string `json:"class_name"` // e.g. "CM2 A"
}

// DisplayName returns the name shown in bot prompts and lists.
func (s *Student) DisplayName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}
