package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fokamtech/skolink-backend/internal/models"
	"github.com/google/uuid"
)

// MemoryStore holds all data in memory, for tests and local development.
type MemoryStore struct {
	guardians map[uint]*models.Guardian
	students  map[uint]*models.Student
	absences  map[uint]*models.Absence
	messages  map[uint]*models.MessageLog

	mu sync.RWMutex

	guardianCounter uint
	studentCounter  uint
	absenceCounter  uint
	messageCounter  uint
}

// NewMemoryStore creates a new in-memory storage.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		guardians: make(map[uint]*models.Guardian),
		students:  make(map[uint]*models.Student),
		absences:  make(map[uint]*models.Absence),
		messages:  make(map[uint]*models.MessageLog),
	}
}

// Guardian operations

func (m *MemoryStore) CreateGuardian(guardian *models.Guardian) (*models.Guardian, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, g := range m.guardians {
		if g.Phone == guardian.Phone {
			return nil, fmt.Errorf("phone %s already registered", guardian.Phone)
		}
	}

	m.guardianCounter++
	guardian.ID = m.guardianCounter
	guardian.CreatedAt = time.Now()
	guardian.UpdatedAt = time.Now()
	guardian.IsActive = true

	m.guardians[guardian.ID] = guardian
	return guardian, nil
}

func (m *MemoryStore) GetGuardianByPhone(phone string) (*models.Guardian, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, g := range m.guardians {
		if g.Phone == phone {
			cp := *g
			cp.Students = m.studentsOf(g.ID)
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("guardian not found")
}

func (m *MemoryStore) GetGuardianByID(id uint) (*models.Guardian, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, exists := m.guardians[id]
	if !exists {
		return nil, fmt.Errorf("guardian not found")
	}
	cp := *g
	cp.Students = m.studentsOf(g.ID)
	return &cp, nil
}

// studentsOf collects a guardian's children, ordered by id. Caller must hold
// at least the read lock.
func (m *MemoryStore) studentsOf(guardianID uint) []models.Student {
	var students []models.Student
	for _, s := range m.students {
		if s.GuardianID == guardianID {
			students = append(students, *s)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students
}

// Student operations

func (m *MemoryStore) CreateStudent(student *models.Student) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.guardians[student.GuardianID]; !exists {
		return nil, fmt.Errorf("guardian not found")
	}

	m.studentCounter++
	student.ID = m.studentCounter
	student.CreatedAt = time.Now()
	student.UpdatedAt = time.Now()

	m.students[student.ID] = student
	return student, nil
}

func (m *MemoryStore) GetStudentsByGuardian(guardianID uint) ([]*models.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var students []*models.Student
	for _, s := range m.studentsOf(guardianID) {
		cp := s
		students = append(students, &cp)
	}
	return students, nil
}

// Absence operations

func (m *MemoryStore) CreateAbsence(absence *models.Absence) (*models.Absence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.absenceCounter++
	absence.ID = m.absenceCounter
	if absence.AbsenceID == "" {
		absence.AbsenceID = "ABS-" + uuid.NewString()[:8]
	}
	if absence.Status == "" {
		absence.Status = models.AbsenceStatusPending
	}
	absence.CreatedAt = time.Now()
	absence.UpdatedAt = time.Now()

	m.absences[absence.ID] = absence
	return absence, nil
}

func (m *MemoryStore) GetRecentAbsences(guardianID uint, limit int) ([]*models.Absence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var absences []*models.Absence
	for _, a := range m.absences {
		if a.GuardianID == guardianID {
			absences = append(absences, a)
		}
	}
	// Newest first
	sort.Slice(absences, func(i, j int) bool { return absences[i].ID > absences[j].ID })
	if limit > 0 && len(absences) > limit {
		absences = absences[:limit]
	}
	return absences, nil
}

// Message log operations

func (m *MemoryStore) LogMessage(msg *models.MessageLog) (*models.MessageLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messageCounter++
	msg.ID = m.messageCounter
	if msg.LogID == "" {
		msg.LogID = "MSG-" + uuid.NewString()[:8]
	}
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = time.Now()

	m.messages[msg.ID] = msg
	return msg, nil
}

func (m *MemoryStore) UpdateMessageStatus(providerID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.messages {
		if msg.ProviderID == providerID {
			msg.Status = status
			msg.UpdatedAt = time.Now()
			return nil
		}
	}

	// Status for a message we never logged: keep it anyway so repeated
	// callbacks stay idempotent.
	m.messageCounter++
	msg := &models.MessageLog{
		LogID:      "MSG-" + uuid.NewString()[:8],
		ProviderID: providerID,
		Status:     status,
	}
	msg.ID = m.messageCounter
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = time.Now()
	m.messages[msg.ID] = msg
	return nil
}
