package residence

import (
	"net/mail"
	"strings"
	"time"

	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// StudentProfile is a resident that can be billed and can pay invoices
type StudentProfile struct {
	shared.BaseEntity
	StudentCode string
	FullName    string
	Email       string
	Phone       string
	RoomID      *uuid.UUID
}

// NewStudentProfile creates a new student profile
func NewStudentProfile(studentCode, fullName, email, phone string) (*StudentProfile, error) {
	studentCode = strings.TrimSpace(studentCode)
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(strings.ToLower(email))

	if studentCode == "" {
		return nil, shared.NewDomainError("INVALID_STUDENT_CODE", "Student code cannot be empty")
	}
	if len(studentCode) > 30 {
		return nil, shared.NewDomainError("INVALID_STUDENT_CODE", "Student code cannot exceed 30 characters")
	}
	if fullName == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Full name cannot be empty")
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, shared.NewDomainError("INVALID_EMAIL", "Email address is not valid")
		}
	}

	return &StudentProfile{
		BaseEntity:  shared.NewBaseEntity(),
		StudentCode: studentCode,
		FullName:    fullName,
		Email:       email,
		Phone:       strings.TrimSpace(phone),
	}, nil
}

// AssignRoom places the student in a room
func (s *StudentProfile) AssignRoom(roomID uuid.UUID) {
	s.RoomID = &roomID
	s.UpdatedAt = time.Now()
}

// Vacate removes the student from their room
func (s *StudentProfile) Vacate() {
	s.RoomID = nil
	s.UpdatedAt = time.Now()
}
