package residence

import (
	"time"

	"github.com/dormitory/backend/internal/domain/residence"
	"github.com/google/uuid"
)

// CreateStudentRequest represents a request to register a student profile
type CreateStudentRequest struct {
	StudentCode string     `json:"student_code" binding:"required,max=30"`
	FullName    string     `json:"full_name" binding:"required,max=200"`
	Email       string     `json:"email" binding:"omitempty,email,max=200"`
	Phone       string     `json:"phone" binding:"omitempty,max=20"`
	RoomID      *uuid.UUID `json:"room_id"`
}

// StudentListFilter represents filter options for the student list
type StudentListFilter struct {
	Search   string     `form:"search"`
	RoomID   *uuid.UUID `form:"room_id"`
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string     `form:"order_by"`
	OrderDir string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// StudentResponse represents a student profile in API responses
type StudentResponse struct {
	ID          uuid.UUID  `json:"id"`
	StudentCode string     `json:"student_code"`
	FullName    string     `json:"full_name"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	RoomID      *uuid.UUID `json:"room_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ToStudentResponse converts a domain StudentProfile to StudentResponse
func ToStudentResponse(s *residence.StudentProfile) StudentResponse {
	return StudentResponse{
		ID:          s.ID,
		StudentCode: s.StudentCode,
		FullName:    s.FullName,
		Email:       s.Email,
		Phone:       s.Phone,
		RoomID:      s.RoomID,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// CreateRoomRequest represents a request to register a room
type CreateRoomRequest struct {
	Building   string `json:"building" binding:"required,max=50"`
	RoomNumber string `json:"room_number" binding:"required,max=20"`
	Floor      int    `json:"floor" binding:"min=0,max=200"`
	Capacity   int    `json:"capacity" binding:"required,min=1,max=50"`
}

// RoomListFilter represents filter options for the room list
type RoomListFilter struct {
	Search   string `form:"search"`
	Building string `form:"building"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// RoomResponse represents a room in API responses
type RoomResponse struct {
	ID         uuid.UUID `json:"id"`
	Building   string    `json:"building"`
	RoomNumber string    `json:"room_number"`
	Label      string    `json:"label"`
	Floor      int       `json:"floor"`
	Capacity   int       `json:"capacity"`
	Occupants  *int64    `json:"occupants,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ToRoomResponse converts a domain Room to RoomResponse
func ToRoomResponse(r *residence.Room) RoomResponse {
	return RoomResponse{
		ID:         r.ID,
		Building:   r.Building,
		RoomNumber: r.RoomNumber,
		Label:      r.Label(),
		Floor:      r.Floor,
		Capacity:   r.Capacity,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
