package residence

import (
	"strings"
	"time"

	"github.com/dormitory/backend/internal/domain/shared"
)

// Room is a dormitory room that can be billed collectively
type Room struct {
	shared.BaseEntity
	Building   string
	RoomNumber string
	Floor      int
	Capacity   int
}

// NewRoom creates a new room
func NewRoom(building, roomNumber string, floor, capacity int) (*Room, error) {
	building = strings.TrimSpace(building)
	roomNumber = strings.TrimSpace(roomNumber)
	if building == "" {
		return nil, shared.NewDomainError("INVALID_BUILDING", "Building cannot be empty")
	}
	if roomNumber == "" {
		return nil, shared.NewDomainError("INVALID_ROOM_NUMBER", "Room number cannot be empty")
	}
	if len(roomNumber) > 20 {
		return nil, shared.NewDomainError("INVALID_ROOM_NUMBER", "Room number cannot exceed 20 characters")
	}
	if capacity < 1 {
		return nil, shared.NewDomainError("INVALID_CAPACITY", "Capacity must be at least 1")
	}
	return &Room{
		BaseEntity: shared.NewBaseEntity(),
		Building:   building,
		RoomNumber: roomNumber,
		Floor:      floor,
		Capacity:   capacity,
	}, nil
}

// Rename moves the room to a new building/number label
func (r *Room) Rename(building, roomNumber string) error {
	if strings.TrimSpace(building) == "" || strings.TrimSpace(roomNumber) == "" {
		return shared.NewDomainError("INVALID_ROOM_NUMBER", "Building and room number cannot be empty")
	}
	r.Building = strings.TrimSpace(building)
	r.RoomNumber = strings.TrimSpace(roomNumber)
	r.UpdatedAt = time.Now()
	return nil
}

// Label returns the display label, e.g. "A-101"
func (r *Room) Label() string {
	return r.Building + "-" + r.RoomNumber
}
