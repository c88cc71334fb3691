package residence

import (
	"context"

	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// StudentProfileRepository defines the interface for student profile persistence
type StudentProfileRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*StudentProfile, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]StudentProfile, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	ExistsByID(ctx context.Context, id uuid.UUID) (bool, error)
	ExistsByStudentCode(ctx context.Context, code string) (bool, error)
	CountByRoom(ctx context.Context, roomID uuid.UUID) (int64, error)
	Save(ctx context.Context, profile *StudentProfile) error
}

// RoomRepository defines the interface for room persistence
type RoomRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Room, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Room, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	ExistsByID(ctx context.Context, id uuid.UUID) (bool, error)
	Save(ctx context.Context, room *Room) error
}
