package residence

import (
	"context"

	"github.com/dormitory/backend/internal/domain/residence"
	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ResidenceService manages the student profiles and rooms that invoices are billed to
type ResidenceService struct {
	studentRepo residence.StudentProfileRepository
	roomRepo    residence.RoomRepository
	logger      *zap.Logger
}

// NewResidenceService creates a new ResidenceService
func NewResidenceService(
	studentRepo residence.StudentProfileRepository,
	roomRepo residence.RoomRepository,
	logger *zap.Logger,
) *ResidenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResidenceService{
		studentRepo: studentRepo,
		roomRepo:    roomRepo,
		logger:      logger,
	}
}

// CreateStudent registers a student profile, optionally placing them in a room
func (s *ResidenceService) CreateStudent(ctx context.Context, req CreateStudentRequest) (*StudentResponse, error) {
	profile, err := residence.NewStudentProfile(req.StudentCode, req.FullName, req.Email, req.Phone)
	if err != nil {
		return nil, err
	}

	exists, err := s.studentRepo.ExistsByStudentCode(ctx, profile.StudentCode)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists, "Student code already exists")
	}

	if req.RoomID != nil {
		room, err := s.roomRepo.FindByID(ctx, *req.RoomID)
		if err != nil {
			return nil, err
		}
		occupants, err := s.studentRepo.CountByRoom(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		if occupants >= int64(room.Capacity) {
			return nil, shared.NewDomainError(shared.CodeConflict, "Room "+room.Label()+" is full")
		}
		profile.AssignRoom(room.ID)
	}

	if err := s.studentRepo.Save(ctx, profile); err != nil {
		return nil, err
	}

	s.logger.Info("Student profile created",
		zap.String("student_profile_id", profile.ID.String()),
		zap.String("student_code", profile.StudentCode))

	response := ToStudentResponse(profile)
	return &response, nil
}

// GetStudent retrieves a student profile by ID
func (s *ResidenceService) GetStudent(ctx context.Context, id uuid.UUID) (*StudentResponse, error) {
	profile, err := s.studentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToStudentResponse(profile)
	return &response, nil
}

// ListStudents retrieves student profiles with filtering and pagination
func (s *ResidenceService) ListStudents(ctx context.Context, filter StudentListFilter) ([]StudentResponse, int64, error) {
	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
		Filters:  make(map[string]interface{}),
	}
	if filter.RoomID != nil {
		domainFilter.Filters["room_id"] = *filter.RoomID
	}
	domainFilter.Normalize()

	profiles, err := s.studentRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.studentRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	items := make([]StudentResponse, len(profiles))
	for i := range profiles {
		items[i] = ToStudentResponse(&profiles[i])
	}
	return items, total, nil
}

// CreateRoom registers a room
func (s *ResidenceService) CreateRoom(ctx context.Context, req CreateRoomRequest) (*RoomResponse, error) {
	room, err := residence.NewRoom(req.Building, req.RoomNumber, req.Floor, req.Capacity)
	if err != nil {
		return nil, err
	}
	if err := s.roomRepo.Save(ctx, room); err != nil {
		return nil, err
	}

	s.logger.Info("Room created",
		zap.String("room_id", room.ID.String()),
		zap.String("label", room.Label()))

	response := ToRoomResponse(room)
	return &response, nil
}

// GetRoom retrieves a room with its current occupancy
func (s *ResidenceService) GetRoom(ctx context.Context, id uuid.UUID) (*RoomResponse, error) {
	room, err := s.roomRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	occupants, err := s.studentRepo.CountByRoom(ctx, id)
	if err != nil {
		return nil, err
	}

	response := ToRoomResponse(room)
	response.Occupants = &occupants
	return &response, nil
}

// ListRooms retrieves rooms with filtering and pagination
func (s *ResidenceService) ListRooms(ctx context.Context, filter RoomListFilter) ([]RoomResponse, int64, error) {
	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
		Filters:  make(map[string]interface{}),
	}
	if filter.Building != "" {
		domainFilter.Filters["building"] = filter.Building
	}
	domainFilter.Normalize()

	rooms, err := s.roomRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.roomRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	items := make([]RoomResponse, len(rooms))
	for i := range rooms {
		items[i] = ToRoomResponse(&rooms[i])
	}
	return items, total, nil
}
