package persistence

import (
	"context"
	"strings"

	"github.com/dormitory/backend/internal/domain/residence"
	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/dormitory/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStudentProfileRepository implements StudentProfileRepository using GORM
type GormStudentProfileRepository struct {
	db *gorm.DB
}

// NewGormStudentProfileRepository creates a new GormStudentProfileRepository
func NewGormStudentProfileRepository(db *gorm.DB) *GormStudentProfileRepository {
	return &GormStudentProfileRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormStudentProfileRepository) WithTx(tx *gorm.DB) *GormStudentProfileRepository {
	return &GormStudentProfileRepository{db: tx}
}

// FindByID finds a student profile by ID
func (r *GormStudentProfileRepository) FindByID(ctx context.Context, id uuid.UUID) (*residence.StudentProfile, error) {
	var model models.StudentProfileModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateError(err, "Student profile")
	}
	return model.ToDomain(), nil
}

// FindAll finds student profiles matching the filter
func (r *GormStudentProfileRepository) FindAll(ctx context.Context, filter shared.Filter) ([]residence.StudentProfile, error) {
	var profileModels []models.StudentProfileModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.StudentProfileModel{}), filter)

	query = studentProfileSort.page(query, filter)

	if err := query.Find(&profileModels).Error; err != nil {
		return nil, err
	}

	profiles := make([]residence.StudentProfile, len(profileModels))
	for i := range profileModels {
		profiles[i] = *profileModels[i].ToDomain()
	}
	return profiles, nil
}

// Count counts student profiles matching the filter
func (r *GormStudentProfileRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.StudentProfileModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ExistsByID reports whether a student profile exists
func (r *GormStudentProfileRepository) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.StudentProfileModel{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ExistsByStudentCode reports whether the student code is taken
func (r *GormStudentProfileRepository) ExistsByStudentCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.StudentProfileModel{}).Where("student_code = ?", code).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountByRoom counts the students assigned to a room
func (r *GormStudentProfileRepository) CountByRoom(ctx context.Context, roomID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.StudentProfileModel{}).Where("room_id = ?", roomID).Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a student profile
func (r *GormStudentProfileRepository) Save(ctx context.Context, profile *residence.StudentProfile) error {
	model := models.StudentProfileModelFromDomain(profile)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"student_code", "full_name", "email", "phone", "room_id", "updated_at"}),
		}).
		Create(model).Error
	return translateError(err, "Student profile")
}

func (r *GormStudentProfileRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(student_code) LIKE ? OR LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?",
			pattern, pattern, pattern)
	}
	if roomID, ok := filter.Filters["room_id"].(uuid.UUID); ok {
		query = query.Where("room_id = ?", roomID)
	}
	return query
}

// GormRoomRepository implements RoomRepository using GORM
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a new GormRoomRepository
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormRoomRepository) WithTx(tx *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: tx}
}

// FindByID finds a room by ID
func (r *GormRoomRepository) FindByID(ctx context.Context, id uuid.UUID) (*residence.Room, error) {
	var model models.RoomModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateError(err, "Room")
	}
	return model.ToDomain(), nil
}

// FindAll finds rooms matching the filter
func (r *GormRoomRepository) FindAll(ctx context.Context, filter shared.Filter) ([]residence.Room, error) {
	var roomModels []models.RoomModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.RoomModel{}), filter)

	query = roomSort.page(query, filter)

	if err := query.Find(&roomModels).Error; err != nil {
		return nil, err
	}

	rooms := make([]residence.Room, len(roomModels))
	for i := range roomModels {
		rooms[i] = *roomModels[i].ToDomain()
	}
	return rooms, nil
}

// Count counts rooms matching the filter
func (r *GormRoomRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.RoomModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ExistsByID reports whether a room exists
func (r *GormRoomRepository) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RoomModel{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a room
func (r *GormRoomRepository) Save(ctx context.Context, room *residence.Room) error {
	model := models.RoomModelFromDomain(room)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"building", "room_number", "floor", "capacity", "updated_at"}),
		}).
		Create(model).Error
	return translateError(err, "Room")
}

func (r *GormRoomRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(building) LIKE ? OR LOWER(room_number) LIKE ?", pattern, pattern)
	}
	if building, ok := filter.Filters["building"].(string); ok && building != "" {
		query = query.Where("building = ?", building)
	}
	return query
}

// Ensure the GORM repositories implement the residence repository interfaces
var (
	_ residence.StudentProfileRepository = (*GormStudentProfileRepository)(nil)
	_ residence.RoomRepository           = (*GormRoomRepository)(nil)
)
