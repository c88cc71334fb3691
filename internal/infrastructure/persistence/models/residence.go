package models

import (
	"github.com/dormitory/backend/internal/domain/residence"
	"github.com/google/uuid"
)

// RoomModel is the persistence model for a dormitory room.
type RoomModel struct {
	BaseModel
	Building   string `gorm:"type:varchar(50);not null;uniqueIndex:idx_room_building_number"`
	RoomNumber string `gorm:"type:varchar(20);not null;uniqueIndex:idx_room_building_number"`
	Floor      int    `gorm:"not null;default:0"`
	Capacity   int    `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (RoomModel) TableName() string {
	return "rooms"
}

// ToDomain converts the persistence model to a domain Room.
func (m *RoomModel) ToDomain() *residence.Room {
	return &residence.Room{
		BaseEntity: m.BaseModel.toEntity(),
		Building:   m.Building,
		RoomNumber: m.RoomNumber,
		Floor:      m.Floor,
		Capacity:   m.Capacity,
	}
}

// FromDomain populates the persistence model from a domain Room.
func (m *RoomModel) FromDomain(r *residence.Room) {
	m.fromEntity(r.BaseEntity)
	m.Building = r.Building
	m.RoomNumber = r.RoomNumber
	m.Floor = r.Floor
	m.Capacity = r.Capacity
}

// RoomModelFromDomain creates a new persistence model from domain entity.
func RoomModelFromDomain(r *residence.Room) *RoomModel {
	m := &RoomModel{}
	m.FromDomain(r)
	return m
}

// StudentProfileModel is the persistence model for a student profile.
type StudentProfileModel struct {
	BaseModel
	StudentCode string     `gorm:"type:varchar(30);not null;uniqueIndex"`
	FullName    string     `gorm:"type:varchar(200);not null"`
	Email       string     `gorm:"type:varchar(200)"`
	Phone       string     `gorm:"type:varchar(30)"`
	RoomID      *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (StudentProfileModel) TableName() string {
	return "student_profiles"
}

// ToDomain converts the persistence model to a domain StudentProfile.
func (m *StudentProfileModel) ToDomain() *residence.StudentProfile {
	return &residence.StudentProfile{
		BaseEntity:  m.BaseModel.toEntity(),
		StudentCode: m.StudentCode,
		FullName:    m.FullName,
		Email:       m.Email,
		Phone:       m.Phone,
		RoomID:      m.RoomID,
	}
}

// FromDomain populates the persistence model from a domain StudentProfile.
func (m *StudentProfileModel) FromDomain(s *residence.StudentProfile) {
	m.fromEntity(s.BaseEntity)
	m.StudentCode = s.StudentCode
	m.FullName = s.FullName
	m.Email = s.Email
	m.Phone = s.Phone
	m.RoomID = s.RoomID
}

// StudentProfileModelFromDomain creates a new persistence model from domain entity.
func StudentProfileModelFromDomain(s *residence.StudentProfile) *StudentProfileModel {
	m := &StudentProfileModel{}
	m.FromDomain(s)
	return m
}
