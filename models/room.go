package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoomTable       = "rr_rooms"
	RoomRentalTable = "rr_room_rentals"
)

type Room struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"size:200;not null" json:"name"` // 未删除房间内唯一
	Capacity  int            `gorm:"not null;default:0" json:"capacity"`
	IsRented  bool           `gorm:"not null;default:false" json:"isRented"` // 冗余列：当前是否有进行中的租用
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}

// RoomRental：EndTime 为空即进行中
type RoomRental struct {
	ID        string     `gorm:"type:uuid;primaryKey" json:"id"`
	RoomID    string     `gorm:"type:uuid;index;not null" json:"roomId"`
	UserID    string     `gorm:"type:uuid;index;not null" json:"userId"`
	Capacity  int        `gorm:"not null;default:0" json:"capacity"`
	StartTime time.Time  `gorm:"index;not null" json:"startTime"`
	EndTime   *time.Time `gorm:"index" json:"endTime,omitempty"`
	Condition string     `gorm:"size:255" json:"condition,omitempty"`
	Notes     string     `gorm:"size:1000" json:"notes,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`

	Room *Room `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Room) TableName() string       { return RoomTable }
func (RoomRental) TableName() string { return RoomRentalTable }

func (r *Room) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (r *RoomRental) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (r *RoomRental) Active() bool { return r.EndTime == nil }
