package models

import "time"

// 审计动作
const (
	ActionRoomCreate       = "room.create"
	ActionRoomUpdate       = "room.update"
	ActionRoomDelete       = "room.delete"
	ActionRoomRentStart    = "room.rent.start"
	ActionRoomRentEnd      = "room.rent.end"
	ActionItemCreate       = "inventory.create"
	ActionItemUpdate       = "inventory.update"
	ActionItemDelete       = "inventory.delete"
	ActionItemRentStart    = "inventory.rent.start"
	ActionItemRentEnd      = "inventory.rent.end"
	ActionUserDelete       = "user.delete"
	ActionUserRegisterRole = "user.register"
	ActionUserRoleChange   = "user.role"
)

// AuditLog 记录每次成功的写操作
type AuditLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ActorID       string    `gorm:"size:64;index" json:"actorId"`
	ActorUsername string    `gorm:"size:255" json:"actorUsername"`
	Action        string    `gorm:"size:64;index;not null" json:"action"`
	TargetType    string    `gorm:"size:32" json:"targetType"`
	TargetID      string    `gorm:"size:64;index" json:"targetId"`
	Detail        string    `gorm:"size:1000" json:"detail,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"createdAt"`
}

func (AuditLog) TableName() string { return "rr_audit_log" }
