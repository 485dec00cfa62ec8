package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const UserTable = "rr_users"

type Role string

const (
	RoleUser       Role = "user"
	RoleTeacher    Role = "teacher"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleTeacher, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// User：email / nip 在未删除用户中唯一（部分唯一索引见 db.Migrate）
type User struct {
	ID           string  `gorm:"primaryKey;type:uuid" json:"userId"`
	Email        string  `gorm:"size:255;not null" json:"email"`
	Username     string  `gorm:"size:255;not null;index" json:"username"`
	NIP          *string `gorm:"column:nip;size:64" json:"nip,omitempty"` // 外部编号（工号/学号）
	PasswordHash string  `gorm:"size:255;not null" json:"-"`
	Role         Role    `gorm:"size:20;not null;default:'user'" json:"role"`

	LastLoginAt *time.Time `gorm:"index" json:"lastLoginAt,omitempty"`
	LastSeenAt  *time.Time `gorm:"index" json:"lastSeenAt,omitempty"`
	LoginCount  int64      `gorm:"not null;default:0" json:"loginCount"`

	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
	Credentials []Credential   `json:"-"`
}

func (User) TableName() string { return UserTable }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Credential 为每个注册的 Passkey 存档
// 注意：CredentialID / PublicKey 为二进制
type Credential struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          string    `gorm:"type:uuid;index" json:"userId"`
	CredentialID    []byte    `gorm:"uniqueIndex" json:"credentialId"`
	PublicKey       []byte    `json:"-"`
	AttestationType string    `gorm:"size:64" json:"attestationType"`
	AAGUID          []byte    `json:"aaguid"`
	SignCount       uint32    `json:"signCount"`
	CloneWarning    bool      `json:"cloneWarning"`
	BackupEligible  bool      `json:"backupEligible"`
	BackupState     bool      `json:"backupState"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	LastUsedAt *time.Time `gorm:"index" json:"lastUsedAt,omitempty"`
}

func (Credential) TableName() string { return "rr_credentials" }
