package models

import (
	"time"

	"buildtrack/internal/rbac"
)

type RoleRow struct {
	ID   int    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

func (RoleRow) TableName() string { return "roles" }

type User struct {
	ID           string     `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	FullName     string     `gorm:"not null" json:"full_name"`
	Role         rbac.Role  `gorm:"not null;default:'observer'" json:"role"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Project struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Object is a building or site inside a project. Deleting a project removes
// its objects; deleting an object removes its stages.
type Object struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID uint      `gorm:"not null;index" json:"project_id"`
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Name      string    `gorm:"not null" json:"name"`
	Address   *string   `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Stage struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ObjectID  uint      `gorm:"not null;index" json:"object_id"`
	Object    *Object   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
