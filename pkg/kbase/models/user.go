package models

import (
	"time"

	"gorm.io/gorm"
)

// SystemRole represents a console user's role
type SystemRole string

const (
	SystemRoleAdmin SystemRole = "admin"
	SystemRoleUser  SystemRole = "user"
)

// Valid reports whether r is a known role
func (r SystemRole) Valid() bool {
	return r == SystemRoleAdmin || r == SystemRoleUser
}

// User is an account that can sign in to the admin console
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	SystemRole   SystemRole     `gorm:"type:varchar(20);default:'user'" json:"system_role"`
}
