package models

import "github.com/google/uuid"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleCleaner Role = "cleaner"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleCleaner:
		return true
	}
	return false
}

type TeamMember struct {
	BaseUUIDModel
	Name     string  `gorm:"type:text;not null"              json:"name"`
	Email    *string `gorm:"type:text;uniqueIndex"           json:"email,omitempty"`
	Role     Role    `gorm:"type:varchar(16);not null;index" json:"role"`
	IsActive bool    `gorm:"not null;default:true"           json:"isActive"`
}

// Actor is the identity an operation is performed as.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role Role      `json:"role"`
}

func (m *TeamMember) Actor() Actor {
	return Actor{ID: m.ID, Name: m.Name, Role: m.Role}
}
