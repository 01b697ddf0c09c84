package models

import "time"

type UserRole string

const (
	RoleOwner  UserRole = "owner"
	RoleChef   UserRole = "chef"
	RoleWaiter UserRole = "waiter"
)

func (r UserRole) Valid() bool {
	return r == RoleOwner || r == RoleChef || r == RoleWaiter
}

type User struct {
	ID           uint     `gorm:"primaryKey"`
	Username     string   `gorm:"size:50;uniqueIndex;not null"`
	Name         string   `gorm:"size:100;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:20;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
