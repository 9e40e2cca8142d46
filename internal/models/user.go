package models

import "time"

// User mirrors the host platform's users table. The marking hub never
// creates or mutates users; it only reads identity, contact and role data.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Email     string    `gorm:"size:128;uniqueIndex" json:"email"`
	Role      string    `gorm:"size:32" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	// RoleAdmin is the host platform's administrator role value.
	RoleAdmin = "admin"
	// RoleUser is the default role for students.
	RoleUser = "user"
)

// IsAdmin reports whether the user holds the administrator role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
