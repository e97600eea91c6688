package models

import "time"

// User is an account of the back office. Every invoice and todo belongs to exactly one user.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email    string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password string `gorm:"size:255;not null" json:"-"` // bcrypt hash
	Name     string `gorm:"size:255" json:"name"`
}
