package models

import "time"

// Priority of a todo. The zero value means unset.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities or unset.
func (p Priority) Valid() bool {
	switch p {
	case "", PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Todo is a row of the todos table.
type Todo struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint `gorm:"index;not null" json:"user_id"`

	Title       string     `gorm:"size:255;not null" json:"title"`
	Description *string    `gorm:"type:text" json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Completed   bool       `gorm:"not null;default:false" json:"completed"`
	Priority    Priority   `gorm:"size:10" json:"priority"`
}

// GetUserID returns the owner id.
func (t *Todo) GetUserID() uint {
	return t.UserID
}
