package users

import (
	"strings"
	"time"
)

// User is a commuter account keyed by the identity provider's id.
type User struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Email     string    `gorm:"column:email;size:320;not null" json:"email"`
	Name      string    `gorm:"column:name;size:320;not null" json:"name"`
	Picture   *string   `gorm:"column:picture;size:1024" json:"picture"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName exposes the table backing users.
func (User) TableName() string {
	return "users"
}

// Registration is the verified identity a user is created from on first login.
type Registration struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
