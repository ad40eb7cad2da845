package auth

import "time"

// Session binds an opaque token to a user until it expires.
type Session struct {
	Token     string    `gorm:"column:session_token;primaryKey;size:512;not null"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName exposes the table backing sessions.
func (Session) TableName() string {
	return "user_sessions"
}

// Expired reports whether the session is past its expiry at now. A session expiring exactly
// at now is still valid.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}
