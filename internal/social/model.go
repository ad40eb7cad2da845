package social

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ConnectionStatus is the lifecycle state of a connection request.
type ConnectionStatus string

// Connection statuses.
const (
	StatusPending  ConnectionStatus = "pending"
	StatusAccepted ConnectionStatus = "accepted"
	StatusRejected ConnectionStatus = "rejected"
)

// ParseStatus validates a client-supplied status against the closed set.
func ParseStatus(raw string) (ConnectionStatus, error) {
	switch status := ConnectionStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case StatusPending, StatusAccepted, StatusRejected:
		return status, nil
	default:
		return "", fmt.Errorf("social: unsupported connection status %q", raw)
	}
}

// Connection links a requester to a target. PairKey is identical for both directions of the
// same pair and is unique.
type Connection struct {
	ID              string           `gorm:"column:id;primaryKey;size:64" json:"id"`
	UserID          string           `gorm:"column:user_id;size:190;not null;index" json:"user_id"`
	ConnectedUserID string           `gorm:"column:connected_user_id;size:190;not null;index" json:"connected_user_id"`
	PairKey         string           `gorm:"column:pair_key;size:400;not null;uniqueIndex" json:"-"`
	Status          ConnectionStatus `gorm:"column:status;size:16;not null;index" json:"status"`
	CreatedAt       time.Time        `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Connection) TableName() string {
	return "connections"
}

// Counterpart returns the participant of the connection other than userID.
func (c Connection) Counterpart(userID string) string {
	if c.UserID == userID {
		return c.ConnectedUserID
	}
	return c.UserID
}

// Involves reports whether userID is either party of the connection.
func (c Connection) Involves(userID string) bool {
	return c.UserID == userID || c.ConnectedUserID == userID
}

// Wave is a lightweight, write-once greeting.
type Wave struct {
	ID         string    `gorm:"column:id;primaryKey;size:64" json:"id"`
	FromUserID string    `gorm:"column:from_user_id;size:190;not null" json:"from_user_id"`
	ToUserID   string    `gorm:"column:to_user_id;size:190;not null;index:idx_waves_recipient,priority:1" json:"to_user_id"`
	Timestamp  time.Time `gorm:"column:timestamp;not null;index:idx_waves_recipient,priority:2" json:"timestamp"`
}

// TableName provides the explicit table binding for GORM.
func (Wave) TableName() string {
	return "waves"
}

// pairKey identifies the unordered pair. The length prefix keeps ids containing the separator
// from colliding.
func pairKey(first, second string) string {
	if second < first {
		first, second = second, first
	}
	return fmt.Sprintf("%d:%s|%s", len(first), first, second)
}

// RekeyPairs rewrites stored pair keys into the current format.
func RekeyPairs(db *gorm.DB) error {
	if !db.Migrator().HasTable(&Connection{}) {
		return nil
	}
	var connections []Connection
	if err := db.Find(&connections).Error; err != nil {
		return err
	}
	for _, connection := range connections {
		key := pairKey(connection.UserID, connection.ConnectedUserID)
		if key == connection.PairKey {
			continue
		}
		if err := db.Model(&Connection{}).Where("id = ?", connection.ID).Update("pair_key", key).Error; err != nil {
			return err
		}
	}
	return nil
}
