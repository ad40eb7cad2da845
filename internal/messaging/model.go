package messaging

import "time"

// Message is an append-only direct message. Read flips from false to true once the recipient
// opens the thread.
type Message struct {
	ID         string    `gorm:"column:id;primaryKey;size:64" json:"id"`
	FromUserID string    `gorm:"column:from_user_id;size:190;not null;index:idx_messages_pair,priority:1" json:"from_user_id"`
	ToUserID   string    `gorm:"column:to_user_id;size:190;not null;index:idx_messages_pair,priority:2" json:"to_user_id"`
	Content    string    `gorm:"column:content;type:text;not null" json:"content"`
	Timestamp  time.Time `gorm:"column:timestamp;not null;index:idx_messages_pair,priority:3" json:"timestamp"`
	Read       bool      `gorm:"column:is_read;not null;default:false" json:"read"`
}

// TableName provides the explicit table binding for GORM.
func (Message) TableName() string {
	return "messages"
}

// Conversation summarises one counterpart's thread from the viewer's side.
type Conversation struct {
	CounterpartID string
	LastMessage   Message
	UnreadCount   int64
}
