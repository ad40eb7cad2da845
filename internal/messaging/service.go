package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/metromate/internal/ids"
	"github.com/MarcoPoloResearchLab/metromate/internal/serviceerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opSend              = "messaging.send"
	opListConversations = "messaging.list_conversations"
	opListThread        = "messaging.list_thread"

	// ConversationLimit caps the number of conversations listed.
	ConversationLimit = 100
	// ThreadLimit caps the number of messages returned for one thread.
	ThreadLimit = 500
)

// latestPerCounterpartSQL ranks the viewer's messages per counterpart, keeping the newest one
// and the count of unread messages addressed to the viewer.
const latestPerCounterpartSQL = `
WITH involved AS (
	SELECT id, to_user_id, is_read, timestamp,
		CASE WHEN from_user_id = @user THEN to_user_id ELSE from_user_id END AS counterpart_id
	FROM messages
	WHERE from_user_id = @user OR to_user_id = @user
), ranked AS (
	SELECT id, counterpart_id, timestamp,
		ROW_NUMBER() OVER (PARTITION BY counterpart_id ORDER BY timestamp DESC, id DESC) AS position,
		SUM(CASE WHEN to_user_id = @user AND is_read = 0 THEN 1 ELSE 0 END) OVER (PARTITION BY counterpart_id) AS unread_count
	FROM involved
)
SELECT id, counterpart_id, unread_count
FROM ranked
WHERE position = 1
ORDER BY timestamp DESC, id DESC
LIMIT @limit`

type conversationRow struct {
	ID            string
	CounterpartID string
	UnreadCount   int64
}

// ServiceConfig describes the dependencies required for messaging.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Service stores direct messages between users.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	ids    ids.Provider
	logger *zap.Logger
}

// NewService constructs the messaging service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("messaging: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = ids.NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, now: clock, ids: idProvider, logger: logger}, nil
}

// Send appends an unread message from fromUserID to toUserID.
func (s *Service) Send(ctx context.Context, fromUserID, toUserID, content string) (Message, error) {
	toUserID = strings.TrimSpace(toUserID)
	if toUserID == "" {
		return Message{}, serviceerr.New(opSend, "missing_recipient", serviceerr.ErrInvalidInput, nil)
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, serviceerr.New(opSend, "invalid_message", serviceerr.ErrInvalidInput, nil)
	}
	messageID, err := s.ids.NewID()
	if err != nil {
		s.logError(opSend, "id_generation_failed", err, zap.String("user_id", fromUserID))
		return Message{}, serviceerr.New(opSend, "id_generation_failed", serviceerr.ErrInternal, err)
	}
	message := Message{
		ID:         messageID,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Content:    content,
		Timestamp:  s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		s.logError(opSend, "insert_failed", err, zap.String("user_id", fromUserID), zap.String("recipient_id", toUserID))
		return Message{}, serviceerr.New(opSend, "insert_failed", serviceerr.ErrInternal, err)
	}
	return message, nil
}

// ListConversations returns one entry per counterpart, newest conversation first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	var rows []conversationRow
	err := s.db.WithContext(ctx).
		Raw(latestPerCounterpartSQL, map[string]interface{}{"user": userID, "limit": ConversationLimit}).
		Scan(&rows).Error
	if err != nil {
		s.logError(opListConversations, "query_failed", err, zap.String("user_id", userID))
		return nil, serviceerr.New(opListConversations, "query_failed", serviceerr.ErrInternal, err)
	}
	conversations := make([]Conversation, 0, len(rows))
	if len(rows) == 0 {
		return conversations, nil
	}

	messageIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		messageIDs = append(messageIDs, row.ID)
	}
	var latest []Message
	if err := s.db.WithContext(ctx).Where("id IN ?", messageIDs).Find(&latest).Error; err != nil {
		s.logError(opListConversations, "load_failed", err, zap.String("user_id", userID))
		return nil, serviceerr.New(opListConversations, "load_failed", serviceerr.ErrInternal, err)
	}
	byID := make(map[string]Message, len(latest))
	for _, message := range latest {
		byID[message.ID] = message
	}

	for _, row := range rows {
		message, ok := byID[row.ID]
		if !ok {
			continue
		}
		conversations = append(conversations, Conversation{
			CounterpartID: row.CounterpartID,
			LastMessage:   message,
			UnreadCount:   row.UnreadCount,
		})
	}
	return conversations, nil
}

// ListThread returns the latest ThreadLimit messages exchanged with otherUserID in ascending
// order, as they were before this call; older messages are left out. Unread messages from
// otherUserID up to the newest returned one are then marked read.
func (s *Service) ListThread(ctx context.Context, userID, otherUserID string) ([]Message, error) {
	messages := []Message{}
	reason := "query_failed"
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)", userID, otherUserID, otherUserID, userID).
			Order("timestamp DESC").
			Order("id DESC").
			Limit(ThreadLimit).
			Find(&messages).Error
		if err != nil || len(messages) == 0 {
			return err
		}

		reason = "mark_read_failed"
		return tx.Model(&Message{}).
			Where("from_user_id = ? AND to_user_id = ? AND is_read = ? AND timestamp <= ?", otherUserID, userID, false, messages[0].Timestamp).
			Update("is_read", true).Error
	})
	if err != nil {
		s.logError(opListThread, reason, err, zap.String("user_id", userID), zap.String("other_user_id", otherUserID))
		return nil, serviceerr.New(opListThread, reason, serviceerr.ErrInternal, err)
	}

	for left, right := 0, len(messages)-1; left < right; left, right = left+1, right-1 {
		messages[left], messages[right] = messages[right], messages[left]
	}
	return messages, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	s.logger.Error("messaging service error", append(attrs, fields...)...)
}
