package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/metromate/internal/messaging"
	"github.com/MarcoPoloResearchLab/metromate/internal/profiles"
	"github.com/MarcoPoloResearchLab/metromate/internal/users"
	"github.com/gin-gonic/gin"
)

type conversationView struct {
	User        *users.User       `json:"user"`
	Profile     *profiles.Profile `json:"profile"`
	LastMessage messaging.Message `json:"last_message"`
	UnreadCount int64             `json:"unread_count"`
}

func (h *httpHandler) handleListConversations(c *gin.Context) {
	conversations, err := h.messages.ListConversations(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondServiceError(c, err, "invalid_request")
		return
	}
	counterparts := make([]string, 0, len(conversations))
	for _, conversation := range conversations {
		counterparts = append(counterparts, conversation.CounterpartID)
	}
	snapshots, ok := h.lookupPeople(c, counterparts)
	if !ok {
		return
	}

	views := make([]conversationView, 0, len(conversations))
	for _, conversation := range conversations {
		snapshot := snapshots[conversation.CounterpartID]
		views = append(views, conversationView{
			User:        snapshot.User,
			Profile:     snapshot.Profile,
			LastMessage: conversation.LastMessage,
			UnreadCount: conversation.UnreadCount,
		})
	}
	c.JSON(http.StatusOK, views)
}

func (h *httpHandler) handleListThread(c *gin.Context) {
	messages, err := h.messages.ListThread(c.Request.Context(), c.GetString(userIDContextKey), c.Param("other_user_id"))
	if err != nil {
		h.respondServiceError(c, err, "invalid_request")
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *httpHandler) handleSendMessage(c *gin.Context) {
	params, err := readParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	recipientID, ok := params.required("to_user_id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	content, _, err := params.text("content")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_message"})
		return
	}

	message, err := h.messages.Send(c.Request.Context(), c.GetString(userIDContextKey), recipientID, content)
	if err != nil {
		h.respondServiceError(c, err, "invalid_message")
		return
	}
	h.metrics.RecordMessageSent()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}
