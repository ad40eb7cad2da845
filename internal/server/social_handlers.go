package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/metromate/internal/people"
	"github.com/MarcoPoloResearchLab/metromate/internal/profiles"
	"github.com/MarcoPoloResearchLab/metromate/internal/social"
	"github.com/MarcoPoloResearchLab/metromate/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type connectionView struct {
	Connection social.Connection `json:"connection"`
	User       *users.User       `json:"user"`
	Profile    *profiles.Profile `json:"profile"`
}

type waveView struct {
	Wave    social.Wave       `json:"wave"`
	User    *users.User       `json:"user"`
	Profile *profiles.Profile `json:"profile"`
}

func (h *httpHandler) handleListConnections(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	connections, err := h.social.ListAccepted(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err, "invalid_request")
		return
	}
	h.respondConnections(c, userID, connections)
}

func (h *httpHandler) handleListPendingConnections(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	connections, err := h.social.ListPendingIncoming(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err, "invalid_request")
		return
	}
	h.respondConnections(c, userID, connections)
}

func (h *httpHandler) respondConnections(c *gin.Context, userID string, connections []social.Connection) {
	counterparts := make([]string, 0, len(connections))
	for _, connection := range connections {
		counterparts = append(counterparts, connection.Counterpart(userID))
	}
	snapshots, ok := h.lookupPeople(c, counterparts)
	if !ok {
		return
	}

	views := make([]connectionView, 0, len(connections))
	for _, connection := range connections {
		snapshot := snapshots[connection.Counterpart(userID)]
		views = append(views, connectionView{Connection: connection, User: snapshot.User, Profile: snapshot.Profile})
	}
	c.JSON(http.StatusOK, views)
}

func (h *httpHandler) handleRequestConnection(c *gin.Context) {
	params, err := readParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	targetID, ok := params.required("connected_user_id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	_, created, err := h.social.RequestConnection(c.Request.Context(), c.GetString(userIDContextKey), targetID)
	if err != nil {
		h.respondServiceError(c, err, "invalid_connection")
		return
	}
	h.metrics.RecordConnectionRequest(created)
	if !created {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Connection already exists"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleUpdateConnection(c *gin.Context) {
	params, err := readParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	rawStatus, _ := params.required("status")
	status, err := social.ParseStatus(rawStatus)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
		return
	}

	if _, err := h.social.UpdateStatus(c.Request.Context(), c.Param("id"), c.GetString(userIDContextKey), status); err != nil {
		h.respondServiceError(c, err, "invalid_status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleListWaves(c *gin.Context) {
	waves, err := h.social.ListIncomingWaves(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondServiceError(c, err, "invalid_request")
		return
	}
	senders := make([]string, 0, len(waves))
	for _, wave := range waves {
		senders = append(senders, wave.FromUserID)
	}
	snapshots, ok := h.lookupPeople(c, senders)
	if !ok {
		return
	}

	views := make([]waveView, 0, len(waves))
	for _, wave := range waves {
		snapshot := snapshots[wave.FromUserID]
		views = append(views, waveView{Wave: wave, User: snapshot.User, Profile: snapshot.Profile})
	}
	c.JSON(http.StatusOK, views)
}

func (h *httpHandler) handleSendWave(c *gin.Context) {
	params, err := readParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	targetID, ok := params.required("to_user_id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if _, err := h.social.SendWave(c.Request.Context(), c.GetString(userIDContextKey), targetID); err != nil {
		h.respondServiceError(c, err, "invalid_request")
		return
	}
	h.metrics.RecordWaveSent()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// lookupPeople resolves snapshots for enrichment; on failure it writes the error response.
func (h *httpHandler) lookupPeople(c *gin.Context, userIDs []string) (map[string]people.Snapshot, bool) {
	snapshots, err := h.people.Lookup(c.Request.Context(), userIDs)
	if err != nil {
		h.logger.Error("failed to resolve people", zap.Int("count", len(userIDs)), zap.Error(err))
		h.respondServiceError(c, err, "invalid_request")
		return nil, false
	}
	return snapshots, true
}
