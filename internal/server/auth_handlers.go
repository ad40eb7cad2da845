package server

import (
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/metromate/internal/auth"
	"github.com/MarcoPoloResearchLab/metromate/internal/identity"
	"github.com/MarcoPoloResearchLab/metromate/internal/stations"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type sessionUserPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (h *httpHandler) handleCreateSession(c *gin.Context) {
	externalSessionID := strings.TrimSpace(c.GetHeader(identity.SessionIDHeader))
	if externalSessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	grant, err := h.sessions.CreateSession(c.Request.Context(), externalSessionID)
	if err != nil {
		h.respondServiceError(c, err, "invalid_request")
		return
	}
	h.metrics.RecordSessionCreated()

	http.SetCookie(c.Writer, auth.NewSessionCookie(h.cookieName, grant.Token, h.sessions.TTL()))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": sessionUserPayload{
			ID:    grant.User.ID,
			Email: grant.User.Email,
			Name:  grant.User.Name,
		},
	})
}

func (h *httpHandler) handleMe(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	token := auth.TokenFromRequest(c.Request, h.cookieName)
	if err := h.sessions.Logout(c.Request.Context(), token); err != nil {
		h.logger.Error("failed to delete session", zap.Error(err))
		h.respondServiceError(c, err, "invalid_request")
		return
	}
	http.SetCookie(c.Writer, auth.ClearedSessionCookie(h.cookieName))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleStations(c *gin.Context) {
	c.JSON(http.StatusOK, stations.Catalog())
}
