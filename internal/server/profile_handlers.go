package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MarcoPoloResearchLab/metromate/internal/discovery"
	"github.com/MarcoPoloResearchLab/metromate/internal/profiles"
	"github.com/MarcoPoloResearchLab/metromate/internal/serviceerr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleGetOwnProfile(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	profile, err := h.profiles.Get(c.Request.Context(), userID)
	if errors.Is(err, serviceerr.ErrNotFound) {
		c.JSON(http.StatusOK, nil)
		return
	}
	if err != nil {
		h.respondServiceError(c, err, "invalid_request")
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	profile, err := h.profiles.Get(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.respondServiceError(c, err, "invalid_request")
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *httpHandler) handleUpsertProfile(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	var fields map[string]json.RawMessage
	decoder := json.NewDecoder(io.LimitReader(c.Request.Body, maxRequestBodyBytes))
	if err := decoder.Decode(&fields); err != nil || fields == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	update, err := profiles.ParseUpdate(fields)
	if err != nil {
		h.logger.Info("profile update rejected", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_profile"})
		return
	}

	if _, err := h.profiles.Upsert(c.Request.Context(), userID, update); err != nil {
		h.respondServiceError(c, err, "invalid_profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleDiscover(c *gin.Context) {
	filters := discovery.Filters{
		Organization: c.Query("organization"),
		Line:         c.Query("line"),
	}
	if raw, ok := c.GetQuery("same_destination"); ok && raw != "" {
		sameDestination, err := parseFlag(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		filters.SameDestination = sameDestination
	}

	matches, err := h.discovery.Discover(c.Request.Context(), c.GetString(userIDContextKey), filters)
	if err != nil {
		h.respondServiceError(c, err, "invalid_request")
		return
	}
	c.JSON(http.StatusOK, matches)
}
