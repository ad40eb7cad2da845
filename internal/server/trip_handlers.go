package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/metromate/internal/trips"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleListTrips(c *gin.Context) {
	history, err := h.trips.ListTrips(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondServiceError(c, err, "invalid_request")
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *httpHandler) handleStartTrip(c *gin.Context) {
	params, err := readParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	fromStation, hasFrom := params.required("from_station")
	toStation, hasTo := params.required("to_station")
	line, hasLine := params.required("line")
	if !hasFrom || !hasTo || !hasLine {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_trip"})
		return
	}

	trip, err := h.trips.StartTrip(c.Request.Context(), c.GetString(userIDContextKey), fromStation, toStation, line)
	if err != nil {
		h.respondServiceError(c, err, "invalid_trip")
		return
	}
	h.metrics.RecordTripStarted(trip.Line)
	c.JSON(http.StatusOK, gin.H{"success": true, "trip": trip})
}

func (h *httpHandler) handleUpdateTrip(c *gin.Context) {
	params, err := readParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	var patch trips.Patch
	if station, present, err := params.text("current_station"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_trip"})
		return
	} else if present {
		patch.CurrentStation = &station
	}
	active, err := params.flag("active")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_trip"})
		return
	}
	patch.Active = active

	if _, err := h.trips.UpdateTrip(c.Request.Context(), c.Param("id"), c.GetString(userIDContextKey), patch); err != nil {
		h.respondServiceError(c, err, "invalid_trip")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
