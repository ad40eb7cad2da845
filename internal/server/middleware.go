package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/metromate/internal/auth"
	"github.com/MarcoPoloResearchLab/metromate/internal/serviceerr"
	"github.com/MarcoPoloResearchLab/metromate/internal/tracing"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// corsMiddleware allows credentialed requests from the configured origins; "*" echoes the
// request origin.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Session-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	wildcard := len(allowedOrigins) == 0
	for _, origin := range allowedOrigins {
		if strings.TrimSpace(origin) == "*" {
			wildcard = true
		}
	}
	if wildcard {
		config.AllowOriginFunc = func(string) bool { return true }
	} else {
		config.AllowOrigins = allowedOrigins
	}
	return cors.New(config)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		if userID := c.GetString(userIDContextKey); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		if traceID := tracing.TraceID(c.Request.Context()); traceID != "" {
			fields = append(fields, zap.String("trace_id", traceID))
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
			return
		}
		logger.Info("request handled", fields...)
	}
}

// authorizeRequest resolves the session credential and stores the user on the context.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := auth.TokenFromRequest(c.Request, h.cookieName)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.sessions.ResolveSession(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, serviceerr.ErrUnauthenticated) {
			h.logger.Info("session validation failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.logger.Warn("session validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("internal_error", err))
		return
	}
	c.Set(userIDContextKey, user.ID)
	c.Set(userContextKey, user)
	c.Next()
}

// respondServiceError maps the service error taxonomy onto HTTP statuses. invalidCode names the
// 400 error for the route.
func (h *httpHandler) respondServiceError(c *gin.Context, err error, invalidCode string) {
	switch {
	case errors.Is(err, serviceerr.ErrUnauthenticated), errors.Is(err, serviceerr.ErrUpstreamAuth):
		c.JSON(http.StatusUnauthorized, errorBody("unauthorized", err))
	case errors.Is(err, serviceerr.ErrNotFound):
		c.JSON(http.StatusNotFound, errorBody("not_found", err))
	case errors.Is(err, serviceerr.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorBody(invalidCode, err))
	default:
		c.JSON(http.StatusInternalServerError, errorBody("internal_error", err))
	}
}

func errorBody(message string, err error) gin.H {
	body := gin.H{"error": message}
	if code := serviceerr.CodeOf(err); code != "" {
		body["code"] = code
	}
	return body
}
