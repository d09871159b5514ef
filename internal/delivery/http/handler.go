package http

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/skinmatch/backend/internal/domain"
	"github.com/skinmatch/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	matcher *usecase.MatchService
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(matcher *usecase.MatchService, logger *zap.Logger) *Handler {
	return &Handler{matcher: matcher, logger: logger}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "skinmatch-backend",
		"version": "1.0.0",
	})
}

// MatchProducts handles product match requests. Invalid requests surface as
// 400 with a detail message; unexpected matching failures as 500. A request
// with zero verifiable candidates is a 200 with an empty results array.
func (h *Handler) MatchProducts(c *gin.Context) {
	if h.matcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "matching service not configured"})
		return
	}

	var request domain.MatchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body: " + err.Error()})
		return
	}

	matchID := requestid.Get(c)
	h.logger.Info("product match request",
		zap.String("match_id", matchID),
		zap.String("country", request.Country),
		zap.Strings("required", request.RequiredIngredients),
		zap.Strings("avoid", request.AvoidIngredients))

	response, err := h.matcher.MatchProducts(c.Request.Context(), &request)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			h.logger.Warn("rejected invalid match request",
				zap.String("match_id", matchID), zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}
		h.logger.Error("product match failed",
			zap.String("match_id", matchID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "product matching failed"})
		return
	}

	h.logger.Info("product match completed",
		zap.String("match_id", matchID),
		zap.Int("results", len(response.Results)))
	c.JSON(http.StatusOK, response)
}
