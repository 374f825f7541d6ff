package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unipath/unipath-api/internal/service"
	appErrors "github.com/unipath/unipath-api/pkg/errors"
	"github.com/unipath/unipath-api/pkg/response"
)

// MatchHandler exposes match scoring endpoints.
type MatchHandler struct {
	matches *service.MatchService
}

// NewMatchHandler constructs MatchHandler.
func NewMatchHandler(matches *service.MatchService) *MatchHandler {
	return &MatchHandler{matches: matches}
}

// List godoc
// @Summary Compute university matches
// @Description Scores the student's readiness checklist against every university
// @Tags Matches
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /matches [get]
func (h *MatchHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	results, err := h.matches.ComputeMatches(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// ProfileStrength godoc
// @Summary Get profile strength
// @Description Completion percentage across all profile sections
// @Tags Matches
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /matches/profile-strength [get]
func (h *MatchHandler) ProfileStrength(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	strength, err := h.matches.ProfileStrength(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, strength, nil)
}
