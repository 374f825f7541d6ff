package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unipath/unipath-api/internal/models"
	"github.com/unipath/unipath-api/internal/service"
	appErrors "github.com/unipath/unipath-api/pkg/errors"
	"github.com/unipath/unipath-api/pkg/response"
)

// ProfileHandler exposes profile section endpoints.
type ProfileHandler struct {
	profiles *service.ProfileService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// List godoc
// @Summary List profile sections
// @Description Returns all seven sections, with placeholders for the untouched ones
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /profile/sections [get]
func (h *ProfileHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sections, err := h.profiles.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, nil)
}

// Get godoc
// @Summary Get one profile section
// @Tags Profile
// @Produce json
// @Param sectionId path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /profile/sections/{sectionId} [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	section, err := h.profiles.Get(c.Request.Context(), claims.UserID, models.SectionID(c.Param("sectionId")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// Save godoc
// @Summary Save a profile section
// @Description Upserts the section payload after variant validation
// @Tags Profile
// @Accept json
// @Produce json
// @Param sectionId path string true "Section ID"
// @Param payload body service.SaveSectionRequest true "Section payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /profile/sections/{sectionId} [put]
func (h *ProfileHandler) Save(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SaveSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	section, err := h.profiles.Save(c.Request.Context(), claims.UserID, models.SectionID(c.Param("sectionId")), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// SetCompleted godoc
// @Summary Toggle section completion
// @Tags Profile
// @Accept json
// @Produce json
// @Param sectionId path string true "Section ID"
// @Param payload body map[string]bool true "Completed flag"
// @Success 204 {object} response.Envelope
// @Router /profile/sections/{sectionId}/completed [patch]
func (h *ProfileHandler) SetCompleted(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Completed bool `json:"completed"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.profiles.SetCompleted(c.Request.Context(), claims.UserID, models.SectionID(c.Param("sectionId")), payload.Completed); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Clear a profile section
// @Tags Profile
// @Produce json
// @Param sectionId path string true "Section ID"
// @Success 204 {object} response.Envelope
// @Router /profile/sections/{sectionId} [delete]
func (h *ProfileHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.profiles.Delete(c.Request.Context(), claims.UserID, models.SectionID(c.Param("sectionId"))); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// References godoc
// @Summary Get references readiness
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /profile/references [get]
func (h *ProfileHandler) References(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	ready, err := h.profiles.References(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"ready": ready}, nil)
}

// SetReferences godoc
// @Summary Set references readiness
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body map[string]bool true "Ready flag"
// @Success 204 {object} response.Envelope
// @Router /profile/references [put]
func (h *ProfileHandler) SetReferences(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Ready bool `json:"ready"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.profiles.SetReferences(c.Request.Context(), claims.UserID, payload.Ready); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
