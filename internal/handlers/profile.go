package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamsync/backend/internal/middleware"
	"github.com/teamsync/backend/internal/services"
	"github.com/teamsync/backend/pkg/response"
)

type ProfileHandler struct {
	profileService *services.ProfileService
}

func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// GET /api/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	profile, err := h.profileService.Get(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, profile)
}

// Update applies a partial profile change
// PATCH /api/profile
func (h *ProfileHandler) Update(c *gin.Context) {
	var req services.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	profile, err := h.profileService.Update(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, profile)
}

// GET /api/profile/skills
func (h *ProfileHandler) ListSkills(c *gin.Context) {
	skills, err := h.profileService.ListSkills(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, skills)
}

// POST /api/profile/skills
func (h *ProfileHandler) AddSkill(c *gin.Context) {
	var req services.AddSkillRequest
	if !bindJSON(c, &req) {
		return
	}

	skill, err := h.profileService.AddSkill(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, skill)
}

// DELETE /api/profile/skills/:id
func (h *ProfileHandler) RemoveSkill(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.profileService.RemoveSkill(middleware.GetUserID(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
