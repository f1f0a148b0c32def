package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamsync/backend/internal/services"
	"github.com/teamsync/backend/pkg/response"
)

// CatalogHandler serves the role and skill lookup lists.
type CatalogHandler struct {
	catalogService *services.CatalogService
}

func NewCatalogHandler(catalogService *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// GET /api/roles
func (h *CatalogHandler) ListRoles(c *gin.Context) {
	roles, err := h.catalogService.ListRoles()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, roles)
}

// GET /api/skills?role_id=&search=
func (h *CatalogHandler) ListSkills(c *gin.Context) {
	var req services.SkillListRequest
	if !bindQuery(c, &req) {
		return
	}

	skills, err := h.catalogService.ListSkills(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, skills)
}
