package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamsync/backend/internal/middleware"
	"github.com/teamsync/backend/internal/services"
	"github.com/teamsync/backend/pkg/response"
)

type ProjectHandler struct {
	projectService *services.ProjectService
}

func NewProjectHandler(projectService *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// List returns paginated projects
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	var req services.ProjectListRequest
	if !bindQuery(c, &req) {
		return
	}

	resp, err := h.projectService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// Mine returns projects the caller owns or is an approved member of
// GET /api/projects/mine
func (h *ProjectHandler) Mine(c *gin.Context) {
	var page services.Pagination
	if !bindQuery(c, &page) {
		return
	}

	resp, err := h.projectService.MyProjects(middleware.GetUserID(c), &page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// GetByID returns a project with its requirements
// GET /api/projects/:id
func (h *ProjectHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	project, err := h.projectService.Get(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, project)
}

// Create creates a project together with its roles and skills
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.projectService.Create(&req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, project)
}

// Update updates a project
// PATCH /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.projectService.Update(middleware.GetUserID(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, project)
}

// Delete deletes a project
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.projectService.Delete(middleware.GetUserID(c), id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// POST /api/projects/:id/roles
func (h *ProjectHandler) AddRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var spec services.RoleSpec
	if !bindJSON(c, &spec) {
		return
	}

	role, err := h.projectService.AddRole(middleware.GetUserID(c), id, &spec)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, role)
}

// DELETE /api/projects/:id/roles/:roleID
func (h *ProjectHandler) RemoveRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	roleID, ok := paramID(c, "roleID")
	if !ok {
		return
	}

	if err := h.projectService.RemoveRole(middleware.GetUserID(c), id, roleID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
