package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamsync/backend/internal/middleware"
	"github.com/teamsync/backend/internal/services"
	"github.com/teamsync/backend/pkg/response"
)

type MembershipHandler struct {
	membershipService *services.MembershipService
}

func NewMembershipHandler(membershipService *services.MembershipService) *MembershipHandler {
	return &MembershipHandler{membershipService: membershipService}
}

// GET /api/memberships?project_id=&user_id=&status=
func (h *MembershipHandler) List(c *gin.Context) {
	var req services.MembershipListRequest
	if !bindQuery(c, &req) {
		return
	}

	resp, err := h.membershipService.List(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// Create files a join request
// POST /api/memberships
func (h *MembershipHandler) Create(c *gin.Context) {
	var req services.CreateMembershipRequest
	if !bindJSON(c, &req) {
		return
	}

	membership, err := h.membershipService.Submit(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, membership)
}

// GET /api/memberships/:id
func (h *MembershipHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	membership, err := h.membershipService.Get(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, membership)
}

// Decide approves or rejects a pending request
// PATCH /api/memberships/:id/status
func (h *MembershipHandler) Decide(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.DecideMembershipRequest
	if !bindJSON(c, &req) {
		return
	}

	membership, err := h.membershipService.Decide(middleware.GetUserID(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, membership)
}

// Withdraw deletes the caller's own pending request
// DELETE /api/memberships/:id
func (h *MembershipHandler) Withdraw(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.membershipService.Withdraw(middleware.GetUserID(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
