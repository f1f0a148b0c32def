package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamsync/backend/internal/services"
	"github.com/teamsync/backend/pkg/response"
)

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// GET /api/audit-logs?module=&action=&user_id=&since= (staff only)
func (h *AuditHandler) List(c *gin.Context) {
	var req services.AuditListRequest
	if !bindQuery(c, &req) {
		return
	}

	resp, err := h.auditService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// GET /api/audit-logs/modules (staff only)
func (h *AuditHandler) Modules(c *gin.Context) {
	modules, err := h.auditService.Modules()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"modules": modules})
}
