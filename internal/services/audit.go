package services

import (
	"fmt"
	"time"

	"github.com/teamsync/backend/internal/models"
	"gorm.io/gorm"
)

// AuditService stores and lists the request audit trail.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

type AuditListRequest struct {
	Pagination
	Module string `form:"module"`
	Action string `form:"action" binding:"omitempty,oneof=create update delete"`
	UserID uint   `form:"user_id"`
	Since  string `form:"since" binding:"omitempty,datetime=2006-01-02"`
}

type AuditListResponse struct {
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Items    []models.AuditLog `json:"items"`
}

func (s *AuditService) Record(entry *models.AuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.db.Create(entry).Error; err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

func (s *AuditService) List(req *AuditListRequest) (*AuditListResponse, error) {
	req.normalize(20)

	query := s.db.Model(&models.AuditLog{})
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action = ?", req.Action)
	}
	if req.UserID != 0 {
		query = query.Where("user_id = ?", req.UserID)
	}
	if req.Since != "" {
		since, err := time.ParseInLocation("2006-01-02", req.Since, time.Local)
		if err != nil {
			return nil, fmt.Errorf("parse since: %w", err)
		}
		query = query.Where("created_at >= ?", since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count audit entries: %w", err)
	}

	var items []models.AuditLog
	if err := query.Order("created_at DESC, id DESC").Offset(req.offset()).Limit(req.PageSize).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	return &AuditListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

// Modules lists the distinct modules seen in the trail.
func (s *AuditService) Modules() ([]string, error) {
	var modules []string
	if err := s.db.Model(&models.AuditLog{}).Distinct("module").Order("module").Pluck("module", &modules).Error; err != nil {
		return nil, fmt.Errorf("list audit modules: %w", err)
	}
	return modules, nil
}
