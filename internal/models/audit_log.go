package models

import "time"

// AuditLog records one state-changing API request.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `gorm:"index" json:"user_id"`
	Email     string    `gorm:"size:254" json:"email"`
	Module    string    `gorm:"size:50;index" json:"module"` // first path segment after /api
	Action    string    `gorm:"size:20;index" json:"action"` // create, update, delete
	Method    string    `gorm:"size:10" json:"method"`
	Route     string    `gorm:"size:200" json:"route"`
	Path      string    `gorm:"size:500" json:"path"`
	Status    int       `gorm:"index" json:"status"`
	IP        string    `gorm:"size:50" json:"ip"`
	UserAgent string    `gorm:"size:500" json:"user_agent"`
	Body      string    `gorm:"type:text" json:"body"` // masked request body
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
