package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	NotificationJoinRequest     = "join_request"
	NotificationRequestAccepted = "request_accepted"
	NotificationRequestRejected = "request_rejected"
	NotificationSystemUpdate    = "system_update"
	NotificationProjectUpdate   = "project_update"
)

func IsValidNotificationType(t string) bool {
	switch t {
	case NotificationJoinRequest, NotificationRequestAccepted, NotificationRequestRejected,
		NotificationSystemUpdate, NotificationProjectUpdate:
		return true
	}
	return false
}

// NotificationTitleMax is the column size of Notification.Title.
const NotificationTitleMax = 100

// Notification is a read-tracked message. Related project and user are
// nulled when their rows are deleted.
type Notification struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	RecipientID      uint              `gorm:"not null;index:idx_notification_recipient_read" json:"recipient_id"`
	Recipient        *User             `gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE" json:"-"`
	Type             string            `gorm:"size:30;not null;index" json:"type"`
	Title            string            `gorm:"size:100;not null" json:"title"`
	Message          string            `gorm:"type:text;not null" json:"message"`
	Read             bool              `gorm:"column:is_read;default:false;index:idx_notification_recipient_read" json:"read"`
	RelatedProjectID *uint             `gorm:"index" json:"related_project_id"`
	RelatedProject   *Project          `gorm:"foreignKey:RelatedProjectID;constraint:OnDelete:SET NULL" json:"-"`
	RelatedUserID    *uint             `gorm:"index" json:"related_user_id"`
	RelatedUser      *User             `gorm:"foreignKey:RelatedUserID;constraint:OnDelete:SET NULL" json:"-"`
	Data             datatypes.JSONMap `json:"data"`
	CreatedAt        time.Time         `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
