package services

import (
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/teamsync/backend/internal/config"
	"github.com/teamsync/backend/internal/metrics"
	"github.com/teamsync/backend/internal/models"
	"github.com/teamsync/backend/pkg/logger"
	"gorm.io/gorm"
)

// CleanupScheduler periodically removes read notifications past retention,
// old audit entries and dead auth tokens.
type CleanupScheduler struct {
	db                 *gorm.DB
	retentionDays      int
	auditRetentionDays int
	spec               string
	cronScheduler      *cron.Cron
	entryID            cron.EntryID
}

type CleanupResult struct {
	Notifications      int64 `json:"notifications"`
	RefreshTokens      int64 `json:"refresh_tokens"`
	VerificationTokens int64 `json:"verification_tokens"`
	ResetTokens        int64 `json:"reset_tokens"`
	AuditLogs          int64 `json:"audit_logs"`
}

func NewCleanupScheduler(db *gorm.DB, cfg *config.NotificationConfig) *CleanupScheduler {
	spec := cfg.CleanupCron
	if spec == "" {
		spec = "0 3 * * *"
	}
	return &CleanupScheduler{
		db:            db,
		retentionDays: cfg.RetentionDays,
		spec:          spec,
	}
}

// WithAuditRetention also prunes audit entries older than days. Zero keeps them.
func (s *CleanupScheduler) WithAuditRetention(days int) *CleanupScheduler {
	s.auditRetentionDays = days
	return s
}

func (s *CleanupScheduler) Start() error {
	s.cronScheduler = cron.New()
	entryID, err := s.cronScheduler.AddFunc(s.spec, func() {
		s.runScheduled(time.Now())
	})
	if err != nil {
		return fmt.Errorf("schedule cleanup %q: %w", s.spec, err)
	}
	s.entryID = entryID
	s.cronScheduler.Start()
	logger.Info().Str("cron", s.spec).Int("retention_days", s.retentionDays).Msg("cleanup scheduler started")
	return nil
}

func (s *CleanupScheduler) Stop() {
	if s.cronScheduler != nil {
		<-s.cronScheduler.Stop().Done()
	}
}

const (
	cleanupLockName = "cleanup"
	cleanupLockTTL  = 24 * time.Hour
)

// runScheduled runs one cleanup pass unless another replica already
// claimed this minute.
func (s *CleanupScheduler) runScheduled(now time.Time) {
	claimed, err := s.claim(now)
	if err != nil {
		logger.Error().Err(err).Msg("cleanup lock failed")
		return
	}
	if !claimed {
		logger.Debug().Msg("cleanup already claimed by another instance")
		return
	}
	if _, err := s.RunOnce(now); err != nil {
		logger.Error().Err(err).Msg("cleanup run failed")
	}
}

func (s *CleanupScheduler) claim(now time.Time) (bool, error) {
	host, _ := os.Hostname()
	lock := models.SchedulerLock{
		LockName:  cleanupLockName,
		LockKey:   now.UTC().Truncate(time.Minute).Format(time.RFC3339),
		LockedBy:  host,
		LockedAt:  now,
		ExpiresAt: now.Add(cleanupLockTTL),
	}
	if err := s.db.Create(&lock).Error; err != nil {
		if isDuplicate(err) {
			return false, nil
		}
		return false, fmt.Errorf("claim cleanup lock: %w", err)
	}
	return true, nil
}

// RunOnce deletes, as of now, read notifications older than the retention
// period, expired or revoked refresh tokens and expired verification tokens.
// Unread notifications are never removed. A retention of zero or less keeps
// every notification.
func (s *CleanupScheduler) RunOnce(now time.Time) (*CleanupResult, error) {
	result := &CleanupResult{}

	if s.retentionDays > 0 {
		cutoff := now.AddDate(0, 0, -s.retentionDays)
		res := s.db.Where("is_read = ? AND created_at < ?", true, cutoff).Delete(&models.Notification{})
		if res.Error != nil {
			return nil, fmt.Errorf("delete old notifications: %w", res.Error)
		}
		result.Notifications = res.RowsAffected
	}

	res := s.db.Where("expires_at < ? OR revoked_at IS NOT NULL", now).Delete(&models.RefreshToken{})
	if res.Error != nil {
		return nil, fmt.Errorf("delete refresh tokens: %w", res.Error)
	}
	result.RefreshTokens = res.RowsAffected

	res = s.db.Where("expires_at < ?", now).Delete(&models.EmailVerificationToken{})
	if res.Error != nil {
		return nil, fmt.Errorf("delete verification tokens: %w", res.Error)
	}
	result.VerificationTokens = res.RowsAffected

	res = s.db.Where("expires_at < ?", now).Delete(&models.PasswordResetToken{})
	if res.Error != nil {
		return nil, fmt.Errorf("delete reset tokens: %w", res.Error)
	}
	result.ResetTokens = res.RowsAffected

	if s.auditRetentionDays > 0 {
		res = s.db.Where("created_at < ?", now.AddDate(0, 0, -s.auditRetentionDays)).Delete(&models.AuditLog{})
		if res.Error != nil {
			return nil, fmt.Errorf("delete audit entries: %w", res.Error)
		}
		result.AuditLogs = res.RowsAffected
	}

	if err := s.db.Where("expires_at < ?", now).Delete(&models.SchedulerLock{}).Error; err != nil {
		return nil, fmt.Errorf("delete scheduler locks: %w", err)
	}

	metrics.CleanupDeleted.WithLabelValues("notifications").Add(float64(result.Notifications))
	metrics.CleanupDeleted.WithLabelValues("refresh_tokens").Add(float64(result.RefreshTokens))
	metrics.CleanupDeleted.WithLabelValues("email_verification_tokens").Add(float64(result.VerificationTokens))
	metrics.CleanupDeleted.WithLabelValues("password_reset_tokens").Add(float64(result.ResetTokens))
	metrics.CleanupDeleted.WithLabelValues("audit_logs").Add(float64(result.AuditLogs))

	logger.Info().
		Int64("notifications", result.Notifications).
		Int64("refresh_tokens", result.RefreshTokens).
		Int64("verification_tokens", result.VerificationTokens).
		Int64("reset_tokens", result.ResetTokens).
		Int64("audit_logs", result.AuditLogs).
		Msg("cleanup finished")
	return result, nil
}
