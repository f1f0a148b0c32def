package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teamsync/backend/internal/config"
	"github.com/teamsync/backend/internal/models"
	"github.com/teamsync/backend/internal/utils"
	"github.com/teamsync/backend/pkg/logger"
	"github.com/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

type AuthService struct {
	db        *gorm.DB
	jwtConfig *config.JWTConfig
	mailer    Mailer
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, mailer Mailer) *AuthService {
	return &AuthService{
		db:        db,
		jwtConfig: jwtCfg,
		mailer:    mailer,
	}
}

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ConfirmPasswordResetRequest struct {
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

type LoginResult struct {
	AccessToken     string       `json:"access_token"`
	AccessExpireAt  time.Time    `json:"access_expire_at"`
	RefreshToken    string       `json:"refresh_token"`
	RefreshExpireAt time.Time    `json:"refresh_expire_at"`
	User            *models.User `json:"user"`
}

// Register creates an unverified account and mails a verification token.
func (s *AuthService) Register(req *RegisterRequest) (*models.User, error) {
	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Email:     models.NormalizeEmail(req.Email),
		Password:  hashed,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}

	var token string
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if isDuplicate(err) {
				return response.NewConflict("a user with this email already exists")
			}
			return fmt.Errorf("create user: %w", err)
		}
		var tokenErr error
		token, tokenErr = s.newVerificationToken(tx, user.ID)
		return tokenErr
	})
	if err != nil {
		return nil, err
	}

	s.sendVerification(user.Email, token)
	return &user, nil
}

func (s *AuthService) newVerificationToken(tx *gorm.DB, userID uint) (string, error) {
	if err := tx.Where("user_id = ?", userID).Delete(&models.EmailVerificationToken{}).Error; err != nil {
		return "", fmt.Errorf("clear verification tokens: %w", err)
	}
	record := models.EmailVerificationToken{
		UserID:    userID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(models.EmailVerificationTTL),
	}
	if err := tx.Create(&record).Error; err != nil {
		return "", fmt.Errorf("create verification token: %w", err)
	}
	return record.Token, nil
}

// Mail delivery failures do not undo the registration; the user can ask for a resend.
func (s *AuthService) sendVerification(email, token string) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendVerification(email, token); err != nil {
		logger.Warn().Err(err).Str("email", email).Msg("send verification email failed")
	}
}

// VerifyEmail marks the account verified, guarantees its profile and signs the user in.
func (s *AuthService) VerifyEmail(token, clientIP, userAgent string) (*LoginResult, error) {
	var user models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var record models.EmailVerificationToken
		if err := tx.Where("token = ?", token).First(&record).Error; err != nil {
			if isNotFound(err) {
				return response.NewBadRequest("invalid verification token")
			}
			return fmt.Errorf("lookup verification token: %w", err)
		}
		if record.Expired(time.Now()) {
			return response.NewBadRequest("verification token has expired")
		}

		if err := tx.First(&user, record.UserID).Error; err != nil {
			return notFoundOr(err, "user not found")
		}
		if err := tx.Model(&user).Update("email_verified", true).Error; err != nil {
			return fmt.Errorf("verify user: %w", err)
		}
		user.EmailVerified = true
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.EmailVerificationToken{}).Error; err != nil {
			return fmt.Errorf("delete verification tokens: %w", err)
		}
		_, err := ensureProfile(tx, &user)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Uint("user_id", user.ID).Msg("email verified")
	return s.issueTokens(&user, clientIP, userAgent)
}

func (s *AuthService) ResendVerification(req *ResendVerificationRequest) error {
	var user models.User
	if err := s.db.Where("email = ?", models.NormalizeEmail(req.Email)).First(&user).Error; err != nil {
		return notFoundOr(err, "user not found")
	}
	if user.EmailVerified {
		return response.NewBadRequest("email is already verified")
	}

	token, err := s.newVerificationToken(s.db, user.ID)
	if err != nil {
		return err
	}
	s.sendVerification(user.Email, token)
	return nil
}

// Login checks credentials before account state so a wrong password never reveals it.
func (s *AuthService) Login(req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	var user models.User
	if err := s.db.Where("email = ?", models.NormalizeEmail(req.Email)).First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, response.NewUnauthorized("invalid email or password")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		return nil, response.NewUnauthorized("invalid email or password")
	}
	if !user.IsActive {
		return nil, response.NewForbidden("account is disabled")
	}
	if !user.EmailVerified {
		return nil, response.NewForbidden("email is not verified")
	}

	now := time.Now()
	if err := s.db.Model(&user).Update("last_login", now).Error; err != nil {
		logger.Warn().Err(err).Uint("user_id", user.ID).Msg("update last login failed")
	}
	user.LastLogin = &now

	return s.issueTokens(&user, clientIP, userAgent)
}

func (s *AuthService) issueTokens(user *models.User, clientIP, userAgent string) (*LoginResult, error) {
	access, accessExpireAt, err := s.accessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	record := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   refreshHash,
		ExpiresAt:   time.Now().Add(s.refreshTTL()),
		CreatedByIP: clientIP,
		UserAgent:   userAgent,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &LoginResult{
		AccessToken:     access,
		AccessExpireAt:  accessExpireAt,
		RefreshToken:    refreshToken,
		RefreshExpireAt: record.ExpiresAt,
		User:            user,
	}, nil
}

func (s *AuthService) accessToken(user *models.User) (string, time.Time, error) {
	minutes := s.jwtConfig.AccessExpireMinutes
	if minutes <= 0 {
		minutes = 15
	}
	token, err := utils.GenerateToken(user.ID, user.Email, user.IsStaff, minutes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, time.Now().Add(time.Duration(minutes) * time.Minute), nil
}

func (s *AuthService) refreshTTL() time.Duration {
	days := s.jwtConfig.RefreshExpireDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// Refresh rotates a refresh token: the old one is revoked and linked to its replacement.
func (s *AuthService) Refresh(refreshToken, clientIP, userAgent string) (*LoginResult, error) {
	if refreshToken == "" {
		return nil, response.NewUnauthorized("refresh token required")
	}

	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ?", hashToken(refreshToken)).First(&stored).Error; err != nil {
		if isNotFound(err) {
			return nil, response.NewUnauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if stored.RevokedAt != nil {
		return nil, response.NewUnauthorized("refresh token revoked")
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, response.NewUnauthorized("refresh token expired")
	}

	var user models.User
	if err := s.db.First(&user, stored.UserID).Error; err != nil {
		if isNotFound(err) {
			return nil, response.NewUnauthorized("user not found")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return nil, response.NewForbidden("account is disabled")
	}

	access, accessExpireAt, err := s.accessToken(&user)
	if err != nil {
		return nil, err
	}
	newToken, newHash, err := generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := time.Now()
	newRefresh := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   newHash,
		ExpiresAt:   now.Add(s.refreshTTL()),
		CreatedByIP: clientIP,
		UserAgent:   userAgent,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&newRefresh).Error; err != nil {
			return err
		}
		// Conditional on revoked_at so two concurrent refreshes cannot both win.
		result := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Updates(map[string]interface{}{
				"revoked_at":           now,
				"replaced_by_token_id": newRefresh.ID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return response.NewUnauthorized("refresh token revoked")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:     access,
		AccessExpireAt:  accessExpireAt,
		RefreshToken:    newToken,
		RefreshExpireAt: newRefresh.ExpiresAt,
		User:            &user,
	}, nil
}

// Logout revokes the refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	err := s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashToken(refreshToken)).
		Update("revoked_at", time.Now()).Error
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	return token, hashToken(token), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) Me(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	return &user, nil
}

// ChangePassword also revokes every outstanding refresh token of the user.
func (s *AuthService) ChangePassword(userID uint, req *ChangePasswordRequest) error {
	user, err := s.Me(userID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return response.NewFieldError("old_password", "incorrect password")
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("password", hashed).Error; err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND revoked_at IS NULL", userID).
			Update("revoked_at", time.Now()).Error
	})
}

// RequestPasswordReset mails a single-use reset token. Earlier tokens of the
// user stop working.
func (s *AuthService) RequestPasswordReset(req *PasswordResetRequest) error {
	var user models.User
	if err := s.db.Where("email = ?", models.NormalizeEmail(req.Email)).First(&user).Error; err != nil {
		if isNotFound(err) {
			return response.NewFieldError("email", "no user found with this email address")
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	token := uuid.NewString()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.PasswordResetToken{}).Error; err != nil {
			return fmt.Errorf("clear reset tokens: %w", err)
		}
		record := models.PasswordResetToken{
			UserID:    user.ID,
			TokenHash: hashToken(token),
			ExpiresAt: time.Now().Add(models.PasswordResetTTL),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("create reset token: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.mailer != nil {
		if err := s.mailer.SendPasswordReset(user.Email, token); err != nil {
			return fmt.Errorf("send password reset email: %w", err)
		}
	}
	logger.Info().Uint("user_id", user.ID).Msg("password reset requested")
	return nil
}

// ConfirmPasswordReset sets the new password, consumes the token and revokes
// every refresh token of the user.
func (s *AuthService) ConfirmPasswordReset(req *ConfirmPasswordResetRequest) error {
	if req.Password != req.ConfirmPassword {
		return response.NewFieldError("password", "password fields didn't match")
	}
	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var userID uint
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var record models.PasswordResetToken
		if err := tx.Where("token_hash = ?", hashToken(req.Token)).First(&record).Error; err != nil {
			if isNotFound(err) {
				return response.NewBadRequest("token is invalid or expired")
			}
			return fmt.Errorf("lookup reset token: %w", err)
		}
		if time.Now().After(record.ExpiresAt) {
			return response.NewBadRequest("token is invalid or expired")
		}
		userID = record.UserID

		if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("password", hashed).Error; err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.PasswordResetToken{}).Error; err != nil {
			return fmt.Errorf("delete reset tokens: %w", err)
		}
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND revoked_at IS NULL", userID).
			Update("revoked_at", time.Now()).Error
	})
	if err != nil {
		return err
	}
	logger.Info().Uint("user_id", userID).Msg("password reset")
	return nil
}
