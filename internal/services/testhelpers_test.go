package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/teamsync/backend/internal/authz"
	"github.com/teamsync/backend/internal/config"
	"github.com/teamsync/backend/internal/models"
	"github.com/teamsync/backend/internal/utils"
	"github.com/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

func init() {
	utils.SetJWTSecret("services-test-secret")
}

type testEnv struct {
	db            *gorm.DB
	hub           *NotificationHub
	catalog       *CatalogService
	notifications *NotificationService
	profiles      *ProfileService
	projects      *ProjectService
	memberships   *MembershipService
	auth          *AuthService
	mailer        *captureMailer
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := models.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	if _, err := models.SeedDefaultRoles(db); err != nil {
		t.Fatalf("SeedDefaultRoles() error = %v", err)
	}

	enforcer := authz.MustNewEnforcer()
	hub := NewNotificationHub()
	catalog := NewCatalogService(db)
	notifications := NewNotificationService(db, enforcer, hub)
	mailer := &captureMailer{}

	return &testEnv{
		db:            db,
		hub:           hub,
		catalog:       catalog,
		notifications: notifications,
		profiles:      NewProfileService(db, catalog),
		projects:      NewProjectService(db, catalog, enforcer, notifications),
		memberships:   NewMembershipService(db, enforcer, notifications),
		auth: NewAuthService(db, &config.JWTConfig{
			AccessExpireMinutes: 15,
			RefreshExpireDays:   30,
		}, mailer),
		mailer: mailer,
	}
}

// createUser inserts a verified, active account.
func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	hashed, err := utils.HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	user := models.User{Email: email, Password: hashed, EmailVerified: true, IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return &user
}

func roleByValue(t *testing.T, db *gorm.DB, value string) *models.Role {
	t.Helper()
	var role models.Role
	if err := db.Where("value = ?", value).First(&role).Error; err != nil {
		t.Fatalf("role %s: %v", value, err)
	}
	return &role
}

func createSkill(t *testing.T, db *gorm.DB, name string, roleID *uint) *models.Skill {
	t.Helper()
	skill := models.Skill{Name: name, RoleID: roleID}
	if err := db.Create(&skill).Error; err != nil {
		t.Fatalf("create skill %s: %v", name, err)
	}
	return &skill
}

// createProject makes a project owned by ownerID with one custom role per name.
func createProject(t *testing.T, env *testEnv, ownerID uint, title string, roles ...string) *models.Project {
	t.Helper()
	req := &CreateProjectRequest{Title: title}
	for _, r := range roles {
		req.Roles = append(req.Roles, RoleSpec{CustomRoleName: r, NumberRequired: 1})
	}
	project, err := env.projects.Create(req, ownerID)
	if err != nil {
		t.Fatalf("Create(%s) error = %v", title, err)
	}
	return project
}

func countNotifications(t *testing.T, db *gorm.DB, recipientID uint, typ string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ?", recipientID, typ).
		Count(&n).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	return n
}

func expectStatus(t *testing.T, err error, status int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d, got nil", status)
	}
	if got := response.StatusOf(err); got != status {
		t.Fatalf("status = %d, expected %d (err: %v)", got, status, err)
	}
}

func uintPtr(v uint) *uint    { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

type captureMailer struct {
	mu     sync.Mutex
	tokens map[string]string
	resets map[string]string
}

func (m *captureMailer) SendPasswordReset(to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resets == nil {
		m.resets = map[string]string{}
	}
	m.resets[to] = token
	return nil
}

func (m *captureMailer) resetToken(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets[to]
}

func (m *captureMailer) SendVerification(to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]string{}
	}
	m.tokens[to] = token
	return nil
}

func (m *captureMailer) token(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[to]
}

// dataID reads an integer from a notification payload. Rows reloaded from
// the database carry json.Number; freshly built ones carry Go integers.
func dataID(t *testing.T, n models.Notification, key string) int64 {
	t.Helper()
	switch v := n.Data[key].(type) {
	case json.Number:
		id, err := v.Int64()
		if err != nil {
			t.Fatalf("Data[%q] = %v: %v", key, v, err)
		}
		return id
	case float64:
		return int64(v)
	case uint:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	}
	t.Fatalf("Data[%q] has unexpected type %T", key, n.Data[key])
	return 0
}
