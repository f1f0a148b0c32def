package models

import (
	"fmt"
	"time"

	"github.com/teamsync/backend/internal/config"
	"github.com/teamsync/backend/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// gormWriter routes gorm's own log lines through zerolog.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	l := logger.Component("gorm")
	l.Warn().Msgf(format, args...)
}

// Open connects to the configured database. Unique and foreign key
// violations are translated to gorm.ErrDuplicatedKey / gorm.ErrForeignKeyViolated.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(gormWriter{}, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

func InitDB(cfg *config.DatabaseConfig) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Role{},
		&Skill{},
		&Profile{},
		&UserSkill{},
		&Project{},
		&ProjectRole{},
		&ProjectRoleSkill{},
		&ProjectMembership{},
		&Notification{},
		&RefreshToken{},
		&EmailVerificationToken{},
		&PasswordResetToken{},
		&AuditLog{},
		&SchedulerLock{},
	)
}

func AutoMigrate() error {
	return Migrate(DB)
}

func GetDB() *gorm.DB {
	return DB
}

// SeedDefaultData creates default data if not exists
func SeedDefaultData() error {
	created, err := SeedDefaultRoles(DB)
	if err != nil {
		return err
	}
	if created > 0 {
		logger.Info().Int("count", created).Msg("seeded default roles")
	}
	return nil
}
