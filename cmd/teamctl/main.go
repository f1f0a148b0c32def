package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/teamsync/backend/internal/authz"
	"github.com/teamsync/backend/internal/config"
	"github.com/teamsync/backend/internal/models"
	"github.com/teamsync/backend/internal/services"
	"github.com/teamsync/backend/pkg/logger"
	"gorm.io/gorm"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "teamctl",
	Short:         "Administrative tasks for the team collaboration backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDB loads the config and connects without migrating.
func openDB() (*config.Config, *gorm.DB, error) {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)
	db, err := models.Open(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default $CONFIG_PATH or ./config.yaml)")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			if err := models.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}

	seedCmd := &cobra.Command{
		Use:   "seed-roles",
		Short: "Insert the default roles that are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			created, err := models.SeedDefaultRoles(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d roles created\n", created)
			return nil
		},
	}

	var (
		title   string
		message string
		userIDs []uint
	)
	broadcastCmd := &cobra.Command{
		Use:   "broadcast",
		Short: "Send a system_update notification to some or all active users",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			notifications := services.NewNotificationService(db, authz.MustNewEnforcer(), nil)
			count, err := notifications.Broadcast(cmd.Context(), &services.BroadcastTask{
				Title:        title,
				Message:      message,
				RecipientIDs: userIDs,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "notified %d users\n", count)
			return nil
		},
	}
	broadcastCmd.Flags().StringVar(&title, "title", "", "notification title")
	broadcastCmd.Flags().StringVar(&message, "message", "", "notification message")
	broadcastCmd.Flags().UintSliceVar(&userIDs, "user", nil, "recipient user id (repeatable); all active users when omitted")
	_ = broadcastCmd.MarkFlagRequired("title")
	_ = broadcastCmd.MarkFlagRequired("message")

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Run one retention pass over notifications, audit entries and auth tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			result, err := services.NewCleanupScheduler(db, &cfg.Notification).
				WithAuditRetention(cfg.Audit.RetentionDays).
				RunOnce(time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d notifications, %d refresh tokens, %d verification tokens, %d reset tokens, %d audit entries\n",
				result.Notifications, result.RefreshTokens, result.VerificationTokens, result.ResetTokens, result.AuditLogs)
			return nil
		},
	}

	var revoke bool
	staffCmd := &cobra.Command{
		Use:   "grant-staff <email>",
		Short: "Allow an account to send broadcasts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			email := models.NormalizeEmail(args[0])
			result := db.Model(&models.User{}).Where("email = ?", email).Update("is_staff", !revoke)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("no user with email %s", email)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is_staff=%t\n", email, !revoke)
			return nil
		},
	}
	staffCmd.Flags().BoolVar(&revoke, "revoke", false, "remove staff access instead")

	var force bool
	initConfigCmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a config file with the default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = "config.yaml"
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initConfigCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	rootCmd.AddCommand(migrateCmd, seedCmd, broadcastCmd, cleanupCmd, staffCmd, initConfigCmd)
}
