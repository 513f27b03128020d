// Package bootstrap wires the process runtime: database, Redis and the
// development staff account.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"newsadvance/internal/cache"
	"newsadvance/internal/config"
	"newsadvance/internal/database"
	"newsadvance/internal/models"
	"newsadvance/internal/observability"
	"newsadvance/internal/validation"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// InitRuntime connects to the database and Redis. Redis is optional: a nil
// client means cooldowns and live events run in degraded mode.
func InitRuntime(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		rdb = nil
	}

	if err := EnsureDevStaff(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development staff user: %w", err)
	}

	return db, rdb, nil
}

// EnsureDevStaff creates or promotes the configured staff account. It only
// runs in development with DEV_BOOTSTRAP_STAFF enabled.
func EnsureDevStaff(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapStaff {
		return nil
	}

	username := strings.TrimSpace(cfg.DevStaffUsername)
	email := strings.ToLower(strings.TrimSpace(cfg.DevStaffEmail))
	if err := validation.ValidateUsername(username); err != nil {
		return fmt.Errorf("DEV_STAFF_USERNAME: %w", err)
	}
	if err := validation.ValidateEmail(email); err != nil {
		return fmt.Errorf("DEV_STAFF_EMAIL: %w", err)
	}
	if cfg.DevStaffPassword == "" {
		return errors.New("DEV_STAFF_PASSWORD must be set when DEV_BOOTSTRAP_STAFF is enabled")
	}
	if err := validation.ValidatePassword(cfg.DevStaffPassword); err != nil {
		return fmt.Errorf("DEV_STAFF_PASSWORD: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.DevStaffPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash staff password: %w", err)
	}

	created := false
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		findErr := tx.Where("username = ?", username).Take(&user).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			user = models.User{
				Username: username,
				Email:    email,
				Password: string(hashed),
				IsStaff:  true,
			}
			created = true
			return tx.Create(&user).Error
		case findErr != nil:
			return findErr
		default:
			return tx.Model(&models.User{}).Where("id = ?", user.ID).Update("is_staff", true).Error
		}
	})
	if err != nil {
		return err
	}

	observability.Logger.Info("development staff bootstrap ensured",
		slog.String("username", username),
		slog.Bool("created", created),
	)
	return nil
}
