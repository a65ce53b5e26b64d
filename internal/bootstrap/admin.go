// Package bootstrap handles one-time initialization tasks for the application.
package bootstrap

import (
	"context"
	"log/slog"

	"github.com/tranvu/mercato/internal/repository"
)

// AdminConfig names the identity that gets the admin role on startup.
type AdminConfig struct {
	Email string
}

// EnsureAdmin records the configured admin identity so requests carrying it
// pass the admin-role middleware. Identity issuance itself happens outside
// this service; only the email-to-role mapping lives here.
//
// Idempotent: safe to call on every startup. With no email configured it
// logs a hint and skips, which is fine for development.
func EnsureAdmin(ctx context.Context, repo repository.Querier, cfg AdminConfig, logger *slog.Logger) error {
	if cfg.Email == "" {
		logger.Warn("bootstrap: no ADMIN_EMAIL configured, skipping admin setup",
			"hint", "set ADMIN_EMAIL to grant the admin role on startup")
		return nil
	}

	user, err := repo.UpsertUser(ctx, cfg.Email, "admin")
	if err != nil {
		return err
	}

	logger.Info("bootstrap: admin role ensured", "email", user.Email, "user_id", user.ID.String())
	return nil
}
