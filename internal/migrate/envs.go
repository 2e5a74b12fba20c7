// Package migrate holds one-off data migrations.
package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
	"github.com/Priya8975/crm-automation-dispatch/internal/store"
)

// MovedEnvs are the settings that used to live in the environment and are
// now read from the configs collection.
var MovedEnvs = []string{
	"PUBSUB_TYPE",
	"UPLOAD_SERVICE_TYPE",
	"FILE_SYSTEM_PUBLIC",
	"COMPANY_EMAIL_FROM",
	"DEFAULT_EMAIL_SERVICE",
	"MAIL_SERVICE",
	"MAIL_PORT",
	"MAIL_USER",
	"MAIL_PASS",
	"MAIL_HOST",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"AWS_BUCKET",
	"AWS_PREFIX",
	"AWS_COMPATIBLE_SERVICE_ENDPOINT",
	"AWS_FORCE_PATH_STYLE",
	"AWS_SES_ACCESS_KEY_ID",
	"AWS_SES_SECRET_ACCESS_KEY",
	"AWS_REGION",
	"AWS_SES_CONFIG_SET",
	"GOOGLE_CLIENT_ID",
	"GOOGLE_CLIENT_SECRET",
	"GOOGLE_APPLICATION_CREDENTIALS",
	"GOOGLE_TOPIC",
	"GOOGLE_SUBSCRIPTION_NAME",
	"GOOGLE_PROJECT_ID",
	"GOOGLE_CLOUD_STORAGE_BUCKET",
	"UPLOAD_FILE_TYPES",
	"WIDGETS_UPLOAD_FILE_TYPES",
}

// sharedDatabaseMarker appears in connection strings of multi-tenant
// deployments, whose configs are managed elsewhere.
const sharedDatabaseMarker = "erxes_"

type Options struct {
	ConnString string
	// Lookup defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
	Logger *slog.Logger
}

// MoveEnvs copies MovedEnvs into an empty configs store and returns how
// many records were inserted. Unset variables are stored with a nil value.
func MoveEnvs(ctx context.Context, seeder store.ConfigSeeder, opts Options) (int, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if strings.Contains(opts.ConnString, sharedDatabaseMarker) {
		logger.Info("skipping env migration for shared database")
		return 0, nil
	}

	count, err := seeder.CountConfigs(ctx)
	if err != nil {
		return 0, fmt.Errorf("checking existing configs: %w", err)
	}
	if count > 0 {
		logger.Info("skipping env migration, configs already present", "count", count)
		return 0, nil
	}

	configs := make([]domain.Config, 0, len(MovedEnvs))
	for _, name := range MovedEnvs {
		cfg := domain.Config{Code: name}
		if v, ok := lookup(name); ok {
			cfg.Value = v
		}
		configs = append(configs, cfg)
	}

	if err := seeder.InsertConfigs(ctx, configs); err != nil {
		return 0, fmt.Errorf("inserting env configs: %w", err)
	}

	logger.Info("moved envs into configs", "count", len(configs))
	return len(configs), nil
}
