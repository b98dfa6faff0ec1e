package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/deploykit/entrypoint/internal/model"
)

// Env holds the environment variables the deployment supplies to the
// bootstrap process. The entrypoint treats them as read-only: SECRET_KEY
// and DEBUG are consumed by the application itself and pass through
// untouched; the ADMIN_* variables feed the admin provisioning step.
type Env struct {
	// SecretKey is the application's signing key. The entrypoint never
	// reads its value — it is declared here so `check` can report whether
	// the deployment provided one.
	SecretKey string `env:"SECRET_KEY"`

	// Debug mirrors the application's debug flag. When true, the
	// entrypoint's own logging switches to debug level as well.
	Debug bool `env:"DEBUG" envDefault:"false"`

	// AdminEmail and AdminUsername identify the administrative account to
	// provision. When AdminUsername is empty the provisioning step is
	// skipped rather than invoked with incomplete flags.
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminUsername string `env:"ADMIN_USERNAME"`

	// AdminPassword is passed to the provisioning tool via its expected
	// environment variable (DJANGO_SUPERUSER_PASSWORD), never via argv.
	AdminPassword string `env:"ADMIN_PASSWORD"`

	// DatabaseURL, when set, enables the database readiness probe before
	// the migration step runs.
	DatabaseURL string `env:"DATABASE_URL"`

	// DBWaitAddr is a host:port fallback for deployments without a
	// Postgres DSN: the probe degrades to a plain TCP dial.
	DBWaitAddr string `env:"DB_WAIT_ADDR"`

	// BindAddr is the address the application server listens on.
	BindAddr string `env:"BIND_ADDR" envDefault:"0.0.0.0:8000"`

	// AppRoot is the working directory for every step and the server.
	// Empty means the current directory.
	AppRoot string `env:"APP_ROOT"`
}

// LoadEnv loads the process environment into an Env struct.
//
// When envFile is non-empty, that file must exist and is loaded first.
// Otherwise a ./.env file is overlaid if present — its absence is fine,
// matching the usual container/local split where only local runs carry
// a .env file. Variables already present in the process environment win
// over the file in both cases (godotenv does not override).
func LoadEnv(envFile string) (*Env, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, model.WrapCLIError(model.ExitConfigError, fmt.Sprintf("loading env file %s", envFile), err)
		}
	} else {
		// Default .env is optional.
		_ = godotenv.Load()
	}

	cfg, err := env.ParseAs[Env]()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, "parsing environment variables", err)
	}
	return &cfg, nil
}
