package config

import (
	"github.com/deploykit/entrypoint/internal/model"
)

// SuperuserPasswordVar is the environment variable the admin provisioning
// tool reads the password from. The deployment supplies ADMIN_PASSWORD;
// the entrypoint maps it to this name so the password never appears in
// argv or in `ps` output.
const SuperuserPasswordVar = "DJANGO_SUPERUSER_PASSWORD"

// Default step names, referenced by commands and by AutoSkips.
const (
	StepMigrate       = "migrate"
	StepCollectStatic = "collectstatic"
	StepCreateAdmin   = "create-admin"
)

// DefaultManifest builds the compiled-in boot sequence used when no
// manifest file exists. It reproduces the conventional Django container
// entrypoint exactly:
//
//  1. python manage.py migrate --no-input
//  2. python manage.py collectstatic --no-input
//  3. python manage.py createsuperuser --username … --email … --noinput
//     (password via DJANGO_SUPERUSER_PASSWORD)
//  4. gunicorn config.wsgi:application --bind 0.0.0.0:8000  (exec handoff)
//
// Each step invokes its tool non-interactively and is idempotent on the
// tool's side, so rerunning the sequence on every container start is safe.
// The createsuperuser step is allow_failure: the tool exits non-zero when
// the account already exists, which is the expected steady state after
// the first boot.
func DefaultManifest(e *Env) *Manifest {
	m := &Manifest{
		Source: SourceBuiltin,
		Steps: []Step{
			{
				Name:    StepMigrate,
				Command: []string{"python", "manage.py", "migrate", "--no-input"},
			},
			{
				Name:    StepCollectStatic,
				Command: []string{"python", "manage.py", "collectstatic", "--no-input"},
			},
			{
				Name: StepCreateAdmin,
				Command: []string{
					"python", "manage.py", "createsuperuser",
					"--username", e.AdminUsername,
					"--email", e.AdminEmail,
					"--noinput",
				},
				Env: map[string]string{
					SuperuserPasswordVar: e.AdminPassword,
				},
				AllowFailure: true,
			},
		},
		Serve: Serve{
			Command: []string{"gunicorn", "config.wsgi:application", "--bind", e.BindAddr},
			Mode:    model.ModeExec,
		},
	}
	m.applyDefaults(e)
	return m
}

// AutoSkips returns steps that should be skipped because their inputs are
// absent, mapped to a human-readable reason. Only applies to the built-in
// manifest — a user-written manifest is taken literally.
func AutoSkips(m *Manifest, e *Env) map[string]string {
	skips := make(map[string]string)
	if m.Source != SourceBuiltin {
		return skips
	}
	if e.AdminUsername == "" && m.Step(StepCreateAdmin) != nil {
		skips[StepCreateAdmin] = "ADMIN_USERNAME not set"
	}
	return skips
}
