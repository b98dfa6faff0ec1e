// Package config loads the two configuration surfaces of the entrypoint:
//
//   - Process environment: the variables the deployment supplies
//     (SECRET_KEY, DEBUG, ADMIN_*, DATABASE_URL, BIND_ADDR, …), parsed
//     into an Env struct. A .env file is overlaid first when present, so
//     local runs behave like container runs.
//
//   - Boot manifest: an optional bootstrap.yaml / bootstrap.jsonc file
//     declaring the step sequence and the serve handoff. When absent, a
//     built-in manifest reproducing the standard Django bootstrap
//     (migrate, collectstatic, createsuperuser, gunicorn) is used.
//
// Manifest string fields support template interpolation with the sprig
// function set, so a manifest can reference the environment without
// hardcoding values:
//
//	command: ["python", "manage.py", "createsuperuser",
//	          "--username", "{{ env \"ADMIN_USERNAME\" }}", "--noinput"]
//
// The manifest format follows the devcontainer.json convention of allowing
// comments in JSON files, so .json and .jsonc are both parsed as JSONC.
package config
