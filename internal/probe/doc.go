// Package probe implements the preflight checks that run before the boot
// sequence starts, plus the readiness wait used in supervised serve mode.
//
// Preflight exists because the most common bootstrap failure is not the
// steps themselves but their prerequisites: the database container is
// still starting, a binary is missing from the image, or the bind port is
// already taken. Catching these up front turns a confusing mid-migration
// stack trace into a single clear probe failure with exit code 3.
//
// The database probe retries with fibonacci backoff, replacing the
// wait-for-it.sh loop a shell entrypoint would carry. With a Postgres DSN
// it performs a real connect + ping; with only a host:port it degrades to
// a TCP dial.
package probe
