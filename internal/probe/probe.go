package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sethvargo/go-retry"

	"github.com/deploykit/entrypoint/internal/config"
)

// Result is the outcome of a single preflight probe.
type Result struct {
	// Name identifies the probe ("binary:python", "database", "bind-address").
	Name string `json:"name"`

	// OK reports whether the probe passed.
	OK bool `json:"ok"`

	// LatencyMs is how long the probe took, including retries.
	LatencyMs int64 `json:"latencyMs"`

	// Error holds the failure detail when OK is false.
	Error string `json:"error,omitempty"`
}

// AllOK reports whether every probe passed.
func AllOK(results []Result) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}

// Failures returns the probes that did not pass.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.OK {
			failed = append(failed, r)
		}
	}
	return failed
}

// Preflight runs the pre-sequence checks. The zero value is not usable;
// construct with NewPreflight. The function fields exist so tests can
// probe without a real database or network.
type Preflight struct {
	// MaxWait is the total retry budget for the database probe. The
	// database is the one dependency that legitimately needs time — in a
	// fresh deployment it may still be initializing when the app
	// container starts.
	MaxWait time.Duration

	// Backoff is the initial fibonacci backoff interval between database
	// probe attempts.
	Backoff time.Duration

	// pingDatabase performs one connect+ping attempt against a DSN.
	pingDatabase func(ctx context.Context, dsn string) error

	// dial performs one TCP dial attempt against a host:port.
	dial func(ctx context.Context, addr string) error

	// lookPath resolves a binary name against PATH.
	lookPath func(name string) (string, error)
}

// NewPreflight creates a Preflight with production dependencies: pgx for
// database pings, net.Dialer for TCP waits and exec.LookPath for binary
// resolution.
func NewPreflight() *Preflight {
	return &Preflight{
		MaxWait:      30 * time.Second,
		Backoff:      500 * time.Millisecond,
		pingDatabase: pgxPing,
		dial:         tcpDial,
		lookPath:     exec.LookPath,
	}
}

// Run executes all applicable probes and returns their results. skip lists
// step names that will not run, so their binaries are not required.
//
// Probes, in order:
//   - one "binary:<name>" probe per distinct executable used by the
//     sequence (steps not skipped, plus the serve command in exec mode —
//     in child mode too, since the entrypoint starts it either way)
//   - "database" when the environment provides DATABASE_URL (pgx ping)
//     or DB_WAIT_ADDR (TCP dial), retried with backoff
//   - "bind-address" when a serve command is configured: the listen port
//     must still be free before the server is started
func (p *Preflight) Run(ctx context.Context, e *config.Env, m *config.Manifest, skip map[string]string) []Result {
	var results []Result

	for _, name := range requiredBinaries(m, skip) {
		results = append(results, p.binaryProbe(name))
	}

	switch {
	case e.DatabaseURL != "":
		results = append(results, p.databaseProbe(ctx, "database", func(ctx context.Context) error {
			return p.pingDatabase(ctx, e.DatabaseURL)
		}))
	case e.DBWaitAddr != "":
		results = append(results, p.databaseProbe(ctx, "database", func(ctx context.Context) error {
			return p.dial(ctx, e.DBWaitAddr)
		}))
	}

	if len(m.Serve.Command) > 0 {
		results = append(results, bindProbe(m.Serve.Bind))
	}

	for _, r := range results {
		if r.OK {
			slog.Debug("probe ok", "probe", r.Name, "latency_ms", r.LatencyMs)
		} else {
			slog.Warn("probe failed", "probe", r.Name, "error", r.Error)
		}
	}
	return results
}

// requiredBinaries returns the distinct executables the sequence will
// invoke, in first-use order.
func requiredBinaries(m *config.Manifest, skip map[string]string) []string {
	seen := make(map[string]bool)
	var names []string

	add := func(argv []string) {
		if len(argv) == 0 || seen[argv[0]] {
			return
		}
		seen[argv[0]] = true
		names = append(names, argv[0])
	}

	for _, step := range m.Steps {
		if _, skipped := skip[step.Name]; skipped {
			continue
		}
		add(step.Command)
	}
	add(m.Serve.Command)
	return names
}

func (p *Preflight) binaryProbe(name string) Result {
	start := time.Now()
	result := Result{Name: "binary:" + name, OK: true}
	if _, err := p.lookPath(name); err != nil {
		result.OK = false
		result.Error = err.Error()
	}
	result.LatencyMs = time.Since(start).Milliseconds()
	return result
}

// databaseProbe retries attempt with fibonacci backoff until it succeeds
// or the MaxWait budget is exhausted.
func (p *Preflight) databaseProbe(ctx context.Context, name string, attempt func(ctx context.Context) error) Result {
	start := time.Now()
	result := Result{Name: name, OK: true}

	backoff := retry.WithMaxDuration(p.MaxWait, retry.NewFibonacci(p.Backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if attemptErr := attempt(ctx); attemptErr != nil {
			return retry.RetryableError(attemptErr)
		}
		return nil
	})
	if err != nil {
		result.OK = false
		result.Error = fmt.Sprintf("not reachable after %s: %v", p.MaxWait, err)
	}
	result.LatencyMs = time.Since(start).Milliseconds()
	return result
}

// bindProbe checks that the serve address is still free by briefly
// listening on it. Asking the OS to bind is the reliable check — parsing
// /proc/net or shelling out to `ss` needs permissions this process may
// not have.
func bindProbe(addr string) Result {
	start := time.Now()
	result := Result{Name: "bind-address", OK: true}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		result.OK = false
		result.Error = fmt.Sprintf("cannot listen on %s: %v", addr, err)
	} else {
		_ = listener.Close()
	}
	result.LatencyMs = time.Since(start).Milliseconds()
	return result
}

// pgxPing performs a single connect + ping round trip against a Postgres
// DSN. A dedicated short-lived connection is used: the entrypoint never
// holds database state, it only needs to know migrations can proceed.
func pgxPing(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(ctx) }()
	return conn.Ping(ctx)
}

// tcpDial performs a single TCP connection attempt.
func tcpDial(ctx context.Context, addr string) error {
	dialer := net.Dialer{Timeout: 2 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}
