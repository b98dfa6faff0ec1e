package probe

import (
	"context"
	"fmt"
	"net"
	"time"
)

// waitInterval is the pause between connection attempts in WaitListening.
const waitInterval = 250 * time.Millisecond

// WaitListening blocks until addr accepts a TCP connection or ctx is done.
// Used in supervised serve mode to report when the server is actually up;
// the 0.0.0.0 wildcard host is dialed via loopback.
func WaitListening(ctx context.Context, addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if host == "0.0.0.0" || host == "::" || host == "" {
		host = "127.0.0.1"
	}
	target := net.JoinHostPort(host, port)

	dialer := net.Dialer{Timeout: waitInterval}
	for {
		conn, dialErr := dialer.DialContext(ctx, "tcp", target)
		if dialErr == nil {
			return conn.Close()
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s never accepted a connection: %w", target, ctx.Err())
		case <-time.After(waitInterval):
		}
	}
}
