package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPCheck probes a TCP endpoint, for upstreams without a health URL.
func TCPCheck(address string, timeout time.Duration) CheckFunc {
	return func(ctx context.Context) error {
		dialer := &net.Dialer{Timeout: timeout}

		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return fmt.Errorf("dialing %s: %w", address, err)
		}
		return conn.Close()
	}
}
