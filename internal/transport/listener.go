// Package transport is the thin TCP accept-loop boundary spec.md §1
// treats as an external collaborator: it owns nothing about the
// protocol, it only accepts connections and hands each one to a
// session runner goroutine.
package transport

import (
	"context"
	"net"

	"frameworks/api_wattmeter/internal/logging"
)

// SessionRunner runs one accepted connection to completion.
type SessionRunner func(ctx context.Context, conn net.Conn) error

// Serve accepts connections on ln until ctx is cancelled or the
// listener is closed, running each one through run in its own
// goroutine. It returns once the listener stops accepting.
func Serve(ctx context.Context, ln net.Listener, run SessionRunner, logger logging.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.WithError(err).Warn("accept failed")
				return
			}
		}
		go func(c net.Conn) {
			defer c.Close()
			if err := run(ctx, c); err != nil {
				logger.WithError(err).Debug("session ended")
			}
		}(conn)
	}
}
