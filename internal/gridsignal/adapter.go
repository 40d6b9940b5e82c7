// Package gridsignal adapts an external OS signal into grid-incident
// broadcasts. spec.md §4.F names it the sole authorized production
// caller of Store.BroadcastErr/BroadcastResolved.
package gridsignal

import (
	"context"
	"os"
	"os/signal"

	"frameworks/api_wattmeter/internal/alerts"
	"frameworks/api_wattmeter/internal/logging"
)

const incidentMessage = "someone unplugged the power cable!"

// Run listens for sig and alternates between BroadcastErr and
// BroadcastResolved on each delivery, starting with BroadcastErr. It
// blocks until ctx is cancelled, grounded on pkg/server.Start's
// signal.Notify/select shutdown pattern generalized to a toggling
// rather than one-shot signal.
func Run(ctx context.Context, store *alerts.Store, logger logging.Logger, sig os.Signal) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig)
	defer signal.Stop(ch)

	active := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			if !active {
				store.BroadcastErr(incidentMessage)
				logger.Warn("grid signal received: broadcasting power grid error")
			} else {
				store.BroadcastResolved()
				logger.Info("grid signal received: broadcasting power grid resolved")
			}
			active = !active
		}
	}
}
