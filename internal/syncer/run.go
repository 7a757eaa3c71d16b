package syncer

import (
	"context"
	"time"
)

// Run drives sync until ctx is done. It performs a full sync at startup when
// online and on every offline-to-online transition, and a queue pass on
// every tick of Interval and on every Trigger. events carries connectivity
// changes as they happen; conn is consulted for the current state. A nil or
// closed events channel just disables transition handling.
func (p *Processor) Run(ctx context.Context, conn Connectivity, events <-chan bool) error {
	if p.remote == nil {
		p.logger.Info("no remote configured, sync disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	wasOnline := conn.Online()
	if wasOnline {
		p.runFull(ctx, conn, "startup")
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case online, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if online && !wasOnline {
				p.runFull(ctx, conn, "reconnect")
			}
			wasOnline = online

		case <-ticker.C:
			p.runQueue(ctx, conn, "tick")

		case <-p.trigger:
			p.runQueue(ctx, conn, "trigger")
		}
	}
}

func (p *Processor) runFull(ctx context.Context, conn Connectivity, reason string) {
	report, err := p.FullSync(ctx, conn)
	if err != nil && ctx.Err() == nil {
		p.logger.Warn("full sync failed", "reason", reason, "error", err)
		return
	}
	p.logger.Debug("full sync", "reason", reason,
		"requeued", report.Requeued,
		"delivered", report.Queue.Delivered,
		"products", report.Pull.Products,
	)
}

func (p *Processor) runQueue(ctx context.Context, conn Connectivity, reason string) {
	if !conn.Online() {
		return
	}
	if _, err := p.ProcessQueue(ctx, conn); err != nil && ctx.Err() == nil {
		p.logger.Warn("sync pass failed", "reason", reason, "error", err)
	}
}
