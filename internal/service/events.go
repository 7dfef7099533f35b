package service

import (
	"context"
	"time"

	"github.com/Strob0t/tenantgate/internal/logger"
	"github.com/Strob0t/tenantgate/internal/port/broadcast"
)

// publish announces a committed mutation to peer processes. Peers also
// recover from a lost event through the L1 TTL, so failures are logged only.
func publish(ctx context.Context, events broadcast.Broadcaster, ev broadcast.Event) {
	if events == nil {
		return
	}
	ev.At = time.Now().UTC()
	if err := events.Broadcast(ctx, ev); err != nil {
		logger.From(ctx).Warn("lifecycle event not published",
			"type", ev.Type, "tenant_id", ev.TenantID, "error", err)
	}
}
