package models

import (
	"context"
	"time"

	"github.com/tberndt/dbprune/pkg/db"
)

// DefaultAuditRetention is how long audit events are kept when the
// configuration does not say otherwise.
const DefaultAuditRetention = 90 * 24 * time.Hour

// AuditEvents prunes audit log entries older than the retention
// window with bulk chunked deletes.
type AuditEvents struct {
	retention time.Duration
}

// AuditEventsModel returns the audit_events descriptor. A retention
// of zero or less falls back to DefaultAuditRetention.
func AuditEventsModel(retention time.Duration) Descriptor {
	if retention <= 0 {
		retention = DefaultAuditRetention
	}
	m := AuditEvents{retention: retention}
	return Descriptor{
		Name:         "audit_events",
		Table:        "audit_events",
		Capabilities: CapMassPrunable,
		New:          func() Model { return m },
	}
}

func (a AuditEvents) Desc() Descriptor { return AuditEventsModel(a.retention) }

func (a AuditEvents) PruneWhere(now time.Time, _ bool) (string, []any) {
	return "occurred_at <= ?", []any{now.UTC().Add(-a.retention)}
}

func (a AuditEvents) Prune(ctx context.Context, conn *db.DB, chunk int, notify func(int64)) (int64, error) {
	where, args := a.PruneWhere(time.Now(), false)
	return conn.DeleteChunked(ctx, "audit_events", where, args, chunk, notify)
}
