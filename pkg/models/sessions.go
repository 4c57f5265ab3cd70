package models

import (
	"context"
	"time"

	"github.com/tberndt/dbprune/pkg/db"
)

// Sessions prunes login sessions past their expiry, one row at a time.
type Sessions struct{}

// SessionsModel returns the sessions descriptor. Sessions are small
// and plentiful, so the model caps its batches below the global
// default.
func SessionsModel() Descriptor {
	return Descriptor{
		Name:         "sessions",
		Table:        "sessions",
		Capabilities: CapPrunable,
		ChunkSize:    500,
		New:          func() Model { return Sessions{} },
	}
}

func (Sessions) Desc() Descriptor { return SessionsModel() }

func (Sessions) PruneWhere(now time.Time, _ bool) (string, []any) {
	return "expires_at <= ?", []any{now.UTC()}
}

func (s Sessions) Prune(ctx context.Context, conn *db.DB, chunk int, notify func(int64)) (int64, error) {
	where, args := s.PruneWhere(time.Now(), false)
	return conn.PruneEach(ctx, "sessions", "id", where, args, chunk, nil, notify)
}
