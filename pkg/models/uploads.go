package models

import (
	"context"
	"fmt"
	"time"

	"github.com/tberndt/dbprune/pkg/blob"
	"github.com/tberndt/dbprune/pkg/db"
)

// Uploads prunes expired upload records along with their backing
// objects in the blob store. Rows are soft-deleted by setting
// deleted_at; pruning the live expired rows leaves soft-deleted rows
// alone, but pretend counting includes them.
type Uploads struct {
	store blob.Deleter
}

// UploadsModel returns the uploads descriptor. store may be nil, in
// which case pruning deletes rows without touching backing objects.
func UploadsModel(store blob.Deleter) Descriptor {
	m := Uploads{store: store}
	return Descriptor{
		Name:         "uploads",
		Table:        "uploads",
		Capabilities: CapPrunable | CapSoftDeletes,
		New:          func() Model { return m },
	}
}

func (u Uploads) Desc() Descriptor { return UploadsModel(u.store) }

func (Uploads) PruneWhere(now time.Time, withTrashed bool) (string, []any) {
	where := "expires_at IS NOT NULL AND expires_at <= ?"
	if !withTrashed {
		where += " AND deleted_at IS NULL"
	}
	return where, []any{now.UTC()}
}

func (u Uploads) Prune(ctx context.Context, conn *db.DB, chunk int, notify func(int64)) (int64, error) {
	where, args := u.PruneWhere(time.Now(), false)
	return conn.PruneEach(ctx, "uploads", "object_key", where, args, chunk, u.deleteBlob, notify)
}

// deleteBlob removes the object backing a row before the row itself
// is deleted.
func (u Uploads) deleteBlob(ctx context.Context, key any) error {
	if u.store == nil {
		return nil
	}
	k, ok := key.(string)
	if !ok {
		return fmt.Errorf("uploads: unexpected object key type %T", key)
	}
	return u.store.Delete(ctx, k)
}
