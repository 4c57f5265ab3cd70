package models

import (
	"context"
	"strings"
	"time"

	"github.com/tberndt/dbprune/pkg/db"
)

// Capability declares what kinds of pruning a model supports.
type Capability uint8

const (
	// CapPrunable marks models whose expired records are deleted one
	// at a time, running the model's per-row cleanup before each
	// deletion.
	CapPrunable Capability = 1 << iota
	// CapMassPrunable marks models whose expired records are deleted
	// with bulk chunked DELETEs.
	CapMassPrunable
	// CapSoftDeletes marks models whose rows may be soft-deleted.
	// Pretend counting widens the prune predicate to include them.
	CapSoftDeletes
)

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	if c&CapPrunable != 0 {
		parts = append(parts, "prunable")
	}
	if c&CapMassPrunable != 0 {
		parts = append(parts, "mass-prunable")
	}
	if c&CapSoftDeletes != 0 {
		parts = append(parts, "soft-deletes")
	}
	return strings.Join(parts, ",")
}

// Descriptor is the static description of a model: its registry name,
// backing table, declared capabilities, and instance factory.
type Descriptor struct {
	Name         string
	Table        string
	Capabilities Capability
	// ChunkSize overrides the global chunk option when greater than
	// zero.
	ChunkSize int
	New       func() Model
}

// Has reports whether the descriptor declares any capability in mask.
func (d Descriptor) Has(mask Capability) bool {
	return d.Capabilities&mask != 0
}

// Model is a registered data model instance.
type Model interface {
	Desc() Descriptor
}

// Expirer is implemented by models that can describe which of their
// rows are eligible for pruning.
type Expirer interface {
	Model
	// PruneWhere returns the predicate selecting rows eligible for
	// pruning at the given time. withTrashed includes soft-deleted
	// rows; it only makes a difference for models declaring
	// CapSoftDeletes.
	PruneWhere(now time.Time, withTrashed bool) (string, []any)
}

// Pruner is implemented by models that can delete their expired rows.
type Pruner interface {
	Model
	// Prune deletes eligible rows in batches of chunk, calling notify
	// with the number of rows removed after each batch, and returns
	// the total number of rows deleted.
	Prune(ctx context.Context, conn *db.DB, chunk int, notify func(int64)) (int64, error)
}

// Config represents the application configuration
type Config struct {
	DBPath             string `mapstructure:"db"`
	ModelsDir          string `mapstructure:"models_dir"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
	S3Endpoint         string `mapstructure:"s3_endpoint"`
	S3Bucket           string `mapstructure:"s3_bucket"`
	S3AccessKey        string `mapstructure:"s3_access_key"`
	S3SecretKey        string `mapstructure:"s3_secret_key"`
	S3Region           string `mapstructure:"s3_region"`
}
