package prune

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tberndt/dbprune/pkg/db"
	"github.com/tberndt/dbprune/pkg/models"
)

// DefaultChunk is the batch size used when neither the caller nor the
// model descriptor overrides it.
const DefaultChunk = 1000

// ErrModelExceptConflict is returned when both an inclusion and an
// exclusion list are supplied.
var ErrModelExceptConflict = errors.New("--model and --except cannot be combined")

// Options control a single prune run.
type Options struct {
	// Models restricts the run to the named models.
	Models []string
	// Except removes the named models from scanned candidates.
	Except []string
	// All selects every capability-tagged model in the registry
	// instead of scanning the models directory.
	All bool
	// Dir is the models directory scanned by the default strategy.
	Dir string
	// Chunk is the global batch size. A descriptor's own chunk size
	// wins when set.
	Chunk int
	// Pretend counts eligible rows without deleting anything.
	Pretend bool
}

// Events are callbacks observing a single run. They are scoped to the
// Run call; any field may be nil.
type Events struct {
	// Starting runs before the first model, with the candidate names.
	Starting func(names []string)
	// Pruned runs after every deleted batch.
	Pruned func(model string, count int64)
	// Finished runs after the last model, with the candidate names.
	// It is not called when the run fails partway.
	Finished func(names []string)
}

// Sink receives the run's console output.
type Sink interface {
	Info(msg string)
	Header(name string)
	Detail(name, value string)
}

// Resolve computes the candidate descriptors for a run. Supplying both
// an inclusion and an exclusion list is a configuration error,
// detected before any scan. Names that do not resolve in the registry
// are silently dropped.
func Resolve(reg *models.Registry, opts Options) ([]models.Descriptor, error) {
	if len(opts.Models) > 0 && len(opts.Except) > 0 {
		return nil, ErrModelExceptConflict
	}

	capable := models.CapPrunable | models.CapMassPrunable

	if len(opts.Models) > 0 {
		seen := make(map[string]bool, len(opts.Models))
		var out []models.Descriptor
		for _, name := range opts.Models {
			if seen[name] {
				continue
			}
			seen[name] = true
			d, ok := reg.Lookup(name)
			if !ok {
				continue
			}
			// Explicitly named models are taken as-is, capability or
			// not; the run treats a capability-less model as zero
			// deletions.
			out = append(out, d)
		}
		return out, nil
	}

	excluded := make(map[string]bool, len(opts.Except))
	for _, name := range opts.Except {
		excluded[name] = true
	}

	if opts.All {
		var out []models.Descriptor
		for _, d := range reg.All() {
			if excluded[d.Name] || !d.Has(capable) {
				continue
			}
			out = append(out, d)
		}
		return out, nil
	}

	names, err := scanDir(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("scan models dir: %w", err)
	}
	var out []models.Descriptor
	for _, name := range names {
		if excluded[name] {
			continue
		}
		d, ok := reg.Lookup(name)
		if !ok || !d.Has(capable) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Run resolves candidates and prunes them sequentially, reporting
// progress through sink and ev. With Pretend set it only counts what
// would be deleted. A model failure aborts the run; deletions already
// made stay in effect.
func Run(ctx context.Context, conn *db.DB, reg *models.Registry, opts Options, sink Sink, ev Events) error {
	if opts.Chunk <= 0 {
		opts.Chunk = DefaultChunk
	}

	cands, err := Resolve(reg, opts)
	if err != nil {
		return err
	}
	if len(cands) == 0 {
		sink.Info("No prunable models found.")
		return nil
	}

	if opts.Pretend {
		return pretend(ctx, conn, cands, sink)
	}

	names := make([]string, len(cands))
	for i, d := range cands {
		names[i] = d.Name
	}

	if ev.Starting != nil {
		ev.Starting(names)
	}

	headered := make(map[string]bool, len(cands))
	for _, d := range cands {
		chunk := opts.Chunk
		if d.ChunkSize > 0 {
			chunk = d.ChunkSize
		}

		var total int64
		if p, ok := d.New().(models.Pruner); ok && d.Has(models.CapPrunable|models.CapMassPrunable) {
			name := d.Name
			notify := func(n int64) {
				if !headered[name] {
					headered[name] = true
					sink.Header(name)
				}
				sink.Detail(name, fmt.Sprintf("%d records", n))
				if ev.Pruned != nil {
					ev.Pruned(name, n)
				}
			}
			total, err = p.Prune(ctx, conn, chunk, notify)
			if err != nil {
				return fmt.Errorf("prune %s: %w", name, err)
			}
		}
		if total == 0 {
			sink.Info(fmt.Sprintf("No prunable %s records found.", d.Name))
		}
	}

	if ev.Finished != nil {
		ev.Finished(names)
	}
	return nil
}

func pretend(ctx context.Context, conn *db.DB, cands []models.Descriptor, sink Sink) error {
	now := time.Now()
	for _, d := range cands {
		var count int64
		if e, ok := d.New().(models.Expirer); ok && d.Has(models.CapPrunable|models.CapMassPrunable) {
			where, args := e.PruneWhere(now, d.Has(models.CapSoftDeletes))
			var err error
			count, err = conn.CountWhere(ctx, d.Table, where, args...)
			if err != nil {
				return fmt.Errorf("count %s: %w", d.Name, err)
			}
		}
		if count == 0 {
			sink.Info(fmt.Sprintf("No prunable %s records found.", d.Name))
		} else {
			sink.Info(fmt.Sprintf("%d %s records will be pruned.", count, d.Name))
		}
	}
	return nil
}
