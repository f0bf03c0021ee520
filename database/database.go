package database

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const iterateBatchSize = 50

// Database is the import journal. Every dispatched import gets one row.
type Database struct {
	Lock   sync.Mutex
	Cli    *gorm.DB
	Logger zerolog.Logger
	DryRun bool
}

// RecordImportStart inserts a running import and returns its id.
func (d *Database) RecordImportStart(ctx context.Context, path, mountedPath string, importerVersion uint32) (uint, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	d.Logger.Debug().Str("path", path).Msg("record import start")

	if d.DryRun {
		return 0, nil
	}

	run := &ImportRun{
		Path:            path,
		MountedPath:     mountedPath,
		ImporterVersion: importerVersion,
		Status:          ImportStatusRunning,
		StartedAt:       time.Now().UTC(),
	}
	if err := d.Cli.WithContext(ctx).Create(run).Error; err != nil {
		return 0, err
	}
	return run.ID, nil
}

// RecordImportFinish marks a run as succeeded, or failed when importErr is not
// nil.
func (d *Database) RecordImportFinish(ctx context.Context, id uint, outputs int, importErr error) error {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	if d.DryRun || id == 0 {
		return nil
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":      ImportStatusSucceeded,
		"finished_at": &now,
		"outputs":     outputs,
		"error":       "",
	}
	if importErr != nil {
		updates["status"] = ImportStatusFailed
		updates["error"] = importErr.Error()
	}

	return d.Cli.WithContext(ctx).Model(&ImportRun{ID: id}).Updates(updates).Error
}

// FindImportRuns yields runs newest first.
func (d *Database) FindImportRuns(ctx context.Context, opts ...FindImportRunsOptions) iter.Seq[ImportRun] {
	o := findImportRunsOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	return func(yield func(ImportRun) bool) {
		offset := 0
		remaining := o.limit
		for {
			var thisBatchSize int
			if remaining > 0 {
				thisBatchSize = min(remaining, iterateBatchSize)
			} else {
				thisBatchSize = iterateBatchSize
			}

			query := d.Cli.WithContext(ctx).Model(&ImportRun{})
			if o.onlyFailed {
				query = query.Where("status = ?", ImportStatusFailed)
			}
			if o.path != "" {
				query = query.Where("path = ? OR mounted_path = ?", o.path, o.path)
			}

			runs := []ImportRun{}
			d.Lock.Lock()
			err := query.Order("started_at DESC, id DESC").
				Limit(thisBatchSize).
				Offset(offset).
				Find(&runs).Error
			d.Lock.Unlock()

			if err != nil {
				d.Logger.Error().Err(err).Msg("error fetching import runs from database")
				return
			}
			for _, r := range runs {
				if ctx.Err() != nil {
					return
				}
				if !yield(r) {
					return
				}
			}
			if len(runs) < thisBatchSize {
				return
			}
			if remaining > 0 && remaining-thisBatchSize <= 0 {
				return
			}

			offset += thisBatchSize
			remaining -= thisBatchSize
		}
	}
}

// PruneImportRuns deletes finished runs that started before the given time
// and returns how many were removed.
func (d *Database) PruneImportRuns(ctx context.Context, before time.Time) (int64, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	if d.DryRun {
		var count int64
		err := d.Cli.WithContext(ctx).Model(&ImportRun{}).
			Where("started_at < ? AND status <> ?", before.UTC(), ImportStatusRunning).
			Count(&count).Error
		d.Logger.Info().Int64("count", count).Msg("would prune import runs (dry run)")
		return count, err
	}

	res := d.Cli.WithContext(ctx).
		Where("started_at < ? AND status <> ?", before.UTC(), ImportStatusRunning).
		Delete(&ImportRun{})
	if res.Error != nil {
		return 0, res.Error
	}
	d.Logger.Info().Int64("count", res.RowsAffected).Msg("import runs pruned")
	return res.RowsAffected, nil
}
