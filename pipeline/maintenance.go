package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/stupid-simple/assetpipe/config"
	"github.com/stupid-simple/assetpipe/filemanager"
	"github.com/stupid-simple/assetpipe/scheduler"
)

const (
	CleanupJobName = "cleanup"
	PruneJobName   = "prune journal"

	defaultRetention = 30 * 24 * time.Hour
)

// Cleanup removes registry entries and compiled files no sidecar declares.
func (p *Pipeline) Cleanup(ctx context.Context, dryRun bool) (filemanager.CleanupReport, error) {
	return p.Files.CleanupStaleFiles(ctx, filemanager.WithCleanupDryRun(dryRun))
}

// PruneJournal deletes finished journal rows older than retention. A zero
// retention uses the default of 30 days.
func (p *Pipeline) PruneJournal(ctx context.Context, retention time.Duration) (int64, error) {
	if p.Journal == nil {
		return 0, nil
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	return p.Journal.PruneImportRuns(ctx, time.Now().Add(-retention))
}

// ScheduleMaintenance adds the cleanup and journal pruning jobs configured in
// cfg to s. Jobs without a schedule are not added. Call it again with a
// reloaded configuration after s.RemoveJobs.
func (p *Pipeline) ScheduleMaintenance(ctx context.Context, s *scheduler.Scheduler, cfg *config.Config, dryRun bool) error {
	if sched := cfg.Cleanup.Schedule; sched != "" {
		err := s.AddJob(CleanupJobName, sched, scheduler.JobFunc(func() {
			_, err := p.Cleanup(ctx, dryRun)
			if errors.Is(err, filemanager.ErrImportsInFlight) {
				p.logger.Info().Err(err).Msg("skipping cleanup")
			} else if err != nil {
				p.logger.Error().Err(err).Msg("cleanup failed")
			}
		}))
		if err != nil {
			return err
		}
	}

	if sched := cfg.Journal.Schedule; sched != "" && p.Journal != nil {
		retention := cfg.Journal.Retention.Duration
		err := s.AddJob(PruneJobName, sched, scheduler.JobFunc(func() {
			n, err := p.PruneJournal(ctx, retention)
			if err != nil {
				p.logger.Error().Err(err).Msg("journal pruning failed")
				return
			}
			p.logger.Info().Int64("pruned", n).Msg("pruned import journal")
		}))
		if err != nil {
			return err
		}
	}
	return nil
}
