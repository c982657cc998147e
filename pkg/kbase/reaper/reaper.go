// Package reaper hard-deletes resources that have sat in the soft-delete
// state longer than the retention window, together with their uploaded files.
package reaper

import (
	"context"
	"fmt"
	"time"

	"github.com/mikepea/kbase/pkg/kbase/config"
	"github.com/mikepea/kbase/pkg/kbase/models"
	"github.com/mikepea/kbase/pkg/kbase/storage"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// sweepTimeout bounds a single scheduled sweep.
const sweepTimeout = 4 * time.Minute

// Reaper runs Sweep on a cron schedule.
type Reaper struct {
	db        *gorm.DB
	uploader  *storage.Uploader
	schedule  string
	retention time.Duration
	logger    zerolog.Logger
	now       func() time.Time
	cron      *cron.Cron
}

// New validates the schedule. An empty schedule disables the periodic sweep.
// A nil uploader leaves stored files in place.
func New(db *gorm.DB, uploader *storage.Uploader, cfg config.ReaperConfig, logger zerolog.Logger) (*Reaper, error) {
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			return nil, fmt.Errorf("reaper schedule %q: %w", cfg.Schedule, err)
		}
	}
	logger = logger.With().Str("component", "reaper").Logger()
	cl := cronLogger{logger}
	return &Reaper{
		db:        db,
		uploader:  uploader,
		schedule:  cfg.Schedule,
		retention: cfg.Retention,
		logger:    logger,
		now:       time.Now,
		cron:      cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
	}, nil
}

// Sweep removes every resource soft-deleted before now minus retention and
// returns how many were purged. A file still referenced by a live resource
// is left in place. A resource whose file cannot be removed is kept for the
// next sweep.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.retention)

	var rows []models.Resource
	err := r.db.WithContext(ctx).Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Find(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("find expired resources: %w", err)
	}

	purged := 0
	for _, row := range rows {
		shared, err := r.inUse(ctx, row.URL)
		if err != nil {
			return purged, err
		}
		if r.uploader != nil && row.URL != "" && !shared {
			if err := r.uploader.Remove(ctx, row.URL); err != nil {
				r.logger.Warn().Err(err).Str("id", row.ID).Str("url", row.URL).Msg("remove file failed")
				continue
			}
		}
		if err := r.db.WithContext(ctx).Unscoped().Where("id = ?", row.ID).Delete(&models.Resource{}).Error; err != nil {
			return purged, fmt.Errorf("purge %s: %w", row.ID, err)
		}
		purged++
	}
	if purged > 0 {
		r.logger.Info().Int("purged", purged).Time("cutoff", cutoff).Msg("sweep finished")
	}
	return purged, nil
}

// inUse reports whether a live resource points at url.
func (r *Reaper) inUse(ctx context.Context, url string) (bool, error) {
	if url == "" {
		return false, nil
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Resource{}).Where("url = ?", url).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count references to %s: %w", url, err)
	}
	if n > 0 {
		r.logger.Debug().Str("url", url).Int64("references", n).Msg("file still in use, keeping it")
	}
	return n > 0, nil
}

// Name implements grace.Grace.
func (r *Reaper) Name() string {
	return "reaper"
}

// Run schedules sweeps and blocks until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	if r.schedule == "" {
		r.logger.Info().Msg("no schedule, reaper disabled")
		<-ctx.Done()
		return nil
	}

	_, err := r.cron.AddFunc(r.schedule, func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := r.Sweep(sweepCtx); err != nil {
			r.logger.Error().Err(err).Msg("sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reaper: %w", err)
	}
	r.logger.Info().Str("schedule", r.schedule).Dur("retention", r.retention).Msg("reaper started")
	r.cron.Start()

	<-ctx.Done()
	return r.Shutdown(context.Background())
}

// Shutdown stops the scheduler and waits for a running sweep.
func (r *Reaper) Shutdown(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
