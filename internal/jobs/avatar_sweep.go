// File: internal/jobs/avatar_sweep.go
package jobs

import (
	"context"
	"fmt"
	"time"

	"picstream_backend/internal/avatar"
	"picstream_backend/internal/config"
	"picstream_backend/internal/user"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// orphanMinAge keeps the sweep from racing a registration that has written
// its derivative files but not yet committed the account row.
const orphanMinAge = time.Hour

// AvatarSweepJob removes derivative files on disk that no account references.
// Such files appear when a registration fails after image processing, or when
// the process crashes between writing files and inserting the row.
type AvatarSweepJob struct {
	repo          user.Repository
	avatarService *avatar.Service
	logger        *zap.Logger
	cfg           *config.Config
	cronScheduler *cron.Cron
}

// NewAvatarSweepJob creates a new AvatarSweepJob.
func NewAvatarSweepJob(
	repo user.Repository,
	avatarService *avatar.Service,
	logger *zap.Logger,
	cfg *config.Config,
) *AvatarSweepJob {
	scheduler := cron.New(cron.WithLogger(NewCronLogger(logger.Named("cron"))))

	return &AvatarSweepJob{
		repo:          repo,
		avatarService: avatarService,
		logger:        logger.Named("AvatarSweepJob"),
		cfg:           cfg,
		cronScheduler: scheduler,
	}
}

// SetupAndStart schedules and starts the cron job.
func (j *AvatarSweepJob) SetupAndStart() error {
	jobSpec := j.cfg.AvatarSweepSchedule // e.g., "@daily", "0 3 * * *"
	if jobSpec == "" {
		j.logger.Warn("Avatar sweep job schedule not defined (AVATAR_SWEEP_SCHEDULE). Job will not run.")
		return nil
	}

	jobID, err := j.cronScheduler.AddFunc(jobSpec, j.runJob)
	if err != nil {
		j.logger.Error("Failed to schedule avatar sweep job", zap.String("spec", jobSpec), zap.Error(err))
		return err
	}

	j.logger.Info("Avatar sweep job scheduled", zap.String("spec", jobSpec), zap.Any("jobID", jobID))
	j.cronScheduler.Start()
	return nil
}

// runJob is the actual work performed by the cron job.
func (j *AvatarSweepJob) runJob() {
	j.logger.Info("Starting avatar sweep job run...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	bases, err := j.repo.ListAvatarFilenames(ctx)
	if err != nil {
		j.logger.Error("Avatar sweep job run failed listing referenced avatars", zap.Error(err))
		return
	}

	referenced := make(map[string]bool, len(bases))
	for _, base := range bases {
		referenced[base] = true
	}

	removed, err := j.avatarService.SweepOrphans(referenced, orphanMinAge)
	if err != nil {
		j.logger.Error("Avatar sweep job run failed", zap.Error(err))
		return
	}
	j.logger.Info("Avatar sweep job run completed", zap.Int("files_removed", removed))
}

// Stop gracefully stops the cron scheduler.
func (j *AvatarSweepJob) Stop() {
	if j.cronScheduler != nil {
		j.logger.Info("Stopping avatar sweep job scheduler...")
		stopCtx := j.cronScheduler.Stop()
		select {
		case <-stopCtx.Done():
			j.logger.Info("Avatar sweep job scheduler stopped gracefully.")
		case <-time.After(10 * time.Second):
			j.logger.Warn("Avatar sweep job scheduler stop timed out.")
		}
	}
}

// --- Cron Logger Adapter ---

// cronLogger adapts zap.Logger to cron.Logger interface.
type cronLogger struct {
	zl *zap.Logger
}

// NewCronLogger creates a new cronLogger.
func NewCronLogger(zl *zap.Logger) cron.Logger {
	return &cronLogger{zl: zl}
}

// Info logs routine messages from cron.
func (cl *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	cl.zl.Info(msg, cl.parseKeysAndValues(keysAndValues...)...)
}

// Error logs error messages from cron.
func (cl *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := cl.parseKeysAndValues(keysAndValues...)
	fields = append(fields, zap.Error(err))
	cl.zl.Error(msg, fields...)
}

func (cl *cronLogger) parseKeysAndValues(keysAndValues ...interface{}) []zap.Field {
	var fields []zap.Field
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(fmt.Sprintf("%v", keysAndValues[i]), keysAndValues[i+1]))
		} else {
			fields = append(fields, zap.Any(fmt.Sprintf("%v", keysAndValues[i]), "MISSING_VALUE"))
		}
	}
	return fields
}
