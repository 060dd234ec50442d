package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ChrisHK/label-printer/internal/logging"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SchedulerConfig holds configuration for the maintenance scheduler.
type SchedulerConfig struct {
	// ArchiveSchedule is a cron spec for archive runs. Empty disables the job.
	// Default: "@daily"
	ArchiveSchedule string

	// ReconcileSchedule is a cron spec for stale-log sweeps. Empty disables the job.
	// Default: "@every 5m"
	ReconcileSchedule string

	// RetentionDays is passed to every archive run.
	RetentionDays int

	// Lease is passed to every sweep.
	Lease time.Duration

	// JobTimeout bounds one job run.
	// Default: 5 minutes
	JobTimeout time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		ArchiveSchedule:   "@daily",
		ReconcileSchedule: "@every 5m",
		RetentionDays:     DefaultRetentionDays,
		Lease:             30 * time.Minute,
		JobTimeout:        5 * time.Minute,
	}
}

// Scheduler runs archive and reconciliation jobs on cron schedules.
type Scheduler struct {
	cron       *cron.Cron
	archiver   *LogArchiver
	reconciler *Reconciler
	config     SchedulerConfig
	log        *logrus.Entry

	mu        sync.Mutex
	isRunning bool
}

// NewScheduler registers the configured jobs. Either job may be nil to skip it.
func NewScheduler(archiver *LogArchiver, reconciler *Reconciler, config SchedulerConfig) (*Scheduler, error) {
	if config.JobTimeout <= 0 {
		config.JobTimeout = 5 * time.Minute
	}

	logger := cron.PrintfLogger(logrus.StandardLogger())
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		archiver:   archiver,
		reconciler: reconciler,
		config:     config,
		log:        logging.Component("Scheduler"),
	}

	if archiver != nil && config.ArchiveSchedule != "" {
		if _, err := s.cron.AddFunc(config.ArchiveSchedule, s.runArchive); err != nil {
			return nil, fmt.Errorf("invalid archive schedule %q: %w", config.ArchiveSchedule, err)
		}
	}
	if reconciler != nil && config.ReconcileSchedule != "" {
		if _, err := s.cron.AddFunc(config.ReconcileSchedule, s.runReconcile); err != nil {
			return nil, fmt.Errorf("invalid reconcile schedule %q: %w", config.ReconcileSchedule, err)
		}
	}
	return s, nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.cron.Start()

	s.log.WithFields(logrus.Fields{
		"archive":   s.config.ArchiveSchedule,
		"reconcile": s.config.ReconcileSchedule,
		"jobs":      len(s.cron.Entries()),
	}).Info("scheduler started")
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out with jobs still running")
	}
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) runArchive() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
	defer cancel()
	_, _ = s.RunArchive(ctx)
}

func (s *Scheduler) runReconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
	defer cancel()
	_, _ = s.RunReconcile(ctx)
}

// RunArchive triggers an immediate archive run.
func (s *Scheduler) RunArchive(ctx context.Context) (*ArchiveResult, error) {
	if s.archiver == nil {
		return nil, fmt.Errorf("archive job not configured")
	}
	return s.archiver.Archive(ctx, s.config.RetentionDays)
}

// RunReconcile triggers an immediate reconciliation sweep.
func (s *Scheduler) RunReconcile(ctx context.Context) (int64, error) {
	if s.reconciler == nil {
		return 0, fmt.Errorf("reconcile job not configured")
	}
	return s.reconciler.Sweep(ctx, s.config.Lease)
}
