package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"calendar-sync-go/internal/config"
	"calendar-sync-go/internal/syncer"
)

// Scheduler is an optional in-process trigger for the nightly sync and the
// contact job drain. Deployments that drive the HTTP entry points from
// external cron leave it disabled; it runs the exact same code paths.
type Scheduler struct {
	cron         *cron.Cron
	entryID      cron.EntryID
	config       *config.SchedulerConfig
	orchestrator *syncer.Orchestrator
	jobs         *syncer.JobProcessor
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	isRunning    bool
	mu           sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.SchedulerConfig, orchestrator *syncer.Orchestrator, jobs *syncer.JobProcessor) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:         cron.New(cron.WithSeconds()),
		config:       cfg,
		orchestrator: orchestrator,
		jobs:         jobs,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	entryID, err := s.cron.AddFunc(s.config.Cron, s.runNightly)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with cron spec %q", s.config.Cron)
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()
	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Wait blocks until any in-flight run finishes.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// runNightly executes one nightly sync and then drains the job queue.
func (s *Scheduler) runNightly() {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.RLock()
	if !s.isRunning {
		s.mu.RUnlock()
		return
	}
	s.mu.RUnlock()

	logrus.Info("Scheduled nightly sync starting")

	result, err := s.orchestrator.Run(s.ctx, syncer.Options{Mode: syncer.ModeNightly})
	if err != nil {
		logrus.Errorf("Scheduled nightly sync failed: %v", err)
		return
	}
	logrus.Infof("Scheduled nightly sync finished: %d ok, %d errors, %d skipped",
		result.Summary.SuccessCount, result.Summary.ErrorCount, result.Summary.SkippedCount)

	if _, err := s.jobs.ProcessPending(s.ctx); err != nil {
		logrus.Errorf("Scheduled job drain failed: %v", err)
	}
}
