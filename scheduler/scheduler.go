package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"realty_watch/config"
	"realty_watch/logging"
	"realty_watch/services"
)

// ErrSweepRunning is returned by TriggerNow while another sweep is in progress.
var ErrSweepRunning = errors.New("sweep already running")

// Sweeper polls every due monitor once.
type Sweeper interface {
	ProcessAllMonitors(ctx context.Context) (services.SweepStats, error)
}

// Scheduler runs monitor sweeps on a cron expression or a fixed interval.
// At most one sweep runs at a time; a tick that lands on a running sweep
// is dropped.
type Scheduler struct {
	cfg     config.SchedulerConfig
	sweeper Sweeper
	cron    *cron.Cron
	running sync.Mutex
	stopCh  chan struct{}
	stopped sync.Once
}

func New(cfg config.SchedulerConfig, sweeper Sweeper) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		sweeper: sweeper,
		cron:    cron.New(),
		stopCh:  make(chan struct{}),
	}
}

// Spec is the cron spec the scheduler registers, or "" when nothing is scheduled.
func (s *Scheduler) Spec() string {
	if s.cfg.Cron != "" {
		return s.cfg.Cron
	}
	if s.cfg.Interval > 0 {
		return "@every " + s.cfg.Interval.String()
	}
	return ""
}

func (s *Scheduler) Start(ctx context.Context) error {
	spec := s.Spec()
	if spec == "" {
		logging.Infof("No schedule configured, sweeps only run on request")
		return nil
	}

	logging.Infof("Starting scheduler: %s", spec)
	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.TriggerNow(ctx); err != nil {
			if errors.Is(err, ErrSweepRunning) {
				logging.Warnf("Scheduled sweep skipped: previous sweep still running")
				return
			}
			logging.Errorf("Scheduled sweep error: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	s.cron.Start()

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopCh:
		}
	}()
	return nil
}

// Stop halts scheduling and waits for a running sweep to return.
func (s *Scheduler) Stop() {
	s.stopped.Do(func() {
		close(s.stopCh)
		<-s.cron.Stop().Done()
	})
}

// TriggerNow runs one sweep immediately unless one is already running.
func (s *Scheduler) TriggerNow(ctx context.Context) (services.SweepStats, error) {
	if !s.running.TryLock() {
		return services.SweepStats{}, ErrSweepRunning
	}
	defer s.running.Unlock()
	return s.sweeper.ProcessAllMonitors(ctx)
}
