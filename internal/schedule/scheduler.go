package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Job is a unit of periodic maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

func New() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
		ctx:     context.Background(),
	}
}

// Add schedules job on a cron expression. An empty expression leaves the
// job disabled.
func (s *Scheduler) Add(job Job, spec string) error {
	name := job.Name()
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	if spec == "" {
		logger.Info("job disabled")
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}
	id, err := s.cron.AddFunc(spec, s.wrap(job))
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	s.entries[name] = id
	logger.Info("job scheduled")
	return nil
}

// Jobs lists the names of scheduled jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.cron.Start()
}

// Stop cancels running jobs and waits for them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// wrap skips a tick while the previous run of the same job is still going.
func (s *Scheduler) wrap(job Job) func() {
	var running atomic.Bool
	return func() {
		logger := logutil.GetLogger(context.Background()).With(zap.String("job", job.Name()))
		if !running.CompareAndSwap(false, true) {
			logger.Info("job skipped: still running")
			return
		}
		defer running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("job panic", zap.Any("panic", r))
			}
		}()

		start := time.Now()
		err := job.Run(s.runContext())
		elapsed := time.Since(start)
		if err != nil {
			logger.Error("job failed", zap.Error(err), zap.Duration("duration", elapsed))
			return
		}
		logger.Debug("job finished", zap.Duration("duration", elapsed))
	}
}
