package services

import (
	"context"
	"sync"
	"time"

	"github.com/khabaroff/webhook-inbox/src/logging"
	"github.com/rs/zerolog"
)

// DefaultProcessInterval is how often the scheduler runs the processor
const DefaultProcessInterval = 5 * time.Second

// RunLock guards a processing run against overlap.
// TryLock never blocks waiting for another holder.
type RunLock interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// LocalRunLock prevents overlapping runs inside one process
type LocalRunLock struct {
	mu sync.Mutex
}

func (l *LocalRunLock) TryLock(context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

func (l *LocalRunLock) Unlock(context.Context) error {
	l.mu.Unlock()
	return nil
}

// PendingProcessor is the work done on each tick
type PendingProcessor interface {
	ProcessPending(ctx context.Context) (ProcessStats, error)
}

// ProcessorScheduler runs the processor on a fixed interval
type ProcessorScheduler struct {
	processor PendingProcessor
	lock      RunLock
	interval  time.Duration
	logger    zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewProcessorScheduler creates a scheduler; a nil lock means LocalRunLock
func NewProcessorScheduler(processor PendingProcessor, lock RunLock, interval time.Duration) *ProcessorScheduler {
	if lock == nil {
		lock = &LocalRunLock{}
	}
	if interval <= 0 {
		interval = DefaultProcessInterval
	}
	return &ProcessorScheduler{
		processor: processor,
		lock:      lock,
		interval:  interval,
		logger:    logging.NewLogger("scheduler"),
	}
}

// Start begins periodic processing. Calling Start on a running scheduler does nothing.
func (s *ProcessorScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx, s.done)

	s.logger.Info().Dur("interval", s.interval).Msg("event processor started")
}

// Stop halts the loop and waits for an in-flight run to return.
// Stopping a scheduler that is not running does nothing.
func (s *ProcessorScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.logger.Info().Msg("event processor stopped")
}

// Running reports whether the loop is active
func (s *ProcessorScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *ProcessorScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single guarded run. It reports false when the run was
// skipped because another run holds the lock.
func (s *ProcessorScheduler) RunOnce(ctx context.Context) bool {
	acquired, err := s.lock.TryLock(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to acquire processor lock")
		return false
	}
	if !acquired {
		s.logger.Warn().Msg("previous processing run still active, skipping tick")
		return false
	}
	defer func() {
		// ctx may already be cancelled here
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.lock.Unlock(unlockCtx); err != nil {
			s.logger.Error().Err(err).Msg("failed to release processor lock")
		}
	}()

	if _, err := s.processor.ProcessPending(ctx); err != nil {
		s.logger.Error().Err(err).Msg("event processor run failed")
	}
	return true
}
