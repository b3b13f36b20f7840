package linkmon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scanner runs one full pass over every link.
type Scanner interface {
	Scan(ctx context.Context) error
}

// ScanFunc adapts a function to the Scanner interface.
type ScanFunc func(ctx context.Context) error

func (f ScanFunc) Scan(ctx context.Context) error { return f(ctx) }

// Scheduler runs a scan immediately and then once per interval. A scan
// always finishes before the next tick is considered, so scans never
// overlap; ticks missed while a slow scan runs are dropped.
type Scheduler struct {
	scanner  Scanner
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler that drives scanner every interval.
func NewScheduler(scanner Scanner, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{scanner: scanner, interval: interval, logger: logger}
}

// Start launches the scheduling loop in a goroutine. Calling Start on a
// running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}(s.done)
}

// Stop cancels the loop and waits for an in-flight scan to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the scheduling loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if err := s.scanner.Scan(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("scan failed", zap.Error(err))
	}
}
