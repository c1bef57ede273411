package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Trigger records what started a scan.
type Trigger string

const (
	TriggerTimer    Trigger = "timer"
	TriggerOnDemand Trigger = "on_demand"
	TriggerWatch    Trigger = "watch"
)

// Schedule runs a scanner on a timer and on request. Concurrent requests
// share one scan.
type Schedule struct {
	scanner  *Scanner
	interval time.Duration
	logger   *slog.Logger

	group   singleflight.Group
	pending chan Trigger

	mu      sync.RWMutex
	last    *Report
	lastErr error
}

// NewSchedule creates a schedule. An interval of zero disables the timer.
func NewSchedule(scanner *Scanner, interval time.Duration, logger *slog.Logger) *Schedule {
	if logger == nil {
		logger = slog.Default()
	}
	return &Schedule{
		scanner:  scanner,
		interval: interval,
		logger:   logger,
		pending:  make(chan Trigger, 1),
	}
}

// Run scans on every tick and on every Trigger until ctx is done. Scan
// failures are logged and kept for Last; they do not stop the loop.
func (s *Schedule) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	s.logger.Info("reconciliation schedule started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reconciliation schedule stopped")
			return nil
		case <-tick:
			s.run(ctx, TriggerTimer)
		case trigger := <-s.pending:
			s.run(ctx, trigger)
		}
	}
}

// Trigger asks the running loop for a scan without waiting for it. Requests
// made while one is already pending are merged.
func (s *Schedule) Trigger(trigger Trigger) {
	select {
	case s.pending <- trigger:
	default:
	}
}

// RunNow scans synchronously. Callers arriving while a scan is in flight
// receive that scan's report.
func (s *Schedule) RunNow(ctx context.Context) (Report, error) {
	return s.run(ctx, TriggerOnDemand)
}

// Last returns the most recent report, or the error of the most recent scan
// if it failed.
func (s *Schedule) Last() (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastErr != nil {
		return Report{}, s.lastErr
	}
	if s.last == nil {
		return Report{}, ErrNoReport
	}
	return s.last.Clone(), nil
}

func (s *Schedule) run(ctx context.Context, trigger Trigger) (Report, error) {
	ch := s.group.DoChan("scan", func() (any, error) {
		report, err := s.scanner.scan(context.WithoutCancel(ctx), trigger)
		if err != nil {
			s.store(nil, err)
			return nil, err
		}
		kept := report.Clone()
		s.store(&kept, nil)
		return report, nil
	})

	select {
	case <-ctx.Done():
		return Report{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Report{}, res.Err
		}
		// Callers sharing one scan each get their own copy.
		return res.Val.(Report).Clone(), nil
	}
}

func (s *Schedule) store(report *Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if report != nil {
		s.last = report
	}
}
