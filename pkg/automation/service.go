package automation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ActionFunc executes one scheduled run.
type ActionFunc func(ctx context.Context) error

// Service runs an action on a schedule until stopped.
type Service struct {
	schedule Schedule
	action   ActionFunc
	log      *zap.Logger
	now      func() time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewService validates the schedule and returns a stopped service.
func NewService(schedule Schedule, action ActionFunc, log *zap.Logger) (*Service, error) {
	if _, err := NextRun(schedule, time.Now()); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		schedule: schedule,
		action:   action,
		log:      log,
		now:      time.Now,
		stop:     make(chan struct{}),
	}, nil
}

// Start begins the scheduling loop. The loop ends when ctx is done or Stop is called.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop stops the loop and waits for a running action to finish.
func (s *Service) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	s.wg.Wait()
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		now := s.now()
		next, err := NextRun(s.schedule, now)
		if err != nil {
			s.log.Error("automation: failed to compute next run", zap.Error(err))
			return
		}
		s.log.Info("automation: next run scheduled", zap.Time("at", next))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		started := time.Now()
		if err := s.action(ctx); err != nil {
			s.log.Warn("automation: scheduled run failed", zap.Error(err))
			continue
		}
		s.log.Info("automation: scheduled run finished", zap.Duration("took", time.Since(started)))
	}
}
