// Package jobs runs periodic housekeeping for the service.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// SessionPurger removes expired sessions and reports how many it removed.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// Scheduler wraps a cron runner with the service's jobs registered on it.
type Scheduler struct {
	cron *cron.Cron
	log  *log.Logger
}

// NewScheduler registers the session sweep on spec (standard cron syntax or
// descriptors such as "@hourly").
func NewScheduler(purger SessionPurger, spec string, logger *log.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger}))),
		log:  logger,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.sweepSessions(purger) }); err != nil {
		return nil, fmt.Errorf("schedule session sweep %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) sweepSessions(purger SessionPurger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := purger.PurgeExpiredSessions(ctx)
	if err != nil {
		s.log.Error("session sweep failed", "err", err)
		return
	}
	if n > 0 {
		s.log.Info("expired sessions removed", "count", n)
	}
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and waits for a running job, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// cronLogger adapts charmbracelet/log to cron.Logger.
type cronLogger struct{ l *log.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append([]interface{}{"err", err}, keysAndValues...)...)
}
