package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultMaxAge is how long completed sessions are kept.
const DefaultMaxAge = 24 * time.Hour

// Reaper periodically removes completed sessions on a cron schedule.
type Reaper struct {
	cron    *cron.Cron
	manager *Manager
	logger  *slog.Logger
	maxAge  time.Duration
}

// NewReaper schedules Manager.Reap. The schedule accepts five-field cron
// expressions and descriptors such as "@every 1h".
func NewReaper(manager *Manager, schedule string, maxAge time.Duration, logger *slog.Logger) (*Reaper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	r := &Reaper{
		cron:    cron.New(),
		manager: manager,
		logger:  logger,
		maxAge:  maxAge,
	}
	if _, err := r.cron.AddFunc(schedule, func() { r.RunOnce() }); err != nil {
		return nil, fmt.Errorf("invalid reap schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start runs the schedule in the background.
func (r *Reaper) Start() {
	r.logger.Info("Session reaper started", "max_age", r.maxAge)
	r.cron.Start()
}

// Stop halts the schedule. The returned context is done once a running reap finishes.
func (r *Reaper) Stop() context.Context {
	return r.cron.Stop()
}

// RunOnce reaps immediately.
func (r *Reaper) RunOnce() int {
	return r.manager.Reap(r.maxAge)
}
