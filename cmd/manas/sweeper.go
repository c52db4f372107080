package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// idleSweeper periodically abandons sessions that have gone quiet.
type idleSweeper struct {
	cron   *cron.Cron
	sweep  func(context.Context) (int, error)
	logger *runtimeLogger
}

// newIdleSweeper registers one sweep job on the given cron schedule.
func newIdleSweeper(ctx context.Context, schedule string, sweep func(context.Context) (int, error), logger *runtimeLogger) (*idleSweeper, error) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return nil, fmt.Errorf("sweep schedule is required")
	}
	s := &idleSweeper{
		cron:   cron.New(),
		sweep:  sweep,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.run(ctx) }); err != nil {
		return nil, fmt.Errorf("register idle sweep %q: %w", schedule, err)
	}
	return s, nil
}

// run performs one sweep and logs its outcome.
func (s *idleSweeper) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	swept, err := s.sweep(ctx)
	if err != nil {
		s.logger.Warn("idle sweep persisted with errors", "swept", swept, "err", err)
		return
	}
	if swept > 0 {
		s.logger.Info("idle sessions abandoned", "swept", swept)
	}
}

// Start begins the schedule.
func (s *idleSweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *idleSweeper) Stop() {
	<-s.cron.Stop().Done()
}
