// Package schedule submits periodic timeline syncs to the engine. It sits
// outside the engine core and uses the same Submit path as any other caller.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
	"github.com/phrazzld/commandq/internal/command"
	"github.com/phrazzld/commandq/internal/service"
)

// Submitter accepts commands. *service.Controller implements it.
type Submitter interface {
	Submit(ctx context.Context, kind command.Kind, target command.TimelineRef, opts command.Options) (*command.Command, error)
}

// SyncScheduler submits a home timeline fetch for each configured account
// whenever its cron expression is due.
type SyncScheduler struct {
	expr       string
	accountIDs []int64
	submitter  Submitter
	logger     *slog.Logger
	now        func() time.Time
}

// NewSyncScheduler validates expr and creates a scheduler.
func NewSyncScheduler(expr string, accountIDs []int64, submitter Submitter, logger *slog.Logger) (*SyncScheduler, error) {
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("invalid cron expression %q", expr)
	}
	if submitter == nil {
		return nil, errors.New("submitter cannot be nil")
	}
	return &SyncScheduler{
		expr:       expr,
		accountIDs: append([]int64(nil), accountIDs...),
		submitter:  submitter,
		logger:     logger.With("component", "sync_scheduler", "schedule", expr),
		now:        time.Now,
	}, nil
}

// Next returns the first due time strictly after t.
func (s *SyncScheduler) Next(t time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.expr, t, false)
}

// Run fires at every due time until ctx is done.
func (s *SyncScheduler) Run(ctx context.Context) error {
	s.logger.Info("sync scheduler started", "accounts", len(s.accountIDs))
	for {
		next, err := s.Next(s.now())
		if err != nil {
			return fmt.Errorf("failed to compute next sync: %w", err)
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("sync scheduler stopped")
			return nil
		case <-timer.C:
		}
		s.Fire(ctx)
	}
}

// Fire submits one sync per account and returns how many were accepted.
// Duplicate and unavailable rejections are expected and only logged at debug level.
func (s *SyncScheduler) Fire(ctx context.Context) int {
	accepted := 0
	for _, id := range s.accountIDs {
		target := command.TimelineRef{AccountID: id, TimelineType: command.TimelineHome}
		cmd, err := s.submitter.Submit(ctx, command.KindFetchTimeline, target, command.Options{})
		switch {
		case err == nil:
			accepted++
			s.logger.Debug("sync submitted", "account_id", id, "command_id", cmd.CreatedAt)
		case errors.Is(err, service.ErrDuplicate), errors.Is(err, service.ErrUnavailable):
			s.logger.Debug("sync not submitted", "account_id", id, "reason", err)
		default:
			s.logger.Warn("failed to submit sync", "account_id", id, "error", err)
		}
	}
	return accepted
}
