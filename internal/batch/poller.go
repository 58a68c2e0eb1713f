package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

// Outcome is the terminal result of one polled job.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
)

// maxInFlightEstimate keeps a job that is still running below "done".
const maxInFlightEstimate = 95.0

const reasonNoOutput = "completed without output"

// TerminalResult is what a Poller reports once a job stops.
type TerminalResult struct {
	Outcome   Outcome
	OutputRef string
	Reason    string
	Attempts  int
}

// ObserveFunc receives the attempt number and the job's progress estimate after each non-terminal poll.
type ObserveFunc func(attempt int, estimate float64)

// Poller queries a remote job until it reaches a terminal state or the attempt budget runs out.
type Poller struct {
	provider    models.TransformationProvider
	maxAttempts int
	interval    time.Duration
	logger      *slog.Logger
}

func NewPoller(provider models.TransformationProvider, maxAttempts int, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		provider:    provider,
		maxAttempts: maxAttempts,
		interval:    interval,
		logger:      logger,
	}
}

// Poll waits interval before each query. A transient poll error counts as a used attempt;
// a permanent one (see IsPermanent) fails the job at once.
// The returned error is non-nil only when ctx ends first.
func (p *Poller) Poll(ctx context.Context, handle models.JobHandle, observe ObserveFunc) (TerminalResult, error) {
	if res, ok := terminalResult(handle.Initial, 0); ok {
		return res, nil
	}

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			timer.Reset(p.interval)
		}
		select {
		case <-ctx.Done():
			return TerminalResult{Attempts: attempt - 1}, ctx.Err()
		case <-timer.C:
		}
		if err := ctx.Err(); err != nil {
			return TerminalResult{Attempts: attempt - 1}, err
		}

		status, err := p.provider.Status(ctx, handle.RemoteID)
		if err != nil {
			if ctx.Err() != nil {
				return TerminalResult{Attempts: attempt}, ctx.Err()
			}
			if IsPermanent(err) {
				p.logger.Warn("poll failed permanently", "remote_id", handle.RemoteID, "attempt", attempt, "error", err)
				return TerminalResult{Outcome: OutcomeFailed, Reason: err.Error(), Attempts: attempt}, nil
			}
			p.logger.Warn("poll failed", "remote_id", handle.RemoteID, "attempt", attempt, "error", err)
		} else if res, ok := terminalResult(status, attempt); ok {
			return res, nil
		}

		if observe != nil {
			observe(attempt, Estimate(attempt, p.maxAttempts))
		}
	}

	return TerminalResult{
		Outcome:  OutcomeTimedOut,
		Reason:   fmt.Sprintf("no terminal status after %d polls", p.maxAttempts),
		Attempts: p.maxAttempts,
	}, nil
}

// Estimate is the position-based progress of an in-flight job, capped below completion.
func Estimate(attempt, maxAttempts int) float64 {
	if maxAttempts <= 0 {
		return 0
	}
	return min(maxInFlightEstimate, float64(attempt)/float64(maxAttempts)*100)
}

func terminalResult(status models.RemoteStatus, attempt int) (TerminalResult, bool) {
	switch s := status.(type) {
	case models.RemoteCompleted:
		if s.Output == "" {
			return TerminalResult{Outcome: OutcomeFailed, Reason: reasonNoOutput, Attempts: attempt}, true
		}
		return TerminalResult{Outcome: OutcomeCompleted, OutputRef: s.Output, Attempts: attempt}, true
	case models.RemoteFailed:
		return TerminalResult{Outcome: OutcomeFailed, Reason: s.Reason, Attempts: attempt}, true
	}
	return TerminalResult{}, false
}
