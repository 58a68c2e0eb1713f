// Package batch runs a set of media assets through a set of effects on a remote
// transformation provider and collects whatever artifacts come back.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/sceneswitch/internal/catalog"
	"github.com/kiranshivaraju/sceneswitch/internal/config"
	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

const reasonCancelled = "cancelled"

// Stager makes a local asset reachable by the provider. Staging the same asset twice
// returns the same reference.
type Stager interface {
	Stage(ctx context.Context, asset models.MediaAsset) (models.AssetRef, error)
}

// Recorder observes a run while it is in flight. Calls for one job arrive in order.
// Implementations must be safe for concurrent use.
type Recorder interface {
	PhaseChanged(phase models.BatchPhase)
	JobChanged(job models.TransformJob)
	ProgressChanged(progress float64)
}

// Policy is the orchestrator's tunables.
type Policy struct {
	MaxAttempts      int
	PollInterval     time.Duration
	ConcurrencyLimit int
	MinAssets        int
}

// PolicyFromConfig converts the batch section of the service configuration.
func PolicyFromConfig(cfg config.BatchConfig) Policy {
	return Policy{
		MaxAttempts:      cfg.MaxAttempts,
		PollInterval:     cfg.PollInterval,
		ConcurrencyLimit: cfg.ConcurrencyLimit,
		MinAssets:        cfg.MinAssets,
	}
}

// Orchestrator drives one batch through staging, submission, polling and collection.
type Orchestrator struct {
	stager    Stager
	submitter *Submitter
	poller    *Poller
	catalog   *catalog.Catalog
	policy    Policy
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used for run diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func NewOrchestrator(stager Stager, provider models.TransformationProvider, cat *catalog.Catalog, policy Policy, opts ...Option) *Orchestrator {
	if policy.ConcurrencyLimit < 1 {
		policy.ConcurrencyLimit = 1
	}
	o := &Orchestrator{
		stager:    stager,
		submitter: NewSubmitter(provider),
		catalog:   cat,
		policy:    policy,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.poller = NewPoller(provider, policy.MaxAttempts, policy.PollInterval, o.logger)
	return o
}

// Catalog returns the effect catalog requests are validated against.
func (o *Orchestrator) Catalog() *catalog.Catalog { return o.catalog }

// NormalizeEffects lower-cases and trims effect codes and drops blanks and repeats, keeping order.
func NormalizeEffects(effects []string) []string {
	seen := make(map[string]bool, len(effects))
	out := make([]string, 0, len(effects))
	for _, e := range effects {
		code := strings.ToLower(strings.TrimSpace(e))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}

// Validate checks a request before any work is done.
func (o *Orchestrator) Validate(assets []models.MediaAsset, effects []string) error {
	if len(assets) == 0 || len(effects) == 0 {
		return ErrEmptyBatch
	}
	if len(assets) < o.policy.MinAssets {
		return fmt.Errorf("%w: need at least %d, got %d", ErrTooFewAssets, o.policy.MinAssets, len(assets))
	}
	for _, e := range effects {
		if !o.catalog.Has(e) {
			return fmt.Errorf("%w: %q", ErrUnknownEffect, e)
		}
	}
	return nil
}

// NewBatchRun builds an idle run for the given request.
func NewBatchRun(tenantID uuid.UUID, assets []models.MediaAsset, effects []string) *models.BatchRun {
	now := time.Now().UTC()
	return &models.BatchRun{
		ID:              uuid.New(),
		TenantID:        tenantID,
		Phase:           models.BatchPhaseIdle,
		Status:          models.BatchStatusPending,
		Effects:         effects,
		Assets:          assets,
		Jobs:            []models.TransformJob{},
		StagingFailures: []models.StagingFailure{},
		Artifacts:       []models.Artifact{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Run executes run to completion and fills in its jobs, artifacts and outcome.
// run is always populated on return. The error is ErrBatchExhausted when nothing
// was produced, ctx.Err() when cancellation left a pair unstarted or cut one short,
// or a validation error. A cancel that arrives after every pair finished does not
// change the outcome.
// rec may be nil.
func (o *Orchestrator) Run(ctx context.Context, run *models.BatchRun, rec Recorder) error {
	if err := o.Validate(run.Assets, run.Effects); err != nil {
		return err
	}
	if rec == nil {
		rec = nopRecorder{}
	}

	logger := o.logger.With("batch_id", run.ID)
	started := time.Now().UTC()
	run.StartedAt = &started
	run.Status = models.BatchStatusRunning
	run.StagingFailures = []models.StagingFailure{}

	effects := len(run.Effects)
	progress := NewProgress(run.PairCount(), rec.ProgressChanged)

	// Staging: every asset, in order, before any submission.
	o.setPhase(run, rec, models.BatchPhaseStaging)
	refs := make([]models.AssetRef, len(run.Assets))
	staged := make([]bool, len(run.Assets))
	// interrupted is set when cancellation left some pair unstarted or cut short.
	interrupted := false
	for i, asset := range run.Assets {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		ref, err := o.stager.Stage(ctx, asset)
		if err != nil {
			if ctx.Err() != nil {
				interrupted = true
				break
			}
			serr := stagingError(asset, err)
			logger.Warn("staging failed", "asset_id", asset.ID, "asset", asset.DisplayName, "error", serr.Err)
			run.StagingFailures = append(run.StagingFailures, models.StagingFailure{
				AssetID:   asset.ID,
				AssetName: asset.DisplayName,
				Reason:    serr.Err.Error(),
			})
			for j := 0; j < effects; j++ {
				progress.Resolve(i*effects + j)
			}
			continue
		}
		refs[i] = ref
		staged[i] = true
	}

	// Processing: one submit-then-poll per pair, at most ConcurrencyLimit at a time.
	o.setPhase(run, rec, models.BatchPhaseProcessing)
	slots := make([]*models.TransformJob, run.PairCount())
	g := new(errgroup.Group)
	g.SetLimit(o.policy.ConcurrencyLimit)

submit:
	for i, asset := range run.Assets {
		if !staged[i] {
			continue
		}
		for j, effect := range run.Effects {
			if ctx.Err() != nil {
				interrupted = true
				break submit
			}
			ordinal := i*effects + j
			g.Go(func() error {
				slots[ordinal] = o.runPair(ctx, logger, run.ID, ordinal, asset, refs[i], effect, progress, rec)
				return nil
			})
		}
	}
	_ = g.Wait()

	// Aggregation: restore submission order regardless of completion order.
	o.setPhase(run, rec, models.BatchPhaseAggregating)
	run.Jobs = make([]models.TransformJob, 0, len(slots))
	run.Artifacts = []models.Artifact{}
	failed := 0
	for ordinal, job := range slots {
		if job == nil {
			if staged[ordinal/effects] {
				interrupted = true
			}
			continue
		}
		if job.Status == models.JobStatusFailed && job.FailureReason == reasonCancelled {
			interrupted = true
		}
		run.Jobs = append(run.Jobs, *job)
		if job.Status == models.JobStatusCompleted {
			run.Artifacts = append(run.Artifacts, models.Artifact{
				ID:        job.ID,
				Name:      job.AssetName,
				OutputRef: job.OutputRef,
				Effect:    job.Effect,
			})
		} else {
			failed++
		}
	}

	var result error
	switch {
	case interrupted:
		run.Status = models.BatchStatusCancelled
		result = ctx.Err()
	case len(run.Artifacts) == 0:
		run.Status = models.BatchStatusFailed
		result = ErrBatchExhausted
	case failed > 0 || len(run.StagingFailures) > 0:
		run.Status = models.BatchStatusPartialSuccess
	default:
		run.Status = models.BatchStatusSuccess
	}
	if result != nil {
		msg := result.Error()
		run.ErrorMessage = &msg
	}

	o.setPhase(run, rec, models.BatchPhaseDone)
	if run.Status != models.BatchStatusCancelled {
		progress.Complete()
	}
	run.Progress = progress.Value()

	completed := time.Now().UTC()
	run.CompletedAt = &completed
	run.UpdatedAt = completed

	logger.Info("batch finished",
		"status", run.Status,
		"jobs", len(run.Jobs),
		"artifacts", len(run.Artifacts),
		"staging_failures", len(run.StagingFailures),
		"duration", completed.Sub(started),
	)
	return result
}

// runPair submits and polls one pair. It returns nil if the pair was never started.
func (o *Orchestrator) runPair(
	ctx context.Context,
	logger *slog.Logger,
	batchID uuid.UUID,
	ordinal int,
	asset models.MediaAsset,
	ref models.AssetRef,
	effect string,
	progress *Progress,
	rec Recorder,
) *models.TransformJob {
	if ctx.Err() != nil {
		return nil
	}

	now := time.Now().UTC()
	job := &models.TransformJob{
		ID:        uuid.New(),
		BatchID:   batchID,
		Ordinal:   ordinal,
		AssetID:   asset.ID,
		AssetName: asset.DisplayName,
		Effect:    effect,
		CreatedAt: now,
		UpdatedAt: now,
	}
	update := func(status models.JobStatus) {
		job.Status = status
		job.UpdatedAt = time.Now().UTC()
		rec.JobChanged(*job)
	}

	handle, err := o.submitter.Submit(ctx, ref, effect)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn("submission failed", "job_id", job.ID, "asset", asset.DisplayName, "effect", effect, "error", err)
		job.FailureReason = failureReason(err)
		update(models.JobStatusFailed)
		progress.Resolve(ordinal)
		return job
	}
	job.RemoteID = handle.RemoteID
	update(models.JobStatusSubmitted)

	res, err := o.poller.Poll(ctx, handle, func(attempt int, estimate float64) {
		job.Attempts = attempt
		job.ProgressEstimate = estimate
		update(models.JobStatusPolling)
		progress.SetEstimate(ordinal, estimate)
	})
	if err != nil {
		job.FailureReason = reasonCancelled
		update(models.JobStatusFailed)
		progress.Resolve(ordinal)
		return job
	}

	job.Attempts = max(job.Attempts, res.Attempts)
	switch res.Outcome {
	case OutcomeCompleted:
		job.OutputRef = res.OutputRef
		job.ProgressEstimate = 100
		update(models.JobStatusCompleted)
	case OutcomeTimedOut:
		job.FailureReason = res.Reason
		update(models.JobStatusTimedOut)
		logger.Warn("job timed out", "job_id", job.ID, "remote_id", job.RemoteID, "attempts", job.Attempts)
	default:
		job.FailureReason = res.Reason
		update(models.JobStatusFailed)
		logger.Warn("job failed", "job_id", job.ID, "remote_id", job.RemoteID, "reason", res.Reason)
	}
	progress.Resolve(ordinal)
	return job
}

func (o *Orchestrator) setPhase(run *models.BatchRun, rec Recorder, phase models.BatchPhase) {
	run.Phase = phase
	run.UpdatedAt = time.Now().UTC()
	rec.PhaseChanged(phase)
}

func stagingError(asset models.MediaAsset, err error) *StagingError {
	var serr *StagingError
	if errors.As(err, &serr) {
		return serr
	}
	return &StagingError{AssetID: asset.ID, AssetName: asset.DisplayName, Err: err}
}

// failureReason strips the SubmissionError prefix; the job already names its effect.
func failureReason(err error) string {
	var serr *SubmissionError
	if errors.As(err, &serr) && serr.Err != nil {
		return serr.Err.Error()
	}
	return err.Error()
}

type nopRecorder struct{}

func (nopRecorder) PhaseChanged(models.BatchPhase) {}
func (nopRecorder) JobChanged(models.TransformJob) {}
func (nopRecorder) ProgressChanged(float64)        {}
