package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/sceneswitch/internal/cache"
	"github.com/kiranshivaraju/sceneswitch/internal/catalog"
	"github.com/kiranshivaraju/sceneswitch/internal/store"
	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

// Service runs batches in the background and persists their progress as they go.
type Service struct {
	orch        *Orchestrator
	store       store.Store
	cache       cache.Cache
	progressTTL time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates a new Service.
func NewService(orch *Orchestrator, st store.Store, ca cache.Cache, progressTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		orch:        orch,
		store:       st,
		cache:       ca,
		progressTTL: progressTTL,
		logger:      logger,
		running:     make(map[uuid.UUID]context.CancelFunc),
	}
}

// Catalog returns the effect catalog batches are validated against.
func (s *Service) Catalog() *catalog.Catalog { return s.orch.Catalog() }

// Submit validates the request, persists a pending run and starts it in a background goroutine.
// Returns the run immediately without waiting for it to finish.
func (s *Service) Submit(ctx context.Context, tenantID uuid.UUID, assets []models.MediaAsset, effects []string) (*models.BatchRun, error) {
	effects = NormalizeEffects(effects)
	if err := s.orch.Validate(assets, effects); err != nil {
		return nil, err
	}

	run := NewBatchRun(tenantID, assets, effects)
	if err := s.store.CreateBatchRun(ctx, run); err != nil {
		return nil, fmt.Errorf("creating batch: %w", err)
	}
	_ = s.cache.SetBatchProgress(ctx, run.ID, snapshot(run.Phase, run.Status, 0), s.progressTTL)

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.running[run.ID] = cancel
	s.mu.Unlock()

	// The goroutine owns its own copy; callers keep the pending view.
	owned := *run
	s.wg.Add(1)
	go s.runBatch(runCtx, cancel, &owned)

	return run, nil
}

// Cancel stops a running batch owned by tenantID. Completed jobs are kept.
func (s *Service) Cancel(ctx context.Context, batchID, tenantID uuid.UUID) error {
	run, err := s.store.GetBatchRun(ctx, batchID, tenantID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	cancel, ok := s.running[run.ID]
	s.mu.Unlock()
	if !ok || run.Status.Finished() {
		return ErrBatchNotRunning
	}

	s.logger.Info("cancelling batch", "batch_id", batchID)
	cancel()
	return nil
}

// Get returns the stored run, overlaid with the cached live progress while it is still running.
func (s *Service) Get(ctx context.Context, batchID, tenantID uuid.UUID) (*models.BatchRun, error) {
	run, err := s.store.GetBatchRun(ctx, batchID, tenantID)
	if err != nil {
		return nil, err
	}
	if run.Status.Finished() {
		return run, nil
	}

	live, found, err := s.cache.GetBatchProgress(ctx, batchID)
	if err != nil {
		s.logger.Warn("reading cached progress", "batch_id", batchID, "error", err)
		return run, nil
	}
	if found && live.Progress >= run.Progress {
		run.Progress = live.Progress
		run.Phase = live.Phase
		run.Status = live.Status
	}
	return run, nil
}

// List returns a page of runs for a tenant, newest first.
func (s *Service) List(ctx context.Context, filter store.BatchFilter) ([]*models.BatchRun, int, error) {
	return s.store.ListBatchRuns(ctx, filter)
}

// Shutdown cancels every running batch and waits for them to record their final state.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.running {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runBatch performs the run in a goroutine.
// It recovers from panics and always records a finished state.
func (s *Service) runBatch(ctx context.Context, cancel context.CancelFunc, run *models.BatchRun) {
	bg := context.Background()
	logger := s.logger.With("batch_id", run.ID)

	defer s.wg.Done()
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.running, run.ID)
		s.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in runBatch", "error", r)
			msg := fmt.Sprintf("panic: %v", r)
			now := time.Now().UTC()
			run.Phase = models.BatchPhaseDone
			run.Status = models.BatchStatusFailed
			run.ErrorMessage = &msg
			run.CompletedAt = &now
			s.finish(bg, logger, run)
		}
	}()

	err := s.orch.Run(ctx, run, &storeRecorder{svc: s, batchID: run.ID, logger: logger})
	switch {
	case err == nil:
	case errors.Is(err, ErrBatchExhausted):
		logger.Warn("batch produced no artifacts", "jobs", len(run.Jobs))
	case errors.Is(err, context.Canceled):
		logger.Info("batch cancelled", "artifacts", len(run.Artifacts))
	default:
		logger.Error("batch run failed", "error", err)
		if run.Status == models.BatchStatusPending || run.Status == models.BatchStatusRunning {
			msg := err.Error()
			run.Phase = models.BatchPhaseDone
			run.Status = models.BatchStatusFailed
			run.ErrorMessage = &msg
		}
	}

	s.finish(bg, logger, run)
}

func (s *Service) finish(ctx context.Context, logger *slog.Logger, run *models.BatchRun) {
	if err := s.store.FinishBatchRun(ctx, run); err != nil {
		logger.Error("recording batch outcome", "error", err)
	}
	_ = s.cache.SetBatchProgress(ctx, run.ID, snapshot(run.Phase, run.Status, run.Progress), s.progressTTL)
}

func snapshot(phase models.BatchPhase, status models.BatchStatus, progress float64) cache.BatchProgress {
	return cache.BatchProgress{
		Phase:     phase,
		Status:    status,
		Progress:  progress,
		UpdatedAt: time.Now().UTC(),
	}
}

// storeRecorder mirrors a run's in-flight state into the store and cache.
type storeRecorder struct {
	svc     *Service
	batchID uuid.UUID
	logger  *slog.Logger

	mu       sync.Mutex
	phase    models.BatchPhase
	progress float64
}

func (r *storeRecorder) PhaseChanged(phase models.BatchPhase) {
	r.mu.Lock()
	r.phase = phase
	progress := r.progress
	r.mu.Unlock()

	if phase == models.BatchPhaseDone {
		return
	}
	ctx := context.Background()
	if err := r.svc.store.UpdateBatchProgress(ctx, r.batchID, phase, progress); err != nil {
		r.logger.Warn("recording batch phase", "phase", phase, "error", err)
	}
	_ = r.svc.cache.SetBatchProgress(ctx, r.batchID, snapshot(phase, models.BatchStatusRunning, progress), r.svc.progressTTL)
}

func (r *storeRecorder) JobChanged(job models.TransformJob) {
	if err := r.svc.store.UpsertTransformJob(context.Background(), &job); err != nil {
		r.logger.Warn("recording job", "job_id", job.ID, "status", job.Status, "error", err)
	}
}

func (r *storeRecorder) ProgressChanged(progress float64) {
	r.mu.Lock()
	r.progress = progress
	phase := r.phase
	r.mu.Unlock()

	_ = r.svc.cache.SetBatchProgress(context.Background(), r.batchID,
		snapshot(phase, models.BatchStatusRunning, progress), r.svc.progressTTL)
}
