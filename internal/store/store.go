package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	CreateBatchRun(ctx context.Context, run *models.BatchRun) error
	GetBatchRun(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.BatchRun, error)
	ListBatchRuns(ctx context.Context, filter BatchFilter) ([]*models.BatchRun, int, error)
	UpdateBatchProgress(ctx context.Context, id uuid.UUID, phase models.BatchPhase, progress float64) error
	FinishBatchRun(ctx context.Context, run *models.BatchRun) error
	FailInterruptedBatches(ctx context.Context, reason string) (int, error)

	UpsertTransformJob(ctx context.Context, job *models.TransformJob) error
	ListTransformJobs(ctx context.Context, batchID uuid.UUID) ([]models.TransformJob, error)
}

type BatchFilter struct {
	TenantID uuid.UUID
	Status   string
	Page     int
	Limit    int
}
