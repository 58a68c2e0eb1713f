package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tenants ---

func (s *PostgresStore) GetDefaultTenant(ctx context.Context) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM tenants WHERE name = 'default' LIMIT 1`,
	).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default tenant: %w", err)
	}
	return &t, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Batch Runs ---

const batchColumns = `id, tenant_id, phase, status, progress, effects, assets, staging_failures, artifacts,
	error_message, started_at, completed_at, created_at, updated_at`

func (s *PostgresStore) CreateBatchRun(ctx context.Context, run *models.BatchRun) error {
	assets, stagingFailures, artifacts, err := marshalBatchDocs(run)
	if err != nil {
		return fmt.Errorf("create batch run: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO batch_runs (id, tenant_id, phase, status, progress, effects, assets, staging_failures, artifacts,
		   error_message, started_at, completed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		run.ID, run.TenantID, run.Phase, run.Status, run.Progress, run.Effects, assets, stagingFailures, artifacts,
		run.ErrorMessage, run.StartedAt, run.CompletedAt, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create batch run: %w", err)
	}
	return nil
}

// GetBatchRun returns the run with its jobs in ordinal order.
func (s *PostgresStore) GetBatchRun(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.BatchRun, error) {
	run, err := scanBatchRun(s.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM batch_runs WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch run: %w", err)
	}

	run.Jobs, err = s.ListTransformJobs(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *PostgresStore) ListBatchRuns(ctx context.Context, filter BatchFilter) ([]*models.BatchRun, int, error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	argIdx := 2

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM batch_runs WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count batch runs: %w", err)
	}

	// Normalize pagination
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf(
		`SELECT %s FROM batch_runs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		batchColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list batch runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.BatchRun{}
	for rows.Next() {
		run, err := scanBatchRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan batch run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

// UpdateBatchProgress moves a running batch to phase and raises its progress. Progress never decreases.
func (s *PostgresStore) UpdateBatchProgress(ctx context.Context, id uuid.UUID, phase models.BatchPhase, progress float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE batch_runs
		 SET phase = $2, progress = GREATEST(progress, $3), status = 'running',
		     started_at = COALESCE(started_at, NOW()), updated_at = NOW()
		 WHERE id = $1 AND status IN ('pending', 'running')`, id, phase, progress)
	if err != nil {
		return fmt.Errorf("update batch progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FinishBatchRun writes the final outcome of a run. Runs that already finished are left untouched.
func (s *PostgresStore) FinishBatchRun(ctx context.Context, run *models.BatchRun) error {
	assets, stagingFailures, artifacts, err := marshalBatchDocs(run)
	if err != nil {
		return fmt.Errorf("finish batch run: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE batch_runs
		 SET phase = $2, status = $3, progress = GREATEST(progress, $4), assets = $5, staging_failures = $6,
		     artifacts = $7, error_message = $8, started_at = $9, completed_at = $10, updated_at = NOW()
		 WHERE id = $1 AND status IN ('pending', 'running')`,
		run.ID, run.Phase, run.Status, run.Progress, assets, stagingFailures, artifacts,
		run.ErrorMessage, run.StartedAt, run.CompletedAt)
	if err != nil {
		return fmt.Errorf("finish batch run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FailInterruptedBatches marks runs left pending or running by a previous process as failed.
func (s *PostgresStore) FailInterruptedBatches(ctx context.Context, reason string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE batch_runs
		 SET status = 'failed', phase = 'done', error_message = $1, completed_at = NOW(), updated_at = NOW()
		 WHERE status IN ('pending', 'running')`, reason)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted batches: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// --- Transform Jobs ---

// UpsertTransformJob inserts a job or advances an existing one. Terminal jobs are never rewritten.
func (s *PostgresStore) UpsertTransformJob(ctx context.Context, job *models.TransformJob) error {
	var current models.JobStatus
	err := s.pool.QueryRow(ctx, `SELECT status FROM transform_jobs WHERE id = $1`, job.ID).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("get transform job status: %w", err)
	}
	if !current.CanTransitionTo(job.Status) {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, current, job.Status)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO transform_jobs (id, batch_id, ordinal, asset_id, asset_name, effect, remote_id, status,
		   attempts, progress_estimate, output_ref, failure_reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (id) DO UPDATE SET
		   remote_id = EXCLUDED.remote_id,
		   status = EXCLUDED.status,
		   attempts = EXCLUDED.attempts,
		   progress_estimate = EXCLUDED.progress_estimate,
		   output_ref = EXCLUDED.output_ref,
		   failure_reason = EXCLUDED.failure_reason,
		   updated_at = EXCLUDED.updated_at
		 WHERE transform_jobs.status IN ('submitted', 'polling')`,
		job.ID, job.BatchID, job.Ordinal, job.AssetID, job.AssetName, job.Effect, job.RemoteID, job.Status,
		job.Attempts, job.ProgressEstimate, job.OutputRef, job.FailureReason, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("upsert transform job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s is already terminal", ErrInvalidTransition, job.ID)
	}
	return nil
}

func (s *PostgresStore) ListTransformJobs(ctx context.Context, batchID uuid.UUID) ([]models.TransformJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, batch_id, ordinal, asset_id, asset_name, effect, remote_id, status, attempts,
		   progress_estimate, output_ref, failure_reason, created_at, updated_at
		 FROM transform_jobs WHERE batch_id = $1 ORDER BY ordinal`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list transform jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.TransformJob{}
	for rows.Next() {
		var j models.TransformJob
		if err := rows.Scan(&j.ID, &j.BatchID, &j.Ordinal, &j.AssetID, &j.AssetName, &j.Effect, &j.RemoteID,
			&j.Status, &j.Attempts, &j.ProgressEstimate, &j.OutputRef, &j.FailureReason,
			&j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan transform job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanBatchRun(row pgx.Row) (*models.BatchRun, error) {
	var (
		r                                  models.BatchRun
		assets, stagingFailures, artifacts []byte
	)
	if err := row.Scan(&r.ID, &r.TenantID, &r.Phase, &r.Status, &r.Progress, &r.Effects,
		&assets, &stagingFailures, &artifacts, &r.ErrorMessage, &r.StartedAt, &r.CompletedAt,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(assets, &r.Assets); err != nil {
		return nil, fmt.Errorf("decode assets: %w", err)
	}
	if err := json.Unmarshal(stagingFailures, &r.StagingFailures); err != nil {
		return nil, fmt.Errorf("decode staging failures: %w", err)
	}
	if err := json.Unmarshal(artifacts, &r.Artifacts); err != nil {
		return nil, fmt.Errorf("decode artifacts: %w", err)
	}
	r.Jobs = []models.TransformJob{}
	return &r, nil
}

func marshalBatchDocs(run *models.BatchRun) (assets, stagingFailures, artifacts []byte, err error) {
	if assets, err = json.Marshal(nonNil(run.Assets)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode assets: %w", err)
	}
	if stagingFailures, err = json.Marshal(nonNil(run.StagingFailures)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode staging failures: %w", err)
	}
	if artifacts, err = json.Marshal(nonNil(run.Artifacts)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode artifacts: %w", err)
	}
	return assets, stagingFailures, artifacts, nil
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
