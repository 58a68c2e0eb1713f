package models

import (
	"time"

	"github.com/google/uuid"
)

// BatchPhase is the orchestrator's position in its state machine.
type BatchPhase string

const (
	BatchPhaseIdle        BatchPhase = "idle"
	BatchPhaseStaging     BatchPhase = "staging"
	BatchPhaseProcessing  BatchPhase = "processing"
	BatchPhaseAggregating BatchPhase = "aggregating"
	BatchPhaseDone        BatchPhase = "done"
)

// BatchStatus is the overall outcome of a batch run.
type BatchStatus string

const (
	BatchStatusPending        BatchStatus = "pending"
	BatchStatusRunning        BatchStatus = "running"
	BatchStatusSuccess        BatchStatus = "success"
	BatchStatusPartialSuccess BatchStatus = "partial_success"
	BatchStatusFailed         BatchStatus = "failed"
	BatchStatusCancelled      BatchStatus = "cancelled"
)

// Finished reports whether the run has stopped for good.
func (s BatchStatus) Finished() bool {
	switch s {
	case BatchStatusSuccess, BatchStatusPartialSuccess, BatchStatusFailed, BatchStatusCancelled:
		return true
	}
	return false
}

// StagingFailure records an asset that could not be made reachable by the provider.
// None of its pairs produce jobs.
type StagingFailure struct {
	AssetID   uuid.UUID `json:"asset_id"`
	AssetName string    `json:"asset_name"`
	Reason    string    `json:"reason"`
}

// BatchRun is one user-initiated request to transform a set of assets with a set of effects.
// Jobs and Artifacts are always in asset-major, effect-minor order.
type BatchRun struct {
	ID              uuid.UUID        `db:"id"               json:"id"`
	TenantID        uuid.UUID        `db:"tenant_id"        json:"tenant_id"`
	Phase           BatchPhase       `db:"phase"            json:"phase"`
	Status          BatchStatus      `db:"status"           json:"status"`
	Progress        float64          `db:"progress"         json:"progress"`
	Effects         []string         `db:"effects"          json:"effects"`
	Assets          []MediaAsset     `db:"assets"           json:"assets"`
	Jobs            []TransformJob   `db:"-"                json:"jobs"`
	StagingFailures []StagingFailure `db:"staging_failures" json:"staging_failures"`
	Artifacts       []Artifact       `db:"artifacts"        json:"artifacts"`
	ErrorMessage    *string          `db:"error_message"    json:"error_message,omitempty"`
	StartedAt       *time.Time       `db:"started_at"       json:"started_at,omitempty"`
	CompletedAt     *time.Time       `db:"completed_at"     json:"completed_at,omitempty"`
	CreatedAt       time.Time        `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at"       json:"updated_at"`
}

// PairCount is the number of (asset, effect) pairs the run was planned with.
func (b *BatchRun) PairCount() int {
	return len(b.Assets) * len(b.Effects)
}
