package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a single (asset, effect) transformation job.
type JobStatus string

const (
	JobStatusSubmitted JobStatus = "submitted"
	JobStatusPolling   JobStatus = "polling"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusTimedOut  JobStatus = "timed_out"
)

// jobTransitions lists the forward moves allowed from each non-terminal status.
// The empty status is a job that has not been recorded yet.
var jobTransitions = map[JobStatus][]JobStatus{
	"":                 {JobStatusSubmitted, JobStatusFailed},
	JobStatusSubmitted: {JobStatusPolling, JobStatusCompleted, JobStatusFailed},
	JobStatusPolling:   {JobStatusPolling, JobStatusCompleted, JobStatusFailed, JobStatusTimedOut},
}

// Terminal reports whether no further transition can occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusTimedOut
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle strictly forward.
// Polling -> polling is allowed so attempt counters can be refreshed.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransformJob tracks one delegated unit of work. Ordinal is the pair's position in
// asset-major, effect-minor submission order and fixes its place in every result list.
type TransformJob struct {
	ID               uuid.UUID `db:"id"                json:"id"`
	BatchID          uuid.UUID `db:"batch_id"          json:"batch_id"`
	Ordinal          int       `db:"ordinal"           json:"ordinal"`
	AssetID          uuid.UUID `db:"asset_id"          json:"asset_id"`
	AssetName        string    `db:"asset_name"        json:"asset_name"`
	Effect           string    `db:"effect"            json:"effect"`
	RemoteID         string    `db:"remote_id"         json:"remote_id,omitempty"`
	Status           JobStatus `db:"status"            json:"status"`
	Attempts         int       `db:"attempts"          json:"attempts"`
	ProgressEstimate float64   `db:"progress_estimate" json:"progress_estimate"`
	OutputRef        string    `db:"output_ref"        json:"output_ref,omitempty"`
	FailureReason    string    `db:"failure_reason"    json:"failure_reason,omitempty"`
	CreatedAt        time.Time `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"        json:"updated_at"`
}
