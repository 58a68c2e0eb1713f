package batch

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrBatchExhausted  = errors.New("batch exhausted: no pair produced an artifact")
	ErrUnknownEffect   = errors.New("unknown effect")
	ErrEmptyBatch      = errors.New("batch needs at least one asset and one effect")
	ErrTooFewAssets    = errors.New("too few assets")
	ErrBatchNotRunning = errors.New("batch is not running")
)

// StagingError reports an asset that could not be made reachable by the provider.
// Only that asset's pairs are dropped.
type StagingError struct {
	AssetID   uuid.UUID
	AssetName string
	Err       error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("staging %s: %v", e.AssetName, e.Err)
}

func (e *StagingError) Unwrap() error { return e.Err }

// SubmissionError reports a pair the provider refused or could not be reached for.
type SubmissionError struct {
	Effect string
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submitting %s: %v", e.Effect, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// IsPermanent reports whether err, or an error it wraps, has a Permanent method returning true.
// Providers use it to mark failures that repeating the same call cannot fix.
func IsPermanent(err error) bool {
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}
