package batch

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

var errMissingRemoteID = errors.New("provider accepted job without an id")

// Submitter issues exactly one create request per pair. It never retries.
type Submitter struct {
	provider models.TransformationProvider
}

func NewSubmitter(provider models.TransformationProvider) *Submitter {
	return &Submitter{provider: provider}
}

// Submit asks the provider to start a job for ref with effect. Every failure is
// returned as a *SubmissionError.
func (s *Submitter) Submit(ctx context.Context, ref models.AssetRef, effect string) (models.JobHandle, error) {
	handle, err := s.provider.Submit(ctx, ref, effect)
	if err != nil {
		return models.JobHandle{}, &SubmissionError{Effect: effect, Err: err}
	}
	if handle.Initial == nil {
		handle.Initial = models.RemotePending{}
	}
	if handle.RemoteID == "" && !models.IsTerminal(handle.Initial) {
		return models.JobHandle{}, &SubmissionError{Effect: effect, Err: errMissingRemoteID}
	}
	return handle, nil
}
