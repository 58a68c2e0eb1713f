package mock

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

// ErrUnknownJob is returned by the simulated provider for ids it never issued.
var ErrUnknownJob = errors.New("mock provider: unknown job")

// MockProvider satisfies models.TransformationProvider for testing.
type MockProvider struct {
	Name_      string
	SubmitFunc func(ctx context.Context, input models.AssetRef, effect string) (models.JobHandle, error)
	StatusFunc func(ctx context.Context, remoteID string) (models.RemoteStatus, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Submit(ctx context.Context, input models.AssetRef, effect string) (models.JobHandle, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, input, effect)
	}
	return models.JobHandle{RemoteID: uuid.NewString(), Initial: models.RemotePending{}}, nil
}

func (m *MockProvider) Status(ctx context.Context, remoteID string) (models.RemoteStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, remoteID)
	}
	return models.RemotePending{}, nil
}

// NewSimulatedProvider returns an in-process provider that completes every job
// after pollsToComplete status queries. Used for local development.
func NewSimulatedProvider(pollsToComplete int) *MockProvider {
	if pollsToComplete < 1 {
		pollsToComplete = 1
	}

	var mu sync.Mutex
	type simJob struct {
		output string
		polls  int
	}
	jobs := make(map[string]*simJob)

	return &MockProvider{
		Name_: "mock-simulated",
		SubmitFunc: func(_ context.Context, input models.AssetRef, effect string) (models.JobHandle, error) {
			id := uuid.NewString()
			mu.Lock()
			jobs[id] = &simJob{output: fmt.Sprintf("mock://%s/%s", effect, path.Base(string(input)))}
			mu.Unlock()
			return models.JobHandle{RemoteID: id, Initial: models.RemotePending{}}, nil
		},
		StatusFunc: func(_ context.Context, remoteID string) (models.RemoteStatus, error) {
			mu.Lock()
			defer mu.Unlock()

			job, ok := jobs[remoteID]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownJob, remoteID)
			}
			job.polls++
			if job.polls >= pollsToComplete {
				return models.RemoteCompleted{Output: job.output}, nil
			}
			hint := float64(job.polls) / float64(pollsToComplete) * 100
			return models.RemotePending{ProgressHint: &hint}, nil
		},
	}
}

// NewFailingProvider returns a MockProvider whose submissions always fail with err.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		SubmitFunc: func(_ context.Context, _ models.AssetRef, _ string) (models.JobHandle, error) {
			return models.JobHandle{}, err
		},
		StatusFunc: func(_ context.Context, _ string) (models.RemoteStatus, error) {
			return nil, err
		},
	}
}

// NewStuckProvider returns a MockProvider that accepts every job and never finishes it.
func NewStuckProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-stuck",
		SubmitFunc: func(_ context.Context, _ models.AssetRef, _ string) (models.JobHandle, error) {
			return models.JobHandle{RemoteID: uuid.NewString(), Initial: models.RemotePending{}}, nil
		},
		StatusFunc: func(_ context.Context, _ string) (models.RemoteStatus, error) {
			return models.RemotePending{}, nil
		},
	}
}

// Compile-time check that MockProvider implements TransformationProvider.
var _ models.TransformationProvider = (*MockProvider)(nil)
