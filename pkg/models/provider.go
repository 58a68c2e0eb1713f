// Package models contains shared data models used across the SceneSwitch codebase.
package models

import "context"

// TransformationProvider is the remote service that performs the actual media transformation.
// Callers depend on this interface, never on a concrete provider.
type TransformationProvider interface {
	// Submit requests creation of one remote job for the staged input and effect code.
	Submit(ctx context.Context, input AssetRef, effect string) (JobHandle, error)
	// Status queries the current remote state of a previously submitted job.
	Status(ctx context.Context, remoteID string) (RemoteStatus, error)
	// Name returns the provider identifier (e.g., "http", "mock").
	Name() string
}

// JobHandle identifies a remote job. Initial is the status reported by the submission response.
type JobHandle struct {
	RemoteID string
	Initial  RemoteStatus
}

// RemoteStatus is the closed set of states a provider can report.
// Implementations are RemotePending, RemoteCompleted and RemoteFailed.
type RemoteStatus interface {
	remoteStatus()
}

// RemotePending covers both queued and running remote jobs.
// ProgressHint is set only when the provider reports one.
type RemotePending struct {
	ProgressHint *float64
}

// RemoteCompleted carries the reference to the produced output.
type RemoteCompleted struct {
	Output string
}

// RemoteFailed carries the provider's failure reason.
type RemoteFailed struct {
	Reason string
}

func (RemotePending) remoteStatus()   {}
func (RemoteCompleted) remoteStatus() {}
func (RemoteFailed) remoteStatus()    {}

// IsTerminal reports whether s is a completed or failed status.
func IsTerminal(s RemoteStatus) bool {
	switch s.(type) {
	case RemoteCompleted, RemoteFailed:
		return true
	}
	return false
}
