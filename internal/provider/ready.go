package provider

import (
	"context"

	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

// ReadinessChecker is implemented by providers that can report whether they are reachable.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Ready probes p if it supports readiness checks. Providers without a probe are assumed ready.
func Ready(ctx context.Context, p models.TransformationProvider) error {
	if rc, ok := p.(ReadinessChecker); ok {
		return rc.Ready(ctx)
	}
	return nil
}
