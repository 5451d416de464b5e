package state

import (
	"context"

	"github.com/flotilla-dev/flotilla/pkg/model"
)

// DesiredSource supplies the cluster-wide desired configuration.
type DesiredSource interface {
	Desired(ctx context.Context) (model.Deployment, error)
}

// ObservedSource supplies the last known cluster state.
type ObservedSource interface {
	Observed(ctx context.Context) (model.ClusterState, error)
}

// Source combines both inputs of a convergence pass.
type Source interface {
	DesiredSource
	ObservedSource
}

// Combined joins independent desired and observed sources into one Source.
type Combined struct {
	DesiredSource
	ObservedSource
}
