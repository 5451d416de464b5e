package convergence

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/flotilla-dev/flotilla/pkg/dataset"
	"github.com/flotilla-dev/flotilla/pkg/log"
	"github.com/flotilla-dev/flotilla/pkg/model"
	"github.com/flotilla-dev/flotilla/pkg/runtime"
)

// NodeDeployer is the convergence capability of one node: observe local
// state and compute the plan that converges it toward a desired deployment.
type NodeDeployer interface {
	Discover(ctx context.Context) (model.NodeState, error)
	CalculateChanges(desired model.Deployment, observed model.ClusterState) (Plan, error)
}

// Deployer implements NodeDeployer on top of the container and dataset
// drivers. It owns no state of its own; every pass re-observes reality.
type Deployer struct {
	hostname   string
	containers runtime.ContainerDriver
	datasets   dataset.Driver
	logger     zerolog.Logger
}

// NewDeployer creates a deployer for the named node.
func NewDeployer(hostname string, containers runtime.ContainerDriver, datasets dataset.Driver) *Deployer {
	return &Deployer{
		hostname:   hostname,
		containers: containers,
		datasets:   datasets,
		logger:     log.WithComponent("deployer"),
	}
}

// Hostname returns the node this deployer converges.
func (d *Deployer) Hostname() string {
	return d.hostname
}

// Discover observes local containers and manifestations and returns the
// node's current state.
func (d *Deployer) Discover(ctx context.Context) (model.NodeState, error) {
	running, notRunning, err := d.containers.List(ctx)
	if err != nil {
		return model.NodeState{}, fmt.Errorf("failed to list containers: %w", err)
	}

	manifestations, err := d.datasets.ListLocal(ctx)
	if err != nil {
		return model.NodeState{}, fmt.Errorf("failed to list local manifestations: %w", err)
	}

	d.logger.Debug().
		Str("hostname", d.hostname).
		Int("running", len(running)).
		Int("not_running", len(notRunning)).
		Int("manifestations", len(manifestations)).
		Msg("discovered local state")

	return model.NodeState{
		Hostname:       d.hostname,
		Running:        running,
		NotRunning:     notRunning,
		Manifestations: manifestations,
	}, nil
}

// CalculateChanges diffs desired against observed state for this node.
func (d *Deployer) CalculateChanges(desired model.Deployment, observed model.ClusterState) (Plan, error) {
	return CalculateChanges(desired, observed, d.hostname)
}
