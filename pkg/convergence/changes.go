package convergence

import (
	"context"
	"fmt"

	"github.com/flotilla-dev/flotilla/pkg/model"
)

// StateChange is one state-changing action in a convergence plan. Changes
// describe themselves for logging and report the datasets and applications
// they touch; neither accessor participates in control flow.
type StateChange interface {
	fmt.Stringer

	// Run performs the action against the deployer's drivers. A failed
	// change is recorded by the runner and retried implicitly by the next
	// convergence pass.
	Run(ctx context.Context, deployer *Deployer) error

	// Datasets returns the dataset IDs this change touches.
	Datasets() []string

	// Applications returns the application names this change touches.
	Applications() []string
}

// CreateManifestation creates or acquires a local manifestation of a
// dataset.
type CreateManifestation struct {
	Manifestation model.Manifestation
}

func (c CreateManifestation) String() string {
	return fmt.Sprintf("create manifestation %s (primary=%t)",
		c.Manifestation.DatasetID(), c.Manifestation.Primary)
}

func (c CreateManifestation) Run(ctx context.Context, deployer *Deployer) error {
	_, err := deployer.datasets.CreateOrAcquire(ctx, c.Manifestation.DatasetID(), c.Manifestation.Primary)
	return err
}

func (c CreateManifestation) Datasets() []string {
	return []string{c.Manifestation.DatasetID()}
}

func (c CreateManifestation) Applications() []string { return nil }

// HandoffManifestation acquires the primary role for a dataset that already
// manifests locally as a replica. The cross-node hand-off protocol is the
// dataset driver's concern; this change only expresses the intent.
type HandoffManifestation struct {
	DatasetID string
}

func (c HandoffManifestation) String() string {
	return fmt.Sprintf("acquire primary manifestation %s", c.DatasetID)
}

func (c HandoffManifestation) Run(ctx context.Context, deployer *Deployer) error {
	_, err := deployer.datasets.CreateOrAcquire(ctx, c.DatasetID, true)
	return err
}

func (c HandoffManifestation) Datasets() []string { return []string{c.DatasetID} }

func (c HandoffManifestation) Applications() []string { return nil }

// DeleteManifestation removes the local manifestation of a dataset.
type DeleteManifestation struct {
	DatasetID string
}

func (c DeleteManifestation) String() string {
	return fmt.Sprintf("delete manifestation %s", c.DatasetID)
}

func (c DeleteManifestation) Run(ctx context.Context, deployer *Deployer) error {
	return deployer.datasets.Delete(ctx, c.DatasetID)
}

func (c DeleteManifestation) Datasets() []string { return []string{c.DatasetID} }

func (c DeleteManifestation) Applications() []string { return nil }

// StartApplication starts an application container.
type StartApplication struct {
	Application model.Application
}

func (c StartApplication) String() string {
	return fmt.Sprintf("start application %q", c.Application.Name)
}

func (c StartApplication) Run(ctx context.Context, deployer *Deployer) error {
	return deployer.containers.Start(ctx, c.Application)
}

func (c StartApplication) Datasets() []string {
	if c.Application.Volume == nil {
		return nil
	}
	return []string{c.Application.Volume.Manifestation.DatasetID()}
}

func (c StartApplication) Applications() []string {
	return []string{c.Application.Name}
}

// StopApplication stops an application container by name.
type StopApplication struct {
	Name string
}

func (c StopApplication) String() string {
	return fmt.Sprintf("stop application %q", c.Name)
}

func (c StopApplication) Run(ctx context.Context, deployer *Deployer) error {
	return deployer.containers.Stop(ctx, c.Name)
}

func (c StopApplication) Datasets() []string { return nil }

func (c StopApplication) Applications() []string { return []string{c.Name} }
