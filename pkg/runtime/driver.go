package runtime

import (
	"context"

	"github.com/flotilla-dev/flotilla/pkg/model"
)

// ContainerDriver is the container-lifecycle capability the convergence core
// consumes: start an application, stop one by name, and list what is
// actually present on this node.
type ContainerDriver interface {
	// Start pulls the application's image if needed, creates a container
	// for it, and starts it.
	Start(ctx context.Context, app model.Application) error

	// Stop stops and removes the named application's container. Stopping
	// an application that is not present is not an error.
	Stop(ctx context.Context, name string) error

	// List returns the applications observed on this node, split into
	// those with a running container and those present but stopped.
	List(ctx context.Context) (running, notRunning []model.Application, err error)
}

// MountSource resolves a dataset ID to the host path backing it, used when
// attaching a volume into a container.
type MountSource interface {
	Path(datasetID string) string
}
