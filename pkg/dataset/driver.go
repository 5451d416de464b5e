package dataset

import (
	"context"

	"github.com/flotilla-dev/flotilla/pkg/model"
)

// Driver is the dataset-lifecycle capability the convergence core consumes.
// Implementations own the detail of how a manifestation comes to exist on
// this node (local directory, block device, remote replica hand-off).
type Driver interface {
	// CreateOrAcquire ensures a manifestation of the dataset exists locally
	// and returns it. When primary is requested the driver acquires the
	// primary role, performing whatever hand-off protocol its backend
	// requires.
	CreateOrAcquire(ctx context.Context, datasetID string, primary bool) (model.Manifestation, error)

	// Delete removes the local manifestation of the dataset. Deleting a
	// dataset with no local manifestation is not an error.
	Delete(ctx context.Context, datasetID string) error

	// ListLocal returns every manifestation present on this node.
	ListLocal(ctx context.Context) ([]model.Manifestation, error)

	// Path returns the host filesystem path backing the dataset, used to
	// mount the manifestation into a container.
	Path(datasetID string) string
}
