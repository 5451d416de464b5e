package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/flotilla-dev/flotilla/pkg/model"
)

const (
	// DefaultDatasetsPath is the base directory for locally manifested
	// datasets.
	DefaultDatasetsPath = "/var/lib/flotilla/datasets"

	metadataFile = "manifestation.json"
	dataDir      = "data"
)

// LocalDriver manifests datasets as directories under a base path. Each
// manifestation is a directory named by dataset ID holding a data directory
// and a metadata file recording the primary flag, size, and dataset
// metadata.
type LocalDriver struct {
	basePath string
}

type manifestationMetadata struct {
	DatasetID   string            `json:"dataset_id"`
	Primary     bool              `json:"primary"`
	MaximumSize int64             `json:"maximum_size,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewLocalDriver creates a local dataset driver rooted at basePath.
func NewLocalDriver(basePath string) (*LocalDriver, error) {
	if basePath == "" {
		basePath = DefaultDatasetsPath
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create datasets directory: %w", err)
	}

	return &LocalDriver{basePath: basePath}, nil
}

// CreateOrAcquire creates the dataset directory if absent and records the
// requested primary role. Acquiring primary on an existing non-primary
// manifestation rewrites the metadata in place.
func (d *LocalDriver) CreateOrAcquire(ctx context.Context, datasetID string, primary bool) (model.Manifestation, error) {
	if err := ctx.Err(); err != nil {
		return model.Manifestation{}, err
	}
	if _, err := uuid.Parse(datasetID); err != nil {
		return model.Manifestation{}, fmt.Errorf("invalid dataset ID %q: %w", datasetID, err)
	}

	meta, err := d.readMetadata(datasetID)
	if err == nil {
		if meta.Primary != primary {
			meta.Primary = primary
			if err := d.writeMetadata(datasetID, meta); err != nil {
				return model.Manifestation{}, err
			}
		}
		return manifestationFromMetadata(meta), nil
	}
	if !os.IsNotExist(err) {
		return model.Manifestation{}, fmt.Errorf("failed to read dataset metadata: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(d.basePath, datasetID, dataDir), 0755); err != nil {
		return model.Manifestation{}, fmt.Errorf("failed to create dataset directory: %w", err)
	}

	meta = manifestationMetadata{DatasetID: datasetID, Primary: primary}
	if err := d.writeMetadata(datasetID, meta); err != nil {
		return model.Manifestation{}, err
	}

	return manifestationFromMetadata(meta), nil
}

// Delete removes the dataset directory and all its contents.
func (d *LocalDriver) Delete(ctx context.Context, datasetID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(d.basePath, datasetID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete dataset directory: %w", err)
	}
	return nil
}

// ListLocal walks the base path and returns every manifestation found.
// Directories without readable metadata are skipped.
func (d *LocalDriver) ListLocal(ctx context.Context) ([]model.Manifestation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(d.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read datasets directory: %w", err)
	}

	var manifestations []model.Manifestation
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := d.readMetadata(entry.Name())
		if err != nil {
			continue
		}
		manifestations = append(manifestations, manifestationFromMetadata(meta))
	}
	return manifestations, nil
}

// Path returns the host path of the dataset's data directory.
func (d *LocalDriver) Path(datasetID string) string {
	return filepath.Join(d.basePath, datasetID, dataDir)
}

func (d *LocalDriver) readMetadata(datasetID string) (manifestationMetadata, error) {
	var meta manifestationMetadata
	data, err := os.ReadFile(filepath.Join(d.basePath, datasetID, metadataFile))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, err
	}
	return meta, nil
}

func (d *LocalDriver) writeMetadata(datasetID string, meta manifestationMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	path := filepath.Join(d.basePath, datasetID, metadataFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write dataset metadata: %w", err)
	}
	return nil
}

func manifestationFromMetadata(meta manifestationMetadata) model.Manifestation {
	return model.Manifestation{
		Dataset: model.Dataset{
			DatasetID:   meta.DatasetID,
			MaximumSize: meta.MaximumSize,
			Metadata:    meta.Metadata,
		},
		Primary: meta.Primary,
	}
}
