package state

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/flotilla-dev/flotilla/pkg/model"
)

var (
	// Bucket names
	bucketDeployment = []byte("deployment")
	bucketNodeStates = []byte("node_states")

	// Key for the single authoritative deployment
	keyDesired = []byte("desired")
)

// BoltStore persists the desired deployment and per-node state snapshots.
// Values are stored as JSON and decoded back through the model constructors,
// so corrupt or hand-edited records surface as errors instead of invalid
// model values.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the store in the given data directory.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "flotilla.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{bucketDeployment, bucketNodeStates}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveDeployment stores the authoritative desired configuration.
func (s *BoltStore) SaveDeployment(deployment model.Deployment) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDeployment)
		data, err := json.Marshal(deployment)
		if err != nil {
			return err
		}
		return b.Put(keyDesired, data)
	})
}

// Desired returns the stored deployment, or an empty deployment when none
// has been applied yet.
func (s *BoltStore) Desired(ctx context.Context) (model.Deployment, error) {
	var deployment model.Deployment
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDeployment)
		data := b.Get(keyDesired)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &deployment)
	})
	if err != nil {
		return model.Deployment{}, fmt.Errorf("failed to load deployment: %w", err)
	}
	return deployment, nil
}

// SaveNodeState stores a node's most recent observation, replacing any
// previous snapshot for that hostname.
func (s *BoltStore) SaveNodeState(state model.NodeState) error {
	if state.Hostname == "" {
		return &model.ValidationError{Field: "hostname", Reason: "must not be empty"}
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodeStates)
		data, err := json.Marshal(state)
		if err != nil {
			return err
		}
		return b.Put([]byte(state.Hostname), data)
	})
}

// Observed assembles the cluster state from all stored node snapshots.
func (s *BoltStore) Observed(ctx context.Context) (model.ClusterState, error) {
	var states []model.NodeState
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodeStates)
		return b.ForEach(func(k, v []byte) error {
			var state model.NodeState
			if err := json.Unmarshal(v, &state); err != nil {
				return fmt.Errorf("failed to decode state for %s: %w", k, err)
			}
			states = append(states, state)
			return nil
		})
	})
	if err != nil {
		return model.ClusterState{}, err
	}
	return model.NewClusterState(states...), nil
}
