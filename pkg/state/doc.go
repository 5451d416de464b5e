/*
Package state supplies and persists the two inputs of a convergence pass:
the desired deployment and the observed cluster state.

# Sources

The agent consumes state through small interfaces:

	type DesiredSource interface {
		Desired(ctx context.Context) (model.Deployment, error)
	}

	type ObservedSource interface {
		Observed(ctx context.Context) (model.ClusterState, error)
	}

Two implementations are provided:

BoltStore persists both the authoritative deployment and per-node state
snapshots in a local bbolt database. The agent writes its own discovery
results back through SaveNodeState, so Observed reflects every node that has
ever reported (the freshest snapshot per hostname wins).

FileSource serves the desired deployment from a YAML configuration file and
reloads it when the file changes, announcing successful reloads on a
coalescing trigger channel. Combine it with a BoltStore via Combined to get
file-driven desired state with persisted observations.

All persisted values are JSON that decodes back through the model
constructors, so a corrupt record surfaces as an error rather than an
invalid model value.
*/
package state
