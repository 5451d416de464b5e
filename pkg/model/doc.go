/*
Package model defines the configuration and observed-state data model shared
across a Flotilla cluster.

The configuration side describes desired state: a Deployment owns Nodes, a
Node owns Applications and the dataset Manifestations present on it, and an
Application may attach one Manifestation into its filesystem through an
AttachedVolume. The observed side mirrors that shape: a NodeState records
which applications are actually running or stopped on one node and which
manifestations exist there, and a ClusterState collects NodeStates for the
whole cluster.

All entities are values. There is no in-place mutation anywhere in the
package: updaters such as Deployment.UpdateNode and
ClusterState.UpdateNodeState return new values, and equality is structural.
The convergence engine diffs these values repeatedly and concurrently, so
aliasing a mutable object across passes would corrupt its decisions.

Composite entities with cross-field invariants (Node, Deployment) are built
through constructors that validate before returning:

	node, err := model.NewNode("node1.example.com", apps, manifestations)
	if err != nil {
		// an application referenced a manifestation not on the node,
		// or a manifestations key disagreed with its dataset ID
	}

A value that would violate an invariant is never observable; UnmarshalJSON
decodes through the same constructors so persisted or transported data gets
the same guarantee.

NodeState.ToNode bridges observation back into the configuration shape and
is how the convergence engine expresses "the configuration that would
reproduce current reality".
*/
package model
