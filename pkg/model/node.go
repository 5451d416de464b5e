package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Node is the desired state of one cluster member: the applications it runs
// and the dataset manifestations it hosts. Nodes are constructed through
// NewNode, which enforces the structural invariants; an inconsistent Node is
// never observable.
type Node struct {
	hostname       string
	applications   map[string]Application
	manifestations map[string]Manifestation
}

// NewNode validates and builds a Node. Construction fails with an
// InvariantError if two applications share a name, if an application's
// attached volume references a manifestation absent from the manifestations
// mapping, if two applications' volumes attach the same dataset, or if a
// mapping key differs from its value's dataset ID.
func NewNode(hostname string, applications []Application, manifestations map[string]Manifestation) (Node, error) {
	apps := make(map[string]Application, len(applications))
	for _, app := range applications {
		if app.Name == "" {
			return Node{}, &InvariantError{
				Entity: "node",
				Reason: "application with empty name",
			}
		}
		if _, ok := apps[app.Name]; ok {
			return Node{}, &InvariantError{
				Entity: "node",
				Reason: fmt.Sprintf("duplicate application name %q", app.Name),
			}
		}
		apps[app.Name] = app
	}

	attachedBy := make(map[string]string)
	for _, app := range applications {
		if app.Volume == nil {
			continue
		}
		id := app.Volume.Manifestation.DatasetID()
		if _, ok := manifestations[id]; !ok {
			return Node{}, &InvariantError{
				Entity: "node",
				Reason: fmt.Sprintf("application %q references manifestation %s not on node", app.Name, id),
			}
		}
		if other, ok := attachedBy[id]; ok {
			return Node{}, &InvariantError{
				Entity: "node",
				Reason: fmt.Sprintf("applications %q and %q both attach dataset %s", other, app.Name, id),
			}
		}
		attachedBy[id] = app.Name
	}

	for key, m := range manifestations {
		if key != m.DatasetID() {
			return Node{}, &InvariantError{
				Entity: "node",
				Reason: fmt.Sprintf("manifestation key %s does not match dataset ID %s", key, m.DatasetID()),
			}
		}
	}

	return Node{
		hostname:       hostname,
		applications:   apps,
		manifestations: maps.Clone(manifestations),
	}, nil
}

// EmptyNode returns a Node with the given hostname and no applications or
// manifestations. An empty node is what the convergence engine assumes for a
// hostname absent from a deployment or from observed state.
func EmptyNode(hostname string) Node {
	return Node{hostname: hostname}
}

// Hostname returns the node's hostname.
func (n Node) Hostname() string {
	return n.hostname
}

// Applications returns the node's applications sorted by name.
func (n Node) Applications() []Application {
	out := slices.Collect(maps.Values(n.applications))
	slices.SortFunc(out, func(a, b Application) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Application looks up an application by name.
func (n Node) Application(name string) (Application, bool) {
	app, ok := n.applications[name]
	return app, ok
}

// Manifestations returns a copy of the dataset ID to manifestation mapping.
func (n Node) Manifestations() map[string]Manifestation {
	return maps.Clone(n.manifestations)
}

// Manifestation looks up a manifestation by dataset ID.
func (n Node) Manifestation(datasetID string) (Manifestation, bool) {
	m, ok := n.manifestations[datasetID]
	return m, ok
}

// Equal reports structural equality.
func (n Node) Equal(other Node) bool {
	if n.hostname != other.hostname ||
		len(n.applications) != len(other.applications) ||
		len(n.manifestations) != len(other.manifestations) {
		return false
	}
	for name, app := range n.applications {
		o, ok := other.applications[name]
		if !ok || !app.Equal(o) {
			return false
		}
	}
	for id, m := range n.manifestations {
		o, ok := other.manifestations[id]
		if !ok || !m.Equal(o) {
			return false
		}
	}
	return true
}

type nodeJSON struct {
	Hostname       string                   `json:"hostname"`
	Applications   []Application            `json:"applications,omitempty"`
	Manifestations map[string]Manifestation `json:"manifestations,omitempty"`
}

// MarshalJSON encodes the node deterministically: applications sorted by
// name, manifestations keyed by dataset ID.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeJSON{
		Hostname:       n.hostname,
		Applications:   n.Applications(),
		Manifestations: n.manifestations,
	})
}

// UnmarshalJSON decodes through NewNode so persisted data cannot produce a
// Node that violates the construction invariants.
func (n *Node) UnmarshalJSON(data []byte) error {
	var wire nodeJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	node, err := NewNode(wire.Hostname, wire.Applications, wire.Manifestations)
	if err != nil {
		return err
	}
	*n = node
	return nil
}
