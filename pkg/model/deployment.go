package model

import (
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"slices"
)

// Deployment is the desired state of the whole cluster: one Node per
// hostname. Deployments are values; UpdateNode returns a new Deployment and
// never mutates the receiver.
type Deployment struct {
	nodes map[string]Node
}

// NewDeployment validates and builds a Deployment. Two nodes sharing a
// hostname is an InvariantError.
func NewDeployment(nodes ...Node) (Deployment, error) {
	byHostname := make(map[string]Node, len(nodes))
	for _, node := range nodes {
		if _, ok := byHostname[node.Hostname()]; ok {
			return Deployment{}, &InvariantError{
				Entity: "deployment",
				Reason: fmt.Sprintf("duplicate node hostname %q", node.Hostname()),
			}
		}
		byHostname[node.Hostname()] = node
	}
	return Deployment{nodes: byHostname}, nil
}

// Nodes returns the deployment's nodes sorted by hostname.
func (d Deployment) Nodes() []Node {
	out := slices.Collect(maps.Values(d.nodes))
	slices.SortFunc(out, func(a, b Node) int {
		switch {
		case a.Hostname() < b.Hostname():
			return -1
		case a.Hostname() > b.Hostname():
			return 1
		default:
			return 0
		}
	})
	return out
}

// NodeByHostname looks up a node by hostname.
func (d Deployment) NodeByHostname(hostname string) (Node, bool) {
	node, ok := d.nodes[hostname]
	return node, ok
}

// UpdateNode returns a new Deployment with any existing node of the same
// hostname replaced by the given node, or with the node added if no node has
// that hostname.
func (d Deployment) UpdateNode(node Node) Deployment {
	nodes := maps.Clone(d.nodes)
	if nodes == nil {
		nodes = make(map[string]Node, 1)
	}
	nodes[node.Hostname()] = node
	return Deployment{nodes: nodes}
}

// Applications iterates over every application of every node. Order is not
// specified.
func (d Deployment) Applications() iter.Seq[Application] {
	return func(yield func(Application) bool) {
		for _, node := range d.nodes {
			for _, app := range node.applications {
				if !yield(app) {
					return
				}
			}
		}
	}
}

// Equal reports structural equality.
func (d Deployment) Equal(other Deployment) bool {
	if len(d.nodes) != len(other.nodes) {
		return false
	}
	for hostname, node := range d.nodes {
		o, ok := other.nodes[hostname]
		if !ok || !node.Equal(o) {
			return false
		}
	}
	return true
}

type deploymentJSON struct {
	Nodes []Node `json:"nodes,omitempty"`
}

// MarshalJSON encodes the deployment deterministically, nodes sorted by
// hostname.
func (d Deployment) MarshalJSON() ([]byte, error) {
	return json.Marshal(deploymentJSON{Nodes: d.Nodes()})
}

// UnmarshalJSON decodes through NewDeployment.
func (d *Deployment) UnmarshalJSON(data []byte) error {
	var wire deploymentJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	deployment, err := NewDeployment(wire.Nodes...)
	if err != nil {
		return err
	}
	*d = deployment
	return nil
}
