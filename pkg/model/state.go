package model

import (
	"encoding/json"
	"maps"
	"slices"
)

// NodeState is the observed state of one node: which applications are
// actually running, which are present but stopped, and which dataset
// manifestations exist locally regardless of application attachment.
type NodeState struct {
	Hostname       string          `json:"hostname"`
	Running        []Application   `json:"running,omitempty"`
	NotRunning     []Application   `json:"not_running,omitempty"`
	Manifestations []Manifestation `json:"manifestations,omitempty"`
}

// ToNode projects the observed state into the configuration shape: the Node
// whose configuration would reproduce current reality. Running and
// not-running applications are unioned without distinction and
// manifestations are carried through unchanged. An observed application
// referencing a manifestation absent from the observed set is an
// inconsistency surfaced as the Node construction error.
func (s NodeState) ToNode() (Node, error) {
	apps := make([]Application, 0, len(s.Running)+len(s.NotRunning))
	apps = append(apps, s.Running...)
	apps = append(apps, s.NotRunning...)

	manifestations := make(map[string]Manifestation, len(s.Manifestations))
	for _, m := range s.Manifestations {
		manifestations[m.DatasetID()] = m
	}

	return NewNode(s.Hostname, apps, manifestations)
}

// ClusterState is the observed state of the whole cluster, one NodeState per
// hostname. Like Deployment it is a value; UpdateNodeState returns a new
// ClusterState.
type ClusterState struct {
	nodes map[string]NodeState
}

// NewClusterState builds a ClusterState from the given node states. A later
// state for the same hostname replaces an earlier one.
func NewClusterState(states ...NodeState) ClusterState {
	nodes := make(map[string]NodeState, len(states))
	for _, s := range states {
		nodes[s.Hostname] = s
	}
	return ClusterState{nodes: nodes}
}

// NodeState looks up the observed state for a hostname.
func (c ClusterState) NodeState(hostname string) (NodeState, bool) {
	s, ok := c.nodes[hostname]
	return s, ok
}

// NodeStates returns all node states sorted by hostname.
func (c ClusterState) NodeStates() []NodeState {
	out := slices.Collect(maps.Values(c.nodes))
	slices.SortFunc(out, func(a, b NodeState) int {
		switch {
		case a.Hostname < b.Hostname:
			return -1
		case a.Hostname > b.Hostname:
			return 1
		default:
			return 0
		}
	})
	return out
}

// UpdateNodeState returns a new ClusterState with the given node state
// replacing or extending the existing mapping.
func (c ClusterState) UpdateNodeState(state NodeState) ClusterState {
	nodes := maps.Clone(c.nodes)
	if nodes == nil {
		nodes = make(map[string]NodeState, 1)
	}
	nodes[state.Hostname] = state
	return ClusterState{nodes: nodes}
}

type clusterStateJSON struct {
	Nodes []NodeState `json:"nodes,omitempty"`
}

// MarshalJSON encodes node states sorted by hostname.
func (c ClusterState) MarshalJSON() ([]byte, error) {
	return json.Marshal(clusterStateJSON{Nodes: c.NodeStates()})
}

// UnmarshalJSON decodes the ClusterState wire form.
func (c *ClusterState) UnmarshalJSON(data []byte) error {
	var wire clusterStateJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*c = NewClusterState(wire.Nodes...)
	return nil
}
