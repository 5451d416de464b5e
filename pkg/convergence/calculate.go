package convergence

import (
	"fmt"
	"maps"
	"slices"

	"github.com/flotilla-dev/flotilla/pkg/model"
)

// CalculateChanges diffs the desired deployment against observed cluster
// state from the point of view of one node and returns the ordered plan that
// converges it. The plan's phases are:
//
//  1. stop applications that are removed, changed, or left behind stopped
//  2. delete manifestations no longer desired locally
//  3. create or acquire manifestations (storage before applications)
//  4. start applications that are missing or replaced
//
// Configuration changes are modeled as stop followed by start; the driver
// boundary exposes no reconfigure operation. A manifestation still
// referenced by any desired application anywhere in the cluster is not
// deleted this pass; the decision is re-evaluated next pass once the
// reference is gone. Within a phase, changes are ordered by application name
// or dataset ID so identical inputs always produce identical plans.
func CalculateChanges(desired model.Deployment, observed model.ClusterState, hostname string) (Plan, error) {
	desiredNode, ok := desired.NodeByHostname(hostname)
	if !ok {
		desiredNode = model.EmptyNode(hostname)
	}

	state, _ := observed.NodeState(hostname)
	state.Hostname = hostname

	// Projecting through ToNode validates the observation: an observed
	// application referencing a manifestation absent from the observed set
	// is an inconsistency to surface, not to silently drop.
	actualNode, err := state.ToNode()
	if err != nil {
		return Plan{}, fmt.Errorf("observed state for %s is inconsistent: %w", hostname, err)
	}

	stops, starts := applicationChanges(desiredNode, state.Running, state.NotRunning)
	deletes, creates := manifestationChanges(desired, desiredNode, actualNode)

	return NewPlan(stops, deletes, creates, starts), nil
}

// applicationChanges diffs desired applications against the ones actually
// running. An application running with stale configuration is stopped and
// started with the new definition. A desired application whose container is
// present but stopped also gets a stop first: the stop clears the stale
// container so the runtime can recreate it under the same name.
func applicationChanges(desiredNode model.Node, running, notRunning []model.Application) (stops, starts []StateChange) {
	byName := make(map[string]model.Application, len(running))
	for _, app := range running {
		byName[app.Name] = app
	}
	stopped := make(map[string]bool, len(notRunning))
	for _, app := range notRunning {
		stopped[app.Name] = true
	}

	stopNames := make(map[string]bool)
	for _, actual := range running {
		want, ok := desiredNode.Application(actual.Name)
		if !ok || !want.Equal(actual) {
			stopNames[actual.Name] = true
		}
	}

	// Applications() is sorted by name, keeping plans deterministic.
	for _, want := range desiredNode.Applications() {
		actual, ok := byName[want.Name]
		if ok && want.Equal(actual) {
			continue
		}
		if !ok && stopped[want.Name] {
			stopNames[want.Name] = true
		}
		starts = append(starts, StartApplication{Application: want})
	}

	for _, name := range slices.Sorted(maps.Keys(stopNames)) {
		stops = append(stops, StopApplication{Name: name})
	}
	return stops, starts
}

func manifestationChanges(desired model.Deployment, desiredNode, actualNode model.Node) (deletes, creates []StateChange) {
	actualManifestations := actualNode.Manifestations()

	for id, want := range desiredNode.Manifestations() {
		actual, ok := actualManifestations[id]
		switch {
		case !ok:
			creates = append(creates, CreateManifestation{Manifestation: want})
		case want.Primary && !actual.Primary:
			creates = append(creates, HandoffManifestation{DatasetID: id})
		}
	}

	for id := range actualManifestations {
		if _, ok := desiredNode.Manifestation(id); ok {
			continue
		}
		// Deferred: another node may still need to acquire this dataset.
		if datasetReferenced(desired, id) {
			continue
		}
		deletes = append(deletes, DeleteManifestation{DatasetID: id})
	}

	sortByDataset(creates)
	sortByDataset(deletes)
	return deletes, creates
}

// datasetReferenced reports whether any desired application in the cluster
// attaches the dataset.
func datasetReferenced(desired model.Deployment, datasetID string) bool {
	for app := range desired.Applications() {
		if app.Volume != nil && app.Volume.Manifestation.DatasetID() == datasetID {
			return true
		}
	}
	return false
}

func sortByDataset(changes []StateChange) {
	slices.SortFunc(changes, func(a, b StateChange) int {
		ida, idb := a.Datasets()[0], b.Datasets()[0]
		switch {
		case ida < idb:
			return -1
		case ida > idb:
			return 1
		default:
			return 0
		}
	})
}
