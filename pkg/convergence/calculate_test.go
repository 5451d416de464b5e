package convergence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flotilla-dev/flotilla/pkg/model"
)

func mustNode(t *testing.T, hostname string, apps []model.Application, manifestations map[string]model.Manifestation) model.Node {
	t.Helper()
	node, err := model.NewNode(hostname, apps, manifestations)
	require.NoError(t, err)
	return node
}

func mustDeployment(t *testing.T, nodes ...model.Node) model.Deployment {
	t.Helper()
	deployment, err := model.NewDeployment(nodes...)
	require.NoError(t, err)
	return deployment
}

func webApplication(name string) model.Application {
	return model.Application{
		Name:  name,
		Image: model.DockerImage{Repository: "nginx", Tag: "latest"},
	}
}

func volumeApplication(name string, m model.Manifestation, mountpoint string) model.Application {
	return model.Application{
		Name:   name,
		Image:  model.DockerImage{Repository: "postgresql", Tag: "9.4"},
		Volume: &model.AttachedVolume{Manifestation: m, Mountpoint: mountpoint},
	}
}

func primaryManifestation() model.Manifestation {
	return model.Manifestation{
		Dataset: model.Dataset{DatasetID: uuid.NewString()},
		Primary: true,
	}
}

func TestCalculateChangesFixedPoint(t *testing.T) {
	m := primaryManifestation()
	app := volumeApplication("database", m, "/var/lib/postgresql")

	desired := mustDeployment(t, mustNode(t, "node1", []model.Application{app},
		map[string]model.Manifestation{m.DatasetID(): m}))
	observed := model.NewClusterState(model.NodeState{
		Hostname:       "node1",
		Running:        []model.Application{app},
		Manifestations: []model.Manifestation{m},
	})

	plan, err := CalculateChanges(desired, observed, "node1")
	require.NoError(t, err)
	assert.True(t, plan.Empty())

	// Idempotence: the same inputs always yield the same empty plan.
	again, err := CalculateChanges(desired, observed, "node1")
	require.NoError(t, err)
	assert.True(t, again.Empty())
}

func TestCalculateChangesManifestationBeforeApplication(t *testing.T) {
	m := primaryManifestation()
	web := volumeApplication("web", m, "/data")

	desired := mustDeployment(t, mustNode(t, "node1", []model.Application{web},
		map[string]model.Manifestation{m.DatasetID(): m}))

	plan, err := CalculateChanges(desired, model.NewClusterState(), "node1")
	require.NoError(t, err)

	changes := plan.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, CreateManifestation{Manifestation: m}, changes[0])
	assert.Equal(t, StartApplication{Application: web}, changes[1])
}

func TestCalculateChangesStopsRemovedApplications(t *testing.T) {
	app := webApplication("web")

	desired := mustDeployment(t, mustNode(t, "node1", nil, nil))
	observed := model.NewClusterState(model.NodeState{
		Hostname: "node1",
		Running:  []model.Application{app},
	})

	plan, err := CalculateChanges(desired, observed, "node1")
	require.NoError(t, err)
	assert.Equal(t, []StateChange{StopApplication{Name: "web"}}, plan.Changes())
}

func TestCalculateChangesReplacesChangedApplications(t *testing.T) {
	actual := webApplication("web")
	want := actual
	want.Image = model.DockerImage{Repository: "nginx", Tag: "1.27"}

	desired := mustDeployment(t, mustNode(t, "node1", []model.Application{want}, nil))
	observed := model.NewClusterState(model.NodeState{
		Hostname: "node1",
		Running:  []model.Application{actual},
	})

	plan, err := CalculateChanges(desired, observed, "node1")
	require.NoError(t, err)

	// Reconfiguration is stop followed by start, never in place.
	assert.Equal(t, []StateChange{
		StopApplication{Name: "web"},
		StartApplication{Application: want},
	}, plan.Changes())
}

func TestCalculateChangesNotRunningDesiredApplicationIsRestarted(t *testing.T) {
	app := webApplication("web")

	desired := mustDeployment(t, mustNode(t, "node1", []model.Application{app}, nil))
	observed := model.NewClusterState(model.NodeState{
		Hostname:   "node1",
		NotRunning: []model.Application{app},
	})

	// The stop clears the exited container so the runtime can recreate
	// it under the same name.
	plan, err := CalculateChanges(desired, observed, "node1")
	require.NoError(t, err)
	assert.Equal(t, []StateChange{
		StopApplication{Name: "web"},
		StartApplication{Application: app},
	}, plan.Changes())
}

func TestCalculateChangesDeletesUnreferencedManifestation(t *testing.T) {
	m := primaryManifestation()

	desired := mustDeployment(t, mustNode(t, "node1", nil, nil))
	observed := model.NewClusterState(model.NodeState{
		Hostname:       "node1",
		Manifestations: []model.Manifestation{m},
	})

	plan, err := CalculateChanges(desired, observed, "node1")
	require.NoError(t, err)
	assert.Equal(t, []StateChange{DeleteManifestation{DatasetID: m.DatasetID()}}, plan.Changes())
}

func TestCalculateChangesDefersDeleteWhileReferenced(t *testing.T) {
	m := primaryManifestation()

	// The dataset has moved: node2 wants it, node1 still has it. node1
	// must not delete while a desired application anywhere references it.
	app := volumeApplication("database", m, "/var/lib/postgresql")
	desired := mustDeployment(t,
		mustNode(t, "node1", nil, nil),
		mustNode(t, "node2", []model.Application{app},
			map[string]model.Manifestation{m.DatasetID(): m}))
	observed := model.NewClusterState(model.NodeState{
		Hostname:       "node1",
		Manifestations: []model.Manifestation{m},
	})

	plan, err := CalculateChanges(desired, observed, "node1")
	require.NoError(t, err)
	assert.True(t, plan.Empty(), "delete must be deferred while referenced")
}

func TestCalculateChangesHandoffAcquiresPrimary(t *testing.T) {
	replica := primaryManifestation()
	replica.Primary = false
	primary := replica
	primary.Primary = true

	app := volumeApplication("database", primary, "/var/lib/postgresql")
	desired := mustDeployment(t, mustNode(t, "node1", []model.Application{app},
		map[string]model.Manifestation{primary.DatasetID(): primary}))
	observed := model.NewClusterState(model.NodeState{
		Hostname:       "node1",
		Manifestations: []model.Manifestation{replica},
	})

	plan, err := CalculateChanges(desired, observed, "node1")
	require.NoError(t, err)

	changes := plan.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, HandoffManifestation{DatasetID: primary.DatasetID()}, changes[0])
	assert.Equal(t, StartApplication{Application: app}, changes[1])
}

func TestCalculateChangesPhaseOrdering(t *testing.T) {
	stale := primaryManifestation()
	fresh := primaryManifestation()

	oldApp := webApplication("old")
	newApp := volumeApplication("new", fresh, "/data")

	desired := mustDeployment(t, mustNode(t, "node1", []model.Application{newApp},
		map[string]model.Manifestation{fresh.DatasetID(): fresh}))
	observed := model.NewClusterState(model.NodeState{
		Hostname:       "node1",
		Running:        []model.Application{oldApp},
		Manifestations: []model.Manifestation{stale},
	})

	plan, err := CalculateChanges(desired, observed, "node1")
	require.NoError(t, err)

	assert.Equal(t, []StateChange{
		StopApplication{Name: "old"},
		DeleteManifestation{DatasetID: stale.DatasetID()},
		CreateManifestation{Manifestation: fresh},
		StartApplication{Application: newApp},
	}, plan.Changes())
}

func TestCalculateChangesDeterministicOrderWithinPhase(t *testing.T) {
	apps := []model.Application{
		webApplication("charlie"),
		webApplication("alpha"),
		webApplication("bravo"),
	}
	desired := mustDeployment(t, mustNode(t, "node1", apps, nil))

	plan, err := CalculateChanges(desired, model.NewClusterState(), "node1")
	require.NoError(t, err)

	var names []string
	for _, change := range plan.Changes() {
		names = append(names, change.Applications()[0])
	}
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, names)
}

func TestCalculateChangesUnknownHostnameMeansEmptyDesired(t *testing.T) {
	app := webApplication("web")
	observed := model.NewClusterState(model.NodeState{
		Hostname: "node9",
		Running:  []model.Application{app},
	})

	plan, err := CalculateChanges(mustDeployment(t), observed, "node9")
	require.NoError(t, err)
	assert.Equal(t, []StateChange{StopApplication{Name: "web"}}, plan.Changes())
}

func TestCalculateChangesSurfacesInconsistentObservation(t *testing.T) {
	m := primaryManifestation()
	observed := model.NewClusterState(model.NodeState{
		Hostname: "node1",
		Running:  []model.Application{volumeApplication("database", m, "/data")},
		// The referenced manifestation is missing from the observed set.
	})

	_, err := CalculateChanges(mustDeployment(t), observed, "node1")
	var invariantErr *model.InvariantError
	require.ErrorAs(t, err, &invariantErr)
}
