package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flotilla-dev/flotilla/pkg/model"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testDeployment(t *testing.T) model.Deployment {
	t.Helper()
	app := model.Application{
		Name:  "web",
		Image: model.DockerImage{Repository: "nginx", Tag: "1.25"},
		Ports: []model.PortMapping{{Internal: 80, External: 8080}},
	}
	node, err := model.NewNode("node1", []model.Application{app}, nil)
	require.NoError(t, err)
	deployment, err := model.NewDeployment(node)
	require.NoError(t, err)
	return deployment
}

func TestBoltStoreDesiredEmpty(t *testing.T) {
	store := newTestStore(t)

	deployment, err := store.Desired(context.Background())
	require.NoError(t, err)
	assert.Empty(t, deployment.Nodes())
}

func TestBoltStoreDeploymentRoundTrip(t *testing.T) {
	store := newTestStore(t)
	deployment := testDeployment(t)

	require.NoError(t, store.SaveDeployment(deployment))

	loaded, err := store.Desired(context.Background())
	require.NoError(t, err)
	assert.True(t, deployment.Equal(loaded))
}

func TestBoltStoreSaveDeploymentReplaces(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveDeployment(testDeployment(t)))

	empty, err := model.NewDeployment()
	require.NoError(t, err)
	require.NoError(t, store.SaveDeployment(empty))

	loaded, err := store.Desired(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded.Nodes())
}

func TestBoltStoreNodeStates(t *testing.T) {
	store := newTestStore(t)

	app := model.Application{
		Name:  "web",
		Image: model.DockerImage{Repository: "nginx", Tag: "latest"},
	}
	require.NoError(t, store.SaveNodeState(model.NodeState{
		Hostname: "node1",
		Running:  []model.Application{app},
	}))
	require.NoError(t, store.SaveNodeState(model.NodeState{Hostname: "node2"}))

	observed, err := store.Observed(context.Background())
	require.NoError(t, err)
	require.Len(t, observed.NodeStates(), 2)

	node1, ok := observed.NodeState("node1")
	require.True(t, ok)
	require.Len(t, node1.Running, 1)
	assert.True(t, app.Equal(node1.Running[0]))
}

func TestBoltStoreSaveNodeStateReplaces(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveNodeState(model.NodeState{
		Hostname: "node1",
		Running: []model.Application{
			{Name: "web", Image: model.DockerImage{Repository: "nginx", Tag: "latest"}},
		},
	}))
	require.NoError(t, store.SaveNodeState(model.NodeState{Hostname: "node1"}))

	observed, err := store.Observed(context.Background())
	require.NoError(t, err)

	node1, ok := observed.NodeState("node1")
	require.True(t, ok)
	assert.Empty(t, node1.Running)
}

func TestBoltStoreRejectsAnonymousNodeState(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveNodeState(model.NodeState{})
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}
