package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNode(t *testing.T, hostname string, apps ...Application) Node {
	t.Helper()
	node, err := NewNode(hostname, apps, nil)
	require.NoError(t, err)
	return node
}

func TestNewDeployment(t *testing.T) {
	t.Run("duplicate hostnames rejected", func(t *testing.T) {
		n1 := mustNode(t, "node1.example.com")
		n2 := mustNode(t, "node1.example.com",
			Application{Name: "web", Image: DockerImage{Repository: "apache", Tag: "latest"}})
		_, err := NewDeployment(n1, n2)
		var invariantErr *InvariantError
		require.ErrorAs(t, err, &invariantErr)
	})

	t.Run("empty deployment is valid", func(t *testing.T) {
		deployment, err := NewDeployment()
		require.NoError(t, err)
		assert.Empty(t, deployment.Nodes())
	})
}

func TestDeploymentApplications(t *testing.T) {
	node := mustNode(t, "node1.example.com",
		Application{Name: "mysql", Image: DockerImage{Repository: "mysql", Tag: "latest"}},
		Application{Name: "site", Image: DockerImage{Repository: "nginx", Tag: "latest"}})
	another := mustNode(t, "node2.example.com",
		Application{Name: "site", Image: DockerImage{Repository: "nginx", Tag: "latest"}})

	deployment, err := NewDeployment(node, another)
	require.NoError(t, err)

	var names []string
	for app := range deployment.Applications() {
		names = append(names, app.Name)
	}
	assert.ElementsMatch(t, []string{"mysql", "site", "site"}, names)

	// The sequence is restartable.
	count := 0
	for range deployment.Applications() {
		count++
	}
	assert.Equal(t, 3, count)
}

func TestDeploymentUpdateNode(t *testing.T) {
	node := mustNode(t, "node1.example.com",
		Application{Name: "postgresql", Image: DockerImage{Repository: "postgresql", Tag: "latest"}})
	another := mustNode(t, "node2.example.com",
		Application{Name: "site", Image: DockerImage{Repository: "nginx", Tag: "latest"}})

	t.Run("new hostname is added", func(t *testing.T) {
		original, err := NewDeployment(node)
		require.NoError(t, err)

		updated := original.UpdateNode(another)

		wantOriginal, err := NewDeployment(node)
		require.NoError(t, err)
		wantUpdated, err := NewDeployment(node, another)
		require.NoError(t, err)

		assert.True(t, original.Equal(wantOriginal), "original must be unchanged")
		assert.True(t, updated.Equal(wantUpdated))
	})

	t.Run("existing hostname is replaced", func(t *testing.T) {
		original, err := NewDeployment(node, another)
		require.NoError(t, err)

		replacement := mustNode(t, "node1.example.com")
		updated := original.UpdateNode(replacement)

		wantUpdated, err := NewDeployment(replacement, another)
		require.NoError(t, err)

		assert.True(t, updated.Equal(wantUpdated))
		got, ok := updated.NodeByHostname("node1.example.com")
		require.True(t, ok)
		assert.Empty(t, got.Applications())
	})
}

func TestDeploymentJSONRoundTrip(t *testing.T) {
	node := mustNode(t, "node1.example.com",
		Application{Name: "web", Image: DockerImage{Repository: "nginx", Tag: "1.27"}})
	deployment, err := NewDeployment(node)
	require.NoError(t, err)

	data, err := json.Marshal(deployment)
	require.NoError(t, err)

	var decoded Deployment
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, deployment.Equal(decoded))
}
