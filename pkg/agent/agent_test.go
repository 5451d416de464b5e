package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flotilla-dev/flotilla/pkg/convergence"
	"github.com/flotilla-dev/flotilla/pkg/events"
	"github.com/flotilla-dev/flotilla/pkg/metrics"
	"github.com/flotilla-dev/flotilla/pkg/model"
)

type memContainers struct {
	mu      sync.Mutex
	running map[string]model.Application
}

func newMemContainers() *memContainers {
	return &memContainers{running: make(map[string]model.Application)}
}

func (m *memContainers) Start(ctx context.Context, app model.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running[app.Name] = app
	return nil
}

func (m *memContainers) Stop(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running, name)
	return nil
}

func (m *memContainers) List(ctx context.Context) ([]model.Application, []model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var running []model.Application
	for _, app := range m.running {
		running = append(running, app)
	}
	return running, nil, nil
}

type memDatasets struct {
	mu    sync.Mutex
	local map[string]model.Manifestation
}

func newMemDatasets() *memDatasets {
	return &memDatasets{local: make(map[string]model.Manifestation)}
}

func (m *memDatasets) CreateOrAcquire(ctx context.Context, datasetID string, primary bool) (model.Manifestation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	manifestation := model.Manifestation{
		Dataset: model.Dataset{DatasetID: datasetID},
		Primary: primary,
	}
	m.local[datasetID] = manifestation
	return manifestation, nil
}

func (m *memDatasets) Delete(ctx context.Context, datasetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.local, datasetID)
	return nil
}

func (m *memDatasets) ListLocal(ctx context.Context) ([]model.Manifestation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Manifestation
	for _, manifestation := range m.local {
		out = append(out, manifestation)
	}
	return out, nil
}

func (m *memDatasets) Path(datasetID string) string {
	return "/fake/" + datasetID
}

type staticSource struct {
	desired     model.Deployment
	observed    model.ClusterState
	desiredErr  error
	observedErr error
}

func (s *staticSource) Desired(ctx context.Context) (model.Deployment, error) {
	return s.desired, s.desiredErr
}

func (s *staticSource) Observed(ctx context.Context) (model.ClusterState, error) {
	return s.observed, s.observedErr
}

type memReporter struct {
	mu     sync.Mutex
	states []model.NodeState
}

func (r *memReporter) SaveNodeState(state model.NodeState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return nil
}

func (r *memReporter) last() (model.NodeState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return model.NodeState{}, false
	}
	return r.states[len(r.states)-1], true
}

func deploymentWith(t *testing.T, hostname string, apps ...model.Application) model.Deployment {
	t.Helper()
	node, err := model.NewNode(hostname, apps, nil)
	require.NoError(t, err)
	deployment, err := model.NewDeployment(node)
	require.NoError(t, err)
	return deployment
}

func newTestAgent(t *testing.T, source *staticSource) (*Agent, *memContainers, *memReporter) {
	t.Helper()
	containers := newMemContainers()
	deployer := convergence.NewDeployer("node1", containers, newMemDatasets())
	reporter := &memReporter{}

	agent, err := New(Config{
		Hostname: "node1",
		Deployer: deployer,
		Runner:   convergence.NewRunner(deployer, 1),
		Source:   source,
		Reporter: reporter,
		Interval: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	return agent, containers, reporter
}

func TestNewRejectsIncompleteConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Hostname: "node1"})
	assert.Error(t, err)
}

func TestAgentPassStartsDesiredApplication(t *testing.T) {
	app := model.Application{
		Name:  "web",
		Image: model.DockerImage{Repository: "nginx", Tag: "latest"},
	}
	source := &staticSource{desired: deploymentWith(t, "node1", app)}
	agent, containers, _ := newTestAgent(t, source)

	outcome := agent.pass(context.Background())
	assert.Equal(t, "changed", outcome)

	running, _, err := containers.List(context.Background())
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.True(t, app.Equal(running[0]))

	// A second pass finds nothing to do.
	assert.Equal(t, "converged", agent.pass(context.Background()))
}

func TestAgentPassReportsObservedState(t *testing.T) {
	app := model.Application{
		Name:  "web",
		Image: model.DockerImage{Repository: "nginx", Tag: "latest"},
	}
	source := &staticSource{desired: deploymentWith(t, "node1", app)}
	agent, containers, reporter := newTestAgent(t, source)

	require.NoError(t, containers.Start(context.Background(), app))
	agent.pass(context.Background())

	state, ok := reporter.last()
	require.True(t, ok)
	assert.Equal(t, "node1", state.Hostname)
	require.Len(t, state.Running, 1)
	assert.True(t, app.Equal(state.Running[0]))
}

func TestAgentPassFailsWhenDesiredUnavailable(t *testing.T) {
	source := &staticSource{desiredErr: errors.New("store unavailable")}
	agent, _, _ := newTestAgent(t, source)

	assert.Equal(t, "failed", agent.pass(context.Background()))
}

func TestAgentLocalObservationSupersedesStored(t *testing.T) {
	app := model.Application{
		Name:  "web",
		Image: model.DockerImage{Repository: "nginx", Tag: "latest"},
	}
	// The stored cluster state claims web is already running, but the
	// local runtime says otherwise. The fresh observation wins and the
	// application is started.
	source := &staticSource{
		desired: deploymentWith(t, "node1", app),
		observed: model.NewClusterState(model.NodeState{
			Hostname: "node1",
			Running:  []model.Application{app},
		}),
	}
	agent, containers, _ := newTestAgent(t, source)

	assert.Equal(t, "changed", agent.pass(context.Background()))
	running, _, err := containers.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, running, 1)
}

func TestAgentPublishesPassEvents(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	app := model.Application{
		Name:  "web",
		Image: model.DockerImage{Repository: "nginx", Tag: "latest"},
	}
	source := &staticSource{desired: deploymentWith(t, "node1", app)}
	agent, _, _ := newTestAgent(t, source)
	agent.broker = broker

	agent.converge(context.Background())

	seen := make(map[events.EventType]bool)
	deadline := time.After(5 * time.Second)
	for !seen[events.EventPassCompleted] {
		select {
		case event := <-sub:
			seen[event.Type] = true
			assert.Equal(t, "node1", event.Hostname)
		case <-deadline:
			t.Fatal("timed out waiting for pass events")
		}
	}
	assert.True(t, seen[events.EventPassStarted])
	assert.True(t, seen[events.EventChangeApplied])
}

func TestAgentOverrunCountsOnceAsConverged(t *testing.T) {
	source := &staticSource{}
	containers := newMemContainers()
	deployer := convergence.NewDeployer("node1", containers, newMemDatasets())

	agent, err := New(Config{
		Hostname: "node1",
		Deployer: deployer,
		Runner:   convergence.NewRunner(deployer, 1),
		Source:   source,
		Interval: time.Nanosecond,
	})
	require.NoError(t, err)

	convergedBefore := testutil.ToFloat64(metrics.ConvergencePassesTotal.WithLabelValues("converged"))
	overrunsBefore := testutil.ToFloat64(metrics.ConvergenceOverrunsTotal)

	agent.converge(context.Background())

	// The pass is counted exactly once by outcome; the overrun goes to
	// its own counter.
	assert.Equal(t, convergedBefore+1,
		testutil.ToFloat64(metrics.ConvergencePassesTotal.WithLabelValues("converged")))
	assert.Equal(t, overrunsBefore+1, testutil.ToFloat64(metrics.ConvergenceOverrunsTotal))
	assert.Zero(t, testutil.ToFloat64(metrics.ConvergencePassesTotal.WithLabelValues("overran")))
}

func TestAgentTriggerCoalesces(t *testing.T) {
	source := &staticSource{}
	agent, _, _ := newTestAgent(t, source)

	agent.Trigger()
	agent.Trigger()
	agent.Trigger()

	assert.Len(t, agent.triggerCh, 1)
}

func TestAgentRunStopsOnCancel(t *testing.T) {
	source := &staticSource{}
	agent, _, _ := newTestAgent(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not stop after cancellation")
	}
}
