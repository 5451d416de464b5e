package runtime

import (
	"context"
	"fmt"
	"sort"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/errdefs"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/flotilla-dev/flotilla/pkg/model"
)

const (
	// DefaultNamespace is the containerd namespace for Flotilla containers.
	DefaultNamespace = "flotilla"

	// DefaultSocketPath is the default containerd socket.
	DefaultSocketPath = "/run/containerd/containerd.sock"

	// DefaultStopTimeout is how long Stop waits after SIGTERM before
	// escalating to SIGKILL.
	DefaultStopTimeout = 10 * time.Second
)

// ContainerdDriver implements ContainerDriver using containerd. Containers
// are named after their application and carry the application configuration
// as a label so List can reconstruct it.
type ContainerdDriver struct {
	client      *containerd.Client
	namespace   string
	mounts      MountSource
	stopTimeout time.Duration
}

// NewContainerdDriver connects to containerd at socketPath. The MountSource
// resolves attached-volume dataset IDs to host paths; it may be nil when no
// application uses volumes.
func NewContainerdDriver(socketPath string, mounts MountSource) (*ContainerdDriver, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}

	return &ContainerdDriver{
		client:      client,
		namespace:   DefaultNamespace,
		mounts:      mounts,
		stopTimeout: DefaultStopTimeout,
	}, nil
}

// Close closes the containerd client connection.
func (d *ContainerdDriver) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

// Start pulls the application's image, creates a container carrying the
// application label, and starts its task.
func (d *ContainerdDriver) Start(ctx context.Context, app model.Application) error {
	ctx = namespaces.WithNamespace(ctx, d.namespace)

	ref := app.Image.FullName()
	image, err := d.client.Pull(ctx, ref, containerd.WithPullUnpack)
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}

	label, err := encodeApplicationLabel(app)
	if err != nil {
		return err
	}

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(environmentList(app.Environment)),
	}
	if app.MemoryLimit > 0 {
		opts = append(opts, oci.WithMemoryLimit(uint64(app.MemoryLimit)))
	}
	if app.CPUShares > 0 {
		opts = append(opts, oci.WithCPUShares(uint64(app.CPUShares)))
	}
	if app.Volume != nil && app.Volume.Mountpoint != "" {
		if d.mounts == nil {
			return fmt.Errorf("application %q attaches a volume but no mount source is configured", app.Name)
		}
		opts = append(opts, oci.WithMounts([]specs.Mount{
			{
				Source:      d.mounts.Path(app.Volume.Manifestation.DatasetID()),
				Destination: app.Volume.Mountpoint,
				Type:        "bind",
				Options:     []string{"rw", "rbind"},
			},
		}))
	}

	container, err := d.client.NewContainer(
		ctx,
		app.Name,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(app.Name+"-snapshot", image),
		containerd.WithNewSpec(opts...),
		containerd.WithContainerLabels(map[string]string{ApplicationLabel: label}),
	)
	if err != nil {
		return fmt.Errorf("failed to create container for %q: %w", app.Name, err)
	}

	task, err := container.NewTask(ctx, cio.NullIO)
	if err != nil {
		return fmt.Errorf("failed to create task for %q: %w", app.Name, err)
	}
	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("failed to start %q: %w", app.Name, err)
	}

	return nil
}

// Stop sends SIGTERM to the application's task, escalates to SIGKILL after
// the stop timeout, and removes the container and its snapshot.
func (d *ContainerdDriver) Stop(ctx context.Context, name string) error {
	ctx = namespaces.WithNamespace(ctx, d.namespace)

	container, err := d.client.LoadContainer(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to load container %q: %w", name, err)
	}

	task, err := container.Task(ctx, nil)
	if err == nil {
		if err := d.stopTask(ctx, task); err != nil {
			return fmt.Errorf("failed to stop %q: %w", name, err)
		}
	} else if !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to get task for %q: %w", name, err)
	}

	if err := container.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("failed to delete container %q: %w", name, err)
	}
	return nil
}

func (d *ContainerdDriver) stopTask(ctx context.Context, task containerd.Task) error {
	// An exited task (crashed or finished container) has nothing to
	// signal; it only needs deleting so the container can be removed.
	status, err := task.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get task status: %w", err)
	}

	if status.Status == containerd.Running || status.Status == containerd.Paused {
		stopCtx, cancel := context.WithTimeout(ctx, d.stopTimeout)
		defer cancel()

		if err := task.Kill(stopCtx, syscall.SIGTERM); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("failed to signal task: %w", err)
		}

		statusC, err := task.Wait(stopCtx)
		if err != nil {
			return fmt.Errorf("failed to wait for task: %w", err)
		}

		select {
		case <-statusC:
		case <-stopCtx.Done():
			if err := task.Kill(ctx, syscall.SIGKILL); err != nil && !errdefs.IsNotFound(err) {
				return fmt.Errorf("failed to force kill task: %w", err)
			}
		}
	}

	if _, err := task.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// List reads back every labeled container in the namespace, splitting them
// by whether a running task exists. Containers without an application label
// are not Flotilla's and are ignored.
func (d *ContainerdDriver) List(ctx context.Context) (running, notRunning []model.Application, err error) {
	ctx = namespaces.WithNamespace(ctx, d.namespace)

	containers, err := d.client.Containers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list containers: %w", err)
	}

	for _, container := range containers {
		labels, err := container.Labels(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read labels of %q: %w", container.ID(), err)
		}
		value, ok := labels[ApplicationLabel]
		if !ok {
			continue
		}
		app, err := decodeApplicationLabel(value)
		if err != nil {
			return nil, nil, fmt.Errorf("container %q: %w", container.ID(), err)
		}

		if d.isRunning(ctx, container) {
			running = append(running, app)
		} else {
			notRunning = append(notRunning, app)
		}
	}

	sortApplications(running)
	sortApplications(notRunning)
	return running, notRunning, nil
}

func (d *ContainerdDriver) isRunning(ctx context.Context, container containerd.Container) bool {
	task, err := container.Task(ctx, nil)
	if err != nil {
		return false
	}
	status, err := task.Status(ctx)
	if err != nil {
		return false
	}
	return status.Status == containerd.Running || status.Status == containerd.Paused
}

func environmentList(environment map[string]string) []string {
	env := make([]string, 0, len(environment))
	for key, value := range environment {
		env = append(env, key+"="+value)
	}
	sort.Strings(env)
	return env
}

func sortApplications(apps []model.Application) {
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].Name < apps[j].Name
	})
}
