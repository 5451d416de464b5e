/*
Package runtime defines the container-lifecycle driver boundary and a
containerd-backed implementation.

The convergence core only needs three operations: start an application, stop
one by name, and list what is present. ContainerdDriver maps those onto
containerd in a dedicated namespace. Each container is named after its
application and carries the full application configuration in a label, so
discovery reconstructs the configuration that produced the container rather
than guessing from runtime state.

	mounts, _ := dataset.NewLocalDriver("")
	driver, err := runtime.NewContainerdDriver("", mounts)
	if err != nil {
		return err
	}
	defer driver.Close()

	running, notRunning, err := driver.List(ctx)

Attached volumes are realized as bind mounts resolved through the
MountSource, which the dataset driver satisfies.
*/
package runtime
