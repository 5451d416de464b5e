/*
Package dataset defines the dataset-lifecycle driver boundary and a local
directory-backed implementation.

The convergence core never talks to a storage backend directly; it emits
intents (create or acquire a manifestation, delete one) against the Driver
interface. The LocalDriver satisfies it with plain directories under a base
path, which is enough for single-node clusters and for tests. Replicated
block-device backends implement the same interface and handle primary
hand-off between nodes internally.

	driver, err := dataset.NewLocalDriver("/var/lib/flotilla/datasets")
	if err != nil {
		return err
	}
	m, err := driver.CreateOrAcquire(ctx, datasetID, true)
*/
package dataset
