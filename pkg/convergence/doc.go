/*
Package convergence diffs desired cluster configuration against observed
node state and executes the minimal ordered plan of changes that converges
one toward the other.

# Architecture

Each node runs its own convergence independently; there is no global lock
and no consensus protocol. Correctness under concurrent multi-node
convergence comes from each node only ever mutating resources it locally
owns, and from dataset hand-off being an explicit intent handled by the
dataset driver rather than simultaneous unilateral claims.

	desired Deployment ──┐
	                     ├─► CalculateChanges ──► Plan ──► Runner ──► drivers
	observed ClusterState┘                                              │
	        ▲                                                           │
	        └────────────────── Discover ◄──────────────────────────────┘

# Plan ordering

CalculateChanges emits changes in four phases, applied strictly in order:

 1. StopApplication — applications removed or being replaced
 2. DeleteManifestation — storage no longer desired locally
 3. CreateManifestation / HandoffManifestation — storage before workloads
 4. StartApplication — applications missing or replaced

Stopping before deleting prevents freeing storage a running container still
holds; creating before starting prevents starting a container whose volume
does not exist yet. Within a phase changes are sorted by application name or
dataset ID, so the same inputs always yield the same plan.

# Failure model

The Runner records each change's outcome and keeps going; one failed volume
acquire must not block an independent application stop. There is no
mid-plan retry. The next scheduled pass re-observes state and computes a
fresh plan, which naturally retries failed work because the unconverged
state persists. Running the engine at its fixed point produces an empty
plan, making the whole loop idempotent.
*/
package convergence
