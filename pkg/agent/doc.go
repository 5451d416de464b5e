/*
Package agent runs the per-node convergence loop.

Each pass is one observe-diff-execute cycle:

 1. Discover local state (running containers, local dataset manifestations)
    and report it through the Reporter.
 2. Load the desired deployment and the last known cluster state, replacing
    this node's entry with the fresh local observation.
 3. Calculate an ordered plan of state changes and execute it.
 4. Publish events and record metrics for the pass.

Passes are strictly serialized: a pass runs to completion before the next
one starts, whether scheduled by the interval ticker or requested through
Trigger. Triggers coalesce, so any number of requests during a running pass
yields exactly one follow-up pass.

Failures never stop the loop. A failed change is recorded, the rest of the
plan still executes, and the next pass recalculates from freshly observed
state. A pass that takes longer than the loop interval is reported as an
overrun but allowed to finish.
*/
package agent
