package convergence

// Plan is an ordered sequence of state changes grouped into phases. Phases
// are barriers: every change of one phase completes before the next phase
// starts. Within a phase, changes are independent and may run concurrently.
type Plan struct {
	phases [][]StateChange
}

// NewPlan builds a plan from phases in execution order, dropping empty ones.
func NewPlan(phases ...[]StateChange) Plan {
	var kept [][]StateChange
	for _, phase := range phases {
		if len(phase) > 0 {
			kept = append(kept, phase)
		}
	}
	return Plan{phases: kept}
}

// Empty reports whether the plan contains no changes.
func (p Plan) Empty() bool {
	return len(p.phases) == 0
}

// Phases returns the plan's phases in execution order.
func (p Plan) Phases() [][]StateChange {
	return p.phases
}

// Changes flattens the plan into a single ordered sequence.
func (p Plan) Changes() []StateChange {
	var out []StateChange
	for _, phase := range p.phases {
		out = append(out, phase...)
	}
	return out
}

// Len returns the total number of changes.
func (p Plan) Len() int {
	n := 0
	for _, phase := range p.phases {
		n += len(phase)
	}
	return n
}
