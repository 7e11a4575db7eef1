package engine

import "fmt"

// State is one phase of the investigation loop.
type State string

const (
	StateCollecting State = "collecting"
	StateGenerating State = "generating"
	StateScoring    State = "scoring"
	StateDeciding   State = "deciding"
	StateDone       State = "done"
	StateExhausted  State = "exhausted"
)

// transitions is the exhaustive table of legal state changes. Deciding
// either finishes the investigation or loops back into a targeted
// collection pass; there is no other way to re-enter Collecting.
var transitions = map[State][]State{
	StateCollecting: {StateGenerating},
	StateGenerating: {StateScoring},
	StateScoring:    {StateDeciding},
	StateDeciding:   {StateDone, StateExhausted, StateCollecting},
	StateDone:       {},
	StateExhausted:  {},
}

// Terminal reports whether the state ends the investigation.
func (s State) Terminal() bool {
	return s == StateDone || s == StateExhausted
}

// transition validates and performs one state change.
func (e *investigation) transition(to State) error {
	for _, allowed := range transitions[e.state] {
		if allowed == to {
			e.logger.Debug("state %s -> %s (iteration %d)", e.state, to, e.iteration)
			e.state = to
			return nil
		}
	}
	return fmt.Errorf("illegal state transition %s -> %s", e.state, to)
}
