package checkout

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// State is a step of one checkout attempt.
type State string

const (
	StateIdle                    State = "idle"
	StateValidating              State = "validating"
	StateSubmittingOrder         State = "submitting_order"
	StateAwaitingExternalPayment State = "awaiting_external_payment"
	StateConfirmed               State = "confirmed"
	StateError                   State = "error"
)

var transitions = map[State][]State{
	StateIdle:                    {StateValidating},
	StateValidating:              {StateSubmittingOrder, StateError},
	StateSubmittingOrder:         {StateConfirmed, StateAwaitingExternalPayment, StateError},
	StateAwaitingExternalPayment: {StateConfirmed, StateError},
	StateConfirmed:               {StateIdle},
	StateError:                   {StateIdle},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// machine tracks the state of a single attempt.
type machine struct {
	state State
}

func newMachine(start State) *machine {
	return &machine{state: start}
}

func (m *machine) advance(to State) error {
	if !CanTransition(m.state, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("checkout cannot move from %s to %s", m.state, to)).
			WithDetails(map[string]any{"from": string(m.state), "to": string(to)})
	}
	m.state = to
	return nil
}

// fail moves an in-flight attempt to Error when that is still a legal step.
func (m *machine) fail() {
	if CanTransition(m.state, StateError) {
		m.state = StateError
	}
}

func (m *machine) current() State {
	return m.state
}
