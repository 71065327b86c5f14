package lifecycle

import (
	"errors"
	"fmt"
)

// Action is a buyer or seller request that moves an item between statuses
type Action string

// Item actions
const (
	ActionCancel       Action = "cancel"
	ActionDeliver      Action = "deliver"
	ActionReturn       Action = "return"
	ActionRefund       Action = "refund"
	ActionRejectRefund Action = "reject_refund"
)

// Actor identifies who requests a transition
type Actor string

// Actors
const (
	ActorBuyer  Actor = "buyer"
	ActorSeller Actor = "seller"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("actor not allowed to perform this transition")
)

type edge struct {
	from   Status
	action Action
}

type rule struct {
	to     Status
	actors []Actor
}

var transitions = map[edge]rule{
	{StatusPending, ActionCancel}:         {to: StatusCancelled, actors: []Actor{ActorBuyer, ActorSeller}},
	{StatusPending, ActionDeliver}:        {to: StatusDelivered, actors: []Actor{ActorSeller}},
	{StatusDelivered, ActionReturn}:       {to: StatusReturned, actors: []Actor{ActorBuyer}},
	{StatusReturned, ActionRefund}:        {to: StatusRefunded, actors: []Actor{ActorSeller}},
	{StatusReturned, ActionRejectRefund}:  {to: StatusRefundRejected, actors: []Actor{ActorSeller}},
	{StatusCancelled, ActionRefund}:       {to: StatusRefunded, actors: []Actor{ActorSeller}},
	{StatusCancelled, ActionRejectRefund}: {to: StatusRefundRejected, actors: []Actor{ActorSeller}},
}

// TransitionError describes a rejected transition
type TransitionError struct {
	From   Status
	Action Action
	Actor  Actor
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot %s an item that is %s: %v", e.Actor, e.Action, e.From, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// Next returns the status an item moves to when actor performs action on an
// item currently in from. Unlisted edges fail with ErrInvalidTransition and
// listed edges requested by the wrong actor fail with ErrForbidden.
func Next(from Status, action Action, actor Actor) (Status, error) {
	r, ok := transitions[edge{from, action}]
	if !ok {
		return from, &TransitionError{From: from, Action: action, Actor: actor, Err: ErrInvalidTransition}
	}
	for _, a := range r.actors {
		if a == actor {
			return r.to, nil
		}
	}
	return from, &TransitionError{From: from, Action: action, Actor: actor, Err: ErrForbidden}
}

// CanTransition reports whether from -> to is an edge of the item lifecycle
func CanTransition(from, to Status) bool {
	for e, r := range transitions {
		if e.from == from && r.to == to {
			return true
		}
	}
	return false
}

// Sources returns the statuses from which action leads to a new status
func Sources(action Action) []Status {
	var out []Status
	for _, st := range Statuses() {
		if _, ok := transitions[edge{st, action}]; ok {
			out = append(out, st)
		}
	}
	return out
}

// Actions lists what actor may do with an item in status st, in a stable order
func Actions(st Status, actor Actor) []Action {
	if st.IsTerminal() {
		return nil
	}
	var out []Action
	for _, a := range []Action{ActionDeliver, ActionCancel, ActionReturn, ActionRefund, ActionRejectRefund} {
		if _, err := Next(st, a, actor); err == nil {
			out = append(out, a)
		}
	}
	return out
}
