package contract

import (
	"fmt"

	"pharmaledger/model"
)

// Operation is a mutating custody operation.
type Operation int

const (
	OpCreate Operation = iota
	OpTransfer
	OpReceive
	OpDispense
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CreateAsset"
	case OpTransfer:
		return "Transfer"
	case OpReceive:
		return "Receive"
	case OpDispense:
		return "Dispense"
	default:
		return fmt.Sprintf("Operation(%d)", int(op))
	}
}

type transitionKey struct {
	from model.State
	op   Operation
}

// transition is one legal move of the custody state machine.
type transition struct {
	to        model.State
	action    string
	recipient model.Organization // Role the new owner must hold; OrgUnknown when ownership does not change hands
}

// transitions is the complete set of legal moves. CreateAsset has no source state
// and is handled outside the table.
var transitions = map[transitionKey]transition{
	{model.StateCreated, OpTransfer}: {
		to:        model.StateInTransitMfgToLogistics,
		action:    model.ActionTransferredToLogistics,
		recipient: model.OrgLogistics,
	},
	{model.StateInTransitMfgToLogistics, OpReceive}: {
		to:     model.StateStoredLogistics,
		action: model.ActionReceivedLogistics,
	},
	{model.StateStoredLogistics, OpTransfer}: {
		to:        model.StateInTransitLogisticsToHealth,
		action:    model.ActionTransferredToHealth,
		recipient: model.OrgHealthProvider,
	},
	{model.StateInTransitLogisticsToHealth, OpReceive}: {
		to:     model.StateReceivedHealth,
		action: model.ActionReceivedHealth,
	},
	{model.StateReceivedHealth, OpDispense}: {
		to:     model.StateDispensed,
		action: model.ActionDispensedToPatient,
	},
}

// next returns the transition op triggers from state, or INVALID_STATE_TRANSITION.
func next(from model.State, op Operation) (transition, error) {
	t, ok := transitions[transitionKey{from: from, op: op}]
	if !ok {
		return transition{}, model.NewError(model.KindInvalidStateTransition,
			"%s is not allowed while the asset is in state %s", op, from)
	}
	return t, nil
}
