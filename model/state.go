package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// State is the custody stage of an asset.
type State string

const (
	StateCreated                    State = "CREATED"                        // Registered by the manufacturer
	StateInTransitMfgToLogistics    State = "IN_TRANSIT_MFG_TO_LOGISTICS"    // Handed to a logistics operator, not yet received
	StateStoredLogistics            State = "STORED_LOGISTICS"               // Received and stored by logistics
	StateInTransitLogisticsToHealth State = "IN_TRANSIT_LOGISTICS_TO_HEALTH" // Handed to a health provider, not yet received
	StateReceivedHealth             State = "RECEIVED_HEALTH"                // Received by the health provider
	StateDispensed                  State = "DISPENSED"                      // Dispensed to a patient (terminal)
)

// stateOrder lists the states in lifecycle order. The index of a state is the
// ordinal used by earlier versions of the ledger data.
var stateOrder = []State{
	StateCreated,
	StateInTransitMfgToLogistics,
	StateStoredLogistics,
	StateInTransitLogisticsToHealth,
	StateReceivedHealth,
	StateDispensed,
}

// States returns every state in lifecycle order.
func States() []State {
	out := make([]State, len(stateOrder))
	copy(out, stateOrder)
	return out
}

// Ordinal returns the position of s in the lifecycle, or -1 for an unknown state.
func (s State) Ordinal() int {
	for i, st := range stateOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s State) IsValid() bool {
	return s.Ordinal() >= 0
}

func (s State) IsTerminal() bool {
	return s == StateDispensed
}

// ParseState resolves a state name, case-insensitively.
func ParseState(name string) (State, error) {
	st := State(strings.ToUpper(strings.TrimSpace(name)))
	if !st.IsValid() {
		return "", NewError(KindInvalidArgument, "unknown state '%s'", name)
	}
	return st, nil
}

// UnmarshalJSON accepts the symbolic name or the integer ordinal stored by earlier
// versions of the chaincode.
// A JSON null leaves the state unset.
func (s *State) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		st := State(name)
		if !st.IsValid() {
			return fmt.Errorf("unknown state '%s'", name)
		}
		*s = st
		return nil
	}
	var ordinal int
	if err := json.Unmarshal(data, &ordinal); err != nil {
		return fmt.Errorf("state must be a name or an ordinal, got %s", string(data))
	}
	if ordinal < 0 || ordinal >= len(stateOrder) {
		return fmt.Errorf("state ordinal %d out of range", ordinal)
	}
	*s = stateOrder[ordinal]
	return nil
}
