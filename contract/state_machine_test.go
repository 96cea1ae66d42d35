package contract

import (
	"testing"

	"pharmaledger/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable_LinearLifecycle(t *testing.T) {
	outgoing := map[model.State]int{}
	for key, tr := range transitions {
		require.True(t, key.from.IsValid(), "unknown source %s", key.from)
		require.True(t, tr.to.IsValid(), "unknown target %s", tr.to)
		assert.NotEqual(t, key.from, tr.to, "self-loop on %s", key.from)
		assert.Equal(t, key.from.Ordinal()+1, tr.to.Ordinal(), "%s --%s--> %s skips or reverses", key.from, key.op, tr.to)
		assert.NotEmpty(t, tr.action)
		assert.NotEqual(t, OpCreate, key.op)
		outgoing[key.from]++
	}
	for _, st := range model.States() {
		if st.IsTerminal() {
			assert.Zero(t, outgoing[st], "terminal state %s has moves", st)
			continue
		}
		assert.Equal(t, 1, outgoing[st], "state %s", st)
	}
}

func TestTransitionTable_RecipientRoles(t *testing.T) {
	for key, tr := range transitions {
		if key.op == OpTransfer {
			assert.NotEqual(t, model.OrgUnknown, tr.recipient, "transfer from %s", key.from)
		} else {
			assert.Equal(t, model.OrgUnknown, tr.recipient, "%s from %s", key.op, key.from)
		}
	}
	assert.Equal(t, model.OrgLogistics, transitions[transitionKey{model.StateCreated, OpTransfer}].recipient)
	assert.Equal(t, model.OrgHealthProvider, transitions[transitionKey{model.StateStoredLogistics, OpTransfer}].recipient)
}

func TestNext(t *testing.T) {
	tr, err := next(model.StateInTransitLogisticsToHealth, OpReceive)
	require.NoError(t, err)
	assert.Equal(t, model.StateReceivedHealth, tr.to)
	assert.Equal(t, model.ActionReceivedHealth, tr.action)

	_, err = next(model.StateDispensed, OpTransfer)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)
	assert.Contains(t, err.Error(), "DISPENSED")

	_, err = next(model.StateStoredLogistics, OpReceive)
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)
}

func TestAuthorize(t *testing.T) {
	mfg := model.Caller{Principal: "Org1MSP", Org: model.OrgManufacturer}
	health := model.Caller{Principal: "Org2MSP", Org: model.OrgHealthProvider}
	logistics := model.Caller{Principal: "Org3MSP", Org: model.OrgLogistics}
	regulator := model.Caller{Principal: "Org4MSP", Org: model.OrgRegulator}
	ownedBy := func(p model.PrincipalID) *model.AssetRecord {
		return &model.AssetRecord{AssetID: "MED-1", CurrentOwnerID: p}
	}

	tests := []struct {
		name   string
		op     Operation
		caller model.Caller
		record *model.AssetRecord
		kind   model.ErrorKind // "" means allowed
	}{
		{"manufacturer creates", OpCreate, mfg, nil, ""},
		{"regulator cannot create", OpCreate, regulator, nil, model.KindUnauthorizedRole},
		{"health cannot create", OpCreate, health, nil, model.KindUnauthorizedRole},
		{"owner transfers", OpTransfer, logistics, ownedBy("Org3MSP"), ""},
		{"non-owner transfer", OpTransfer, mfg, ownedBy("Org3MSP"), model.KindNotCurrentOwner},
		{"owner receives", OpReceive, health, ownedBy("Org2MSP"), ""},
		{"regulator receive", OpReceive, regulator, ownedBy("Org2MSP"), model.KindNotCurrentOwner},
		{"health owner dispenses", OpDispense, health, ownedBy("Org2MSP"), ""},
		{"logistics owner cannot dispense", OpDispense, logistics, ownedBy("Org3MSP"), model.KindUnauthorizedRole},
		{"health non-owner cannot dispense", OpDispense, health, ownedBy("Org9MSP"), model.KindNotCurrentOwner},
		{"role checked before ownership", OpDispense, mfg, ownedBy("Org2MSP"), model.KindUnauthorizedRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authorize(tt.op, tt.caller, tt.record)
			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.kind, model.KindOf(err), "got %v", err)
		})
	}

	assert.Error(t, authorize(OpTransfer, logistics, nil))
	assert.Error(t, authorize(Operation(42), logistics, ownedBy("Org3MSP")))
}
