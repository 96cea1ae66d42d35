package contract

import (
	"fmt"

	"pharmaledger/model"
)

// authorize decides whether caller may run op on record. Custody encodes who may
// act next, so apart from the two role gates the only check is ownership.
// record is nil for OpCreate.
func authorize(op Operation, caller model.Caller, record *model.AssetRecord) error {
	if org, gated := requiredOrganization(op); gated && caller.Org != org {
		return model.NewError(model.KindUnauthorizedRole,
			"%s requires organization %s, caller '%s' belongs to %s", op, org, caller.Principal, caller.Org)
	}
	switch op {
	case OpCreate:
		return nil
	case OpTransfer, OpReceive, OpDispense:
		if record == nil {
			return fmt.Errorf("authorize: %s needs the current record", op)
		}
		if caller.Principal != record.CurrentOwnerID {
			return model.NewError(model.KindNotCurrentOwner,
				"caller '%s' is not the current owner of asset '%s'", caller.Principal, record.AssetID)
		}
		return nil
	default:
		return fmt.Errorf("authorize: unknown operation %s", op)
	}
}

// requiredOrganization returns the role that gates op, if any.
func requiredOrganization(op Operation) (model.Organization, bool) {
	switch op {
	case OpCreate:
		return model.OrgManufacturer, true
	case OpDispense:
		return model.OrgHealthProvider, true
	case OpTransfer, OpReceive:
		return model.OrgUnknown, false
	default:
		return model.OrgUnknown, false
	}
}

// acceptsCustody reports whether org may receive an asset on a leg that requires
// the given role.
func acceptsCustody(org, required model.Organization) bool {
	switch required {
	case model.OrgLogistics, model.OrgHealthProvider:
		return org == required
	case model.OrgManufacturer, model.OrgRegulator, model.OrgUnknown:
		return false
	default:
		return false
	}
}
