package contract

import (
	"errors"
	"fmt"
	"strings"

	"pharmaledger/model"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var idLogger = flogging.MustGetLogger("pharmaledger.identity")

// unknownCaller labels log lines when the signer cannot be read at all.
const unknownCaller = "<unknown caller>"

// IdentityResolver turns the client identity of a transaction into a model.Caller.
// Custody is held per organization, so the principal is the caller's MSP ID and the
// role comes from the configured directory.
type IdentityResolver struct {
	Ctx       contractapi.TransactionContextInterface
	Directory *model.Directory
}

// NewIdentityResolver creates a new instance of IdentityResolver.
func NewIdentityResolver(ctx contractapi.TransactionContextInterface, directory *model.Directory) *IdentityResolver {
	return &IdentityResolver{Ctx: ctx, Directory: directory}
}

func (ir *IdentityResolver) identity() (cid.ClientIdentity, error) {
	id := ir.Ctx.GetClientIdentity()
	if id == nil {
		return nil, errors.New("transaction carries no client identity")
	}
	return id, nil
}

// MSPID returns the MSP of the signer, which is the principal custody is tracked by.
func (ir *IdentityResolver) MSPID() (string, error) {
	id, err := ir.identity()
	if err != nil {
		return "", err
	}
	mspID, err := id.GetMSPID()
	if err != nil {
		return "", fmt.Errorf("failed to read signer MSP: %w", err)
	}
	if strings.TrimSpace(mspID) == "" {
		return "", errors.New("signer MSP is empty")
	}
	return mspID, nil
}

// SubmitterID returns the signer's X.509 identity string, or "" when it cannot be
// read. It is recorded in the audit trail and never used to authorize.
func (ir *IdentityResolver) SubmitterID() string {
	id, err := ir.identity()
	if err != nil {
		return ""
	}
	submitter, err := id.GetID()
	if err != nil {
		idLogger.Debugf("SubmitterID: %v", err)
		return ""
	}
	return submitter
}

// ResolveCaller returns the principal, organization and submitter of the current
// transaction. An MSP outside the directory resolves to OrgUnknown: it can still
// read, and it can act on an asset only if it already owns it.
func (ir *IdentityResolver) ResolveCaller() (model.Caller, error) {
	mspID, err := ir.MSPID()
	if err != nil {
		return model.Caller{}, model.WrapError(model.KindIdentity, err, "cannot resolve caller")
	}
	principal := model.PrincipalID(mspID)
	caller := model.Caller{
		Principal: principal,
		Org:       ir.Directory.OrganizationOf(principal),
		Submitter: ir.SubmitterID(),
	}
	if caller.Submitter == "" {
		idLogger.Warningf("ResolveCaller: No X.509 ID for caller from MSP '%s', history entry will carry no submitter", mspID)
	}
	if caller.Org == model.OrgUnknown {
		idLogger.Debugf("ResolveCaller: MSP '%s' holds no role in the directory", mspID)
	}
	return caller, nil
}

// callerLabel names the signer of ctx in log lines: the X.509 ID if there is one,
// else the MSP.
func callerLabel(ctx contractapi.TransactionContextInterface) string {
	ir := &IdentityResolver{Ctx: ctx}
	if submitter := ir.SubmitterID(); submitter != "" {
		return submitter
	}
	if mspID, err := ir.MSPID(); err == nil {
		return mspID
	}
	return unknownCaller
}
