package contract

import (
	"pharmaledger/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("pharmaledger.contract")

// Constants for input validation and limits
const (
	maxStringInputLength = 256
	maxLocationLength    = 512
	defaultPageSize      = 10
	maxPageSize          = 100
)

// Chaincode event names, one per custody operation.
const (
	EventAssetCreated     = "AssetCreated"
	EventAssetTransferred = "AssetTransferred"
	EventAssetReceived    = "AssetReceived"
	EventAssetDispensed   = "AssetDispensed"
	EventLedgerSeeded     = "LedgerSeeded"
)

// PharmaLedgerContract tracks the chain of custody of pharmaceutical assets.
// The only state it carries is the immutable MSP directory; everything else
// lives in the world state.
// @contract:PharmaLedgerContract
type PharmaLedgerContract struct {
	contractapi.Contract
	directory *model.Directory
}

// NewPharmaLedgerContract builds the contract around the organization directory
// loaded at startup.
func NewPharmaLedgerContract(directory *model.Directory) *PharmaLedgerContract {
	c := &PharmaLedgerContract{directory: directory}
	c.Name = "PharmaLedgerContract"
	c.Info.Title = "PharmaLedger chain of custody"
	c.Info.Version = "1.0.0"
	return c
}

// Instantiate is called during chaincode instantiation.
// It's a lifecycle method of the contract.
func (s *PharmaLedgerContract) Instantiate(ctx contractapi.TransactionContextInterface) {
	logger.Infof("PharmaLedgerContract Instantiated/Upgraded (manufacturers: %v, logistics: %v, health: %v, regulators: %v)",
		s.directory.Members(model.OrgManufacturer),
		s.directory.Members(model.OrgLogistics),
		s.directory.Members(model.OrgHealthProvider),
		s.directory.Members(model.OrgRegulator))
}
