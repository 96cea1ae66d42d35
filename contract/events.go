package contract

import (
	"encoding/json"
	"time"

	"pharmaledger/model"

	"github.com/google/uuid"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// eventNamespace scopes the name-based event IDs. Every endorser derives the same
// ID for the same (tx, asset, action), so the ID is safe to write to the ledger.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:pharmaledger:custody-event"))

func custodyEventID(txID, assetID, action string) string {
	return uuid.NewSHA1(eventNamespace, []byte(txID+"/"+assetID+"/"+action)).String()
}

// custodyEvent is the payload of every custody chaincode event.
type custodyEvent struct {
	EventID        string            `json:"eventId"`
	AssetID        string            `json:"assetID"`
	State          model.State       `json:"state"`
	CurrentOwnerID model.PrincipalID `json:"currentOwnerID"`
	Actor          model.PrincipalID `json:"actor"`
	Action         string            `json:"action"`
	Location       string            `json:"location"`
	TxID           string            `json:"txId"`
	Timestamp      string            `json:"timestamp"`
}

// emitAssetEvent sends a chaincode event for the history entry just written.
// Fabric keeps one event per transaction; a failure is logged, not returned.
func (s *PharmaLedgerContract) emitAssetEvent(ctx contractapi.TransactionContextInterface, eventName string, record *model.AssetRecord, entry model.HistoryEntry) {
	if record == nil {
		logger.Errorf("emitAssetEvent: cannot emit event '%s', record is nil", eventName)
		return
	}
	payload := custodyEvent{
		EventID:        entry.EventID,
		AssetID:        record.AssetID,
		State:          record.State,
		CurrentOwnerID: record.CurrentOwnerID,
		Actor:          entry.Actor,
		Action:         entry.Action,
		Location:       entry.Location,
		TxID:           entry.TxID,
		Timestamp:      entry.Timestamp.Format(time.RFC3339),
	}
	s.setEvent(ctx, eventName, record.AssetID, payload)
}

func (s *PharmaLedgerContract) setEvent(ctx contractapi.TransactionContextInterface, eventName, subject string, payload interface{}) {
	eventBytes, err := json.Marshal(payload)
	if err != nil {
		logger.Warningf("emitAssetEvent: Failed to marshal event payload for event '%s' on '%s': %v", eventName, subject, err)
		return
	}
	if errSet := ctx.GetStub().SetEvent(eventName, eventBytes); errSet != nil {
		logger.Warningf("emitAssetEvent: Failed to set event '%s' for '%s': %v", eventName, subject, errSet)
	}
}
