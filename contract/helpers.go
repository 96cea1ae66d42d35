package contract

import (
	"fmt"
	"strings"
	"time"

	"pharmaledger/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Core Helper Methods (used across multiple operations) ---

// getCurrentTxTimestamp retrieves the current transaction timestamp from the stub.
// It is the only clock the contract reads.
func (s *PharmaLedgerContract) getCurrentTxTimestamp(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime().UTC(), nil
}

func (s *PharmaLedgerContract) resolveCaller(ctx contractapi.TransactionContextInterface) (model.Caller, error) {
	return NewIdentityResolver(ctx, s.directory).ResolveCaller()
}

// --- Validation Helper Functions ---
func validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return model.NewError(model.KindInvalidArgument, "%s cannot be empty", field)
	}
	if len(input) > max {
		return model.NewError(model.KindInvalidArgument, "%s exceeds max length %d", field, max)
	}
	return nil
}

// validateIdentifier checks a ledger key or principal. Surrounding whitespace is
// rejected so that " MED-1" and "MED-1" never name two different assets.
func validateIdentifier(input, field string) error {
	if err := validateRequiredString(input, field, maxStringInputLength); err != nil {
		return err
	}
	if strings.TrimSpace(input) != input {
		return model.NewError(model.KindInvalidArgument, "%s '%s' has leading or trailing whitespace", field, input)
	}
	return nil
}

// dateLayouts are tried in order by parseDateString.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

func parseDateString(str, field string) (time.Time, error) {
	sTrimmed := strings.TrimSpace(str)
	if sTrimmed == "" {
		return time.Time{}, model.NewError(model.KindInvalidDate, "%s is a required date field and cannot be empty", field)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, sTrimmed); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, model.NewError(model.KindInvalidDate,
		"invalid format for %s '%s' (expected RFC3339 'YYYY-MM-DDTHH:MM:SSZ' or 'YYYY-MM-DD')", field, str)
}

// --- Ledger access ---

// readAssetBytes returns the stored document, nil when the key is absent.
func (s *PharmaLedgerContract) readAssetBytes(ctx contractapi.TransactionContextInterface, assetID string) ([]byte, error) {
	data, err := ctx.GetStub().GetState(assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset '%s' from ledger: %w", assetID, err)
	}
	return data, nil
}

// getAssetByID is an internal helper to retrieve and decode an asset.
func (s *PharmaLedgerContract) getAssetByID(ctx contractapi.TransactionContextInterface, assetID string) (*model.AssetRecord, error) {
	data, err := s.readAssetBytes(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, model.NewError(model.KindNotFound, "asset with ID '%s' does not exist", assetID)
	}
	record, err := model.Deserialize(data)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *PharmaLedgerContract) assetExists(ctx contractapi.TransactionContextInterface, assetID string) (bool, error) {
	data, err := s.readAssetBytes(ctx, assetID)
	if err != nil {
		return false, err
	}
	return data != nil, nil
}

func (s *PharmaLedgerContract) putAsset(ctx contractapi.TransactionContextInterface, record *model.AssetRecord) error {
	data, err := model.Serialize(record)
	if err != nil {
		return err
	}
	if err := ctx.GetStub().PutState(record.AssetID, data); err != nil {
		return fmt.Errorf("failed to write asset '%s' to ledger: %w", record.AssetID, err)
	}
	return nil
}

// newHistoryEntry stamps one custody entry with the transaction's time and ID.
func newHistoryEntry(ctx contractapi.TransactionContextInterface, caller model.Caller, assetID, action, location string, ts time.Time) model.HistoryEntry {
	txID := ctx.GetStub().GetTxID()
	return model.HistoryEntry{
		Timestamp: ts,
		Actor:     caller.Principal,
		Action:    action,
		Location:  location,
		TxID:      txID,
		EventID:   custodyEventID(txID, assetID, action),
		Submitter: caller.Submitter,
	}
}
