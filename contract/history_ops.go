package contract

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"pharmaledger/metrics"
	"pharmaledger/model"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
)

// VersionEntry is one committed version of an asset key.
type VersionEntry struct {
	TxID      string          `json:"txId"`
	Timestamp time.Time       `json:"timestamp"`
	Value     json.RawMessage `json:"value"` // Decoded record, the raw string if it does not decode, null for a delete
	IsDelete  bool            `json:"isDelete"`
}

// ConsultarHistorial reconstructs every committed version of an asset, oldest first.
// A version that no longer decodes as an asset is returned as its raw string.
func (s *PharmaLedgerContract) ConsultarHistorial(ctx contractapi.TransactionContextInterface, assetID string) (result string, err error) {
	start := time.Now()
	defer func() { metrics.Observe("ConsultarHistorial", start, err) }()

	if err := validateIdentifier(assetID, "assetID"); err != nil {
		return "", err
	}
	logger.Debugf("ConsultarHistorial: Reading history of '%s' for '%s'", assetID, callerLabel(ctx))

	mods, err := readKeyHistory(ctx.GetStub(), assetID)
	if err != nil {
		return "", fmt.Errorf("ConsultarHistorial: %w", err)
	}
	versions := make([]VersionEntry, 0, len(mods))
	for _, mod := range mods {
		versions = append(versions, toVersionEntry(assetID, mod))
	}

	out, err := json.Marshal(versions)
	if err != nil {
		return "", fmt.Errorf("ConsultarHistorial: failed to encode history of '%s': %w", assetID, err)
	}
	return string(out), nil
}

// readKeyHistory drains the history iterator of key into memory, oldest first.
// The iterator is closed on every path.
func readKeyHistory(stub shim.ChaincodeStubInterface, key string) ([]*queryresult.KeyModification, error) {
	historyIter, err := stub.GetHistoryForKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to get history for '%s': %w", key, err)
	}
	defer historyIter.Close()

	mods := []*queryresult.KeyModification{}
	for historyIter.HasNext() {
		mod, iterErr := historyIter.Next()
		if iterErr != nil {
			return nil, fmt.Errorf("failed to iterate history for '%s': %w", key, iterErr)
		}
		mods = append(mods, mod)
	}

	// Peers return the newest version first; reversing keeps commit order for
	// versions sharing a timestamp.
	for i, j := 0, len(mods)-1; i < j; i, j = i+1, j-1 {
		mods[i], mods[j] = mods[j], mods[i]
	}
	sort.SliceStable(mods, func(i, j int) bool {
		return mods[i].GetTimestamp().AsTime().Before(mods[j].GetTimestamp().AsTime())
	})
	return mods, nil
}

func toVersionEntry(assetID string, mod *queryresult.KeyModification) VersionEntry {
	entry := VersionEntry{
		TxID:      mod.GetTxId(),
		Timestamp: mod.GetTimestamp().AsTime().UTC(),
		IsDelete:  mod.GetIsDelete(),
	}
	if entry.IsDelete || len(mod.GetValue()) == 0 {
		return entry
	}
	if record, err := model.Deserialize(mod.GetValue()); err == nil {
		if data, err := model.Serialize(record); err == nil {
			entry.Value = data
			return entry
		}
	} else {
		logger.Warningf("ConsultarHistorial: Version %s of '%s' is not a valid asset, returning raw value: %v", entry.TxID, assetID, err)
	}
	raw, _ := json.Marshal(string(mod.GetValue()))
	entry.Value = raw
	return entry
}

// ConsultarCustodia returns the custody history embedded in the current record.
func (s *PharmaLedgerContract) ConsultarCustodia(ctx contractapi.TransactionContextInterface, assetID string) (result string, err error) {
	start := time.Now()
	defer func() { metrics.Observe("ConsultarCustodia", start, err) }()

	if err := validateIdentifier(assetID, "assetID"); err != nil {
		return "", err
	}
	record, err := s.getAssetByID(ctx, assetID)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(record.CustodyHistory)
	if err != nil {
		return "", fmt.Errorf("ConsultarCustodia: failed to encode custody of '%s': %w", assetID, err)
	}
	return string(out), nil
}
