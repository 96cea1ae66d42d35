package model

import (
	"encoding/json"
	"time"
)

// AssetRecordType is the discriminator stored in every asset document. CouchDB
// selectors use it to pick assets out of the shared world state.
const AssetRecordType = "Medicamento"

// Action tags recorded in the custody history.
const (
	ActionCreated                = "CREATED"
	ActionTransferredToLogistics = "TRANSFERRED_TO_LOGISTICS"
	ActionTransferredToHealth    = "TRANSFERRED_TO_HEALTH"
	ActionReceivedLogistics      = "RECEIVED_LOGISTICS"
	ActionReceivedHealth         = "RECEIVED_HEALTH"
	ActionDispensedToPatient     = "DISPENSED_TO_PATIENT"
)

// Fixed locations for the steps whose location is not supplied by the caller.
const (
	LocationProductionPlant  = "Planta de Producción"
	LocationInTransit        = "En Tránsito"
	LocationHospitalPharmacy = "Farmacia Hospital"
)

// HistoryEntry is one custody event embedded in an AssetRecord.
type HistoryEntry struct {
	Timestamp time.Time   `json:"timestamp"`           // Transaction timestamp, never wall-clock
	Actor     PrincipalID `json:"actor"`               // Principal that performed the action
	Action    string      `json:"action"`              // One of the Action* tags
	Location  string      `json:"location"`            // Free-text location
	TxID      string      `json:"txId,omitempty"`      // Transaction that wrote this entry
	EventID   string      `json:"eventId,omitempty"`   // Matches the chaincode event emitted for this entry
	Submitter string      `json:"submitter,omitempty"` // Full X.509 identity of the signer
}

// AssetRecord is the ledger document of one pharmaceutical unit.
type AssetRecord struct {
	RecordType      string         `json:"docType"` // Always AssetRecordType
	AssetID         string         `json:"assetID"`
	CommercialName  string         `json:"commercialName"`
	BatchNumber     string         `json:"batchNumber"`
	ManufactureDate time.Time      `json:"manufactureDate"`
	ExpiryDate      time.Time      `json:"expiryDate"`
	State           State          `json:"state"`
	CurrentOwnerID  PrincipalID    `json:"currentOwnerID"`
	CustodyHistory  []HistoryEntry `json:"custodyHistory"`
}

// AppendHistory pushes one entry at the end of the custody history.
func (r *AssetRecord) AppendHistory(entry HistoryEntry) {
	r.CustodyHistory = append(r.CustodyHistory, entry)
}

// Serialize encodes a record in its ledger representation.
func Serialize(r *AssetRecord) ([]byte, error) {
	ensureAssetSchemaCompliance(r)
	data, err := json.Marshal(r)
	if err != nil {
		return nil, WrapError(KindDeserialization, err, "cannot encode asset '%s'", r.AssetID)
	}
	return data, nil
}

// Deserialize decodes ledger bytes into a record. Documents written by earlier
// versions of the chaincode are upgraded in memory. Bytes that do not describe an
// asset yield a DESERIALIZATION_ERROR, never an empty record.
func Deserialize(data []byte) (*AssetRecord, error) {
	if len(data) == 0 {
		return nil, NewError(KindDeserialization, "empty asset document")
	}
	var rec AssetRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, WrapError(KindDeserialization, err, "malformed asset document")
	}
	if rec.State == "" {
		legacy, err := upgradeLegacyRecord(data)
		if err != nil {
			return nil, WrapError(KindDeserialization, err, "asset document has no state")
		}
		rec = *legacy
	}
	if rec.AssetID == "" {
		return nil, NewError(KindDeserialization, "asset document has no assetID")
	}
	ensureAssetSchemaCompliance(&rec)
	return &rec, nil
}

// IsAssetDocument reports whether data carries the asset discriminator. It looks
// at the stored docType only, before any defaulting Deserialize applies.
func IsAssetDocument(data []byte) bool {
	var head struct {
		RecordType string `json:"docType"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return false
	}
	return head.RecordType == AssetRecordType
}

func ensureAssetSchemaCompliance(r *AssetRecord) {
	if r == nil {
		return
	}
	if r.CustodyHistory == nil {
		r.CustodyHistory = []HistoryEntry{}
	}
	if r.RecordType == "" {
		r.RecordType = AssetRecordType
	}
}
