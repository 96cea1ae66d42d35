package contract

import (
	"fmt"
	"time"

	"pharmaledger/metrics"
	"pharmaledger/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// Every mutating operation checks, in this order: arguments, existence,
// authorization, state, business rule. Nothing is written before all checks pass.

// CreateAsset registers a new asset owned by the calling manufacturer.
func (s *PharmaLedgerContract) CreateAsset(ctx contractapi.TransactionContextInterface,
	assetID, commercialName, batchNumber, manufactureDateStr, expiryDateStr string) (err error) {
	start := time.Now()
	defer func() { metrics.Observe("CreateAsset", start, err) }()

	if err := validateIdentifier(assetID, "assetID"); err != nil {
		return err
	}
	if err := validateRequiredString(commercialName, "commercialName", maxStringInputLength); err != nil {
		return err
	}
	if err := validateRequiredString(batchNumber, "batchNumber", maxStringInputLength); err != nil {
		return err
	}

	caller, err := s.resolveCaller(ctx)
	if err != nil {
		return err
	}
	if err := authorize(OpCreate, caller, nil); err != nil {
		return err
	}
	exists, err := s.assetExists(ctx, assetID)
	if err != nil {
		return fmt.Errorf("CreateAsset: %w", err)
	}
	if exists {
		return model.NewError(model.KindAlreadyExists, "asset with ID '%s' already exists", assetID)
	}

	manufactureDate, err := parseDateString(manufactureDateStr, "manufactureDate")
	if err != nil {
		return err
	}
	expiryDate, err := parseDateString(expiryDateStr, "expiryDate")
	if err != nil {
		return err
	}
	if !expiryDate.After(manufactureDate) {
		return model.NewError(model.KindInvalidDate, "expiryDate %s must be after manufactureDate %s",
			expiryDate.Format(time.RFC3339), manufactureDate.Format(time.RFC3339))
	}

	record, entry, err := s.newAsset(ctx, caller, assetID, commercialName, batchNumber, manufactureDate, expiryDate)
	if err != nil {
		return fmt.Errorf("CreateAsset: %w", err)
	}
	if err := s.putAsset(ctx, record); err != nil {
		return fmt.Errorf("CreateAsset: %w", err)
	}
	s.emitAssetEvent(ctx, EventAssetCreated, record, entry)
	logger.Infof("CreateAsset: Asset '%s' (%s, batch %s) created by '%s'", assetID, commercialName, batchNumber, caller.Principal)
	return nil
}

// newAsset builds a CREATED record owned by caller, with its first history entry.
func (s *PharmaLedgerContract) newAsset(ctx contractapi.TransactionContextInterface, caller model.Caller,
	assetID, commercialName, batchNumber string, manufactureDate, expiryDate time.Time) (*model.AssetRecord, model.HistoryEntry, error) {
	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return nil, model.HistoryEntry{}, err
	}
	entry := newHistoryEntry(ctx, caller, assetID, model.ActionCreated, model.LocationProductionPlant, now)
	record := &model.AssetRecord{
		RecordType:      model.AssetRecordType,
		AssetID:         assetID,
		CommercialName:  commercialName,
		BatchNumber:     batchNumber,
		ManufactureDate: manufactureDate,
		ExpiryDate:      expiryDate,
		State:           model.StateCreated,
		CurrentOwnerID:  caller.Principal,
		CustodyHistory:  []model.HistoryEntry{},
	}
	record.AppendHistory(entry)
	return record, entry, nil
}

// Transfer hands custody to newOwnerID, which must hold the role the next leg requires.
func (s *PharmaLedgerContract) Transfer(ctx contractapi.TransactionContextInterface, assetID, newOwnerID string) (err error) {
	start := time.Now()
	defer func() { metrics.Observe("Transfer", start, err) }()

	if err := validateIdentifier(assetID, "assetID"); err != nil {
		return err
	}
	if err := validateIdentifier(newOwnerID, "newOwnerID"); err != nil {
		return err
	}
	caller, record, t, err := s.prepareTransition(ctx, OpTransfer, assetID)
	if err != nil {
		return err
	}

	recipient := model.PrincipalID(newOwnerID)
	if org := s.directory.OrganizationOf(recipient); !acceptsCustody(org, t.recipient) {
		return model.NewError(model.KindInvalidRecipient,
			"'%s' (%s) cannot take custody of asset '%s': the %s leg requires organization %s",
			newOwnerID, org, assetID, t.action, t.recipient)
	}

	previousOwner := record.CurrentOwnerID
	record.CurrentOwnerID = recipient
	entry, err := s.commitTransition(ctx, caller, record, t, t.action, model.LocationInTransit, EventAssetTransferred)
	if err != nil {
		return fmt.Errorf("Transfer: %w", err)
	}
	logger.Infof("Transfer: Asset '%s' handed from '%s' to '%s' (%s, event %s)", assetID, previousOwner, recipient, record.State, entry.EventID)
	return nil
}

// Receive confirms arrival of an asset in transit at location. Ownership is unchanged.
func (s *PharmaLedgerContract) Receive(ctx contractapi.TransactionContextInterface, assetID, location string) (err error) {
	start := time.Now()
	defer func() { metrics.Observe("Receive", start, err) }()

	if err := validateIdentifier(assetID, "assetID"); err != nil {
		return err
	}
	if err := validateRequiredString(location, "location", maxLocationLength); err != nil {
		return err
	}
	caller, record, t, err := s.prepareTransition(ctx, OpReceive, assetID)
	if err != nil {
		return err
	}

	if _, err := s.commitTransition(ctx, caller, record, t, t.action, location, EventAssetReceived); err != nil {
		return fmt.Errorf("Receive: %w", err)
	}
	logger.Infof("Receive: Asset '%s' received by '%s' at '%s' (%s)", assetID, caller.Principal, location, record.State)
	return nil
}

// Dispense releases the asset to a patient. The asset must not be past its expiry
// date at the transaction timestamp.
func (s *PharmaLedgerContract) Dispense(ctx contractapi.TransactionContextInterface, assetID, patientID string) (err error) {
	start := time.Now()
	defer func() { metrics.Observe("Dispense", start, err) }()

	if err := validateIdentifier(assetID, "assetID"); err != nil {
		return err
	}
	if err := validateRequiredString(patientID, "patientID", maxStringInputLength); err != nil {
		return err
	}
	caller, record, t, err := s.prepareTransition(ctx, OpDispense, assetID)
	if err != nil {
		return err
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("Dispense: %w", err)
	}
	if now.After(record.ExpiryDate) {
		return model.NewError(model.KindExpiredAsset, "asset '%s' expired on %s",
			assetID, record.ExpiryDate.Format(time.RFC3339))
	}

	record.CurrentOwnerID = model.PatientPrincipal
	action := fmt.Sprintf("%s (patient=%s)", t.action, patientID)
	if _, err := s.commitTransition(ctx, caller, record, t, action, model.LocationHospitalPharmacy, EventAssetDispensed); err != nil {
		return fmt.Errorf("Dispense: %w", err)
	}
	logger.Infof("Dispense: Asset '%s' dispensed by '%s' to patient '%s'", assetID, caller.Principal, patientID)
	return nil
}

// prepareTransition runs the existence, authorization and state checks shared by
// Transfer, Receive and Dispense.
func (s *PharmaLedgerContract) prepareTransition(ctx contractapi.TransactionContextInterface, op Operation, assetID string) (model.Caller, *model.AssetRecord, transition, error) {
	record, err := s.getAssetByID(ctx, assetID)
	if err != nil {
		return model.Caller{}, nil, transition{}, err
	}
	caller, err := s.resolveCaller(ctx)
	if err != nil {
		return model.Caller{}, nil, transition{}, err
	}
	if err := authorize(op, caller, record); err != nil {
		return model.Caller{}, nil, transition{}, err
	}
	t, err := next(record.State, op)
	if err != nil {
		return model.Caller{}, nil, transition{}, err
	}
	return caller, record, t, nil
}

// commitTransition moves record to t.to, appends one history entry, writes the
// record and emits eventName.
func (s *PharmaLedgerContract) commitTransition(ctx contractapi.TransactionContextInterface, caller model.Caller,
	record *model.AssetRecord, t transition, action, location, eventName string) (model.HistoryEntry, error) {
	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return model.HistoryEntry{}, err
	}
	entry := newHistoryEntry(ctx, caller, record.AssetID, action, location, now)
	record.State = t.to
	record.AppendHistory(entry)
	if err := s.putAsset(ctx, record); err != nil {
		return model.HistoryEntry{}, err
	}
	s.emitAssetEvent(ctx, eventName, record, entry)
	return entry, nil
}

// seedAssets are written by InitLedger.
var seedAssets = []struct {
	id, name, batch, manufactured, expires string
}{
	{"MED-1001", "DrogaOncologica-A", "LOTE-001", "2025-01-10T10:00:00Z", "2027-01-10T10:00:00Z"},
	{"MED-1002", "DrogaOncologica-B", "LOTE-002", "2025-02-15T10:00:00Z", "2027-02-15T10:00:00Z"},
}

// InitLedger seeds demo assets owned by the calling manufacturer. Assets that
// already exist are left untouched.
func (s *PharmaLedgerContract) InitLedger(ctx contractapi.TransactionContextInterface) (err error) {
	start := time.Now()
	defer func() { metrics.Observe("InitLedger", start, err) }()

	caller, err := s.resolveCaller(ctx)
	if err != nil {
		return err
	}
	if err := authorize(OpCreate, caller, nil); err != nil {
		return err
	}

	seeded := []string{}
	for _, seed := range seedAssets {
		exists, err := s.assetExists(ctx, seed.id)
		if err != nil {
			return fmt.Errorf("InitLedger: %w", err)
		}
		if exists {
			logger.Infof("InitLedger: Asset '%s' already present, skipping", seed.id)
			continue
		}
		mfg, err := parseDateString(seed.manufactured, "manufactureDate")
		if err != nil {
			return err
		}
		exp, err := parseDateString(seed.expires, "expiryDate")
		if err != nil {
			return err
		}
		record, _, err := s.newAsset(ctx, caller, seed.id, seed.name, seed.batch, mfg, exp)
		if err != nil {
			return fmt.Errorf("InitLedger: %w", err)
		}
		if err := s.putAsset(ctx, record); err != nil {
			return fmt.Errorf("InitLedger: %w", err)
		}
		seeded = append(seeded, seed.id)
	}
	if len(seeded) > 0 {
		s.setEvent(ctx, EventLedgerSeeded, "ledger", map[string]interface{}{
			"assetIDs": seeded,
			"owner":    caller.Principal,
			"txId":     ctx.GetStub().GetTxID(),
		})
	}
	logger.Infof("InitLedger: Seeded %d asset(s) for '%s'", len(seeded), caller.Principal)
	return nil
}
