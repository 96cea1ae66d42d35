package contract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pharmaledger/metrics"
	"pharmaledger/model"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// AssetPage is one page of ConsultarMedicamentosPaginado.
type AssetPage struct {
	Records      []*model.AssetRecord `json:"records"`
	NextBookmark string               `json:"nextBookmark"`
	FetchedCount int32                `json:"fetchedCount"`
}

// assetFilter narrows a listing. Empty fields match everything.
type assetFilter struct {
	state model.State
	owner model.PrincipalID
}

// selector renders the CouchDB query for f.
func (f assetFilter) selector() string {
	sel := map[string]interface{}{"docType": model.AssetRecordType}
	if f.state != "" {
		sel["state"] = f.state
	}
	if f.owner != "" {
		sel["currentOwnerID"] = f.owner
	}
	q, _ := json.Marshal(map[string]interface{}{"selector": sel})
	return string(q)
}

// matches applies f in memory, for the range-scan fallback.
func (f assetFilter) matches(r *model.AssetRecord) bool {
	if r.RecordType != model.AssetRecordType {
		return false
	}
	if f.state != "" && r.State != f.state {
		return false
	}
	if f.owner != "" && r.CurrentOwnerID != f.owner {
		return false
	}
	return true
}

// ConsultarActivo returns the stored asset as JSON.
func (s *PharmaLedgerContract) ConsultarActivo(ctx contractapi.TransactionContextInterface, assetID string) (result string, err error) {
	start := time.Now()
	defer func() { metrics.Observe("ConsultarActivo", start, err) }()

	if err := validateIdentifier(assetID, "assetID"); err != nil {
		return "", err
	}
	logger.Debugf("ConsultarActivo: Querying asset '%s'", assetID)
	record, err := s.getAssetByID(ctx, assetID)
	if err != nil {
		return "", err
	}
	out, err := model.Serialize(record)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ExisteActivo reports whether an asset is stored under assetID.
func (s *PharmaLedgerContract) ExisteActivo(ctx contractapi.TransactionContextInterface, assetID string) (exists bool, err error) {
	start := time.Now()
	defer func() { metrics.Observe("ExisteActivo", start, err) }()

	if err := validateIdentifier(assetID, "assetID"); err != nil {
		return false, err
	}
	return s.assetExists(ctx, assetID)
}

// ConsultarTodosLosMedicamentos lists every stored asset.
func (s *PharmaLedgerContract) ConsultarTodosLosMedicamentos(ctx contractapi.TransactionContextInterface) (result string, err error) {
	start := time.Now()
	defer func() { metrics.Observe("ConsultarTodosLosMedicamentos", start, err) }()
	return s.listAssets(ctx, "ConsultarTodosLosMedicamentos", assetFilter{})
}

// ConsultarPorEstado lists the assets currently in the given state.
func (s *PharmaLedgerContract) ConsultarPorEstado(ctx contractapi.TransactionContextInterface, state string) (result string, err error) {
	start := time.Now()
	defer func() { metrics.Observe("ConsultarPorEstado", start, err) }()

	st, err := model.ParseState(state)
	if err != nil {
		return "", err
	}
	return s.listAssets(ctx, "ConsultarPorEstado", assetFilter{state: st})
}

// ConsultarPorPropietario lists the assets held by ownerID.
func (s *PharmaLedgerContract) ConsultarPorPropietario(ctx contractapi.TransactionContextInterface, ownerID string) (result string, err error) {
	start := time.Now()
	defer func() { metrics.Observe("ConsultarPorPropietario", start, err) }()

	if err := validateRequiredString(ownerID, "ownerID", maxStringInputLength); err != nil {
		return "", err
	}
	return s.listAssets(ctx, "ConsultarPorPropietario", assetFilter{owner: model.PrincipalID(strings.TrimSpace(ownerID))})
}

// ConsultarMedicamentosPaginado returns one page of assets. pageSize defaults to
// 10 and is capped at 100.
func (s *PharmaLedgerContract) ConsultarMedicamentosPaginado(ctx contractapi.TransactionContextInterface, pageSizeStr string, bookmark string) (result string, err error) {
	start := time.Now()
	defer func() { metrics.Observe("ConsultarMedicamentosPaginado", start, err) }()

	pageSize, err := strconv.ParseInt(strings.TrimSpace(pageSizeStr), 10, 32)
	if err != nil || pageSize <= 0 {
		logger.Debugf("ConsultarMedicamentosPaginado: Invalid pageSize '%s', using default of %d", pageSizeStr, defaultPageSize)
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		logger.Warningf("ConsultarMedicamentosPaginado: Requested pageSize %d exceeds max of %d. Capping.", pageSize, maxPageSize)
		pageSize = maxPageSize
	}

	filter := assetFilter{}
	stub := ctx.GetStub()
	page := &AssetPage{Records: []*model.AssetRecord{}}

	iter, meta, err := stub.GetQueryResultWithPagination(filter.selector(), int32(pageSize), bookmark)
	if err != nil {
		logger.Warningf("ConsultarMedicamentosPaginado: Rich query failed: %v. Falling back to range scan (SLOW).", err)
		var errScan error
		iter, meta, errScan = stub.GetStateByRangeWithPagination("", "", int32(pageSize), bookmark)
		if errScan != nil {
			return "", fmt.Errorf("ConsultarMedicamentosPaginado: rich query failed (%v) and range scan also failed: %w", err, errScan)
		}
	}
	defer iter.Close()

	page.Records, err = collectAssets(iter, filter, "ConsultarMedicamentosPaginado")
	if err != nil {
		return "", err
	}
	page.FetchedCount = int32(len(page.Records))
	page.NextBookmark = meta.GetBookmark()

	out, err := json.Marshal(page)
	if err != nil {
		return "", fmt.Errorf("ConsultarMedicamentosPaginado: failed to encode page: %w", err)
	}
	return string(out), nil
}

// listAssets runs the rich query for f and falls back to a full range scan when
// the state database does not support rich queries (LevelDB).
func (s *PharmaLedgerContract) listAssets(ctx contractapi.TransactionContextInterface, op string, f assetFilter) (string, error) {
	stub := ctx.GetStub()
	iter, err := stub.GetQueryResult(f.selector())
	if err != nil {
		logger.Warningf("%s: Rich query failed: %v. Falling back to range scan (SLOW).", op, err)
		var errScan error
		iter, errScan = stub.GetStateByRange("", "")
		if errScan != nil {
			return "", fmt.Errorf("%s: rich query failed (%v) and range scan also failed: %w", op, err, errScan)
		}
	}
	defer iter.Close()

	records, err := collectAssets(iter, f, op)
	if err != nil {
		return "", err
	}
	logger.Debugf("%s: Found %d asset(s)", op, len(records))
	out, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("%s: failed to encode results: %w", op, err)
	}
	return string(out), nil
}

// collectAssets decodes every matching result. Documents that fail to decode are
// skipped with a warning so one corrupt document does not hide the others. A
// failing iterator aborts the read.
func collectAssets(iter shim.StateQueryIteratorInterface, f assetFilter, op string) ([]*model.AssetRecord, error) {
	records := []*model.AssetRecord{}
	for iter.HasNext() {
		queryResponse, iterErr := iter.Next()
		if iterErr != nil {
			return nil, fmt.Errorf("%s: failed to iterate results: %w", op, iterErr)
		}
		// Range scans return every document in the namespace.
		if !model.IsAssetDocument(queryResponse.Value) {
			continue
		}
		record, err := model.Deserialize(queryResponse.Value)
		if err != nil {
			logger.Warningf("%s: Skipping key '%s': %v", op, queryResponse.Key, err)
			continue
		}
		if !f.matches(record) {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}
