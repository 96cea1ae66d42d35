package contract

import (
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"pharmaledger/model"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// fakeStub is an in-memory world state implementing the part of
// shim.ChaincodeStubInterface the contract uses. Calling anything else panics on
// the nil embedded interface.
type fakeStub struct {
	shim.ChaincodeStubInterface

	state   map[string][]byte
	history map[string][]*queryresult.KeyModification // Commit order, oldest first

	txID   string
	txTime time.Time

	events    []string // Names in emission order
	lastEvent []byte

	richQueryUnsupported bool
	historyFailAfter     int // Fail Next() after this many items; 0 disables
	queryFailAfter       int // Same, for state and query iterators
	lastHistoryIter      *historyIterator
}

func newFakeStub() *fakeStub {
	return &fakeStub{
		state:   map[string][]byte{},
		history: map[string][]*queryresult.KeyModification{},
	}
}

func (f *fakeStub) beginTx(txID string, ts time.Time) {
	f.txID = txID
	f.txTime = ts
}

func (f *fakeStub) GetTxID() string { return f.txID }

func (f *fakeStub) GetTxTimestamp() (*timestamppb.Timestamp, error) {
	return timestamppb.New(f.txTime), nil
}

func (f *fakeStub) GetState(key string) ([]byte, error) {
	return f.state[key], nil
}

func (f *fakeStub) PutState(key string, value []byte) error {
	if key == "" {
		return errors.New("empty key")
	}
	f.state[key] = value
	f.recordVersion(key, value, false)
	return nil
}

func (f *fakeStub) recordVersion(key string, value []byte, isDelete bool) {
	f.history[key] = append(f.history[key], &queryresult.KeyModification{
		TxId:      f.txID,
		Value:     value,
		Timestamp: timestamppb.New(f.txTime),
		IsDelete:  isDelete,
	})
}

// markDeleted simulates a DelState committed in the current transaction.
func (f *fakeStub) markDeleted(key string) {
	delete(f.state, key)
	f.recordVersion(key, nil, true)
}

func (f *fakeStub) SetEvent(name string, payload []byte) error {
	f.events = append(f.events, name)
	f.lastEvent = payload
	return nil
}

// GetHistoryForKey returns versions newest first, as a peer does.
func (f *fakeStub) GetHistoryForKey(key string) (shim.HistoryQueryIteratorInterface, error) {
	versions := f.history[key]
	items := make([]*queryresult.KeyModification, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		items = append(items, versions[i])
	}
	it := &historyIterator{items: items, failAfter: f.historyFailAfter}
	f.lastHistoryIter = it
	return it, nil
}

func (f *fakeStub) sortedKeys() []string {
	keys := make([]string, 0, len(f.state))
	for k := range f.state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeStub) GetStateByRange(startKey, endKey string) (shim.StateQueryIteratorInterface, error) {
	it, _ := f.page(nil, 0, "")
	return it, nil
}

func (f *fakeStub) GetStateByRangeWithPagination(startKey, endKey string, pageSize int32, bookmark string) (shim.StateQueryIteratorInterface, *pb.QueryResponseMetadata, error) {
	it, meta := f.page(nil, pageSize, bookmark)
	return it, meta, nil
}

func (f *fakeStub) GetQueryResult(query string) (shim.StateQueryIteratorInterface, error) {
	if f.richQueryUnsupported {
		return nil, errors.New("ExecuteQuery not supported for leveldb")
	}
	sel, err := parseSelector(query)
	if err != nil {
		return nil, err
	}
	it, _ := f.page(sel, 0, "")
	return it, nil
}

func (f *fakeStub) GetQueryResultWithPagination(query string, pageSize int32, bookmark string) (shim.StateQueryIteratorInterface, *pb.QueryResponseMetadata, error) {
	if f.richQueryUnsupported {
		return nil, nil, errors.New("ExecuteQuery not supported for leveldb")
	}
	sel, err := parseSelector(query)
	if err != nil {
		return nil, nil, err
	}
	it, meta := f.page(sel, pageSize, bookmark)
	return it, meta, nil
}

// page returns the documents matching sel after bookmark, at most pageSize of them
// (all when pageSize is 0). The bookmark is the last key returned.
func (f *fakeStub) page(sel map[string]interface{}, pageSize int32, bookmark string) (*kvIterator, *pb.QueryResponseMetadata) {
	items := []*queryresult.KV{}
	last := ""
	for _, k := range f.sortedKeys() {
		if bookmark != "" && k <= bookmark {
			continue
		}
		if sel != nil && !selectorMatches(sel, f.state[k]) {
			continue
		}
		if pageSize > 0 && int32(len(items)) == pageSize {
			break
		}
		items = append(items, &queryresult.KV{Key: k, Value: f.state[k]})
		last = k
	}
	return &kvIterator{items: items, failAfter: f.queryFailAfter}, &pb.QueryResponseMetadata{FetchedRecordsCount: int32(len(items)), Bookmark: last}
}

func parseSelector(query string) (map[string]interface{}, error) {
	var q struct {
		Selector map[string]interface{} `json:"selector"`
	}
	if err := json.Unmarshal([]byte(query), &q); err != nil {
		return nil, fmt.Errorf("bad query %q: %w", query, err)
	}
	return q.Selector, nil
}

// selectorMatches supports equality selectors only, like the ones the contract builds.
func selectorMatches(sel map[string]interface{}, doc []byte) bool {
	var fields map[string]interface{}
	if err := json.Unmarshal(doc, &fields); err != nil {
		return false // CouchDB never matches a non-JSON value
	}
	for k, v := range sel {
		if fmt.Sprint(fields[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

type kvIterator struct {
	items     []*queryresult.KV
	pos       int
	failAfter int
	closed    bool
}

func (it *kvIterator) HasNext() bool { return it.pos < len(it.items) }

func (it *kvIterator) Next() (*queryresult.KV, error) {
	if it.failAfter > 0 && it.pos >= it.failAfter {
		return nil, errors.New("query stream interrupted")
	}
	if !it.HasNext() {
		return nil, errors.New("iterator exhausted")
	}
	kv := it.items[it.pos]
	it.pos++
	return kv, nil
}

func (it *kvIterator) Close() error {
	it.closed = true
	return nil
}

type historyIterator struct {
	items     []*queryresult.KeyModification
	pos       int
	failAfter int
	closed    bool
}

func (it *historyIterator) HasNext() bool { return it.pos < len(it.items) }

func (it *historyIterator) Next() (*queryresult.KeyModification, error) {
	if it.failAfter > 0 && it.pos >= it.failAfter {
		return nil, errors.New("history stream interrupted")
	}
	if !it.HasNext() {
		return nil, errors.New("iterator exhausted")
	}
	m := it.items[it.pos]
	it.pos++
	return m, nil
}

func (it *historyIterator) Close() error {
	it.closed = true
	return nil
}

// mockClientIdentity implements cid.ClientIdentity with testify/mock.
type mockClientIdentity struct {
	mock.Mock
}

func (m *mockClientIdentity) GetID() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *mockClientIdentity) GetMSPID() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *mockClientIdentity) GetAttributeValue(attrName string) (string, bool, error) {
	args := m.Called(attrName)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockClientIdentity) AssertAttributeValue(attrName, attrValue string) error {
	args := m.Called(attrName, attrValue)
	return args.Error(0)
}

func (m *mockClientIdentity) GetX509Certificate() (*x509.Certificate, error) {
	args := m.Called()
	cert, _ := args.Get(0).(*x509.Certificate)
	return cert, args.Error(1)
}

func newIdentity(msp string) *mockClientIdentity {
	id := &mockClientIdentity{}
	id.On("GetMSPID").Return(msp, nil).Maybe()
	id.On("GetID").Return("x509::CN=user1::"+msp, nil).Maybe()
	return id
}

// harness runs transactions against a fakeStub, one tx per call to as, with the
// transaction clock advancing one hour each time.
type harness struct {
	t        *testing.T
	stub     *fakeStub
	contract *PharmaLedgerContract
	clock    time.Time
	txCount  int
}

var testEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func testDirectory(t *testing.T) *model.Directory {
	t.Helper()
	dir, err := model.NewDirectory(map[model.Organization][]string{
		model.OrgManufacturer:   {"Org1MSP"},
		model.OrgHealthProvider: {"Org2MSP"},
		model.OrgLogistics:      {"Org3MSP"},
		model.OrgRegulator:      {"Org4MSP"},
	})
	require.NoError(t, err)
	return dir
}

func newHarness(t *testing.T) *harness {
	return &harness{
		t:        t,
		stub:     newFakeStub(),
		contract: NewPharmaLedgerContract(testDirectory(t)),
		clock:    testEpoch,
	}
}

// as starts a new transaction submitted by msp.
func (h *harness) as(msp string) contractapi.TransactionContextInterface {
	return h.withIdentity(newIdentity(msp))
}

func (h *harness) withIdentity(id *mockClientIdentity) contractapi.TransactionContextInterface {
	h.txCount++
	h.stub.beginTx(fmt.Sprintf("tx-%03d", h.txCount), h.clock)
	h.clock = h.clock.Add(time.Hour)
	ctx := new(contractapi.TransactionContext)
	ctx.SetStub(h.stub)
	ctx.SetClientIdentity(id)
	return ctx
}

// seed writes a record directly, bypassing the contract, in a transaction of its own.
func (h *harness) seed(rec *model.AssetRecord) {
	h.t.Helper()
	h.txCount++
	h.stub.beginTx(fmt.Sprintf("seed-%03d", h.txCount), h.clock)
	data, err := model.Serialize(rec)
	require.NoError(h.t, err)
	require.NoError(h.t, h.stub.PutState(rec.AssetID, data))
}

func (h *harness) seedRaw(key string, data []byte) {
	h.t.Helper()
	h.txCount++
	h.stub.beginTx(fmt.Sprintf("seed-%03d", h.txCount), h.clock)
	require.NoError(h.t, h.stub.PutState(key, data))
}

func (h *harness) record(assetID string) *model.AssetRecord {
	h.t.Helper()
	rec, err := model.Deserialize(h.stub.state[assetID])
	require.NoError(h.t, err)
	return rec
}

func seededRecord(id string, state model.State, owner model.PrincipalID, expiry time.Time) *model.AssetRecord {
	return &model.AssetRecord{
		RecordType:      model.AssetRecordType,
		AssetID:         id,
		CommercialName:  "Oncoplatin",
		BatchNumber:     "LOT-9",
		ManufactureDate: testEpoch.AddDate(-1, 0, 0),
		ExpiryDate:      expiry,
		State:           state,
		CurrentOwnerID:  owner,
		CustodyHistory: []model.HistoryEntry{
			{Timestamp: testEpoch.AddDate(-1, 0, 0), Actor: "Org1MSP", Action: model.ActionCreated, Location: model.LocationProductionPlant},
		},
	}
}
