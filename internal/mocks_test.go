package internal

import (
	"context"
	"fmt"

	"windcave/config"
	"windcave/entity"
	"windcave/services"
)

// testLogger swallows everything; handler behaviour under test never
// depends on log output.
type testLogger struct{}

func (l *testLogger) Debug(string)        {}
func (l *testLogger) Info(string)         {}
func (l *testLogger) Warn(string)         {}
func (l *testLogger) Error(string, error) {}

// mockDatabase is an in-memory services.Database with call counters.
type mockDatabase struct {
	records map[string]*entity.TransactionRecord
	tokens  map[string]string

	metadataUpdates int
	failUpdates     bool
}

func newMockDatabase(records ...*entity.TransactionRecord) *mockDatabase {
	db := &mockDatabase{
		records: make(map[string]*entity.TransactionRecord),
		tokens:  make(map[string]string),
	}
	for _, record := range records {
		db.records[record.Id] = record
	}
	return db
}

func (m *mockDatabase) WriteLogMessage(services.Data) error {
	return nil
}

func (m *mockDatabase) GetTransaction(_ context.Context, id string) (*entity.TransactionRecord, error) {
	record, ok := m.records[id]
	if !ok {
		return nil, entity.ErrTransactionNotFound
	}
	return record, nil
}

func (m *mockDatabase) SaveTransaction(_ context.Context, record *entity.TransactionRecord) error {
	m.records[record.Id] = record
	return nil
}

func (m *mockDatabase) UpdateTransactionMetadata(_ context.Context, id string, patch entity.Metadata) error {
	if m.failUpdates {
		return fmt.Errorf("metadata update rejected")
	}
	record, ok := m.records[id]
	if !ok {
		return entity.ErrTransactionNotFound
	}
	record.Metadata.Merge(patch)
	m.metadataUpdates++
	return nil
}

func (m *mockDatabase) FindTransactionByMetadata(_ context.Context, field, value string) (*entity.TransactionRecord, error) {
	for _, record := range m.records {
		switch field {
		case entity.MetaFieldSessionId:
			if record.Metadata.SessionId == value {
				return record, nil
			}
		case entity.MetaFieldDropInSessionId:
			if record.Metadata.DropInSession != nil && record.Metadata.DropInSession.Id == value {
				return record, nil
			}
		}
	}
	return nil, nil
}

func (m *mockDatabase) GetTransactionByOrder(_ context.Context, orderId string) (*entity.TransactionRecord, error) {
	for _, record := range m.records {
		if record.OrderId == orderId {
			return record, nil
		}
	}
	return nil, nil
}

func (m *mockDatabase) GetCustomerToken(_ context.Context, customerId string) (string, error) {
	return m.tokens[customerId], nil
}

func (m *mockDatabase) SaveCustomerToken(_ context.Context, customerId, token string) error {
	m.tokens[customerId] = token
	return nil
}

// mockStates applies requested transitions straight onto the shared record
// map, mirroring the no-op rule for repeated target states.
type mockStates struct {
	db          *mockDatabase
	transitions []string
}

func (m *mockStates) RequestTransition(_ context.Context, transactionId, targetState string) error {
	record, ok := m.db.records[transactionId]
	if !ok {
		return entity.ErrTransactionNotFound
	}
	if record.State == targetState {
		return nil
	}
	record.State = targetState
	m.transitions = append(m.transitions, transactionId+":"+targetState)
	return nil
}

// mockGateway returns canned answers and counts every network-facing call.
type mockGateway struct {
	session    *entity.DropInSession
	sessionErr error

	result   *entity.GatewayResult
	fetchErr error

	refundResult *entity.GatewayResult
	refundErr    error

	createCalls int
	fetchCalls  int
	refundCalls int
	voidCalls   int

	lastAmount   string
	lastCurrency string
}

func (m *mockGateway) CreateSession(_ context.Context, _ *entity.SessionRequest) (*entity.DropInSession, error) {
	m.createCalls++
	return m.session, m.sessionErr
}

func (m *mockGateway) FetchResult(_ context.Context, _ string, _ entity.Credentials) (*entity.GatewayResult, error) {
	m.fetchCalls++
	return m.result, m.fetchErr
}

func (m *mockGateway) Refund(_ context.Context, _, amount, currency string, _ entity.Credentials) (*entity.GatewayResult, error) {
	m.refundCalls++
	m.lastAmount = amount
	m.lastCurrency = currency
	return m.refundResult, m.refundErr
}

func (m *mockGateway) Void(_ context.Context, _, amount, currency string, _ entity.Credentials) (*entity.GatewayResult, error) {
	m.voidCalls++
	m.lastAmount = amount
	m.lastCurrency = currency
	return m.refundResult, m.refundErr
}

func (m *mockGateway) TestCredentials(_ context.Context, _ entity.Credentials) (*entity.CredentialTest, error) {
	return &entity.CredentialTest{Success: true}, nil
}

// mockPayments returns canned answers and records every dispatch.
type mockPayments struct {
	session    *entity.DropInSession
	sessionErr error

	outcome    *entity.Outcome
	outcomeErr error

	refundResult *entity.GatewayResult
	refundErr    error

	dropIn    *entity.DropInData
	dropInErr error

	notifyCalls []string
	refundCalls []string
	voidCalls   []string
}

func (m *mockPayments) StartPayment(_ context.Context, _, _ string) (*entity.DropInSession, error) {
	return m.session, m.sessionErr
}

func (m *mockPayments) Notify(_ context.Context, sessionId string) (*entity.Outcome, error) {
	m.notifyCalls = append(m.notifyCalls, sessionId)
	return m.outcome, m.outcomeErr
}

func (m *mockPayments) Finalize(context.Context, string, string) (*entity.Outcome, error) {
	return m.outcome, m.outcomeErr
}

func (m *mockPayments) InlineComplete(context.Context, string, string) (*entity.Outcome, error) {
	return m.outcome, m.outcomeErr
}

func (m *mockPayments) Refund(_ context.Context, transactionId string) (*entity.GatewayResult, error) {
	m.refundCalls = append(m.refundCalls, transactionId)
	return m.refundResult, m.refundErr
}

func (m *mockPayments) Void(_ context.Context, transactionId string) (*entity.GatewayResult, error) {
	m.voidCalls = append(m.voidCalls, transactionId)
	return m.refundResult, m.refundErr
}

func (m *mockPayments) DropInData(context.Context, string) (*entity.DropInData, error) {
	return m.dropIn, m.dropInErr
}

func testConfig() *config.Config {
	conf := &config.Config{}
	conf.PublicUrl = "https://pay.example"
	conf.Merchant.Username = "merchant"
	conf.Merchant.ApiKey = "topsecret"
	conf.Merchant.TestMode = true
	conf.Merchant.LiveUrl = "https://sec.windcave.com"
	conf.Merchant.TestUrl = "https://uat.windcave.com"
	conf.Merchant.IndicatorInitial = entity.IndicatorInitial
	conf.Merchant.IndicatorRecurring = entity.IndicatorRecurring
	return conf
}
