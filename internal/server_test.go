package internal

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"windcave/entity"
)

func newTestServer(payments *mockPayments, db *mockDatabase) (*Server, *httprouter.Router) {
	server := NewServer(testConfig())
	server.SetLogger(&testLogger{})
	server.SetPaymentsService(payments)
	server.SetDatabase(db)
	server.SetStateMachine(&mockStates{db: db})
	server.SetCredentials(NewConfigCredentials(testConfig()))

	router := httprouter.New()
	server.Register(router)
	return server, router
}

func TestNotifyHandler(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		outcome    *entity.Outcome
		outcomeErr error
		wantStatus int
	}{
		{
			name:       "confirmed",
			target:     "/notify?sessionId=S1",
			outcome:    &entity.Outcome{Success: true},
			wantStatus: http.StatusOK,
		},
		{
			name:       "already processed answers ok to stop retries",
			target:     "/notify?sessionId=S1",
			outcome:    &entity.Outcome{Success: true, AlreadyProcessed: true},
			wantStatus: http.StatusOK,
		},
		{
			name:       "legacy transactionId parameter",
			target:     "/notify?transactionId=S1",
			outcome:    &entity.Outcome{Success: true},
			wantStatus: http.StatusOK,
		},
		{
			name:       "decline keeps the retry alive",
			target:     "/notify?sessionId=S1",
			outcome:    &entity.Outcome{Success: false, Message: "declined"},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "unknown session",
			target:     "/notify?sessionId=S1",
			outcomeErr: entity.ErrTransactionNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "gateway transport failure",
			target:     "/notify?sessionId=S1",
			outcomeErr: &entity.RequestError{Status: 503, Body: "unavailable"},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "missing session id",
			target:     "/notify",
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payments := &mockPayments{outcome: tc.outcome, outcomeErr: tc.outcomeErr}
			_, router := newTestServer(payments, newMockDatabase())

			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, tc.target, nil))
			assert.Equal(t, tc.wantStatus, recorder.Code)
		})
	}
}

func TestNotifyHandler_GetAlsoAccepted(t *testing.T) {
	payments := &mockPayments{outcome: &entity.Outcome{Success: true}}
	_, router := newTestServer(payments, newMockDatabase())

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/notify?sessionId=S1", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, []string{"S1"}, payments.notifyCalls)
}

func TestReturnHandler_RedirectsWithSession(t *testing.T) {
	_, router := newTestServer(&mockPayments{}, newMockDatabase())

	recorder := httptest.NewRecorder()
	target := "/return/success?returnUrl=https%3A%2F%2Fshop.example%2Fcheckout&result=S1"
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, target, nil))

	assert.Equal(t, http.StatusFound, recorder.Code)
	assert.Equal(t, "https://shop.example/checkout?sessionId=S1", recorder.Header().Get("Location"))
}

func TestReturnHandler_ResolvesRecordedUrlByOrder(t *testing.T) {
	record := &entity.TransactionRecord{
		Id:      "tx-1",
		OrderId: "order-1",
		Metadata: entity.Metadata{
			ReturnUrl: "https://shop.example/checkout?step=pay",
		},
	}
	_, router := newTestServer(&mockPayments{}, newMockDatabase(record))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/return/fail?orderId=order-1&result=S1", nil))

	assert.Equal(t, http.StatusFound, recorder.Code)
	assert.Equal(t, "https://shop.example/checkout?step=pay&sessionId=S1", recorder.Header().Get("Location"))
}

func TestReturnHandler_FallbackWhenNothingResolves(t *testing.T) {
	_, router := newTestServer(&mockPayments{}, newMockDatabase())

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/return?result=S1", nil))

	assert.Equal(t, http.StatusFound, recorder.Code)
	assert.Equal(t, "/", recorder.Header().Get("Location"))
}

func TestStartPaymentHandler(t *testing.T) {
	payments := &mockPayments{
		session: entity.NewDropInSession("S1", []entity.Link{{Rel: "hpp", Href: "https://uat.windcave.com/hpp"}}),
	}
	_, router := newTestServer(payments, newMockDatabase())

	body := bytes.NewBufferString(`{"returnUrl": "https://shop.example/checkout"}`)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/pay/tx-1", body))

	require.Equal(t, http.StatusCreated, recorder.Code)
	var session entity.DropInSession
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &session))
	assert.Equal(t, "S1", session.Id)
	assert.Equal(t, "https://uat.windcave.com/hpp", session.HppUrl)
}

func TestStartPaymentHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "unknown transaction", err: entity.ErrTransactionNotFound, wantStatus: http.StatusNotFound},
		{name: "not configured", err: entity.ErrNotConfigured, wantStatus: http.StatusServiceUnavailable},
		{name: "gateway rejects", err: &entity.RequestError{Status: 401}, wantStatus: http.StatusBadGateway},
		{name: "malformed answer", err: &entity.MalformedError{Reason: "no links"}, wantStatus: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, router := newTestServer(&mockPayments{sessionErr: tc.err}, newMockDatabase())

			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/pay/tx-1", nil))
			assert.Equal(t, tc.wantStatus, recorder.Code)
		})
	}
}

func TestFinalizeHandler(t *testing.T) {
	payments := &mockPayments{outcome: &entity.Outcome{Success: true, Message: "payment confirmed"}}
	_, router := newTestServer(payments, newMockDatabase())

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/finalize/tx-1?result=S1", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	var outcome entity.Outcome
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &outcome))
	assert.True(t, outcome.Success)
}

func TestFinalizeHandler_SessionFromBody(t *testing.T) {
	payments := &mockPayments{outcome: &entity.Outcome{Success: true}}
	_, router := newTestServer(payments, newMockDatabase())

	body := bytes.NewBufferString(`{"sessionId": "S1"}`)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/inline/tx-1", body))
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestFinalizeHandler_MissingSession(t *testing.T) {
	_, router := newTestServer(&mockPayments{}, newMockDatabase())

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/finalize/tx-1", nil))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestStateTransitionHandler(t *testing.T) {
	record := &entity.TransactionRecord{Id: "tx-1", State: entity.StatePending}
	db := newMockDatabase(record)
	_, router := newTestServer(&mockPayments{}, db)

	body := bytes.NewBufferString(`{"state": "paid"}`)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/transition/tx-1", body))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, entity.StatePaid, db.records["tx-1"].State)
}

func TestStateTransitionHandler_UnknownTransaction(t *testing.T) {
	_, router := newTestServer(&mockPayments{}, newMockDatabase())

	body := bytes.NewBufferString(`{"state": "paid"}`)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/transition/tx-1", body))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestCreateOrderHandler(t *testing.T) {
	db := newMockDatabase()
	_, router := newTestServer(&mockPayments{}, db)

	body := bytes.NewBufferString(`{
		"transaction_id": "tx-1",
		"order_id": "order-1",
		"order_number": "ORD-100",
		"amount": 25.0,
		"currency": "NZD"
	}`)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/orders", body))

	require.Equal(t, http.StatusCreated, recorder.Code)
	require.Contains(t, db.records, "tx-1")
	assert.Equal(t, entity.StatePending, db.records["tx-1"].State)
}

func TestCreateOrderHandler_RejectsMissingId(t *testing.T) {
	_, router := newTestServer(&mockPayments{}, newMockDatabase())

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRefundHandler(t *testing.T) {
	payments := &mockPayments{
		refundResult: &entity.GatewayResult{Success: true, TransactionId: "R1"},
	}
	_, router := newTestServer(payments, newMockDatabase())

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/refund/tx-1", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, []string{"tx-1"}, payments.refundCalls)
}

func TestDropInDataHandler(t *testing.T) {
	payments := &mockPayments{
		dropIn: &entity.DropInData{SessionId: "S1", Currency: "NZD", TestMode: true},
	}
	_, router := newTestServer(payments, newMockDatabase())

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/dropin/tx-1", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	var data entity.DropInData
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &data))
	assert.Equal(t, "S1", data.SessionId)
	assert.True(t, data.TestMode)
}
