package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"windcave/config"
	"windcave/entity"
	"windcave/services"
)

const (
	startPayment     = "/pay/:transaction_id"
	finalizePayment  = "/finalize/:transaction_id"
	inlinePayment    = "/inline/:transaction_id"
	dropInData       = "/dropin/:transaction_id"
	refundPayment    = "/refund/:transaction_id"
	voidPayment      = "/void/:transaction_id"
	stateTransition  = "/transition/:transaction_id"
	createOrder      = "/orders"
	paymentNotify    = "/notify"
	paymentReturn    = "/return"
	returnSuccess    = "/return/success"
	returnFail       = "/return/fail"
	testCredentials  = "/api/test-credentials"
	metricsEndpoint  = "/metrics"
	fallbackLocation = "/"
)

type Server struct {
	conf        *config.Config
	httpServer  *http.Server
	payments    services.Payments
	gateway     services.Gateway
	credentials services.ConfigProvider
	states      services.StateMachine
	database    services.Database
	logger      services.LogHandler
}

func NewServer(conf *config.Config) *Server {

	server := Server{
		conf: conf,
	}

	// register itself as a router for httpServer handler
	router := httprouter.New()
	server.Register(router)
	server.httpServer = &http.Server{
		Handler: router,
	}

	return &server
}

func (s *Server) Register(router *httprouter.Router) {
	router.POST(startPayment, s.startPayment)
	router.POST(finalizePayment, s.finalizePayment)
	router.POST(inlinePayment, s.inlinePayment)
	router.GET(dropInData, s.dropInData)
	router.POST(refundPayment, s.refundPayment)
	router.POST(voidPayment, s.voidPayment)
	router.POST(stateTransition, s.stateTransition)
	router.POST(createOrder, s.createOrder)
	router.GET(paymentNotify, s.paymentNotify)
	router.POST(paymentNotify, s.paymentNotify)
	router.GET(paymentReturn, s.paymentReturn)
	router.GET(returnSuccess, s.paymentReturn)
	router.GET(returnFail, s.paymentReturn)
	router.POST(testCredentials, s.testCredentials)
	router.Handler(http.MethodGet, metricsEndpoint, promhttp.Handler())
}

func (s *Server) SetPaymentsService(payments services.Payments) {
	s.payments = payments
}

func (s *Server) SetGateway(gateway services.Gateway) {
	s.gateway = gateway
}

func (s *Server) SetCredentials(credentials services.ConfigProvider) {
	s.credentials = credentials
}

func (s *Server) SetStateMachine(states services.StateMachine) {
	s.states = states
}

func (s *Server) SetDatabase(database services.Database) {
	s.database = database
}

func (s *Server) SetLogger(logger services.LogHandler) {
	s.logger = logger
}

func (s *Server) Start() error {
	if s.conf == nil {
		return fmt.Errorf("configuration not loaded")
	}

	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIP, s.conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	if s.conf.Listen.TLS {
		s.logger.Info(fmt.Sprintf("starting https TLS on %s", serverAddress))
		err = s.httpServer.ServeTLS(listener, s.conf.Listen.CertFile, s.conf.Listen.KeyFile)
	} else {
		s.logger.Info(fmt.Sprintf("starting http on %s", serverAddress))
		err = s.httpServer.Serve(listener)
	}

	return err
}

// startPayment creates a gateway session for a pending transaction and
// returns the session data the storefront redirects or renders with.
func (s *Server) startPayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := WithRequestID(r.Context())
	reqID := GetRequestID(ctx)

	transactionId := ps.ByName("transaction_id")
	if transactionId == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var body struct {
		ReturnUrl string `json:"returnUrl"`
	}
	s.readBody(r, &body)

	session, err := s.payments.StartPayment(ctx, transactionId, body.ReturnUrl)
	if err != nil {
		s.logger.Error(fmt.Sprintf("[%s] start payment %s", reqID, transactionId), err)
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, session)
}

// paymentNotify handles the FPRN webhook. The gateway retries on any
// retry-eligible status, so only success and already-processed answer 200.
// Internal error detail never leaks into the response body.
func (s *Server) paymentNotify(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := WithRequestID(r.Context())
	reqID := GetRequestID(ctx)

	sessionId := r.URL.Query().Get("sessionId")
	if sessionId == "" {
		sessionId = r.URL.Query().Get("transactionId")
	}
	if sessionId == "" {
		s.logger.Warn(fmt.Sprintf("[%s] notification without session id", reqID))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Missing sessionId"))
		return
	}

	outcome, err := s.payments.Notify(ctx, sessionId)
	if err != nil {
		if errors.Is(err, entity.ErrTransactionNotFound) {
			s.logger.Warn(fmt.Sprintf("[%s] notification for unknown session %s", reqID, sessionId))
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s.logger.Error(fmt.Sprintf("[%s] notification for session %s", reqID, sessionId), err)
		var requestErr *entity.RequestError
		if errors.As(err, &requestErr) {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if outcome.Success || outcome.AlreadyProcessed {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
		return
	}
	// a decline finalizes the transaction as failed; the gateway's retry
	// will then see already-processed and stop
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte("Processing failed"))
}

// paymentReturn lands the customer's browser after the hosted payment page.
// It always redirects somewhere sensible, never shows a raw error.
func (s *Server) paymentReturn(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := WithRequestID(r.Context())

	returnUrl := s.resolveReturnUrl(ctx, r)
	sessionId := r.URL.Query().Get("result")
	if sessionId == "" {
		sessionId = r.URL.Query().Get("sessionId")
	}

	if returnUrl != "" && sessionId != "" {
		separator := "?"
		if strings.Contains(returnUrl, "?") {
			separator = "&"
		}
		returnUrl = returnUrl + separator + "sessionId=" + url.QueryEscape(sessionId)
	}
	if returnUrl == "" {
		returnUrl = fallbackLocation
	}

	http.Redirect(w, r, returnUrl, http.StatusFound)
}

func (s *Server) finalizePayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.completePayment(w, r, ps, s.payments.Finalize)
}

func (s *Server) inlinePayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.completePayment(w, r, ps, s.payments.InlineComplete)
}

func (s *Server) completePayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params, complete func(ctx context.Context, sessionId, transactionId string) (*entity.Outcome, error)) {
	ctx := WithRequestID(r.Context())
	reqID := GetRequestID(ctx)

	transactionId := ps.ByName("transaction_id")
	sessionId := r.URL.Query().Get("result")
	if sessionId == "" {
		sessionId = r.URL.Query().Get("sessionId")
	}
	if sessionId == "" {
		var body struct {
			SessionId string `json:"sessionId"`
		}
		s.readBody(r, &body)
		sessionId = body.SessionId
	}
	if transactionId == "" || sessionId == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	outcome, err := complete(ctx, sessionId, transactionId)
	if err != nil {
		s.logger.Error(fmt.Sprintf("[%s] complete session %s for %s", reqID, sessionId, transactionId), err)
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) dropInData(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := WithRequestID(r.Context())
	reqID := GetRequestID(ctx)

	transactionId := ps.ByName("transaction_id")
	data, err := s.payments.DropInData(ctx, transactionId)
	if err != nil {
		s.logger.Error(fmt.Sprintf("[%s] drop-in data for %s", reqID, transactionId), err)
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

func (s *Server) refundPayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := WithRequestID(r.Context())
	reqID := GetRequestID(ctx)

	transactionId := ps.ByName("transaction_id")
	result, err := s.payments.Refund(ctx, transactionId)
	if err != nil {
		s.logger.Error(fmt.Sprintf("[%s] refund %s", reqID, transactionId), err)
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) voidPayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := WithRequestID(r.Context())
	reqID := GetRequestID(ctx)

	transactionId := ps.ByName("transaction_id")
	result, err := s.payments.Void(ctx, transactionId)
	if err != nil {
		s.logger.Error(fmt.Sprintf("[%s] void %s", reqID, transactionId), err)
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// stateTransition lets the host order system drive the payment state
// machine; refund and void hang off the resulting transition events.
func (s *Server) stateTransition(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := WithRequestID(r.Context())
	reqID := GetRequestID(ctx)

	transactionId := ps.ByName("transaction_id")
	var body struct {
		State string `json:"state"`
	}
	s.readBody(r, &body)
	if transactionId == "" || body.State == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := s.states.RequestTransition(ctx, transactionId, body.State); err != nil {
		if errors.Is(err, entity.ErrTransactionNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s.logger.Error(fmt.Sprintf("[%s] transition %s to %s", reqID, transactionId, body.State), err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// createOrder registers an order payment record from the host system.
func (s *Server) createOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := WithRequestID(r.Context())
	reqID := GetRequestID(ctx)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var record entity.TransactionRecord
	if err := json.Unmarshal(body, &record); err != nil {
		s.logger.Warn(fmt.Sprintf("[%s] create order: decode body: %v", reqID, err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if record.Id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if record.State == "" {
		record.State = entity.StatePending
	}

	if err := s.database.SaveTransaction(ctx, &record); err != nil {
		s.logger.Error(fmt.Sprintf("[%s] create order %s", reqID, record.Id), err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusCreated, &record)
}

func (s *Server) testCredentials(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := WithRequestID(r.Context())
	reqID := GetRequestID(ctx)

	credentials, err := s.credentials.GetCredentials("")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, &entity.CredentialTest{
			Success: false,
			Message: "credentials are not configured",
		})
		return
	}

	result, err := s.gateway.TestCredentials(ctx, *credentials)
	if err != nil {
		s.logger.Error(fmt.Sprintf("[%s] test credentials", reqID), err)
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// resolveReturnUrl prefers an explicit returnUrl query parameter and falls
// back to the URL recorded on the order's transaction at session creation.
func (s *Server) resolveReturnUrl(ctx context.Context, r *http.Request) string {
	if returnUrl := r.URL.Query().Get("returnUrl"); returnUrl != "" {
		return returnUrl
	}

	orderId := r.URL.Query().Get("orderId")
	if orderId == "" {
		return ""
	}
	record, err := s.database.GetTransactionByOrder(ctx, orderId)
	if err != nil || record == nil {
		return ""
	}
	return record.Metadata.ReturnUrl
}

func (s *Server) readBody(r *http.Request, target interface{}) {
	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		return
	}
	_ = json.Unmarshal(body, target)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", err)
	}
}

// writeError maps the error taxonomy to externally visible status codes:
// unknown transaction 404, transport failure 502 (retry-eligible),
// missing configuration 503, anything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrTransactionNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, entity.ErrNotConfigured):
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		var requestErr *entity.RequestError
		if errors.As(err, &requestErr) {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}
}
