package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"windcave/config"
	"windcave/entity"
	"windcave/services"
)

const (
	sessionsPath     = "/api/v1/sessions"
	transactionsPath = "/api/v1/transactions"

	// the gateway call sits on the customer-facing redirect path,
	// so it must not block longer than this
	gatewayTimeout = 10 * time.Second
)

// GatewayClient talks the Windcave REST protocol: session creation, result
// fetch, refund, void and credential test. It performs no retries; retry
// policy belongs to the caller.
type GatewayClient struct {
	conf       *config.Config
	logger     services.LogHandler
	httpClient *http.Client
}

// NewGateway creates a protocol client with a pooled HTTP transport and a
// bounded per-request timeout.
func NewGateway(conf *config.Config) *GatewayClient {
	return &GatewayClient{
		conf: conf,
		httpClient: &http.Client{
			Timeout: gatewayTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (g *GatewayClient) SetLogger(logger services.LogHandler) {
	g.logger = logger
}

func (g *GatewayClient) origin(testMode bool) string {
	if testMode {
		return g.conf.Merchant.TestUrl
	}
	return g.conf.Merchant.LiveUrl
}

// CreateSession creates a payment session. Success requires HTTP 200 or 202
// and a body carrying both the session id and its links.
func (g *GatewayClient) CreateSession(ctx context.Context, request *entity.SessionRequest) (*entity.DropInSession, error) {
	credentials := entity.Credentials{
		Username: request.Username,
		ApiKey:   request.ApiKey,
		TestMode: request.TestMode,
	}

	status, body, err := g.call(ctx, "create_session", http.MethodPost, g.origin(request.TestMode)+sessionsPath, request, credentials)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusAccepted {
		return nil, &entity.RequestError{Status: status, Body: string(body)}
	}

	var response struct {
		Id    string        `json:"id"`
		Links []entity.Link `json:"links"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &entity.MalformedError{Reason: fmt.Sprintf("decode session: %v", err)}
	}
	if response.Id == "" || response.Links == nil {
		g.logger.Error("create session: missing id/links", fmt.Errorf("body: %s", string(body)))
		return nil, &entity.MalformedError{Reason: "response missing session id or links"}
	}

	session := entity.NewDropInSession(response.Id, response.Links)
	g.logger.Info(fmt.Sprintf("session %s created for %s", session.Id, request.MerchantReference))
	return session, nil
}

// FetchResult loads the authoritative state of a session. Success requires
// HTTP 200; the raw body is normalized by the result mapper.
func (g *GatewayClient) FetchResult(ctx context.Context, sessionId string, credentials entity.Credentials) (*entity.GatewayResult, error) {
	url := fmt.Sprintf("%s%s/%s", g.origin(credentials.TestMode), sessionsPath, sessionId)
	status, body, err := g.call(ctx, "fetch_result", http.MethodGet, url, nil, credentials)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &entity.RequestError{Status: status, Body: string(body)}
	}

	var state entity.SessionState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, &entity.MalformedError{Reason: fmt.Sprintf("decode session state: %v", err)}
	}
	return entity.ResultFromSession(&state), nil
}

// Refund posts a refund against a settled transaction. An HTTP success with
// authorised=false is a reported decline carried in the result, not an error.
func (g *GatewayClient) Refund(ctx context.Context, transactionId, amount, currency string, credentials entity.Credentials) (*entity.GatewayResult, error) {
	request := map[string]string{
		"type":          "refund",
		"transactionId": transactionId,
		"amount":        amount,
		"currency":      currency,
	}
	return g.postTransaction(ctx, "refund", request, credentials)
}

// Void cancels an authorisation. Amount and currency are included only when
// a captured amount is known; an auth-only void omits them.
func (g *GatewayClient) Void(ctx context.Context, transactionId, amount, currency string, credentials entity.Credentials) (*entity.GatewayResult, error) {
	request := map[string]string{
		"type":          "void",
		"transactionId": transactionId,
	}
	if amount != "" {
		request["amount"] = amount
		request["currency"] = currency
	}
	return g.postTransaction(ctx, "void", request, credentials)
}

func (g *GatewayClient) postTransaction(ctx context.Context, operation string, request map[string]string, credentials entity.Credentials) (*entity.GatewayResult, error) {
	status, body, err := g.call(ctx, operation, http.MethodPost, g.origin(credentials.TestMode)+transactionsPath, request, credentials)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusAccepted {
		return nil, &entity.RequestError{Status: status, Body: string(body)}
	}

	var response entity.TransactionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &entity.MalformedError{Reason: fmt.Sprintf("decode %s: %v", operation, err)}
	}

	result := entity.ResultFromTransaction(&response)
	g.logger.Info(fmt.Sprintf("%s of %s: authorised=%v %s", operation, secret(request["transactionId"]), result.Success, result.Message))
	return result, nil
}

// TestCredentials posts a minimal throwaway session request to classify the
// configured credentials. HTTP 400 is a pass: the credentials authenticated
// and only the deliberately minimal payload was rejected.
func (g *GatewayClient) TestCredentials(ctx context.Context, credentials entity.Credentials) (*entity.CredentialTest, error) {
	request := &entity.SessionRequest{
		Type:     "purchase",
		Amount:   "0.00",
		Currency: "NZD",
		Language: "en",
	}

	started := time.Now()
	status, body, err := g.call(ctx, "test_credentials", http.MethodPost, g.origin(credentials.TestMode)+sessionsPath, request, credentials)
	latency := time.Since(started).Milliseconds()
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK, http.StatusAccepted:
		return &entity.CredentialTest{Success: true, Message: "credentials valid", LatencyMs: latency}, nil
	case http.StatusBadRequest:
		return &entity.CredentialTest{Success: true, Message: "valid credentials, rejected test payload", LatencyMs: latency}, nil
	case http.StatusUnauthorized:
		return &entity.CredentialTest{Success: false, Message: "invalid credentials", LatencyMs: latency}, nil
	}
	return nil, &entity.RequestError{Status: status, Body: string(body)}
}

// call performs one authenticated round trip and returns status and body.
// Transport failures surface untyped so callers can treat them as processing
// errors distinct from gateway declines.
func (g *GatewayClient) call(ctx context.Context, operation, method, url string, payload interface{}, credentials entity.Credentials) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode %s request: %w", operation, err)
		}
		g.logger.Debug(fmt.Sprintf("%s request: %s", operation, string(data)))
		reader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.SetBasicAuth(credentials.Username, credentials.ApiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	timer := time.Now()
	response, err := g.httpClient.Do(req)
	gatewayDuration.WithLabelValues(operation).Observe(time.Since(timer).Seconds())
	if err != nil {
		gatewayRequests.WithLabelValues(operation, "transport_error").Inc()
		if ctx.Err() != nil {
			return 0, nil, fmt.Errorf("%s timeout or cancelled: %w", operation, ctx.Err())
		}
		return 0, nil, fmt.Errorf("%s request: %w", operation, err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			g.logger.Error("close response body", err)
		}
	}(response.Body)

	body, err := io.ReadAll(response.Body)
	if err != nil {
		gatewayRequests.WithLabelValues(operation, "read_error").Inc()
		return 0, nil, fmt.Errorf("read %s response: %w", operation, err)
	}

	gatewayRequests.WithLabelValues(operation, fmt.Sprintf("http_%d", response.StatusCode)).Inc()
	g.logger.Debug(fmt.Sprintf("%s response %d: %s", operation, response.StatusCode, string(body)))
	return response.StatusCode, body, nil
}
