package internal

import (
	"context"
	"fmt"

	"windcave/config"
	"windcave/entity"
	"windcave/services"
)

// Reconciler drives the payment session lifecycle. The three completion
// channels (redirect return, FPRN notification, inline completion) converge
// on one reconciliation routine that applies an at-most-once state
// transition per transaction.
type Reconciler struct {
	conf        *config.Config
	gateway     services.Gateway
	credentials services.ConfigProvider
	payloads    *PayloadBuilder
	tokens      *TokenStore
	database    services.Database
	states      services.StateMachine
	logger      services.LogHandler
}

func NewReconciler(conf *config.Config, gateway services.Gateway, credentials services.ConfigProvider, payloads *PayloadBuilder, tokens *TokenStore) *Reconciler {
	return &Reconciler{
		conf:        conf,
		gateway:     gateway,
		credentials: credentials,
		payloads:    payloads,
		tokens:      tokens,
	}
}

func (r *Reconciler) SetDatabase(database services.Database) {
	r.database = database
}

func (r *Reconciler) SetStateMachine(states services.StateMachine) {
	r.states = states
}

func (r *Reconciler) SetLogger(logger services.LogHandler) {
	r.logger = logger
}

// StartPayment creates a gateway session for a pending transaction and
// persists the session blob with everything the later signals need. The
// recorded test-mode flag wins over current config when the session is
// verified, while credentials are always resolved fresh.
func (r *Reconciler) StartPayment(ctx context.Context, transactionId, returnUrl string) (*entity.DropInSession, error) {
	record, err := r.database.GetTransaction(ctx, transactionId)
	if err != nil {
		return nil, err
	}

	request, err := r.payloads.Build(ctx, record)
	if err != nil {
		return nil, err
	}

	session, err := r.gateway.CreateSession(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("create session for %s: %w", transactionId, err)
	}

	testMode := request.TestMode
	patch := entity.Metadata{
		DropInSession:    session,
		SessionId:        session.Id,
		ReturnUrl:        returnUrl,
		TestMode:         &testMode,
		ScriptOrigin:     r.conf.ScriptOrigin(testMode),
		AppleMerchantId:  r.conf.Merchant.AppleMerchantId,
		GoogleMerchantId: r.conf.Merchant.GoogleMerchantId,
	}
	if err := r.database.UpdateTransactionMetadata(ctx, transactionId, patch); err != nil {
		return nil, fmt.Errorf("persist session %s: %w", session.Id, err)
	}

	return session, nil
}

// Notify handles the FPRN callback. The transaction is resolved by session
// id: the flat metadata field first, the nested session blob second.
func (r *Reconciler) Notify(ctx context.Context, sessionId string) (*entity.Outcome, error) {
	record, err := r.resolveSession(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	return r.reconcile(ctx, "notify", record, sessionId)
}

// Finalize handles the browser redirect return.
func (r *Reconciler) Finalize(ctx context.Context, sessionId, transactionId string) (*entity.Outcome, error) {
	record, err := r.database.GetTransaction(ctx, transactionId)
	if err != nil {
		return nil, err
	}
	return r.reconcile(ctx, "finalize", record, sessionId)
}

// InlineComplete handles a client-asserted drop-in completion. The claim is
// never trusted; the authoritative result is fetched from the gateway.
func (r *Reconciler) InlineComplete(ctx context.Context, sessionId, transactionId string) (*entity.Outcome, error) {
	record, err := r.database.GetTransaction(ctx, transactionId)
	if err != nil {
		return nil, err
	}
	return r.reconcile(ctx, "inline", record, sessionId)
}

// reconcile is the single routine all completion channels converge on.
// The terminal-state check runs before any network call: it is both the
// idempotency guarantee and the sole concurrency guard.
func (r *Reconciler) reconcile(ctx context.Context, channel string, record *entity.TransactionRecord, sessionId string) (*entity.Outcome, error) {
	reqID := GetRequestID(ctx)

	if entity.IsTerminalState(record.State) {
		signalOutcomes.WithLabelValues(channel, "already_processed").Inc()
		r.logger.Info(fmt.Sprintf("[%s] %s: session %s already in state %s", reqID, channel, sessionId, record.State))
		return &entity.Outcome{Success: true, AlreadyProcessed: true, Message: "already processed"}, nil
	}

	// credentials come fresh from configuration, never from the record;
	// only the environment recorded at session creation is honoured
	credentials, err := r.credentials.GetCredentials(record.OrderId)
	if err != nil {
		return nil, err
	}
	if record.Metadata.TestMode != nil {
		credentials.TestMode = *record.Metadata.TestMode
	}

	result, err := r.gateway.FetchResult(ctx, sessionId, *credentials)
	if err != nil {
		signalOutcomes.WithLabelValues(channel, "error").Inc()
		return nil, fmt.Errorf("fetch result for session %s: %w", sessionId, err)
	}

	patch := entity.Metadata{
		TransactionId: result.TransactionId,
		Amount:        result.Amount,
		Currency:      result.Currency,
		CardType:      result.CardType,
		CardLast4:     result.CardLast4,
		CardExpiry:    result.CardExpiry,
	}
	if err := r.database.UpdateTransactionMetadata(ctx, record.Id, patch); err != nil {
		return nil, fmt.Errorf("update transaction %s: %w", record.Id, err)
	}

	if !result.Success {
		if err := r.states.RequestTransition(ctx, record.Id, entity.StateFailed); err != nil {
			return nil, fmt.Errorf("request failed transition for %s: %w", record.Id, err)
		}
		signalOutcomes.WithLabelValues(channel, "declined").Inc()
		r.logger.Info(fmt.Sprintf("[%s] %s: session %s declined: %s", reqID, channel, sessionId, result.Message))
		return &entity.Outcome{Success: false, Message: result.Message}, nil
	}

	// safe to request twice; a repeat of the target state is a no-op
	if err := r.states.RequestTransition(ctx, record.Id, entity.StatePaid); err != nil {
		return nil, fmt.Errorf("request paid transition for %s: %w", record.Id, err)
	}
	r.storeToken(ctx, record, result.CardId)

	signalOutcomes.WithLabelValues(channel, "paid").Inc()
	r.logger.Info(fmt.Sprintf("[%s] %s: session %s confirmed, transaction %s", reqID, channel, sessionId, result.TransactionId))
	return &entity.Outcome{Success: true, Message: "payment confirmed"}, nil
}

// storeToken keeps a returned card token for reuse. A known customer owns
// the token across orders; a guest checkout keeps it on the transaction
// only. Failures never undo a confirmed payment.
func (r *Reconciler) storeToken(ctx context.Context, record *entity.TransactionRecord, cardId string) {
	if cardId == "" {
		return
	}
	var err error
	if record.CustomerId != "" {
		err = r.tokens.StoreForCustomer(ctx, record.CustomerId, cardId)
	} else {
		err = r.tokens.StoreOnTransaction(ctx, record.Id, cardId)
	}
	if err != nil {
		r.logger.Error(fmt.Sprintf("store token %s", secret(cardId)), err)
	}
}

// Refund refunds the amount recorded at payment time. A missing recorded
// amount is a hard local error; no refund is attempted. A gateway decline
// is carried in the result, not returned as an error.
func (r *Reconciler) Refund(ctx context.Context, transactionId string) (*entity.GatewayResult, error) {
	record, err := r.database.GetTransaction(ctx, transactionId)
	if err != nil {
		return nil, err
	}
	meta := record.Metadata
	if meta.TransactionId == "" {
		return nil, fmt.Errorf("no gateway transaction recorded for %s", transactionId)
	}
	if meta.Amount == "" {
		return nil, entity.ErrMissingAmount
	}

	credentials, err := r.recordCredentials(record)
	if err != nil {
		return nil, err
	}

	result, err := r.gateway.Refund(ctx, meta.TransactionId, meta.Amount, r.recordCurrency(record), *credentials)
	if err != nil {
		return nil, fmt.Errorf("refund %s: %w", transactionId, err)
	}
	if result.TransactionId != "" {
		patch := entity.Metadata{RefundTransactionId: result.TransactionId}
		if err := r.database.UpdateTransactionMetadata(ctx, transactionId, patch); err != nil {
			r.logger.Error(fmt.Sprintf("persist refund id for %s", transactionId), err)
		}
	}
	return result, nil
}

// Void cancels an authorisation. Amount and currency are passed only when a
// captured amount was recorded; an auth-only void omits them.
func (r *Reconciler) Void(ctx context.Context, transactionId string) (*entity.GatewayResult, error) {
	record, err := r.database.GetTransaction(ctx, transactionId)
	if err != nil {
		return nil, err
	}
	meta := record.Metadata
	if meta.TransactionId == "" {
		return nil, fmt.Errorf("no gateway transaction recorded for %s", transactionId)
	}

	credentials, err := r.recordCredentials(record)
	if err != nil {
		return nil, err
	}

	result, err := r.gateway.Void(ctx, meta.TransactionId, meta.Amount, r.recordCurrency(record), *credentials)
	if err != nil {
		return nil, fmt.Errorf("void %s: %w", transactionId, err)
	}
	return result, nil
}

// DropInData returns everything a storefront needs to render the drop-in
// form for a transaction with a created session.
func (r *Reconciler) DropInData(ctx context.Context, transactionId string) (*entity.DropInData, error) {
	record, err := r.database.GetTransaction(ctx, transactionId)
	if err != nil {
		return nil, err
	}
	meta := record.Metadata
	if meta.DropInSession == nil {
		return nil, fmt.Errorf("no session created for transaction %s", transactionId)
	}

	testMode := r.conf.Merchant.TestMode
	if meta.TestMode != nil {
		testMode = *meta.TestMode
	}
	country := ""
	if record.Billing != nil {
		country = record.Billing.CountryCode
	}

	return &entity.DropInData{
		SessionId:        meta.DropInSession.Id,
		Links:            meta.DropInSession.Links,
		HppUrl:           meta.DropInSession.HppUrl,
		ReturnUrl:        meta.ReturnUrl,
		ScriptOrigin:     meta.ScriptOrigin,
		AppleMerchantId:  meta.AppleMerchantId,
		GoogleMerchantId: meta.GoogleMerchantId,
		TestMode:         testMode,
		Currency:         record.Currency,
		Country:          country,
	}, nil
}

func (r *Reconciler) resolveSession(ctx context.Context, sessionId string) (*entity.TransactionRecord, error) {
	record, err := r.database.FindTransactionByMetadata(ctx, entity.MetaFieldSessionId, sessionId)
	if err != nil {
		return nil, fmt.Errorf("find transaction by session %s: %w", sessionId, err)
	}
	if record == nil {
		record, err = r.database.FindTransactionByMetadata(ctx, entity.MetaFieldDropInSessionId, sessionId)
		if err != nil {
			return nil, fmt.Errorf("find transaction by session blob %s: %w", sessionId, err)
		}
	}
	if record == nil {
		return nil, entity.ErrTransactionNotFound
	}
	return record, nil
}

func (r *Reconciler) recordCredentials(record *entity.TransactionRecord) (*entity.Credentials, error) {
	credentials, err := r.credentials.GetCredentials(record.OrderId)
	if err != nil {
		return nil, err
	}
	if record.Metadata.TestMode != nil {
		credentials.TestMode = *record.Metadata.TestMode
	}
	return credentials, nil
}

func (r *Reconciler) recordCurrency(record *entity.TransactionRecord) string {
	if record.Metadata.Currency != "" {
		return record.Metadata.Currency
	}
	return record.Currency
}
