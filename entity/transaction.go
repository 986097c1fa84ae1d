// Package entity defines wire and persistence models for the Windcave
// payment service.
package entity

import "time"

// Payment states of the order state machine. A record in a terminal state
// never transitions again from a notification; only its metadata may be
// supplemented.
const (
	StatePending       = "pending"
	StateAuthorized    = "authorized"
	StatePartiallyPaid = "partially_paid"
	StatePaid          = "paid"
	StateFailed        = "failed"
	StateCancelled     = "cancelled"
	StateRefunded      = "refunded"
)

// IsTerminalState reports whether a payment state accepts no further
// notification-driven transition.
func IsTerminalState(state string) bool {
	switch state {
	case StatePaid, StateCancelled, StateFailed, StateRefunded:
		return true
	}
	return false
}

// Metadata field paths used to resolve an inbound session id to a record.
// The flat field is searched first, the nested blob id second.
const (
	MetaFieldSessionId       = "session_id"
	MetaFieldDropInSessionId = "drop_in_session.id"
)

// Metadata is the typed payment metadata kept on a transaction record.
// All fields are optional; a patch supplements what is already stored.
type Metadata struct {
	DropInSession *DropInSession `json:"dropInSession,omitempty" bson:"drop_in_session,omitempty"`
	SessionId     string         `json:"sessionId,omitempty" bson:"session_id,omitempty"`
	ReturnUrl     string         `json:"returnUrl,omitempty" bson:"return_url,omitempty"`
	// TestMode records the environment the session was created in;
	// a pointer so that unset is distinct from live
	TestMode         *bool  `json:"testMode,omitempty" bson:"test_mode,omitempty"`
	ScriptOrigin     string `json:"scriptOrigin,omitempty" bson:"script_origin,omitempty"`
	AppleMerchantId  string `json:"appleMerchantId,omitempty" bson:"apple_merchant_id,omitempty"`
	GoogleMerchantId string `json:"googleMerchantId,omitempty" bson:"google_merchant_id,omitempty"`
	// confirmed by the gateway after reconciliation
	TransactionId string `json:"transactionId,omitempty" bson:"gateway_transaction_id,omitempty"`
	Amount        string `json:"amount,omitempty" bson:"amount,omitempty"`
	Currency      string `json:"currency,omitempty" bson:"currency,omitempty"`
	CardType      string `json:"cardType,omitempty" bson:"card_type,omitempty"`
	CardLast4     string `json:"cardLast4,omitempty" bson:"card_last4,omitempty"`
	CardExpiry    string `json:"cardExpiry,omitempty" bson:"card_expiry,omitempty"`
	// CardToken is the guest-checkout token, owned by this transaction only
	CardToken           string `json:"cardToken,omitempty" bson:"card_token,omitempty"`
	RefundTransactionId string `json:"refundTransactionId,omitempty" bson:"refund_transaction_id,omitempty"`
}

// Merge supplements the metadata with the set fields of a patch.
// A stored value is overwritten only by a non-empty patch value.
func (m *Metadata) Merge(patch Metadata) {
	if patch.DropInSession != nil {
		m.DropInSession = patch.DropInSession
	}
	if patch.SessionId != "" {
		m.SessionId = patch.SessionId
	}
	if patch.ReturnUrl != "" {
		m.ReturnUrl = patch.ReturnUrl
	}
	if patch.TestMode != nil {
		m.TestMode = patch.TestMode
	}
	if patch.ScriptOrigin != "" {
		m.ScriptOrigin = patch.ScriptOrigin
	}
	if patch.AppleMerchantId != "" {
		m.AppleMerchantId = patch.AppleMerchantId
	}
	if patch.GoogleMerchantId != "" {
		m.GoogleMerchantId = patch.GoogleMerchantId
	}
	if patch.TransactionId != "" {
		m.TransactionId = patch.TransactionId
	}
	if patch.Amount != "" {
		m.Amount = patch.Amount
	}
	if patch.Currency != "" {
		m.Currency = patch.Currency
	}
	if patch.CardType != "" {
		m.CardType = patch.CardType
	}
	if patch.CardLast4 != "" {
		m.CardLast4 = patch.CardLast4
	}
	if patch.CardExpiry != "" {
		m.CardExpiry = patch.CardExpiry
	}
	if patch.CardToken != "" {
		m.CardToken = patch.CardToken
	}
	if patch.RefundTransactionId != "" {
		m.RefundTransactionId = patch.RefundTransactionId
	}
}

// TransactionRecord is one order payment owned by the order store.
// The core references it, it never owns it.
type TransactionRecord struct {
	Id          string    `json:"transaction_id" bson:"transaction_id"`
	OrderId     string    `json:"order_id" bson:"order_id"`
	OrderNumber string    `json:"order_number" bson:"order_number"`
	CustomerId  string    `json:"customer_id,omitempty" bson:"customer_id,omitempty"`
	State       string    `json:"state" bson:"state"`
	Amount      float64   `json:"amount" bson:"amount"`
	Currency    string    `json:"currency" bson:"currency"`
	Language    string    `json:"language,omitempty" bson:"language,omitempty"`
	Email       string    `json:"email,omitempty" bson:"email,omitempty"`
	Billing     *Address  `json:"billing,omitempty" bson:"billing,omitempty"`
	Shipping    *Address  `json:"shipping,omitempty" bson:"shipping,omitempty"`
	Metadata    Metadata  `json:"metadata" bson:"metadata"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// Reference returns the merchant reference sent to the gateway: the order
// number when present, the record id otherwise.
func (t *TransactionRecord) Reference() string {
	if t.OrderNumber != "" {
		return t.OrderNumber
	}
	return t.Id
}

// StoredToken is a reusable card credential kept per customer.
// At most one token is retained per owner; writing overwrites.
type StoredToken struct {
	CustomerId string    `json:"customer_id" bson:"customer_id"`
	Token      string    `json:"token" bson:"token"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}
