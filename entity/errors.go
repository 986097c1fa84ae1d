package entity

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when no merchant credentials are set.
var ErrNotConfigured = errors.New("merchant not configured")

// ErrTransactionNotFound is returned when an inbound signal references a
// session that resolves to no known transaction record.
var ErrTransactionNotFound = errors.New("transaction not found")

// ErrMissingAmount is returned when a refund is requested for a transaction
// with no recorded payment amount.
var ErrMissingAmount = errors.New("no recorded amount for refund")

// RequestError is a non-2xx transport-level answer from the gateway.
// Webhook callers surface it with a retry-eligible status.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("gateway request failed with status %d: %s", e.Status, e.Body)
}

// MalformedError is a 2xx gateway answer missing required fields.
// It is a hard integration error, never retried blindly.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed gateway response: %s", e.Reason)
}
