package services

import (
	"context"

	"windcave/entity"
)

// TransitionEvent describes one completed payment state transition on the
// host order system.
type TransitionEvent struct {
	TransactionId string
	FromState     string
	ToState       string
}

// StateMachine requests payment state transitions on the host order system.
// Requesting the state a record is already in is a no-op; only an illegal
// transition fails.
type StateMachine interface {
	RequestTransition(ctx context.Context, transactionId, targetState string) error
}

// ConfigProvider resolves merchant credentials for a scope. Credentials are
// always resolved fresh, never from data cached on a transaction.
type ConfigProvider interface {
	GetCredentials(scopeId string) (*entity.Credentials, error)
}
