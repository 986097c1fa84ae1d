package services

import (
	"context"

	"windcave/entity"
)

// Gateway is the Windcave REST protocol client. Calls are synchronous and
// never retried here; retry policy belongs to the caller.
type Gateway interface {
	CreateSession(ctx context.Context, request *entity.SessionRequest) (*entity.DropInSession, error)
	FetchResult(ctx context.Context, sessionId string, credentials entity.Credentials) (*entity.GatewayResult, error)
	// Refund posts a type "refund" transaction against a settled payment.
	Refund(ctx context.Context, transactionId, amount, currency string, credentials entity.Credentials) (*entity.GatewayResult, error)
	// Void cancels an authorisation; amount and currency are sent only when
	// a captured amount is known.
	Void(ctx context.Context, transactionId, amount, currency string, credentials entity.Credentials) (*entity.GatewayResult, error)
	TestCredentials(ctx context.Context, credentials entity.Credentials) (*entity.CredentialTest, error)
}
