package services

import (
	"context"

	"windcave/entity"
)

// Payments orchestrates the payment session lifecycle: session creation,
// reconciliation of the three completion signals, and refund/void.
type Payments interface {
	StartPayment(ctx context.Context, transactionId, returnUrl string) (*entity.DropInSession, error)

	// Notify handles the asynchronous FPRN callback; the record is resolved
	// by session id.
	Notify(ctx context.Context, sessionId string) (*entity.Outcome, error)
	// Finalize handles the browser redirect return.
	Finalize(ctx context.Context, sessionId, transactionId string) (*entity.Outcome, error)
	// InlineComplete handles a client-asserted drop-in completion.
	InlineComplete(ctx context.Context, sessionId, transactionId string) (*entity.Outcome, error)

	Refund(ctx context.Context, transactionId string) (*entity.GatewayResult, error)
	Void(ctx context.Context, transactionId string) (*entity.GatewayResult, error)

	DropInData(ctx context.Context, transactionId string) (*entity.DropInData, error)
}
