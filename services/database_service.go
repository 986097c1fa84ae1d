package services

import (
	"context"

	"windcave/entity"
)

// Database is the host persistence consumed by the core: the order store,
// the customer token store and the payment log sink.
type Database interface {
	WriteLogMessage(data Data) error

	GetTransaction(ctx context.Context, id string) (*entity.TransactionRecord, error)
	SaveTransaction(ctx context.Context, record *entity.TransactionRecord) error
	// UpdateTransactionMetadata supplements the stored metadata with the set
	// fields of the patch; it never resets a field to empty.
	UpdateTransactionMetadata(ctx context.Context, id string, patch entity.Metadata) error
	// FindTransactionByMetadata resolves a record by one metadata field.
	// Returns nil, nil when no record matches.
	FindTransactionByMetadata(ctx context.Context, field, value string) (*entity.TransactionRecord, error)
	// GetTransactionByOrder resolves a record by the host order id.
	// Returns nil, nil when no record matches.
	GetTransactionByOrder(ctx context.Context, orderId string) (*entity.TransactionRecord, error)

	GetCustomerToken(ctx context.Context, customerId string) (string, error)
	SaveCustomerToken(ctx context.Context, customerId, token string) error
}

type Data interface {
	DataType() string
}
