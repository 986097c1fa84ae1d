package internal

import (
	"context"

	"windcave/entity"
	"windcave/services"
)

// TokenStore keeps one reusable card token per owner. Authenticated buyers
// own their token on the customer record; guest checkouts fall back to the
// transaction record, where the token is not reusable.
type TokenStore struct {
	database services.Database
}

func NewTokenStore(database services.Database) *TokenStore {
	return &TokenStore{database: database}
}

// StoreForCustomer overwrites the customer's stored token with no history.
func (t *TokenStore) StoreForCustomer(ctx context.Context, customerId, token string) error {
	return t.database.SaveCustomerToken(ctx, customerId, token)
}

// StoreOnTransaction keeps the token on the transaction metadata only.
func (t *TokenStore) StoreOnTransaction(ctx context.Context, transactionId, token string) error {
	return t.database.UpdateTransactionMetadata(ctx, transactionId, entity.Metadata{CardToken: token})
}

// GetStoredToken returns the customer's token, or empty when none is stored.
func (t *TokenStore) GetStoredToken(ctx context.Context, customerId string) (string, error) {
	if customerId == "" {
		return "", nil
	}
	return t.database.GetCustomerToken(ctx, customerId)
}
