package internal

import (
	"context"
	"fmt"

	"windcave/config"
	"windcave/entity"
	"windcave/services"
)

// the gateway rejects longer merchant references
const merchantReferenceLimit = 64

// PayloadBuilder constructs canonical session requests from order data.
type PayloadBuilder struct {
	conf        *config.Config
	credentials services.ConfigProvider
	tokens      *TokenStore
	logger      services.LogHandler
}

func NewPayloadBuilder(conf *config.Config, credentials services.ConfigProvider, tokens *TokenStore) *PayloadBuilder {
	return &PayloadBuilder{
		conf:        conf,
		credentials: credentials,
		tokens:      tokens,
	}
}

func (b *PayloadBuilder) SetLogger(logger services.LogHandler) {
	b.logger = logger
}

// Build creates the session request for one order payment. Credentials are
// attached for the outbound request only and are never serialized.
func (b *PayloadBuilder) Build(ctx context.Context, record *entity.TransactionRecord) (*entity.SessionRequest, error) {
	credentials, err := b.credentials.GetCredentials(record.OrderId)
	if err != nil {
		return nil, err
	}

	reference := record.Reference()
	if len(reference) > merchantReferenceLimit {
		reference = reference[:merchantReferenceLimit]
	}

	language := record.Language
	if language == "" {
		language = "en"
	}

	request := &entity.SessionRequest{
		Type:              "purchase",
		Amount:            entity.FormatAmount(record.Amount),
		Currency:          record.Currency,
		MerchantReference: reference,
		Language:          language,
		CallbackUrls: entity.CallbackUrls{
			Approved:  fmt.Sprintf("%s/return/success?orderId=%s", b.conf.PublicUrl, record.OrderId),
			Declined:  fmt.Sprintf("%s/return/fail?orderId=%s", b.conf.PublicUrl, record.OrderId),
			Cancelled: fmt.Sprintf("%s/return/fail?orderId=%s", b.conf.PublicUrl, record.OrderId),
		},
		NotificationUrl: b.conf.PublicUrl + "/notify",
		Customer:        buildCustomer(record),
		ThreeDS:         buildThreeDS(record),
		Username:        credentials.Username,
		ApiKey:          credentials.ApiKey,
		TestMode:        credentials.TestMode,
	}

	b.applyStoredCard(ctx, record, request)
	return request, nil
}

// applyStoredCard selects the stored-card directives. A previously stored
// token marks the charge as recurring and reuses the token; otherwise, when
// card storage is enabled, the first charge requests tokenization.
func (b *PayloadBuilder) applyStoredCard(ctx context.Context, record *entity.TransactionRecord, request *entity.SessionRequest) {
	token := ""
	if record.CustomerId != "" {
		stored, err := b.tokens.GetStoredToken(ctx, record.CustomerId)
		if err != nil {
			b.logger.Error(fmt.Sprintf("get stored token for %s", secret(record.CustomerId)), err)
		} else {
			token = stored
		}
	}

	if token != "" {
		request.StoredCardIndicator = b.conf.Merchant.IndicatorRecurring
		request.CardId = token
		return
	}
	if b.conf.Merchant.StoreCard {
		request.StoreCard = true
		request.StoredCardIndicator = b.conf.Merchant.IndicatorInitial
	}
}

// buildCustomer includes the contact block only when at least one field is
// present; a fully absent block is omitted, never emitted empty.
func buildCustomer(record *entity.TransactionRecord) *entity.Customer {
	billing := record.Billing
	if billing.IsEmpty() {
		billing = nil
	}
	shipping := record.Shipping
	if shipping.IsEmpty() {
		shipping = nil
	}

	phone := ""
	if billing != nil {
		phone = billing.PhoneNumber
	}

	if record.Email == "" && phone == "" && billing == nil && shipping == nil {
		return nil
	}
	return &entity.Customer{
		Email:       record.Email,
		PhoneNumber: phone,
		Billing:     billing,
		Shipping:    shipping,
	}
}

// buildThreeDS requests a challenge only when the buyer identity is known
// through an email or a billing address.
func buildThreeDS(record *entity.TransactionRecord) *entity.ThreeDS {
	if record.Email == "" && record.Billing.IsEmpty() {
		return nil
	}
	return &entity.ThreeDS{
		ChallengeIndicator: "challengepreferred",
		MerchantRiskIndicator: &entity.MerchantRiskIndicator{
			DeliveryEmailAddress: record.Email,
			ShippingIndicator:    "digital",
		},
	}
}
