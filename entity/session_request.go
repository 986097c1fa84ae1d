package entity

import "strconv"

// Stored-card indicators defined by the Windcave REST API. The initial
// indicator is sent on the first tokenizing charge, the recurring one on
// later charges that reuse the stored token.
const (
	IndicatorInitial   = "credentialonfileinitial"
	IndicatorRecurring = "credentialonfile"
)

// Address is a customer billing or shipping address block.
// Empty fields are omitted from the request body.
type Address struct {
	Name        string `json:"name,omitempty" bson:"name,omitempty"`
	Address1    string `json:"address1,omitempty" bson:"address1,omitempty"`
	Address2    string `json:"address2,omitempty" bson:"address2,omitempty"`
	Address3    string `json:"address3,omitempty" bson:"address3,omitempty"`
	City        string `json:"city,omitempty" bson:"city,omitempty"`
	CountryCode string `json:"countryCode,omitempty" bson:"country_code,omitempty"`
	PostalCode  string `json:"postalCode,omitempty" bson:"postal_code,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty" bson:"phone_number,omitempty"`
	State       string `json:"state,omitempty" bson:"state,omitempty"`
}

// IsEmpty reports whether no address field is set.
func (a *Address) IsEmpty() bool {
	if a == nil {
		return true
	}
	return *a == Address{}
}

// Customer is the optional contact block of a session request.
// The block is omitted entirely when no field is present.
type Customer struct {
	Email           string   `json:"email,omitempty"`
	PhoneNumber     string   `json:"phoneNumber,omitempty"`
	HomePhoneNumber string   `json:"homePhoneNumber,omitempty"`
	Billing         *Address `json:"billing,omitempty"`
	Shipping        *Address `json:"shipping,omitempty"`
}

// MerchantRiskIndicator is part of the 3-D Secure block.
type MerchantRiskIndicator struct {
	DeliveryEmailAddress string `json:"deliveryEmailAddress,omitempty"`
	ShippingIndicator    string `json:"shippingIndicator,omitempty"`
}

// ThreeDS requests a 3-D Secure challenge for the session.
type ThreeDS struct {
	// ChallengeIndicator: "challengepreferred" asks the issuer to challenge
	ChallengeIndicator    string                 `json:"challengeIndicator,omitempty"`
	MerchantRiskIndicator *MerchantRiskIndicator `json:"merchantRiskIndicator,omitempty"`
}

// CallbackUrls are the three browser-return URLs of a session.
type CallbackUrls struct {
	Approved  string `json:"approved"`
	Declined  string `json:"declined"`
	Cancelled string `json:"cancelled"`
}

// SessionRequest is the body of POST /api/v1/sessions.
// Credentials and the test-mode flag select endpoint and Basic auth for the
// outbound request only and are never serialized.
type SessionRequest struct {
	// Type is always "purchase"
	Type string `json:"type"`
	// Amount with exactly two decimal digits and a period separator
	Amount            string       `json:"amount"`
	Currency          string       `json:"currency"`
	MerchantReference string       `json:"merchantReference"`
	Language          string       `json:"language"`
	CallbackUrls      CallbackUrls `json:"callbackUrls"`
	// NotificationUrl receives the FPRN server-to-server callback
	NotificationUrl string    `json:"notificationUrl"`
	Customer        *Customer `json:"customer,omitempty"`
	ThreeDS         *ThreeDS  `json:"threeds,omitempty"`
	// StoreCard requests tokenization of the presented card
	StoreCard bool `json:"storeCard,omitempty"`
	// StoredCardIndicator distinguishes the initial tokenizing charge
	// from a later charge reusing the token
	StoredCardIndicator string `json:"storedCardIndicator,omitempty"`
	// CardId references an already stored card token
	CardId string `json:"cardId,omitempty"`

	Username string `json:"-"`
	ApiKey   string `json:"-"`
	TestMode bool   `json:"-"`
}

// FormatAmount serializes an amount with exactly two decimal digits and a
// period separator, regardless of locale. 12.3 becomes "12.30".
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
