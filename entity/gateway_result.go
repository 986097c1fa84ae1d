package entity

import "strings"

// Card is the card block of a session or transaction response.
// Expiry fields arrive as strings ("6", "2026").
type Card struct {
	Id              string `json:"id"`
	CardNumber      string `json:"cardNumber"`
	CardHolderName  string `json:"cardHolderName"`
	Type            string `json:"type"`
	DateExpiryMonth string `json:"dateExpiryMonth"`
	DateExpiryYear  string `json:"dateExpiryYear"`
}

// SessionTransaction is one entry of the transactions array of
// GET /api/v1/sessions/{id}.
type SessionTransaction struct {
	Id           string `json:"id"`
	Authorised   bool   `json:"authorised"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	ResponseText string `json:"responseText"`
	ReCo         string `json:"reCo"`
	Card         *Card  `json:"card"`
}

// SessionState is the raw body of GET /api/v1/sessions/{id}.
type SessionState struct {
	Id           string               `json:"id"`
	State        string               `json:"state"`
	Amount       string               `json:"amount"`
	Currency     string               `json:"currency"`
	Card         *Card                `json:"card"`
	Transactions []SessionTransaction `json:"transactions"`
	Links        []Link               `json:"links"`
}

// TransactionResponse is the raw body of POST /api/v1/transactions
// (refund and void).
type TransactionResponse struct {
	Id           string `json:"id"`
	Authorised   bool   `json:"authorised"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	ResponseText string `json:"responseText"`
	ReCo         string `json:"reCo"`
	Card         *Card  `json:"card"`
}

// GatewayResult is the normalized outcome of a gateway query.
type GatewayResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TransactionId string `json:"transactionId,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Currency      string `json:"currency,omitempty"`
	CardId        string `json:"cardId,omitempty"`
	CardType      string `json:"cardType,omitempty"`
	CardLast4     string `json:"cardLast4,omitempty"`
	CardExpiry    string `json:"cardExpiry,omitempty"`
}

// session states that count as a successful payment
var approvedStates = map[string]bool{
	"approved":  true,
	"complete":  true,
	"completed": true,
}

// ResultFromSession normalizes a raw session body. It tolerates a missing
// transactions array, a missing card block, and values present either on the
// first transaction or on the session itself.
func ResultFromSession(session *SessionState) *GatewayResult {
	result := &GatewayResult{
		Success:  approvedStates[strings.ToLower(session.State)],
		Message:  session.State,
		Amount:   session.Amount,
		Currency: session.Currency,
	}

	card := session.Card
	if len(session.Transactions) > 0 {
		first := session.Transactions[0]
		result.TransactionId = first.Id
		if first.Amount != "" {
			result.Amount = first.Amount
		}
		if first.Currency != "" {
			result.Currency = first.Currency
		}
		if first.Card != nil {
			card = first.Card
		}
	}
	if result.TransactionId == "" {
		result.TransactionId = transactionIdFromLinks(session.Links)
	}

	if card != nil {
		result.CardId = card.Id
		result.CardType = card.Type
		result.CardLast4 = CardLast4(card.CardNumber)
		result.CardExpiry = CardExpiry(card.DateExpiryMonth, card.DateExpiryYear)
	}

	return result
}

// ResultFromTransaction normalizes a refund or void response. An HTTP-level
// success with authorised=false is a reported decline, not a failure.
func ResultFromTransaction(response *TransactionResponse) *GatewayResult {
	message := response.ResponseText
	if message == "" {
		message = response.ReCo
	}
	if message == "" {
		message = "Unknown"
	}
	return &GatewayResult{
		Success:       response.Authorised,
		Message:       message,
		TransactionId: response.Id,
		Amount:        response.Amount,
		Currency:      response.Currency,
	}
}

// CardLast4 strips all non-digit characters from a masked card number and
// returns the last four digits. A masked value with fewer than four digits
// is returned unchanged.
func CardLast4(masked string) string {
	if masked == "" {
		return ""
	}
	var digits []rune
	for _, r := range masked {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return masked
	}
	return string(digits[len(digits)-4:])
}

// CardExpiry formats a zero-padded two-digit month and the last two digits
// of the year as MM/YY. Empty when either part is missing.
func CardExpiry(month, year string) string {
	if month == "" || year == "" {
		return ""
	}
	if len(month) == 1 {
		month = "0" + month
	}
	if len(year) > 2 {
		year = year[len(year)-2:]
	}
	return month + "/" + year
}

// transactionIdFromLinks takes the numeric suffix of the first link with
// relation "transaction".
func transactionIdFromLinks(links []Link) string {
	for _, link := range links {
		if link.Rel != "transaction" {
			continue
		}
		href := link.Href
		end := len(href)
		start := end
		for start > 0 && href[start-1] >= '0' && href[start-1] <= '9' {
			start--
		}
		if start < end {
			return href[start:end]
		}
	}
	return ""
}
