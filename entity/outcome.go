package entity

// Credentials authenticate one merchant against the gateway and select the
// live or test environment.
type Credentials struct {
	Username string
	ApiKey   string
	TestMode bool
}

// Outcome is the result of reconciling one inbound payment signal.
// AlreadyProcessed marks the idempotent no-op on a terminal record.
type Outcome struct {
	Success          bool   `json:"success"`
	AlreadyProcessed bool   `json:"alreadyProcessed"`
	Message          string `json:"message"`
}

// CredentialTest is the classified result of a credential check against the
// sessions endpoint.
type CredentialTest struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	LatencyMs int64  `json:"latency_ms"`
}

// DropInData is everything a storefront needs to render the drop-in form
// for a pending transaction.
type DropInData struct {
	SessionId        string `json:"sessionId"`
	Links            []Link `json:"links"`
	HppUrl           string `json:"hppUrl,omitempty"`
	ReturnUrl        string `json:"returnUrl,omitempty"`
	ScriptOrigin     string `json:"scriptOrigin"`
	AppleMerchantId  string `json:"appleMerchantId,omitempty"`
	GoogleMerchantId string `json:"googleMerchantId,omitempty"`
	TestMode         bool   `json:"isTest"`
	Currency         string `json:"currency"`
	Country          string `json:"country,omitempty"`
}
