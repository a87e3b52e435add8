package models

// CreateChargeRequest is the body of POST /payments/create.
type CreateChargeRequest struct {
	CustomerProviderID string  `json:"customerProviderId" validate:"required"`
	DueDate            string  `json:"dueDate" validate:"required,datetime=2006-01-02"`
	Amount             float64 `json:"amount" validate:"required,gt=0"`
	Description        string  `json:"description"`
	BillingMethod      string  `json:"billingMethod"`
}

// WebhookPayment is the payment object embedded in a provider event.
// Fields beyond these are preserved only in the raw payload.
type WebhookPayment struct {
	ProviderChargeID string   `json:"id"`
	Status           string   `json:"status"`
	Value            *float64 `json:"value"`
	PaymentDate      string   `json:"paymentDate"`
	DueDate          string   `json:"dueDate"`
	Description      string   `json:"description"`
	DateCreated      string   `json:"dateCreated"`
}

// WebhookEvent is the body of a provider webhook delivery.
type WebhookEvent struct {
	Event   string         `json:"event"`
	Payment WebhookPayment `json:"payment"`
}
