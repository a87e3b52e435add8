package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"escolapay/internal/config"
	"escolapay/internal/pkg/httpclient"
)

// ChargeRequest is the charge-creation payload sent to the billing provider.
type ChargeRequest struct {
	Customer          string  `json:"customer"`
	BillingType       string  `json:"billingType"`
	DueDate           string  `json:"dueDate"`
	Value             float64 `json:"value"`
	Description       string  `json:"description,omitempty"`
	ExternalReference string  `json:"externalReference,omitempty"`
}

// Charge is the subset of the provider's charge object this service reads.
// Raw keeps the full response body so callers can return it verbatim.
type Charge struct {
	ID                string  `json:"id"`
	Status            string  `json:"status"`
	Value             float64 `json:"value"`
	DueDate           string  `json:"dueDate"`
	PaymentDate       string  `json:"paymentDate"`
	ExternalReference string  `json:"externalReference"`

	Raw json.RawMessage `json:"-"`
}

// Client talks to the billing provider's REST API. All charges are created
// and later queried through it; webhook deliveries arrive out of band.
type Client struct {
	billingType string
	http        *httpclient.Client
	now         func() time.Time
}

func NewClient(cfg config.ProviderConfig) *Client {
	billingType := cfg.BillingMethod
	if billingType == "" {
		billingType = "BOLETO"
	}
	return &Client{
		billingType: billingType,
		http: httpclient.New().
			WithBaseURL(cfg.BaseURL).
			WithTimeout(cfg.RequestTimeout).
			WithHeader("access_token", cfg.APIKey).
			WithHeader("Content-Type", "application/json"),
		now: time.Now,
	}
}

// DefaultBillingType returns the billing method used when a request does not
// specify one.
func (c *Client) DefaultBillingType() string {
	return c.billingType
}

// CreateCharge validates the request and issues a single synchronous call to
// the provider's charge-creation endpoint. No retry is performed here; a
// retried call with the same ExternalReference can be reconciled against the
// charge the first attempt created.
func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}
	if req.BillingType == "" {
		req.BillingType = c.billingType
	}

	resp, err := c.http.Post(ctx, "/payments", req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !resp.Success() {
		return nil, &RejectedError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	return parseCharge(resp.Body)
}

// GetCharge fetches the provider's current view of a charge.
func (c *Client) GetCharge(ctx context.Context, chargeID string) (*Charge, error) {
	if chargeID == "" {
		return nil, fmt.Errorf("%w: charge id is required", ErrInvalidRequest)
	}

	resp, err := c.http.Get(ctx, "/payments/"+chargeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !resp.Success() {
		return nil, &RejectedError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	return parseCharge(resp.Body)
}

func (c *Client) validate(req ChargeRequest) error {
	if req.Customer == "" {
		return fmt.Errorf("%w: customer is required", ErrInvalidRequest)
	}
	if req.Value <= 0 {
		return fmt.Errorf("%w: value must be positive", ErrInvalidRequest)
	}
	due, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		return fmt.Errorf("%w: dueDate must be YYYY-MM-DD", ErrInvalidRequest)
	}
	// due parses at UTC midnight, so the "today" boundary is built in UTC
	// too, from the local calendar date.
	y, m, d := c.now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if due.Before(today) {
		return fmt.Errorf("%w: dueDate is in the past", ErrInvalidRequest)
	}
	return nil
}

func parseCharge(body []byte) (*Charge, error) {
	var charge Charge
	if err := json.Unmarshal(body, &charge); err != nil {
		return nil, fmt.Errorf("provider response parse error: %w", err)
	}
	if charge.ID == "" {
		return nil, fmt.Errorf("provider response missing charge id")
	}
	charge.Raw = json.RawMessage(body)
	return &charge, nil
}
