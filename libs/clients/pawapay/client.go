package pawapay

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"

	"github.com/myzuwa/pawapay-go/libs/clients"
)

const (
	// SandboxServer - base url for the pawapay sandbox environment
	SandboxServer = "https://api.sandbox.pawapay.io"
	// ProductionServer - base url for the pawapay production environment
	ProductionServer = "https://api.pawapay.io"

	// StatusAccepted - the initiation request was accepted for processing
	StatusAccepted = "ACCEPTED"
	// StatusRejected - the initiation request was rejected outright
	StatusRejected = "REJECTED"
	// StatusCompleted - the payment finished successfully
	StatusCompleted = "COMPLETED"
	// StatusFailed - the payment finished unsuccessfully
	StatusFailed = "FAILED"
	// StatusProcessing - the payment is still being processed
	StatusProcessing = "PROCESSING"
	// StatusInReconciliation - the payment is being reconciled upstream
	StatusInReconciliation = "IN_RECONCILIATION"
)

// Client abstracts over the underlying client
type Client interface {
	GetActiveConfiguration(ctx context.Context, country, operationType string) (*ActiveConfiguration, error)
	PredictProvider(ctx context.Context, phoneNumber string) (*ProviderPrediction, error)
	CreateDeposit(ctx context.Context, req DepositRequest) (*DepositResponse, error)
	GetDepositStatus(ctx context.Context, depositID string) (*DepositResponse, error)
	CreatePayout(ctx context.Context, req PayoutRequest) (*PayoutResponse, error)
	GetPayoutStatus(ctx context.Context, payoutID string) (*PayoutResponse, error)
	ResendPayoutCallback(ctx context.Context, payoutID string) (*PayoutResponse, error)
}

// HTTPClient wraps http.Client for interacting with the pawapay api
type HTTPClient struct {
	client *clients.SimpleHTTPClient
}

// New returns a new HTTPClient, retrieving the base URL from the environment
func New() (Client, error) {
	serverURL := os.Getenv("PAWAPAY_SERVICE")
	if len(serverURL) == 0 {
		if os.Getenv("ENV") == "production" {
			serverURL = ProductionServer
		} else {
			serverURL = SandboxServer
		}
	}
	token := os.Getenv("PAWAPAY_TOKEN")
	if len(token) == 0 {
		return nil, errors.New("PAWAPAY_TOKEN was empty")
	}
	return NewWithOptions(serverURL, token)
}

// NewWithOptions returns a new HTTPClient for the given server and token
func NewWithOptions(serverURL, token string) (Client, error) {
	client, err := clients.New(serverURL, token, "pawapay")
	if err != nil {
		return nil, err
	}
	return &HTTPClient{client}, nil
}

// NewWithHTTPClient returns a new HTTPClient using the provided http.Client, used in tests
func NewWithHTTPClient(serverURL, token string, client *http.Client) (Client, error) {
	simple, err := clients.NewWithHTTPClient(serverURL, token, client)
	if err != nil {
		return nil, err
	}
	return &HTTPClient{simple}, nil
}

// OperationConfiguration describes one operation type (DEPOSIT/PAYOUT) for a provider currency
type OperationConfiguration struct {
	Status           string `json:"status"`
	MinAmount        string `json:"minAmount"`
	MaxAmount        string `json:"maxAmount"`
	AuthType         string `json:"authType,omitempty"`
	PinPrompt        string `json:"pinPrompt,omitempty"`
	DecimalsInAmount string `json:"decimalsInAmount,omitempty"`
}

// CurrencyConfiguration describes one currency supported by a provider
type CurrencyConfiguration struct {
	Currency       string                            `json:"currency"`
	DisplayName    string                            `json:"displayName,omitempty"`
	OperationTypes map[string]OperationConfiguration `json:"operationTypes"`
}

// ProviderConfiguration describes one mobile network operator
type ProviderConfiguration struct {
	Provider                string                  `json:"provider"`
	DisplayName             string                  `json:"displayName,omitempty"`
	Logo                    string                  `json:"logo,omitempty"`
	NameDisplayedToCustomer string                  `json:"nameDisplayedToCustomer,omitempty"`
	Currencies              []CurrencyConfiguration `json:"currencies"`
}

// CountryConfiguration groups the providers of one country
type CountryConfiguration struct {
	Country   string                  `json:"country"`
	Providers []ProviderConfiguration `json:"providers"`
}

// ActiveConfiguration is the response of the active-conf endpoint
type ActiveConfiguration struct {
	Countries []CountryConfiguration `json:"countries"`
}

type activeConfQuery struct {
	country       string
	operationType string
}

func (q *activeConfQuery) GenerateQueryString() (url.Values, error) {
	v := url.Values{}
	v.Set("country", q.country)
	v.Set("operationType", q.operationType)
	return v, nil
}

// GetActiveConfiguration fetches the operational configuration for a country
func (c *HTTPClient) GetActiveConfiguration(ctx context.Context, country, operationType string) (*ActiveConfiguration, error) {
	req, err := c.client.NewRequest(ctx, "GET", "v2/active-conf", nil, &activeConfQuery{country, operationType})
	if err != nil {
		return nil, err
	}

	var resp ActiveConfiguration
	if _, err := c.client.Do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProviderPrediction is the response of the predict-provider endpoint
type ProviderPrediction struct {
	Country     string `json:"country"`
	Provider    string `json:"provider"`
	PhoneNumber string `json:"phoneNumber"`
}

type predictProviderRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// PredictProvider asks the gateway which operator serves a phone number.
// Prediction is best effort, callers treat an error as "prediction unavailable"
func (c *HTTPClient) PredictProvider(ctx context.Context, phoneNumber string) (*ProviderPrediction, error) {
	req, err := c.client.NewRequest(ctx, "POST", "v2/predict-provider", &predictProviderRequest{PhoneNumber: phoneNumber}, nil)
	if err != nil {
		return nil, err
	}

	var resp ProviderPrediction
	if _, err := c.client.Do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AccountDetails identifies a mobile money account
type AccountDetails struct {
	Provider    string `json:"provider"`
	PhoneNumber string `json:"phoneNumber"`
}

// Party is the payer or recipient of a payment
type Party struct {
	Type           string         `json:"type"`
	AccountDetails AccountDetails `json:"accountDetails"`
}

// FailureReason carries the gateway's failure detail
type FailureReason struct {
	FailureCode    string `json:"failureCode"`
	FailureMessage string `json:"failureMessage"`
}

// DepositRequest initiates a customer to marketplace payment.
// Amount is a string with at most two decimals, currency upper case
type DepositRequest struct {
	DepositID       string            `json:"depositId"`
	Amount          string            `json:"amount"`
	Currency        string            `json:"currency"`
	Payer           Party             `json:"payer"`
	CustomerMessage string            `json:"customerMessage,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// DepositResponse is the gateway's view of a deposit
type DepositResponse struct {
	DepositID     string         `json:"depositId"`
	Status        string         `json:"status"`
	Amount        string         `json:"amount,omitempty"`
	Currency      string         `json:"currency,omitempty"`
	FailureReason *FailureReason `json:"failureReason,omitempty"`
}

// CreateDeposit initiates a deposit. The deposit id doubles as the
// idempotency key, retrying with the same id cannot double charge
func (c *HTTPClient) CreateDeposit(ctx context.Context, deposit DepositRequest) (*DepositResponse, error) {
	req, err := c.client.NewRequest(ctx, "POST", "v2/deposits", &deposit, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Idempotency-Key", deposit.DepositID)

	var resp DepositResponse
	if _, err := c.client.Do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetDepositStatus checks the current status of a deposit
func (c *HTTPClient) GetDepositStatus(ctx context.Context, depositID string) (*DepositResponse, error) {
	req, err := c.client.NewRequest(ctx, "GET", "v2/deposits/"+depositID, nil, nil)
	if err != nil {
		return nil, err
	}

	var resp DepositResponse
	if _, err := c.client.Do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PayoutRequest initiates a marketplace to vendor payment
type PayoutRequest struct {
	PayoutID        string            `json:"payoutId"`
	Amount          string            `json:"amount"`
	Currency        string            `json:"currency"`
	Recipient       Party             `json:"recipient"`
	CustomerMessage string            `json:"customerMessage,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// PayoutResponse is the gateway's view of a payout
type PayoutResponse struct {
	PayoutID      string         `json:"payoutId"`
	Status        string         `json:"status"`
	Amount        string         `json:"amount,omitempty"`
	Currency      string         `json:"currency,omitempty"`
	FailureReason *FailureReason `json:"failureReason,omitempty"`
}

// CreatePayout initiates a payout. The payout id doubles as the idempotency key
func (c *HTTPClient) CreatePayout(ctx context.Context, payout PayoutRequest) (*PayoutResponse, error) {
	req, err := c.client.NewRequest(ctx, "POST", "v2/payouts", &payout, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Idempotency-Key", payout.PayoutID)

	var resp PayoutResponse
	if _, err := c.client.Do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPayoutStatus checks the current status of a payout
func (c *HTTPClient) GetPayoutStatus(ctx context.Context, payoutID string) (*PayoutResponse, error) {
	req, err := c.client.NewRequest(ctx, "GET", "v2/payouts/"+payoutID, nil, nil)
	if err != nil {
		return nil, err
	}

	var resp PayoutResponse
	if _, err := c.client.Do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResendPayoutCallback asks the gateway to redeliver the final payout webhook
func (c *HTTPClient) ResendPayoutCallback(ctx context.Context, payoutID string) (*PayoutResponse, error) {
	req, err := c.client.NewRequest(ctx, "POST", "v2/payouts/resend-callback/"+payoutID, nil, nil)
	if err != nil {
		return nil, err
	}

	var resp PayoutResponse
	if _, err := c.client.Do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
