package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway response codes.
const (
	ResponseCodeSuccess       = "100"
	ResponseCodeAuthorized    = "111"
	ResponseCodeAuthorizedAlt = "481"
)

// GatewayConfig holds the payment gateway credentials and endpoints.
type GatewayConfig struct {
	MerchantEmail string
	SecretKey     string
	VerifyURL     string
	CaptureURL    string
	WebhookSecret string
	Timeout       time.Duration
}

func (c GatewayConfig) Validate() error {
	if c.MerchantEmail == "" {
		return fmt.Errorf("GATEWAY_MERCHANT_EMAIL is not set")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("GATEWAY_SECRET_KEY is not set")
	}
	if c.VerifyURL == "" {
		return fmt.Errorf("GATEWAY_VERIFY_URL is not set")
	}
	if c.CaptureURL == "" {
		return fmt.Errorf("GATEWAY_CAPTURE_URL is not set")
	}
	return nil
}

// VerifyResult is the gateway's view of one payment.
type VerifyResult struct {
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	ResponseCode  string `json:"response_code"`
	Result        string `json:"result"`
	// Amount arrives as a JSON string or number depending on the endpoint.
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
}

// AmountDecimal parses Amount so that "25.50" and 25.5 compare equal.
func (r VerifyResult) AmountDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(r.Amount.String()))
}

type CaptureResult struct {
	ResponseCode string `json:"response_code"`
	Result       string `json:"result"`
}

// PaymentGateway is the external card processor.
type PaymentGateway interface {
	Verify(ctx context.Context, transactionID string) (*VerifyResult, error)
	Capture(ctx context.Context, transactionID string, amount decimal.Decimal) error
}

// GatewayService talks to a PayTabs-style form API.
type GatewayService struct {
	config     GatewayConfig
	httpClient *http.Client
}

func NewGatewayService(config GatewayConfig) *GatewayService {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GatewayService{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Verify asks the gateway for the status of transactionID.
func (gs *GatewayService) Verify(ctx context.Context, transactionID string) (*VerifyResult, error) {
	form := gs.credentials()
	form.Set("transaction_id", transactionID)

	var result VerifyResult
	if err := gs.post(ctx, gs.config.VerifyURL, form, &result); err != nil {
		return nil, err
	}
	if result.OrderID == "" {
		return nil, errors.New("gateway verify response has no order_id")
	}
	return &result, nil
}

// Capture releases a held (authorized) payment.
func (gs *GatewayService) Capture(ctx context.Context, transactionID string, amount decimal.Decimal) error {
	form := gs.credentials()
	form.Set("transaction_id", transactionID)
	form.Set("amount", amount.StringFixed(MoneyPlaces))

	var result CaptureResult
	if err := gs.post(ctx, gs.config.CaptureURL, form, &result); err != nil {
		return err
	}
	if result.ResponseCode != ResponseCodeSuccess {
		return fmt.Errorf("capture of %s declined: %s %s", transactionID, result.ResponseCode, result.Result)
	}
	return nil
}

// ValidateSignature checks the hex HMAC-SHA256 of a webhook body.
// With no webhook secret configured every body is accepted.
func (gs *GatewayService) ValidateSignature(body []byte, signature string) bool {
	return ValidateWebhookSignature(gs.config.WebhookSecret, body, signature)
}

func ValidateWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func (gs *GatewayService) credentials() url.Values {
	form := url.Values{}
	form.Set("merchant_email", gs.config.MerchantEmail)
	form.Set("secret_key", gs.config.SecretKey)
	return form
}

func (gs *GatewayService) post(ctx context.Context, endpoint string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := gs.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error unmarshaling response: %w", err)
	}
	return nil
}
