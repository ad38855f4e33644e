package lalamove

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/primecutco/primecut-backend/pkg/config"
	pkgerrors "github.com/primecutco/primecut-backend/pkg/errors"
)

const (
	quotationsPath              = "/v3/quotations"
	ordersPath                  = "/v3/orders"
	responseBodyReadLimit int64 = 1024
)

// Client wraps the Lalamove REST API used for carrier placement.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	apiSecret   string
	market      string
	maxAttempts int
	now         func() time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured REST base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithClock overrides the timestamp source used for request signing.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds the Lalamove client from configuration.
func NewClient(cfg config.LalamoveConfig, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("lalamove api key is required")
	}
	apiSecret := strings.TrimSpace(cfg.APISecret)
	if apiSecret == "" {
		return nil, fmt.Errorf("lalamove api secret is required")
	}
	market := strings.TrimSpace(cfg.Market)
	if market == "" {
		return nil, fmt.Errorf("lalamove market is required")
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	client := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimSpace(cfg.BaseURL),
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		market:      market,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.baseURL == "" {
		return nil, fmt.Errorf("lalamove base url is required")
	}

	return client, nil
}

// Coordinates is the lat/lng pair Lalamove expects as strings.
type Coordinates struct {
	Lat string `json:"lat"`
	Lng string `json:"lng"`
}

// Stop is one waypoint on a quotation.
type Stop struct {
	Coordinates Coordinates `json:"coordinates"`
	Address     string      `json:"address"`
}

// QuoteRequest describes a pickup/dropoff quotation.
type QuoteRequest struct {
	ServiceType string `json:"serviceType"`
	Language    string `json:"language,omitempty"`
	Stops       []Stop `json:"stops"`
}

// Quotation is the priced quote returned by the carrier.
type Quotation struct {
	QuotationID string
	PriceTotal  string
	Currency    string
	ExpiresAt   string
	StopIDs     []string
}

// Contact identifies the sender or a recipient on an order.
type Contact struct {
	StopID string `json:"stopId"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
}

// PlaceOrderRequest places an order against a prior quotation.
type PlaceOrderRequest struct {
	QuotationID string    `json:"quotationId"`
	Sender      Contact   `json:"sender"`
	Recipients  []Contact `json:"recipients"`
}

// Order is the carrier-side order created from a quotation.
type Order struct {
	OrderID   string
	State     string
	ShareLink string
}

// Quote requests a priced quotation for the given stops.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*Quotation, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "lalamove client not configured")
	}
	if len(req.Stops) < 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quotation requires pickup and dropoff stops")
	}
	if strings.TrimSpace(req.ServiceType) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "service type is required")
	}

	var apiResp struct {
		Data struct {
			QuotationID    string `json:"quotationId"`
			ExpiresAt      string `json:"expiresAt"`
			PriceBreakdown struct {
				Total    string `json:"total"`
				Currency string `json:"currency"`
			} `json:"priceBreakdown"`
			Stops []struct {
				StopID string `json:"stopId"`
			} `json:"stops"`
		} `json:"data"`
	}

	if err := c.do(ctx, http.MethodPost, quotationsPath, envelope{Data: req}, &apiResp); err != nil {
		return nil, err
	}

	stopIDs := make([]string, 0, len(apiResp.Data.Stops))
	for _, stop := range apiResp.Data.Stops {
		stopIDs = append(stopIDs, stop.StopID)
	}

	return &Quotation{
		QuotationID: apiResp.Data.QuotationID,
		PriceTotal:  apiResp.Data.PriceBreakdown.Total,
		Currency:    apiResp.Data.PriceBreakdown.Currency,
		ExpiresAt:   apiResp.Data.ExpiresAt,
		StopIDs:     stopIDs,
	}, nil
}

// PlaceOrder creates a carrier order from a quotation, retrying transient
// upstream failures within the configured attempt budget.
func (c *Client) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "lalamove client not configured")
	}
	if strings.TrimSpace(req.QuotationID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quotation id is required")
	}
	if len(req.Recipients) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one recipient is required")
	}

	var apiResp struct {
		Data struct {
			OrderID   string `json:"orderId"`
			State     string `json:"state"`
			ShareLink string `json:"shareLink"`
		} `json:"data"`
	}

	backoff := retry.WithMaxRetries(uint64(c.maxAttempts-1), retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, ordersPath, envelope{Data: req}, &apiResp)
	})
	if err != nil {
		return nil, err
	}

	return &Order{
		OrderID:   apiResp.Data.OrderID,
		State:     apiResp.Data.State,
		ShareLink: apiResp.Data.ShareLink,
	}, nil
}

type envelope struct {
	Data any `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "marshal carrier request")
	}

	url := strings.TrimRight(c.baseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "build carrier request")
	}

	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	signature := Sign(c.apiSecret, timestamp, method, path, payload)

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Market", c.market)
	httpReq.Header.Set("Authorization", fmt.Sprintf("hmac %s:%s:%s", c.apiKey, timestamp, signature))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "execute carrier request"))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		upstream := pkgerrors.Wrap(pkgerrors.CodeUpstream, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "carrier request failed")
		return retry.RetryableError(upstream)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "carrier request rejected")
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "decode carrier response")
	}
	return nil
}

// Sign computes the HMAC-SHA256 request signature Lalamove expects.
func Sign(secret, timestamp, method, path string, body []byte) string {
	raw := fmt.Sprintf("%s\r\n%s\r\n%s\r\n\r\n%s", timestamp, strings.ToUpper(method), path, string(body))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks the signature header on webhook deliveries.
// Lalamove signs webhooks over "{timestamp}\r\n{body}" with the webhook secret.
func VerifyWebhookSignature(secret, timestamp string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	raw := fmt.Sprintf("%s\r\n%s", timestamp, string(body))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(raw))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
