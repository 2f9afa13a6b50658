package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wellora/telehealth-booking/pkg/logging"
)

var stripeTracer = otel.Tracer("wellora.internal.payments.stripe")

// Client talks to the Stripe API directly: customers, products, prices, and
// checkout sessions. Requests are form-encoded against a pinned API version.
type Client struct {
	secretKey  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a Stripe API client.
func NewClient(secretKey string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		secretKey:  secretKey,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (c *Client) WithBaseURL(baseURL string) *Client {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// CreateCustomer creates a gateway customer record and returns its id.
func (c *Client) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	form := url.Values{}
	form.Set("email", email)
	if strings.TrimSpace(name) != "" {
		form.Set("name", name)
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v1/customers", form, &parsed); err != nil {
		return "", err
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("payments: stripe response missing customer id")
	}
	return parsed.ID, nil
}

// CreateProduct creates a product record for a catalog appointment type.
func (c *Client) CreateProduct(ctx context.Context, name string) (string, error) {
	form := url.Values{}
	form.Set("name", name)

	var parsed struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v1/products", form, &parsed); err != nil {
		return "", err
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("payments: stripe response missing product id")
	}
	return parsed.ID, nil
}

// CreatePrice creates a one-time USD price for the product.
func (c *Client) CreatePrice(ctx context.Context, productID string, amountCents int64) (string, error) {
	form := url.Values{}
	form.Set("product", productID)
	form.Set("currency", "usd")
	form.Set("unit_amount", fmt.Sprintf("%d", amountCents))

	var parsed struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v1/prices", form, &parsed); err != nil {
		return "", err
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("payments: stripe response missing price id")
	}
	return parsed.ID, nil
}

// CheckoutSessionParams describes a hosted checkout session for one price.
type CheckoutSessionParams struct {
	PriceID    string
	CustomerID string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// CheckoutSession is the subset of Stripe's session object we use.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckoutSession creates a one-time-payment checkout session. Metadata
// is mirrored onto the payment intent so webhook handlers can read it from
// either object.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_checkout_session")
	defer span.End()
	span.SetAttributes(
		attribute.String("wellora.price_id", params.PriceID),
		attribute.String("wellora.customer_id", params.CustomerID),
	)

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price]", params.PriceID)
	form.Set("line_items[0][quantity]", "1")
	if params.CustomerID != "" {
		form.Set("customer", params.CustomerID)
	}
	if params.SuccessURL != "" {
		form.Set("success_url", params.SuccessURL)
	}
	if params.CancelURL != "" {
		form.Set("cancel_url", params.CancelURL)
	}
	for k, v := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
		form.Set(fmt.Sprintf("payment_intent_data[metadata][%s]", k), v)
	}

	var parsed CheckoutSession
	if err := c.post(ctx, "/v1/checkout/sessions", form, &parsed); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if parsed.URL == "" {
		return nil, fmt.Errorf("payments: stripe response missing checkout url")
	}
	return &parsed, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", c.apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payments: stripe http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("payments: stripe api status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("payments: stripe decode: %w", err)
	}
	return nil
}
