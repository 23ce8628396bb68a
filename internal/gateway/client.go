// Package gateway is the PayPal REST client: token exchange, JSON calls,
// checkout helpers and delegated webhook signature verification.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/01moynul/creator-commerce/internal/metrics"
)

const (
	ModeSandbox = "sandbox"
	ModeLive    = "live"

	SandboxBaseURL = "https://api-m.sandbox.paypal.com"
	LiveBaseURL    = "https://api-m.paypal.com"

	tokenPath  = "/v1/oauth2/token"
	verifyPath = "/v1/notifications/verify-webhook-signature"

	maxResponseBody = 1 << 20
)

// Config holds the gateway credentials and endpoints.
type Config struct {
	Mode         string
	ClientID     string
	ClientSecret string
	WebhookID    string
	// BaseURL overrides the mode's default API host.
	BaseURL    string
	HTTPClient *http.Client
}

// Client talks to the gateway. Access tokens are cached per Client and
// refreshed shortly before they expire. Safe for concurrent use.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	creds      *clientcredentials.Config
	log        *logrus.Entry
	tracer     trace.Tracer

	mu    sync.Mutex
	token *oauth2.Token
}

// New builds a Client. Missing credentials are reported by the first call
// that needs them, not here.
func New(cfg Config, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = SandboxBaseURL
		if strings.EqualFold(cfg.Mode, ModeLive) {
			base = LiveBaseURL
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	instrumented := *httpClient
	instrumented.Transport = &countingTransport{base: httpClient.Transport}

	return &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &instrumented,
		creds: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     base + tokenPath,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		log:        logger.WithField("component", "gateway"),
		tracer:     otel.Tracer("github.com/01moynul/creator-commerce/internal/gateway"),
	}
}

// BaseURL is the API host in use.
func (c *Client) BaseURL() string { return c.baseURL }

// AccessToken returns a bearer token from the client-credentials grant. A
// cached token is reused until shortly before it expires; a refresh runs on
// ctx, so cancelling the caller aborts it.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if c.cfg.ClientID == "" {
		return "", &ConfigError{Field: "PAYPAL_CLIENT_ID"}
	}
	if c.cfg.ClientSecret == "" {
		return "", &ConfigError{Field: "PAYPAL_CLIENT_SECRET"}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token.Valid() {
		return c.token.AccessToken, nil
	}

	tok, err := c.creds.Token(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("fetch access token: %w", ctxErr)
		}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			return "", &ProtocolError{Op: "token", Status: status, Body: strings.TrimSpace(string(re.Body))}
		}
		return "", fmt.Errorf("fetch access token: %w", err)
	}
	c.token = tok
	return tok.AccessToken, nil
}

// Request sends a JSON call with a bearer token. out is filled only when the
// response has a body; pass nil to discard it.
func (c *Client) Request(ctx context.Context, method, path string, body, out any) error {
	ctx, span := c.tracer.Start(ctx, "gateway.request", trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("gateway.path", path),
	))
	defer span.End()

	err := c.request(ctx, method, path, body, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProtocolError{Op: method + " " + path, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CreateOrder opens a checkout order.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if req.Intent == "" {
		req.Intent = "CAPTURE"
	}
	var order Order
	if err := c.Request(ctx, http.MethodPost, "/v2/checkout/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CaptureOrder captures an approved order.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, errors.New("order id is required")
	}
	var order Order
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	if err := c.Request(ctx, http.MethodPost, path, struct{}{}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateSubscription starts a billing subscription for a plan.
func (c *Client) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error) {
	if req.PlanID == "" {
		return nil, &ConfigError{Field: "plan id"}
	}
	var sub Subscription
	if err := c.Request(ctx, http.MethodPost, "/v1/billing/subscriptions", req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// countingTransport records every outbound call in the gateway metrics.
type countingTransport struct {
	base http.RoundTripper
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		metrics.RecordGatewayRequest(req.Method, 0)
		return nil, err
	}
	metrics.RecordGatewayRequest(req.Method, resp.StatusCode)
	return resp, nil
}
