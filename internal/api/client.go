// Package api is the typed client for the remote property-maintenance REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
)

// DefaultBaseURL is the local development address of the API.
const DefaultBaseURL = "http://127.0.0.1:8000/api"

const maxErrorBody = 2048

var tracer = otel.Tracer("github.com/linnemanlabs/proco/internal/api")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	Route      string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("api error %d: %s %s: %s", e.StatusCode, e.Method, e.Route, e.Body)
	}
	return fmt.Sprintf("api error %d: %s %s", e.StatusCode, e.Method, e.Route)
}

// Client talks JSON over HTTP to the API rooted at baseURL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     log.Logger
}

// New creates a client. An empty baseURL selects DefaultBaseURL.
func New(baseURL string, timeout time.Duration, logger log.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = log.Nop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string { return c.baseURL }

// ListIssues returns every issue.
func (c *Client) ListIssues(ctx context.Context) ([]Issue, error) {
	var out []Issue
	if err := c.do(ctx, http.MethodGet, "/issues", "/issues", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListIssueMessages returns the chat transcript of an issue.
func (c *Client) ListIssueMessages(ctx context.Context, issueID string) ([]ChatMessage, error) {
	var out []ChatMessage
	path := "/issues/" + url.PathEscape(issueID) + "/messages"
	if err := c.do(ctx, http.MethodGet, "/issues/{id}/messages", path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PostIssueMessage appends a message to an issue transcript.
func (c *Client) PostIssueMessage(ctx context.Context, issueID string, msg NewIssueMessage) (*ChatMessage, error) {
	var out ChatMessage
	path := "/issues/" + url.PathEscape(issueID) + "/messages"
	if err := c.do(ctx, http.MethodPost, "/issues/{id}/messages", path, nil, msg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestVendor asks a vendor to take an issue.
func (c *Client) RequestVendor(ctx context.Context, issueID, vendorID string) (*StatusAck, error) {
	var out StatusAck
	path := "/issues/" + url.PathEscape(issueID) + "/vendor-request"
	q := url.Values{"vendor_id": []string{vendorID}}
	if err := c.do(ctx, http.MethodPost, "/issues/{id}/vendor-request", path, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RespondAsVendor records a vendor's accept/decline decision.
func (c *Client) RespondAsVendor(ctx context.Context, issueID string, resp VendorResponse) error {
	path := "/issues/" + url.PathEscape(issueID) + "/vendor-response"
	return c.do(ctx, http.MethodPost, "/issues/{id}/vendor-response", path, nil, resp, nil)
}

// ApproveIssue approves a pending issue.
func (c *Client) ApproveIssue(ctx context.Context, issueID string) (*Issue, error) {
	var out Issue
	path := "/issues/" + url.PathEscape(issueID) + "/approve"
	if err := c.do(ctx, http.MethodPatch, "/issues/{id}/approve", path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RejectIssue rejects an issue.
func (c *Client) RejectIssue(ctx context.Context, issueID string) (*Issue, error) {
	var out Issue
	path := "/issues/" + url.PathEscape(issueID) + "/reject"
	if err := c.do(ctx, http.MethodPatch, "/issues/{id}/reject", path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListVendors returns every vendor.
func (c *Client) ListVendors(ctx context.Context) ([]Vendor, error) {
	var out []Vendor
	if err := c.do(ctx, http.MethodGet, "/vendors", "/vendors", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListProperties returns every property.
func (c *Client) ListProperties(ctx context.Context) ([]Property, error) {
	var out []Property
	if err := c.do(ctx, http.MethodGet, "/properties", "/properties", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProperty returns a single property.
func (c *Client) GetProperty(ctx context.Context, propertyID string) (*Property, error) {
	var out Property
	path := "/properties/" + url.PathEscape(propertyID)
	if err := c.do(ctx, http.MethodGet, "/properties/{id}", path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUser returns a single user.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var out User
	path := "/users/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodGet, "/users/{id}", path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUsers returns users, optionally filtered by role.
func (c *Client) ListUsers(ctx context.Context, role string) ([]User, error) {
	var q url.Values
	if role != "" {
		q = url.Values{"role": []string{role}}
	}
	var out []User
	if err := c.do(ctx, http.MethodGet, "/users", "/users", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListWallets returns the wallet summary of every property.
func (c *Client) ListWallets(ctx context.Context) ([]Wallet, error) {
	var out []Wallet
	if err := c.do(ctx, http.MethodGet, "/wallets", "/wallets", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TopUpWallet adds funds to a property wallet.
func (c *Client) TopUpWallet(ctx context.Context, req TopUpRequest) (*Wallet, error) {
	var out Wallet
	if err := c.do(ctx, http.MethodPost, "/wallets/topup", "/wallets/topup", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetWalletBalance replaces the total balance of a property wallet.
func (c *Client) SetWalletBalance(ctx context.Context, req BalanceUpdate) (*Wallet, error) {
	var out Wallet
	if err := c.do(ctx, http.MethodPatch, "/wallets/balance", "/wallets/balance", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat sends a tenant message to the assistant.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.do(ctx, http.MethodPost, "/chat", "/chat", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one request. route is the templated path used for span names and metric labels.
func (c *Client) do(ctx context.Context, method, route, path string, query url.Values, in, out any) (err error) {
	ctx, span := tracer.Start(ctx, "api "+method+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("http.route", route),
		))
	defer span.End()

	start := time.Now()
	status := 0
	defer func() {
		if o := getRequestObserver(); o != nil {
			o.ObserveRequest(ctx, method, route, outcome(status, err), time.Since(start))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, route, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // base URL comes from trusted config
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, route, err)
	}
	defer func() { _ = resp.Body.Close() }()

	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	if status < 200 || status >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn(ctx, "api request rejected", "method", method, "route", route, "status", status)
		return &StatusError{
			Method:     method,
			Route:      route,
			StatusCode: status,
			Body:       strings.TrimSpace(string(b)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, route, err)
	}
	return nil
}
