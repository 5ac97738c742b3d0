package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/shopspring/decimal"
)

type recordedRequest struct {
	Method string
	Path   string
	Raw    string
	Query  string
	Body   string
	CType  string
}

// newTestServer serves canned responses keyed by "METHOD /path" and records requests.
func newTestServer(t *testing.T, routes map[string]string) (*Client, *[]recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Raw:    r.URL.EscapedPath(),
			Query:  r.URL.RawQuery,
			Body:   string(b),
			CType:  r.Header.Get("Content-Type"),
		})
		mu.Unlock()

		body, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api", 5*time.Second, log.Nop()), &reqs
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	c := New("", 0, nil)
	if c.BaseURL() != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", c.BaseURL(), DefaultBaseURL)
	}
	if c.logger == nil {
		t.Error("expected Nop logger for nil logger")
	}

	c = New("http://api.example/api/", time.Second, nil)
	if c.BaseURL() != "http://api.example/api" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", c.BaseURL())
	}
}

func TestListIssues_Decodes(t *testing.T) {
	t.Parallel()

	c, reqs := newTestServer(t, map[string]string{
		"GET /api/issues": `[{
			"id":"i-1","tenant_id":"t-1","property_id":"p-1","category":"plumbing",
			"summary":"Leak","description":"Kitchen sink","status":"pending",
			"vendor_id":null,"estimated_cost":150.5,"appointment_at":null,
			"created_at":"2026-01-10T09:00:00Z"
		}]`,
	})

	issues, err := c.ListIssues(context.Background())
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("len = %d, want 1", len(issues))
	}
	got := issues[0]
	if got.Status != IssueStatusPending {
		t.Errorf("Status = %q, want %q", got.Status, IssueStatusPending)
	}
	if got.VendorID != nil {
		t.Errorf("VendorID = %v, want nil", *got.VendorID)
	}
	if got.EstimatedCost == nil || !got.EstimatedCost.Equal(decimal.RequireFromString("150.5")) {
		t.Errorf("EstimatedCost = %v, want 150.5", got.EstimatedCost)
	}
	if (*reqs)[0].Method != http.MethodGet || (*reqs)[0].Path != "/api/issues" {
		t.Errorf("request = %s %s, want GET /api/issues", (*reqs)[0].Method, (*reqs)[0].Path)
	}
}

func TestListVendors_DecodesRates(t *testing.T) {
	t.Parallel()

	c, _ := newTestServer(t, map[string]string{
		"GET /api/vendors": `[{"id":"v-1","name":"FlowFix","email":null,"specialty":"plumbing","hourly_rate":110.0,"rating":4.5}]`,
	})

	vendors, err := c.ListVendors(context.Background())
	if err != nil {
		t.Fatalf("ListVendors: %v", err)
	}
	if !vendors[0].HourlyRate.Equal(decimal.NewFromInt(110)) {
		t.Errorf("HourlyRate = %s, want 110", vendors[0].HourlyRate)
	}
	if vendors[0].Rating == nil || *vendors[0].Rating != 4.5 {
		t.Errorf("Rating = %v, want 4.5", vendors[0].Rating)
	}
}

func TestNon2xx_ReturnsStatusError(t *testing.T) {
	t.Parallel()

	c, _ := newTestServer(t, map[string]string{})

	_, err := c.ListWallets(context.Background())
	if err == nil {
		t.Fatal("expected error for 404")
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %T, want *StatusError", err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", se.StatusCode)
	}
	if se.Route != "/wallets" {
		t.Errorf("Route = %q, want /wallets", se.Route)
	}
	if !strings.Contains(se.Error(), "api error 404") {
		t.Errorf("Error() = %q, want api error prefix", se.Error())
	}
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second, log.Nop())
	_, err := c.ListIssues(context.Background())
	if err == nil {
		t.Fatal("expected transport error")
	}
	var se *StatusError
	if errors.As(err, &se) {
		t.Fatal("transport failure should not be a StatusError")
	}
}

func TestIssueActions_PathsAndMethods(t *testing.T) {
	t.Parallel()

	issue := `{"id":"i-1","tenant_id":"t","property_id":"p","category":"heating","summary":"s","description":"d","status":"approved","created_at":"2026-01-01T00:00:00Z"}`
	c, reqs := newTestServer(t, map[string]string{
		"PATCH /api/issues/i-1/approve":        issue,
		"PATCH /api/issues/i-1/reject":         issue,
		"POST /api/issues/i-1/vendor-request":  `{"status":"sent"}`,
		"POST /api/issues/i-1/vendor-response": `{"status":"ok"}`,
	})
	ctx := context.Background()

	if _, err := c.ApproveIssue(ctx, "i-1"); err != nil {
		t.Fatalf("ApproveIssue: %v", err)
	}
	if _, err := c.RejectIssue(ctx, "i-1"); err != nil {
		t.Fatalf("RejectIssue: %v", err)
	}
	ack, err := c.RequestVendor(ctx, "i-1", "v-9")
	if err != nil {
		t.Fatalf("RequestVendor: %v", err)
	}
	if ack.Status != "sent" {
		t.Errorf("ack = %q, want sent", ack.Status)
	}
	if err := c.RespondAsVendor(ctx, "i-1", VendorResponse{Accepted: false}); err != nil {
		t.Fatalf("RespondAsVendor: %v", err)
	}

	got := *reqs
	if len(got) != 4 {
		t.Fatalf("requests = %d, want 4", len(got))
	}
	if got[0].Method != http.MethodPatch || got[0].Path != "/api/issues/i-1/approve" {
		t.Errorf("approve = %s %s", got[0].Method, got[0].Path)
	}
	if got[2].Query != "vendor_id=v-9" {
		t.Errorf("vendor request query = %q, want vendor_id=v-9", got[2].Query)
	}
	if got[3].Body != `{"accepted":false,"appointment_at":null,"notes":null}` {
		t.Errorf("vendor response body = %s", got[3].Body)
	}
	if got[3].CType != "application/json" {
		t.Errorf("content-type = %q, want application/json", got[3].CType)
	}
}

func TestWalletMutations_SendNumbers(t *testing.T) {
	t.Parallel()

	wallet := `{"property_id":"p-1","balance":500,"used":100,"remaining":400}`
	c, reqs := newTestServer(t, map[string]string{
		"POST /api/wallets/topup":    wallet,
		"PATCH /api/wallets/balance": wallet,
	})
	ctx := context.Background()

	_, err := c.TopUpWallet(ctx, TopUpRequest{PropertyID: "p-1", Amount: decimal.RequireFromString("25.50"), Note: "Manual top-up"})
	if err != nil {
		t.Fatalf("TopUpWallet: %v", err)
	}
	w, err := c.SetWalletBalance(ctx, BalanceUpdate{PropertyID: "p-1", Balance: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatalf("SetWalletBalance: %v", err)
	}
	if !w.Remaining.Equal(decimal.NewFromInt(400)) {
		t.Errorf("Remaining = %s, want 400", w.Remaining)
	}

	var topup map[string]any
	if err := json.Unmarshal([]byte((*reqs)[0].Body), &topup); err != nil {
		t.Fatalf("decode topup body: %v", err)
	}
	if amt, ok := topup["amount"].(float64); !ok || amt != 25.5 {
		t.Errorf("amount = %#v, want number 25.5", topup["amount"])
	}
	if topup["note"] != "Manual top-up" {
		t.Errorf("note = %v, want Manual top-up", topup["note"])
	}
	if (*reqs)[1].Body != `{"property_id":"p-1","balance":500}` {
		t.Errorf("balance body = %s", (*reqs)[1].Body)
	}
}

func TestListUsers_RoleQuery(t *testing.T) {
	t.Parallel()

	c, reqs := newTestServer(t, map[string]string{
		"GET /api/users": `[{"id":"u-1","email":"a@b","role":"tenant","name":"Tara","property_id":null}]`,
	})
	ctx := context.Background()

	if _, err := c.ListUsers(ctx, "tenant"); err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if _, err := c.ListUsers(ctx, ""); err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if (*reqs)[0].Query != "role=tenant" {
		t.Errorf("query = %q, want role=tenant", (*reqs)[0].Query)
	}
	if (*reqs)[1].Query != "" {
		t.Errorf("query = %q, want empty", (*reqs)[1].Query)
	}
}

func TestChat_OmitsEmptyOptionals(t *testing.T) {
	t.Parallel()

	c, reqs := newTestServer(t, map[string]string{
		"POST /api/chat": `{"response":"When did it start?","issue_created":false,"issue_id":null}`,
	})

	resp, err := c.Chat(context.Background(), ChatRequest{TenantID: "t-1", Message: "heater broken"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.IssueCreated || resp.IssueID != nil {
		t.Errorf("resp = %+v, want no issue", resp)
	}
	if (*reqs)[0].Body != `{"tenant_id":"t-1","message":"heater broken"}` {
		t.Errorf("body = %s", (*reqs)[0].Body)
	}
}

func TestPathEscaping(t *testing.T) {
	t.Parallel()

	c, reqs := newTestServer(t, map[string]string{})
	_, _ = c.GetUser(context.Background(), "../admin")

	if got := (*reqs)[0].Raw; got != "/api/users/..%2Fadmin" {
		t.Errorf("escaped path = %q, want /api/users/..%%2Fadmin", got)
	}
}

func TestRequestObserver(t *testing.T) {
	// not parallel: mutates the global observer
	var (
		mu       sync.Mutex
		outcomes []string
		routes   []string
	)
	SetRequestObserver(RequestObserverFunc(func(_ context.Context, _, route, outcome string, _ time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		routes = append(routes, route)
		outcomes = append(outcomes, outcome)
	}))
	defer SetRequestObserver(nil)

	c, _ := newTestServer(t, map[string]string{"GET /api/properties": `[]`})
	ctx := context.Background()
	_, _ = c.ListProperties(ctx)
	_, _ = c.GetProperty(ctx, "missing")

	mu.Lock()
	defer mu.Unlock()
	if len(outcomes) != 2 {
		t.Fatalf("observations = %d, want 2", len(outcomes))
	}
	if outcomes[0] != "success" || routes[0] != "/properties" {
		t.Errorf("first = %s %s, want success /properties", outcomes[0], routes[0])
	}
	if outcomes[1] != "client_error" || routes[1] != "/properties/{id}" {
		t.Errorf("second = %s %s, want client_error /properties/{id}", outcomes[1], routes[1])
	}
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		err    error
		want   string
	}{
		{200, nil, "success"},
		{204, nil, "success"},
		{404, errors.New("x"), "client_error"},
		{503, errors.New("x"), "server_error"},
		{0, errors.New("dial"), "transport_error"},
	}
	for _, tt := range tests {
		if got := outcome(tt.status, tt.err); got != tt.want {
			t.Errorf("outcome(%d, %v) = %q, want %q", tt.status, tt.err, got, tt.want)
		}
	}
}
