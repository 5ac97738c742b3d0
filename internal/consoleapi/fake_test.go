package consoleapi

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/linnemanlabs/proco/internal/api"
)

const (
	tenantID   = "6f1c2a9e-4b7d-4e8a-9c3f-1d2e3f4a5b6c"
	propertyID = "0b7e5c1a-2d3f-4a5b-8c9d-0e1f2a3b4c5d"
	otherProp  = "9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b"
)

var errUpstream = errors.New("connection refused")

// fakeBackend serves canned data and records mutating calls.
type fakeBackend struct {
	mu sync.Mutex

	issues  []api.Issue
	vendors []api.Vendor
	wallets []api.Wallet

	listErr    error
	approveErr error
	respondErr error
	chatResp   *api.ChatResponse

	calls []string
}

func newFakeBackend() *fakeBackend {
	cost := decimal.NewFromInt(150)
	created := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	return &fakeBackend{
		issues: []api.Issue{
			{ID: "i-1", TenantID: tenantID, PropertyID: propertyID, Category: api.CategoryPlumbing, Summary: "Leaking sink", Status: api.IssueStatusPending, EstimatedCost: &cost, CreatedAt: created},
			{ID: "i-2", TenantID: tenantID, PropertyID: otherProp, Category: api.CategoryElectrical, Summary: "Sparking outlet", Status: api.IssueStatusPending, CreatedAt: created.Add(time.Hour)},
		},
		vendors: []api.Vendor{
			{ID: "v-1", Name: "Pipe Pros", Specialty: api.CategoryPlumbing, HourlyRate: decimal.NewFromInt(40)},
			{ID: "v-2", Name: "Volt Co", Specialty: api.CategoryElectrical, HourlyRate: decimal.NewFromInt(50)},
		},
		wallets: []api.Wallet{
			{PropertyID: propertyID, Balance: decimal.NewFromInt(500), Remaining: decimal.NewFromInt(500)},
			{PropertyID: otherProp, Balance: decimal.NewFromInt(10), Remaining: decimal.NewFromInt(10)},
		},
		chatResp: &api.ChatResponse{Response: "Thanks, I've logged that."},
	}
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) ListIssues(_ context.Context) ([]api.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]api.Issue(nil), f.issues...), nil
}

func (f *fakeBackend) ListVendors(_ context.Context) ([]api.Vendor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]api.Vendor(nil), f.vendors...), nil
}

func (f *fakeBackend) ListWallets(_ context.Context) ([]api.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]api.Wallet(nil), f.wallets...), nil
}

func (f *fakeBackend) ListProperties(_ context.Context) ([]api.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []api.Property{
		{ID: propertyID, Address: "1 Main St"},
		{ID: otherProp, Address: "2 Side St"},
	}, nil
}

func (f *fakeBackend) GetUser(_ context.Context, userID string) (*api.User, error) {
	if userID != tenantID {
		return nil, &api.StatusError{StatusCode: 404, Route: "/users/{id}"}
	}
	prop := propertyID
	return &api.User{ID: tenantID, Name: "Alice", Role: "tenant", PropertyID: &prop}, nil
}

func (f *fakeBackend) ApproveIssue(_ context.Context, issueID string) (*api.Issue, error) {
	f.record("approve " + issueID)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	for _, is := range f.issues {
		if is.ID == issueID {
			is.Status = api.IssueStatusApproved
			return &is, nil
		}
	}
	return nil, &api.StatusError{StatusCode: 404}
}

func (f *fakeBackend) RejectIssue(_ context.Context, issueID string) (*api.Issue, error) {
	f.record("reject " + issueID)
	for _, is := range f.issues {
		if is.ID == issueID {
			is.Status = api.IssueStatusRejected
			return &is, nil
		}
	}
	return nil, &api.StatusError{StatusCode: 404}
}

func (f *fakeBackend) RequestVendor(_ context.Context, issueID, vendorID string) (*api.StatusAck, error) {
	f.record("vendor-request " + issueID + " " + vendorID)
	return &api.StatusAck{Status: "requested"}, nil
}

func (f *fakeBackend) ListIssueMessages(_ context.Context, issueID string) ([]api.ChatMessage, error) {
	return []api.ChatMessage{
		{ID: "m-1", TenantID: tenantID, Role: "user", Content: "It is still leaking", CreatedAt: time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)},
	}, nil
}

func (f *fakeBackend) PostIssueMessage(_ context.Context, issueID string, msg api.NewIssueMessage) (*api.ChatMessage, error) {
	f.record("post-message " + issueID)
	return &api.ChatMessage{ID: "m-2", TenantID: msg.TenantID, Role: "landlord", Content: msg.Content}, nil
}

func (f *fakeBackend) SetWalletBalance(_ context.Context, req api.BalanceUpdate) (*api.Wallet, error) {
	f.record("balance " + req.PropertyID + " " + req.Balance.String())
	return &api.Wallet{PropertyID: req.PropertyID, Balance: req.Balance}, nil
}

func (f *fakeBackend) TopUpWallet(_ context.Context, req api.TopUpRequest) (*api.Wallet, error) {
	f.record("topup " + req.PropertyID + " " + req.Amount.String())
	return &api.Wallet{PropertyID: req.PropertyID}, nil
}

func (f *fakeBackend) Chat(_ context.Context, req api.ChatRequest) (*api.ChatResponse, error) {
	f.record("chat " + req.TenantID)
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := *f.chatResp
	return &resp, nil
}

func (f *fakeBackend) RespondAsVendor(_ context.Context, issueID string, _ api.VendorResponse) error {
	f.record("vendor-response " + issueID)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.respondErr
}
