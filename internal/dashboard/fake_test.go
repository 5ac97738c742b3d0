package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/linnemanlabs/proco/internal/api"
)

var errBoom = errors.New("boom")

// fakeBackend serves canned data and records mutating calls.
type fakeBackend struct {
	mu sync.Mutex

	issues     []api.Issue
	vendors    []api.Vendor
	wallets    []api.Wallet
	properties []api.Property
	users      map[string]api.User
	messages   map[string][]api.ChatMessage

	issuesErr, vendorsErr, walletsErr, propertiesErr error
	userErr                                          map[string]error
	approveErr, rejectErr, balanceErr, topupErr      error

	// walletsAfter replaces wallets once a wallet mutation is called.
	walletsAfter []api.Wallet

	calls       []string
	walletCalls int
	lastBalance *api.BalanceUpdate
	lastTopUp   *api.TopUpRequest
	lastPost    *api.NewIssueMessage

	// block, when set, is waited on by ListIssues.
	block chan struct{}
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
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.issuesErr != nil {
		return nil, f.issuesErr
	}
	return append([]api.Issue(nil), f.issues...), nil
}

func (f *fakeBackend) ListVendors(_ context.Context) ([]api.Vendor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vendorsErr != nil {
		return nil, f.vendorsErr
	}
	return append([]api.Vendor(nil), f.vendors...), nil
}

func (f *fakeBackend) ListWallets(_ context.Context) ([]api.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.walletCalls++
	if f.walletsErr != nil {
		return nil, f.walletsErr
	}
	return append([]api.Wallet(nil), f.wallets...), nil
}

func (f *fakeBackend) ListProperties(_ context.Context) ([]api.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.propertiesErr != nil {
		return nil, f.propertiesErr
	}
	return append([]api.Property(nil), f.properties...), nil
}

func (f *fakeBackend) GetUser(_ context.Context, id string) (*api.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.userErr[id]; err != nil {
		return nil, err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, &api.StatusError{StatusCode: 404}
	}
	return &u, nil
}

func (f *fakeBackend) ApproveIssue(_ context.Context, id string) (*api.Issue, error) {
	f.record("approve " + id)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	return f.updated(id, api.IssueStatusApproved), nil
}

func (f *fakeBackend) RejectIssue(_ context.Context, id string) (*api.Issue, error) {
	f.record("reject " + id)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectErr != nil {
		return nil, f.rejectErr
	}
	return f.updated(id, api.IssueStatusRejected), nil
}

// caller must hold f.mu
func (f *fakeBackend) updated(id string, s api.IssueStatus) *api.Issue {
	for _, is := range f.issues {
		if is.ID == id {
			is.Status = s
			return &is
		}
	}
	return nil
}

func (f *fakeBackend) RequestVendor(_ context.Context, issueID, vendorID string) (*api.StatusAck, error) {
	f.record("vendor-request " + issueID + " " + vendorID)
	return &api.StatusAck{Status: "sent"}, nil
}

func (f *fakeBackend) ListIssueMessages(_ context.Context, issueID string) ([]api.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[issueID], nil
}

func (f *fakeBackend) PostIssueMessage(_ context.Context, issueID string, msg api.NewIssueMessage) (*api.ChatMessage, error) {
	f.record("post-message " + issueID)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPost = &msg
	return &api.ChatMessage{ID: "m-1", TenantID: msg.TenantID, Role: "landlord", Content: msg.Content}, nil
}

func (f *fakeBackend) SetWalletBalance(_ context.Context, req api.BalanceUpdate) (*api.Wallet, error) {
	f.record("set-balance " + req.PropertyID)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastBalance = &req
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	if f.walletsAfter != nil {
		f.wallets = f.walletsAfter
	}
	return &api.Wallet{PropertyID: req.PropertyID, Balance: req.Balance}, nil
}

func (f *fakeBackend) TopUpWallet(_ context.Context, req api.TopUpRequest) (*api.Wallet, error) {
	f.record("topup " + req.PropertyID)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastTopUp = &req
	if f.topupErr != nil {
		return nil, f.topupErr
	}
	if f.walletsAfter != nil {
		f.wallets = f.walletsAfter
	}
	return &api.Wallet{PropertyID: req.PropertyID}, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

// seedBackend returns a backend with two properties:
// p-1 has 60 remaining, p-2 has 10 remaining.
func seedBackend() *fakeBackend {
	created := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	return &fakeBackend{
		issues: []api.Issue{
			{ID: "i-1", TenantID: "t-1", PropertyID: "p-1", Category: "plumbing", Summary: "Leaking sink", Status: api.IssueStatusPending, EstimatedCost: ptr(dec("150")), CreatedAt: created},
			{ID: "i-2", TenantID: "t-2", PropertyID: "p-2", Category: "plumbing", Summary: "Burst pipe", Status: api.IssueStatusPending, CreatedAt: created},
			{ID: "i-3", TenantID: "t-1", PropertyID: "p-1", Category: "other", Summary: "Door hinge", Status: api.IssueStatusCompleted, VendorID: ptr("v-3"), EstimatedCost: ptr(dec("40")), CreatedAt: created},
			{ID: "i-4", TenantID: "t-3", PropertyID: "p-1", Category: "heating", Summary: "Cold radiator", Status: api.IssueStatusInProgress, VendorID: ptr("v-missing"), EstimatedCost: ptr(dec("200")), CreatedAt: created},
		},
		vendors: []api.Vendor{
			{ID: "v-1", Name: "FlowFix", Specialty: "plumbing", HourlyRate: dec("50")},
			{ID: "v-2", Name: "PipePros", Specialty: "plumbing", HourlyRate: dec("80")},
			{ID: "v-3", Name: "HandyCo", Specialty: "general", HourlyRate: dec("30")},
			{ID: "v-4", Name: "WarmUp", Specialty: "heating", HourlyRate: dec("45")},
		},
		wallets: []api.Wallet{
			{PropertyID: "p-1", Balance: dec("500"), Used: dec("440"), Remaining: dec("60")},
			{PropertyID: "p-2", Balance: dec("100"), Used: dec("90"), Remaining: dec("10")},
		},
		properties: []api.Property{
			{ID: "p-1", Address: "Am Sandtorkai 48"},
			{ID: "p-2", Address: "Jungfernstieg 1"},
			{ID: "p-3", Address: "Speicherstadt 7"},
		},
		users: map[string]api.User{
			"t-1": {ID: "t-1", Name: "Alice"},
			"t-2": {ID: "t-2", Name: "Bob"},
		},
		userErr: map[string]error{"t-3": errBoom},
	}
}
