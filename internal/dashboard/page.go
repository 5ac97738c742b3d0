// Package dashboard is the landlord page controller. A Page fetches issues,
// vendors, wallets and properties, runs triage over them, and applies landlord
// actions (status changes, wallet edits, vendor requests) against the API.
//
// A Page owns its data for its lifetime. After Close, results of in-flight
// fetches are discarded instead of applied.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/proco/internal/api"
	"github.com/linnemanlabs/proco/internal/triage"
	"github.com/linnemanlabs/proco/internal/wallet"
)

// UnknownTenant is shown when a tenant lookup fails.
const UnknownTenant = "Unknown"

// maxTenantLookups bounds concurrent per-tenant user fetches.
const maxTenantLookups = 8

var tracer = otel.Tracer("github.com/linnemanlabs/proco/internal/dashboard")

var (
	// ErrClosed is returned when a page is used after Close.
	ErrClosed = errors.New("page closed")

	// ErrIssueNotFound is returned for an issue id the page has not loaded.
	ErrIssueNotFound = errors.New("issue not found")

	// ErrDerivedStatus is returned when a display-only status is requested as a transition target.
	ErrDerivedStatus = errors.New("status is derived and cannot be requested")

	// ErrBudgetBlocked is returned when approving or rejecting an issue the budget gate blocks.
	ErrBudgetBlocked = errors.New("issue is blocked by budget")

	// ErrVendorNotSuggested is returned when requesting a vendor outside the issue's suggested set.
	ErrVendorNotSuggested = errors.New("vendor is not suggested for issue")

	// ErrEmptyMessage is returned for a blank chat message.
	ErrEmptyMessage = errors.New("message is empty")
)

// Backend is the subset of the API client a Page needs.
type Backend interface {
	ListIssues(ctx context.Context) ([]api.Issue, error)
	ListVendors(ctx context.Context) ([]api.Vendor, error)
	ListWallets(ctx context.Context) ([]api.Wallet, error)
	ListProperties(ctx context.Context) ([]api.Property, error)
	GetUser(ctx context.Context, userID string) (*api.User, error)
	ApproveIssue(ctx context.Context, issueID string) (*api.Issue, error)
	RejectIssue(ctx context.Context, issueID string) (*api.Issue, error)
	RequestVendor(ctx context.Context, issueID, vendorID string) (*api.StatusAck, error)
	ListIssueMessages(ctx context.Context, issueID string) ([]api.ChatMessage, error)
	PostIssueMessage(ctx context.Context, issueID string, msg api.NewIssueMessage) (*api.ChatMessage, error)
	SetWalletBalance(ctx context.Context, req api.BalanceUpdate) (*api.Wallet, error)
	TopUpWallet(ctx context.Context, req api.TopUpRequest) (*api.Wallet, error)
}

// BlockedIssue describes an issue the budget gate blocked.
type BlockedIssue struct {
	IssueID         string
	Summary         string
	Description     string
	Category        string
	Urgency         triage.Urgency
	PropertyID      string
	PropertyAddress string
	Remaining       decimal.Decimal
	CheapestRate    *decimal.Decimal
	Suggested       int
	DetectedAt      time.Time
}

// Notifier is told the full set of budget-blocked issues after every
// successful load, including an empty set.
type Notifier interface {
	NotifyBudgetBlocked(ctx context.Context, blocked []BlockedIssue) error
}

// Hooks are optional callbacks for observability. Nil fields are skipped.
type Hooks struct {
	OnLoad           func(result string, duration float64)
	OnAssess         func(as []triage.Assessment)
	OnStatusChange   func(target triage.EffectiveStatus, result string)
	OnWalletMutation func(op, result string)
}

// Options configures a Page.
type Options struct {
	Notifier Notifier
	Hooks    Hooks
	Now      func() time.Time
}

// Page holds the landlord dashboard state of one page session.
type Page struct {
	backend  Backend
	logger   log.Logger
	notifier Notifier
	hooks    Hooks
	now      func() time.Time

	mu          sync.Mutex
	alive       bool
	loaded      bool
	issues      []api.Issue
	vendors     []api.Vendor
	properties  []api.Property
	ledger      *wallet.Ledger
	tenantNames map[string]string
}

// NewPage creates an empty, live page. It panics if backend is nil.
func NewPage(backend Backend, logger log.Logger, opts Options) *Page {
	if backend == nil {
		panic(xerrors.New("dashboard: nil backend"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	p := &Page{
		backend:  backend,
		logger:   logger,
		notifier: opts.Notifier,
		hooks:    opts.Hooks,
		now:      opts.Now,
		alive:    true,
	}
	p.resetLocked()
	return p
}

// Close tears the page down. Results of in-flight fetches are discarded.
func (p *Page) Close() {
	p.mu.Lock()
	p.alive = false
	p.mu.Unlock()
}

// Alive reports whether Close has not been called.
func (p *Page) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

// caller must hold p.mu
func (p *Page) resetLocked() {
	p.issues = []api.Issue{}
	p.vendors = []api.Vendor{}
	p.properties = []api.Property{}
	p.ledger = wallet.NewLedger(nil)
	p.tenantNames = map[string]string{}
}

// Load fetches issues, vendors, wallets and properties in parallel. If any of
// them fails, all dependent state is reset to empty and the error is returned.
// Tenant names are then looked up per tenant; a failed lookup shows UnknownTenant.
func (p *Page) Load(ctx context.Context) (err error) {
	start := p.now()
	ctx, span := tracer.Start(ctx, "dashboard.Load")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	var (
		issues     []api.Issue
		vendors    []api.Vendor
		wallets    []api.Wallet
		properties []api.Property
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if issues, err = p.backend.ListIssues(gctx); err != nil {
			return fmt.Errorf("list issues: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if vendors, err = p.backend.ListVendors(gctx); err != nil {
			return fmt.Errorf("list vendors: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if wallets, err = p.backend.ListWallets(gctx); err != nil {
			return fmt.Errorf("list wallets: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if properties, err = p.backend.ListProperties(gctx); err != nil {
			return fmt.Errorf("list properties: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		p.mu.Lock()
		if p.alive {
			p.resetLocked()
			p.loaded = true
		}
		p.mu.Unlock()
		p.logger.Error(ctx, err, "dashboard load failed")
		p.observeLoad("error", start)
		return err
	}

	names := p.lookupTenants(ctx, issues)

	p.mu.Lock()
	if !p.alive {
		p.mu.Unlock()
		p.observeLoad("discarded", start)
		return ErrClosed
	}
	p.issues = nonNil(issues)
	p.vendors = nonNil(vendors)
	p.properties = nonNil(properties)
	p.ledger = wallet.NewLedger(wallets)
	p.tenantNames = names
	p.loaded = true
	assessments := triage.AssessAll(p.issues, p.vendors, p.ledger)
	blocked := p.blockedLocked(assessments)
	p.mu.Unlock()

	span.SetAttributes(
		attribute.Int("issues", len(issues)),
		attribute.Int("vendors", len(vendors)),
		attribute.Int("budget_blocked", len(blocked)),
	)
	p.logger.Info(ctx, "dashboard loaded",
		"issues", len(issues),
		"vendors", len(vendors),
		"wallets", len(wallets),
		"budget_blocked", len(blocked),
	)

	if p.hooks.OnAssess != nil {
		p.hooks.OnAssess(assessments)
	}
	if p.notifier != nil {
		if err := p.notifier.NotifyBudgetBlocked(ctx, blocked); err != nil {
			p.logger.Warn(ctx, "budget alert delivery failed", "err", err)
		}
	}
	p.observeLoad("success", start)
	return nil
}

func (p *Page) observeLoad(result string, start time.Time) {
	if p.hooks.OnLoad != nil {
		p.hooks.OnLoad(result, p.now().Sub(start).Seconds())
	}
}

// lookupTenants fetches the user of every distinct tenant. Failures are isolated per tenant.
func (p *Page) lookupTenants(ctx context.Context, issues []api.Issue) map[string]string {
	var ids []string
	seen := make(map[string]struct{})
	for _, is := range issues {
		if _, ok := seen[is.TenantID]; ok || is.TenantID == "" {
			continue
		}
		seen[is.TenantID] = struct{}{}
		ids = append(ids, is.TenantID)
	}

	names := make([]string, len(ids))
	var g errgroup.Group
	g.SetLimit(maxTenantLookups)
	for i, id := range ids {
		g.Go(func() error {
			names[i] = UnknownTenant
			u, err := p.backend.GetUser(ctx, id)
			if err != nil {
				p.logger.Warn(ctx, "tenant lookup failed", "tenant_id", id, "err", err)
				return nil
			}
			if u != nil && u.Name != "" {
				names[i] = u.Name
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]string, len(ids))
	for i, id := range ids {
		out[id] = names[i]
	}
	return out
}

// caller must hold p.mu
func (p *Page) blockedLocked(as []triage.Assessment) []BlockedIssue {
	addresses := make(map[string]string, len(p.properties))
	for _, pr := range p.properties {
		addresses[pr.ID] = pr.Address
	}
	detected := p.now()

	var out []BlockedIssue
	for i, a := range as {
		if !a.Blocked() {
			continue
		}
		is := p.issues[i]
		b := BlockedIssue{
			IssueID:         is.ID,
			Summary:         is.Summary,
			Description:     is.Description,
			Category:        is.Category,
			Urgency:         a.Urgency,
			PropertyID:      is.PropertyID,
			PropertyAddress: addresses[is.PropertyID],
			Remaining:       a.Remaining,
			Suggested:       len(a.Suggested),
			DetectedAt:      detected,
		}
		for _, v := range a.Suggested {
			if b.CheapestRate == nil || v.HourlyRate.LessThan(*b.CheapestRate) {
				r := v.HourlyRate
				b.CheapestRate = &r
			}
		}
		out = append(out, b)
	}
	return out
}

// caller must hold p.mu
func (p *Page) indexLocked(issueID string) int {
	for i := range p.issues {
		if p.issues[i].ID == issueID {
			return i
		}
	}
	return -1
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
