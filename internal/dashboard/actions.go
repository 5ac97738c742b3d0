package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/proco/internal/api"
	"github.com/linnemanlabs/proco/internal/triage"
	"github.com/linnemanlabs/proco/internal/wallet"
)

// TopUpNote is attached to every top-up made from the dashboard.
const TopUpNote = "Manual top-up"

// RequestStatusChange moves an issue to target. Derived statuses are refused,
// and so are approve/reject on an issue the budget gate blocks; in both cases
// nothing changes and no call is made. Otherwise the local issue is updated
// immediately. Approved and Rejected are then sent to the API; if that call
// fails the local change is rolled back and accepted is false.
func (p *Page) RequestStatusChange(ctx context.Context, issueID string, target triage.EffectiveStatus) (accepted bool, err error) {
	ctx, span := tracer.Start(ctx, "dashboard.RequestStatusChange", trace.WithAttributes(
		attribute.String("issue.id", issueID),
		attribute.String("issue.target_status", string(target)),
	))
	defer span.End()

	result := "rejected"
	defer func() {
		if p.hooks.OnStatusChange != nil {
			p.hooks.OnStatusChange(target, result)
		}
		if err != nil && result == "failed" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if target.Derived() {
		return false, ErrDerivedStatus
	}
	persisted, ok := target.Persisted()
	if !ok {
		return false, fmt.Errorf("unknown status %q", target)
	}

	p.mu.Lock()
	if !p.alive {
		p.mu.Unlock()
		return false, ErrClosed
	}
	idx := p.indexLocked(issueID)
	if idx < 0 {
		p.mu.Unlock()
		return false, ErrIssueNotFound
	}
	if target == triage.StatusApproved || target == triage.StatusRejected {
		a := triage.Assess(p.issues[idx], p.vendors, p.ledger)
		if a.Blocked() {
			p.mu.Unlock()
			return false, ErrBudgetBlocked
		}
	}
	prev := p.issues[idx].Status
	p.issues[idx].Status = persisted
	p.mu.Unlock()

	var call func(context.Context, string) (*api.Issue, error)
	switch target {
	case triage.StatusApproved:
		call = p.backend.ApproveIssue
	case triage.StatusRejected:
		call = p.backend.RejectIssue
	default:
		result = "local"
		return true, nil
	}

	updated, err := call(ctx, issueID)
	if err != nil {
		p.mu.Lock()
		if p.alive {
			if i := p.indexLocked(issueID); i >= 0 && p.issues[i].Status == persisted {
				p.issues[i].Status = prev
			}
		}
		p.mu.Unlock()
		result = "failed"
		p.logger.Error(ctx, err, "status change failed, rolled back", "issue_id", issueID, "target", string(target))
		return false, fmt.Errorf("set issue %s to %s: %w", issueID, target, err)
	}

	if updated != nil && updated.ID == issueID {
		p.mu.Lock()
		if p.alive {
			if i := p.indexLocked(issueID); i >= 0 {
				p.issues[i] = *updated
			}
		}
		p.mu.Unlock()
	}
	result = "success"
	p.logger.Info(ctx, "issue status changed", "issue_id", issueID, "status", string(target))
	return true, nil
}

// SaveBalance replaces a property's wallet balance with the parsed amount.
// Invalid input returns a wallet parse error and makes no call. After the call
// the wallet list is always re-fetched, whether or not the call succeeded.
func (p *Page) SaveBalance(ctx context.Context, propertyID, text string) error {
	balance, err := wallet.ParseAmount(text)
	if err != nil {
		p.observeWallet("set_balance", "invalid")
		return err
	}
	_, callErr := p.backend.SetWalletBalance(ctx, api.BalanceUpdate{PropertyID: propertyID, Balance: balance})
	return p.finishWalletMutation(ctx, "set_balance", propertyID, callErr)
}

// TopUp adds the parsed amount to a property's wallet. It follows the same
// validation and re-fetch rules as SaveBalance.
func (p *Page) TopUp(ctx context.Context, propertyID, text string) error {
	amount, err := wallet.ParseAmount(text)
	if err != nil {
		p.observeWallet("topup", "invalid")
		return err
	}
	_, callErr := p.backend.TopUpWallet(ctx, api.TopUpRequest{PropertyID: propertyID, Amount: amount, Note: TopUpNote})
	return p.finishWalletMutation(ctx, "topup", propertyID, callErr)
}

func (p *Page) finishWalletMutation(ctx context.Context, op, propertyID string, callErr error) error {
	if callErr != nil {
		p.logger.Error(ctx, callErr, "wallet update failed", "op", op, "property_id", propertyID)
		callErr = fmt.Errorf("%s %s: %w", op, propertyID, callErr)
		p.observeWallet(op, "failed")
	} else {
		p.observeWallet(op, "success")
	}
	return errors.Join(callErr, p.RefreshWallets(ctx))
}

func (p *Page) observeWallet(op, result string) {
	if p.hooks.OnWalletMutation != nil {
		p.hooks.OnWalletMutation(op, result)
	}
}

// RefreshWallets re-fetches the wallet list. On failure the previous wallets are kept.
func (p *Page) RefreshWallets(ctx context.Context) error {
	wallets, err := p.backend.ListWallets(ctx)
	if err != nil {
		p.logger.Error(ctx, err, "wallet refresh failed")
		return fmt.Errorf("refresh wallets: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.alive {
		return ErrClosed
	}
	p.ledger = wallet.NewLedger(wallets)
	return nil
}

// RequestVendor asks one of the issue's suggested vendors to take the job.
func (p *Page) RequestVendor(ctx context.Context, issueID, vendorID string) (*api.StatusAck, error) {
	p.mu.Lock()
	if !p.alive {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	idx := p.indexLocked(issueID)
	if idx < 0 {
		p.mu.Unlock()
		return nil, ErrIssueNotFound
	}
	suggested := triage.SuggestVendors(p.issues[idx], p.vendors)
	p.mu.Unlock()

	found := false
	for _, v := range suggested {
		if v.ID == vendorID {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrVendorNotSuggested
	}

	ack, err := p.backend.RequestVendor(ctx, issueID, vendorID)
	if err != nil {
		p.logger.Error(ctx, err, "vendor request failed", "issue_id", issueID, "vendor_id", vendorID)
		return nil, fmt.Errorf("request vendor %s for issue %s: %w", vendorID, issueID, err)
	}
	return ack, nil
}

// Transcript returns the chat transcript of a loaded issue.
func (p *Page) Transcript(ctx context.Context, issueID string) ([]api.ChatMessage, error) {
	if _, err := p.issue(issueID); err != nil {
		return nil, err
	}
	msgs, err := p.backend.ListIssueMessages(ctx, issueID)
	if err != nil {
		p.logger.Error(ctx, err, "transcript fetch failed", "issue_id", issueID)
		return nil, fmt.Errorf("list messages for issue %s: %w", issueID, err)
	}
	return nonNil(msgs), nil
}

// PostMessage appends a landlord message to an issue transcript.
func (p *Page) PostMessage(ctx context.Context, issueID, content string) (*api.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	is, err := p.issue(issueID)
	if err != nil {
		return nil, err
	}
	msg, err := p.backend.PostIssueMessage(ctx, issueID, api.NewIssueMessage{TenantID: is.TenantID, Content: content})
	if err != nil {
		p.logger.Error(ctx, err, "post message failed", "issue_id", issueID)
		return nil, fmt.Errorf("post message for issue %s: %w", issueID, err)
	}
	return msg, nil
}

func (p *Page) issue(issueID string) (api.Issue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.alive {
		return api.Issue{}, ErrClosed
	}
	idx := p.indexLocked(issueID)
	if idx < 0 {
		return api.Issue{}, ErrIssueNotFound
	}
	return p.issues[idx], nil
}
