// Package slack sends budget alerts to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/proco/internal/dashboard"
	"github.com/linnemanlabs/proco/internal/display"
	"github.com/linnemanlabs/proco/internal/triage"
)

const (
	maxSummaryLen = 3000
	httpTimeout   = 10 * time.Second
)

// Notifier sends budget-blocked issues to a Slack webhook, once per issue.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger

	mu   sync.Mutex
	sent map[string]struct{}
}

// New creates a new Slack notifier. If webhookURL is empty, sends are no-ops.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
		sent:       make(map[string]struct{}),
	}
}

// NotifyBudgetBlocked posts every issue not already announced. blocked is the
// complete blocked set, so an issue missing from it is forgotten and alerted
// again if it becomes blocked later. A failed post is not remembered, so the
// next load retries it.
func (n *Notifier) NotifyBudgetBlocked(ctx context.Context, blocked []dashboard.BlockedIssue) error {
	if n.webhookURL == "" {
		return nil
	}
	n.forgetUnblocked(blocked)
	var firstErr error
	for i := range blocked {
		b := &blocked[i]
		if !n.claim(b.IssueID) {
			continue
		}
		if err := n.Send(ctx, b); err != nil {
			n.release(b.IssueID)
			n.logger.Error(ctx, err, "slack budget alert failed", "issue_id", b.IssueID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (n *Notifier) claim(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.sent[id]; ok {
		return false
	}
	n.sent[id] = struct{}{}
	return true
}

func (n *Notifier) forgetUnblocked(blocked []dashboard.BlockedIssue) {
	still := make(map[string]struct{}, len(blocked))
	for i := range blocked {
		still[blocked[i].IssueID] = struct{}{}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for id := range n.sent {
		if _, ok := still[id]; !ok {
			delete(n.sent, id)
		}
	}
}

func (n *Notifier) release(id string) {
	n.mu.Lock()
	delete(n.sent, id)
	n.mu.Unlock()
}

// Send posts one budget alert to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, b *dashboard.BlockedIssue) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(b)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(b *dashboard.BlockedIssue) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(b),
			{"type": "divider"},
			fieldsBlock(b),
			{"type": "divider"},
			summaryBlock(b),
			{"type": "divider"},
			contextBlock(b),
		},
	}
}

func headerBlock(b *dashboard.BlockedIssue) map[string]any {
	text := fmt.Sprintf("%s Not Enough Budget: %s", urgencyEmoji(b.Urgency), b.Summary)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": truncate(text, 150),
		},
	}
}

func fieldsBlock(b *dashboard.BlockedIssue) map[string]any {
	property := b.PropertyAddress
	if property == "" {
		property = b.PropertyID
	}
	cheapest := "_no matching vendor_"
	if b.CheapestRate != nil {
		cheapest = display.FormatMoney(*b.CheapestRate) + "/h"
	}

	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Property:* %s", property),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Category:* %s", b.Category),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Urgency:* %s", b.Urgency),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Wallet remaining:* %s", display.FormatMoney(b.Remaining)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Cheapest vendor:* %s", cheapest),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Suggested vendors:* %d", b.Suggested),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func summaryBlock(b *dashboard.BlockedIssue) map[string]any {
	text := truncate(b.Description, maxSummaryLen)
	if text == "" {
		text = "_No description provided._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Description*\n\n%s", text),
		},
	}
}

func contextBlock(b *dashboard.BlockedIssue) map[string]any {
	ts := b.DetectedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("proco • issue %s • %s", b.IssueID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func urgencyEmoji(u triage.Urgency) string {
	if u == triage.UrgencyHigh {
		return "\U0001f534" // red circle
	}
	return "\U0001f7e1" // yellow circle
}

// truncate shortens s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
