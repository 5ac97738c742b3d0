package dashboard

import (
	"github.com/shopspring/decimal"

	"github.com/linnemanlabs/proco/internal/api"
	"github.com/linnemanlabs/proco/internal/display"
	"github.com/linnemanlabs/proco/internal/triage"
	"github.com/linnemanlabs/proco/internal/wallet"
)

// Unassigned is shown for issues without a known vendor.
const Unassigned = "Unassigned"

// SuggestedVendor is a vendor matching the issue's category.
type SuggestedVendor struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	Rating     *float64        `json:"rating,omitempty"`
	Affordable bool            `json:"affordable"`
}

// Row is one line of the issue table.
type Row struct {
	ID              string                 `json:"id"`
	Summary         string                 `json:"summary"`
	Category        string                 `json:"category"`
	DateReported    string                 `json:"date_reported"`
	TenantName      string                 `json:"tenant_name"`
	VendorName      string                 `json:"vendor"`
	Cost            decimal.Decimal        `json:"cost"`
	CostDisplay     string                 `json:"cost_display"`
	Urgency         triage.Urgency         `json:"urgency"`
	Status          triage.EffectiveStatus `json:"status"`
	PersistedStatus api.IssueStatus        `json:"persisted_status"`
	Suggested       []SuggestedVendor      `json:"suggested_vendors"`
}

// Stats are the summary cards above the table.
type Stats struct {
	OpenIssues      int             `json:"open_issues"`
	PendingApproval int             `json:"pending_approval"`
	Completed       int             `json:"completed"`
	BudgetBlocked   int             `json:"budget_blocked"`
	TotalSpend      decimal.Decimal `json:"total_spend"`
	Wallet          wallet.Totals   `json:"wallet"`
}

// ChartPoint is one bar of the status chart.
type ChartPoint struct {
	Status triage.EffectiveStatus `json:"status"`
	Count  int                    `json:"count"`
}

// WalletCard is the per-property wallet panel.
type WalletCard struct {
	PropertyID   string          `json:"property_id"`
	Address      string          `json:"address"`
	Balance      decimal.Decimal `json:"balance"`
	Used         decimal.Decimal `json:"used"`
	Remaining    decimal.Decimal `json:"remaining"`
	HasWallet    bool            `json:"has_wallet"`
	Drift        decimal.Decimal `json:"drift"`
	ActiveIssues int             `json:"active_issues"`
}

// View is the full render model of the dashboard.
type View struct {
	Loaded  bool         `json:"loaded"`
	Rows    []Row        `json:"issues"`
	Stats   Stats        `json:"stats"`
	Chart   []ChartPoint `json:"status_chart"`
	Wallets []WalletCard `json:"wallets"`
}

var chartStatuses = []triage.EffectiveStatus{
	triage.StatusPending,
	triage.StatusApproved,
	triage.StatusInProgress,
	triage.StatusCompleted,
	triage.StatusNotEnoughBudget,
}

// View derives the render model from the current state. Triage runs on every call.
func (p *Page) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	vendorNames := make(map[string]string, len(p.vendors))
	for _, v := range p.vendors {
		vendorNames[v.ID] = v.Name
	}

	assessments := triage.AssessAll(p.issues, p.vendors, p.ledger)
	counts := make(map[triage.EffectiveStatus]int)
	active := make(map[string]int)

	v := View{
		Loaded: p.loaded,
		Rows:   make([]Row, 0, len(p.issues)),
		Stats: Stats{
			TotalSpend: decimal.Zero,
			Wallet:     p.ledger.Totals(),
		},
	}

	for i, is := range p.issues {
		a := assessments[i]
		v.Rows = append(v.Rows, p.rowLocked(is, a, vendorNames))
		counts[a.Status]++

		if !a.Status.Terminal() {
			v.Stats.OpenIssues++
			active[is.PropertyID]++
		}
		switch a.Status {
		case triage.StatusPending:
			v.Stats.PendingApproval++
		case triage.StatusCompleted:
			v.Stats.Completed++
		case triage.StatusNotEnoughBudget:
			v.Stats.BudgetBlocked++
		}
		if spends(a.Status) {
			v.Stats.TotalSpend = v.Stats.TotalSpend.Add(cost(is))
		}
	}

	v.Chart = make([]ChartPoint, 0, len(chartStatuses))
	for _, s := range chartStatuses {
		v.Chart = append(v.Chart, ChartPoint{Status: s, Count: counts[s]})
	}

	v.Wallets = p.walletCardsLocked(active)
	return v
}

// caller must hold p.mu
func (p *Page) rowLocked(is api.Issue, a triage.Assessment, vendorNames map[string]string) Row {
	vendorName := Unassigned
	if is.VendorID != nil {
		if n, ok := vendorNames[*is.VendorID]; ok {
			vendorName = n
		}
	}
	tenant, ok := p.tenantNames[is.TenantID]
	if !ok {
		tenant = UnknownTenant
	}

	affordable := make(map[string]bool, len(a.Affordable))
	for _, av := range a.Affordable {
		affordable[av.ID] = true
	}
	suggested := make([]SuggestedVendor, 0, len(a.Suggested))
	for _, sv := range a.Suggested {
		suggested = append(suggested, SuggestedVendor{
			ID:         sv.ID,
			Name:       sv.Name,
			HourlyRate: sv.HourlyRate,
			Rating:     sv.Rating,
			Affordable: affordable[sv.ID],
		})
	}

	c := cost(is)
	return Row{
		ID:              is.ID,
		Summary:         is.Summary,
		Category:        is.Category,
		DateReported:    display.FormatDate(is.CreatedAt),
		TenantName:      tenant,
		VendorName:      vendorName,
		Cost:            c,
		CostDisplay:     display.FormatMoney(c),
		Urgency:         a.Urgency,
		Status:          a.Status,
		PersistedStatus: is.Status,
		Suggested:       suggested,
	}
}

// caller must hold p.mu
func (p *Page) walletCardsLocked(active map[string]int) []WalletCard {
	cards := make([]WalletCard, 0, len(p.properties))
	listed := make(map[string]bool, len(p.properties))

	card := func(propertyID, address string) WalletCard {
		w, ok := p.ledger.Get(propertyID)
		c := WalletCard{
			PropertyID:   propertyID,
			Address:      address,
			Balance:      decimal.Zero,
			Used:         decimal.Zero,
			Remaining:    decimal.Zero,
			Drift:        decimal.Zero,
			HasWallet:    ok,
			ActiveIssues: active[propertyID],
		}
		if ok {
			c.Balance, c.Used, c.Remaining = w.Balance, w.Used, w.Remaining
			c.Drift = wallet.Drift(w)
		}
		return c
	}

	for _, pr := range p.properties {
		listed[pr.ID] = true
		cards = append(cards, card(pr.ID, pr.Address))
	}
	for _, w := range p.ledger.Wallets() {
		if !listed[w.PropertyID] {
			cards = append(cards, card(w.PropertyID, ""))
		}
	}
	return cards
}

func spends(s triage.EffectiveStatus) bool {
	return s == triage.StatusCompleted || s == triage.StatusApproved || s == triage.StatusInProgress
}

func cost(is api.Issue) decimal.Decimal {
	if is.EstimatedCost == nil {
		return decimal.Zero
	}
	return *is.EstimatedCost
}
