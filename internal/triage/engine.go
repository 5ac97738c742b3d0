package triage

import (
	"github.com/shopspring/decimal"

	"github.com/linnemanlabs/proco/internal/api"
)

// BudgetSource resolves the remaining wallet funds of a property.
// Unknown properties must report zero.
type BudgetSource interface {
	Remaining(propertyID string) decimal.Decimal
}

// Assessment is the triage outcome for one issue.
type Assessment struct {
	IssueID    string
	Urgency    Urgency
	Suggested  []api.Vendor
	Affordable []api.Vendor
	Remaining  decimal.Decimal
	Status     EffectiveStatus
}

// Blocked reports whether the budget gate overrode the issue status.
func (a Assessment) Blocked() bool {
	return a.Status == StatusNotEnoughBudget
}

// ClassifyUrgency returns High for plumbing, heating and electrical, Medium otherwise.
func ClassifyUrgency(category string) Urgency {
	switch category {
	case api.CategoryPlumbing, api.CategoryHeating, api.CategoryElectrical:
		return UrgencyHigh
	default:
		return UrgencyMedium
	}
}

// DesiredSpecialty returns the vendor specialty that serves category.
func DesiredSpecialty(category string) string {
	if category == api.CategoryOther {
		return api.SpecialtyGeneral
	}
	return category
}

// SuggestVendors returns the vendors whose specialty serves the issue, in input order.
func SuggestVendors(issue api.Issue, vendors []api.Vendor) []api.Vendor {
	want := DesiredSpecialty(issue.Category)
	out := make([]api.Vendor, 0, len(vendors))
	for _, v := range vendors {
		if v.Specialty == want {
			out = append(out, v)
		}
	}
	return out
}

// AffordableVendors returns the vendors whose hourly rate does not exceed remaining.
func AffordableVendors(vendors []api.Vendor, remaining decimal.Decimal) []api.Vendor {
	out := make([]api.Vendor, 0, len(vendors))
	for _, v := range vendors {
		if v.HourlyRate.LessThanOrEqual(remaining) {
			out = append(out, v)
		}
	}
	return out
}

// ApplyBudgetGate returns StatusNotEnoughBudget when the issue is not terminal
// and none of the suggested vendors is affordable; otherwise the display status.
func ApplyBudgetGate(issue api.Issue, suggested []api.Vendor, remaining decimal.Decimal) EffectiveStatus {
	status := DisplayStatus(issue.Status)
	if status.Terminal() {
		return status
	}
	for _, v := range suggested {
		if v.HourlyRate.LessThanOrEqual(remaining) {
			return status
		}
	}
	return StatusNotEnoughBudget
}

// Assess runs the full triage for one issue.
func Assess(issue api.Issue, vendors []api.Vendor, budget BudgetSource) Assessment {
	remaining := decimal.Zero
	if budget != nil {
		remaining = budget.Remaining(issue.PropertyID)
	}
	suggested := SuggestVendors(issue, vendors)
	return Assessment{
		IssueID:    issue.ID,
		Urgency:    ClassifyUrgency(issue.Category),
		Suggested:  suggested,
		Affordable: AffordableVendors(suggested, remaining),
		Remaining:  remaining,
		Status:     ApplyBudgetGate(issue, suggested, remaining),
	}
}

// AssessAll assesses every issue, preserving order.
func AssessAll(issues []api.Issue, vendors []api.Vendor, budget BudgetSource) []Assessment {
	out := make([]Assessment, 0, len(issues))
	for _, is := range issues {
		out = append(out, Assess(is, vendors, budget))
	}
	return out
}
