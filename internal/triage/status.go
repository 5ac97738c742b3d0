package triage

import "github.com/linnemanlabs/proco/internal/api"

// Urgency is the priority bucket derived from an issue category.
type Urgency string

const (
	UrgencyHigh   Urgency = "High"
	UrgencyMedium Urgency = "Medium"
)

// EffectiveStatus is the status shown to a landlord. It mirrors the persisted
// api.IssueStatus and adds the derived StatusNotEnoughBudget, which is never
// sent back to the API.
type EffectiveStatus string

const (
	StatusPending    EffectiveStatus = "Pending"
	StatusApproved   EffectiveStatus = "Approved"
	StatusInProgress EffectiveStatus = "In Progress"
	StatusCompleted  EffectiveStatus = "Completed"
	StatusRejected   EffectiveStatus = "Rejected"

	// StatusNotEnoughBudget means no suggested vendor fits the remaining wallet.
	StatusNotEnoughBudget EffectiveStatus = "Not Enough Budget"
)

// DisplayStatus maps a persisted status to its display form. Unknown values show as Pending.
func DisplayStatus(s api.IssueStatus) EffectiveStatus {
	switch s {
	case api.IssueStatusApproved:
		return StatusApproved
	case api.IssueStatusInProgress:
		return StatusInProgress
	case api.IssueStatusCompleted:
		return StatusCompleted
	case api.IssueStatusRejected:
		return StatusRejected
	default:
		return StatusPending
	}
}

// ParseStatus accepts a display status string. ok is false for unknown values.
func ParseStatus(s string) (EffectiveStatus, bool) {
	switch st := EffectiveStatus(s); st {
	case StatusPending, StatusApproved, StatusInProgress, StatusCompleted, StatusRejected, StatusNotEnoughBudget:
		return st, true
	default:
		return "", false
	}
}

// Terminal reports whether the status is never overridden by the budget gate.
func (s EffectiveStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Derived reports whether the status exists only for display.
func (s EffectiveStatus) Derived() bool {
	return s == StatusNotEnoughBudget
}

// Persisted maps a display status back to the API status.
// StatusNotEnoughBudget has no persisted form.
func (s EffectiveStatus) Persisted() (api.IssueStatus, bool) {
	switch s {
	case StatusPending:
		return api.IssueStatusPending, true
	case StatusApproved:
		return api.IssueStatusApproved, true
	case StatusInProgress:
		return api.IssueStatusInProgress, true
	case StatusCompleted:
		return api.IssueStatusCompleted, true
	case StatusRejected:
		return api.IssueStatusRejected, true
	default:
		return "", false
	}
}
