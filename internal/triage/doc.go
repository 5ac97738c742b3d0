// Package triage derives the landlord-facing view of an issue: urgency,
// suggested vendors, and the budget-gated effective status. Every function
// is pure; inputs are never mutated and nothing here performs I/O.
package triage
