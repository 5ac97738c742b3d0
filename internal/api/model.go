package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// IssueStatus is the lifecycle status persisted by the remote API.
type IssueStatus string

const (
	// IssueStatusPending means reported, awaiting landlord approval
	IssueStatusPending IssueStatus = "pending"

	// IssueStatusApproved means approved by the landlord
	IssueStatusApproved IssueStatus = "approved"

	// IssueStatusInProgress means a vendor accepted and work is scheduled
	IssueStatusInProgress IssueStatus = "in_progress"

	// IssueStatusCompleted means the work is done
	IssueStatusCompleted IssueStatus = "completed"

	// IssueStatusRejected means the landlord rejected the issue
	IssueStatusRejected IssueStatus = "rejected"
)

// Issue categories known to the backend. Other free-form values are possible.
const (
	CategoryPlumbing   = "plumbing"
	CategoryHeating    = "heating"
	CategoryElectrical = "electrical"
	CategoryOther      = "other"
)

// SpecialtyGeneral is the vendor specialty serving the "other" category.
const SpecialtyGeneral = "general"

// Issue is a tenant-reported maintenance request.
type Issue struct {
	ID            string           `json:"id"`
	TenantID      string           `json:"tenant_id"`
	PropertyID    string           `json:"property_id"`
	Category      string           `json:"category"`
	Summary       string           `json:"summary"`
	Description   string           `json:"description"`
	Status        IssueStatus      `json:"status"`
	VendorID      *string          `json:"vendor_id"`
	EstimatedCost *decimal.Decimal `json:"estimated_cost"`
	AppointmentAt *time.Time       `json:"appointment_at"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Vendor is a contractor that can be assigned to issues.
type Vendor struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Email      *string         `json:"email"`
	Specialty  string          `json:"specialty"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	Rating     *float64        `json:"rating"`
}

// Property is a managed building.
type Property struct {
	ID         string   `json:"id"`
	Address    string   `json:"address"`
	LandlordID string   `json:"landlord_id"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

// User is a tenant or landlord account.
type User struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	Role       string  `json:"role"`
	Name       string  `json:"name"`
	PropertyID *string `json:"property_id"`
}

// Wallet is the per-property budget ledger as reported by the API.
type Wallet struct {
	PropertyID string          `json:"property_id"`
	Balance    decimal.Decimal `json:"balance"`
	Used       decimal.Decimal `json:"used"`
	Remaining  decimal.Decimal `json:"remaining"`
}

// ChatMessage is a single transcript entry of an issue conversation.
type ChatMessage struct {
	ID          string    `json:"id"`
	IssueID     *string   `json:"issue_id"`
	PropertyID  *string   `json:"property_id"`
	TenantID    string    `json:"tenant_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	ImageBase64 *string   `json:"image_base64"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewIssueMessage is the body of POST /issues/{id}/messages.
type NewIssueMessage struct {
	TenantID string `json:"tenant_id"`
	Content  string `json:"content"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	TenantID    string  `json:"tenant_id"`
	Message     string  `json:"message"`
	ImageBase64 *string `json:"image_base64,omitempty"`
	IssueID     *string `json:"issue_id,omitempty"`
	PropertyID  *string `json:"property_id,omitempty"`
}

// ChatResponse is the assistant reply to a chat request.
type ChatResponse struct {
	Response     string  `json:"response"`
	IssueCreated bool    `json:"issue_created"`
	IssueID      *string `json:"issue_id"`
}

// VendorResponse is the body of POST /issues/{id}/vendor-response.
type VendorResponse struct {
	Accepted      bool       `json:"accepted"`
	AppointmentAt *time.Time `json:"appointment_at"`
	Notes         *string    `json:"notes"`
}

// StatusAck is the acknowledgement returned by vendor requests.
type StatusAck struct {
	Status string `json:"status"`
}

// TopUpRequest is the body of POST /wallets/topup.
type TopUpRequest struct {
	PropertyID string
	Amount     decimal.Decimal
	Note       string
}

// BalanceUpdate is the body of PATCH /wallets/balance.
type BalanceUpdate struct {
	PropertyID string
	Balance    decimal.Decimal
}

// MarshalJSON sends the amount as a JSON number rather than decimal's default quoted string.
func (r TopUpRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		PropertyID string      `json:"property_id"`
		Amount     json.Number `json:"amount"`
		Note       string      `json:"note,omitempty"`
	}{r.PropertyID, json.Number(r.Amount.String()), r.Note})
}

// MarshalJSON sends the balance as a JSON number.
func (b BalanceUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		PropertyID string      `json:"property_id"`
		Balance    json.Number `json:"balance"`
	}{b.PropertyID, json.Number(b.Balance.String())})
}
