// Package respond handles a vendor's accept/decline response to a job request.
package respond

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/proco/internal/api"
)

// AppointmentLayout is the layout of a datetime-local form value.
const AppointmentLayout = "2006-01-02T15:04"

// Decision is the vendor's answer.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// DefaultFailure is reported when the API rejects a response without a message.
const DefaultFailure = "Failed to submit response."

var (
	ErrMissingIssue       = errors.New("missing issue ID")
	ErrMissingAppointment = errors.New("please choose an appointment date and time")
	ErrInvalidAppointment = errors.New("appointment must be a valid date and time")
	ErrInvalidDecision    = errors.New("decision must be accept or decline")
)

// Form is the vendor response form as submitted.
type Form struct {
	IssueID       string   `json:"issue_id"`
	Decision      Decision `json:"decision"`
	AppointmentAt string   `json:"appointment_at"`
	Notes         string   `json:"notes"`
}

// Validate checks the form in the order the user sees the fields.
func (f Form) Validate(loc *time.Location) error {
	if strings.TrimSpace(f.IssueID) == "" {
		return ErrMissingIssue
	}
	switch f.Decision {
	case DecisionAccept:
		if strings.TrimSpace(f.AppointmentAt) == "" {
			return ErrMissingAppointment
		}
		if _, err := parseAppointment(f.AppointmentAt, loc); err != nil {
			return ErrInvalidAppointment
		}
	case DecisionDecline:
	default:
		return ErrInvalidDecision
	}
	return nil
}

// parseAppointment accepts a datetime-local value in loc, or a full RFC 3339 timestamp.
func parseAppointment(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(AppointmentLayout, s, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Request builds the API body. The appointment is sent in UTC and only when accepting.
func (f Form) Request(loc *time.Location) (api.VendorResponse, error) {
	if err := f.Validate(loc); err != nil {
		return api.VendorResponse{}, err
	}
	req := api.VendorResponse{Accepted: f.Decision == DecisionAccept}
	if req.Accepted {
		t, _ := parseAppointment(f.AppointmentAt, loc)
		utc := t.UTC()
		req.AppointmentAt = &utc
	}
	if notes := strings.TrimSpace(f.Notes); notes != "" {
		req.Notes = &notes
	}
	return req, nil
}

// Backend is the subset of the API client a Submitter needs.
type Backend interface {
	RespondAsVendor(ctx context.Context, issueID string, resp api.VendorResponse) error
}

// Submitter validates and sends vendor responses.
type Submitter struct {
	backend Backend
	logger  log.Logger
	loc     *time.Location
}

// NewSubmitter creates a Submitter that reads form times in loc (UTC when nil).
// It panics if backend is nil.
func NewSubmitter(backend Backend, logger log.Logger, loc *time.Location) *Submitter {
	if backend == nil {
		panic(xerrors.New("respond: nil backend"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Submitter{backend: backend, logger: logger, loc: loc}
}

// SubmitError is returned when the API rejects or cannot receive a response.
// Message is safe to show to the vendor.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string { return e.Message }

func (e *SubmitError) Unwrap() error { return e.Err }

// Submit validates f and posts it. Validation errors are returned as-is and make no call.
func (s *Submitter) Submit(ctx context.Context, f Form) error {
	req, err := f.Request(s.loc)
	if err != nil {
		return err
	}
	issueID := strings.TrimSpace(f.IssueID)
	if err := s.backend.RespondAsVendor(ctx, issueID, req); err != nil {
		s.logger.Error(ctx, err, "vendor response failed", "issue_id", issueID)
		msg := DefaultFailure
		var se *api.StatusError
		if errors.As(err, &se) && se.Body != "" {
			msg = se.Body
		}
		return &SubmitError{Message: msg, Err: fmt.Errorf("respond to issue %s: %w", issueID, err)}
	}
	s.logger.Info(ctx, "vendor responded", "issue_id", issueID, "accepted", req.Accepted)
	return nil
}
