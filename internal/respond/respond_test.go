package respond

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/proco/internal/api"
)

type fakeBackend struct {
	mu    sync.Mutex
	err   error
	calls []call
}

type call struct {
	issueID string
	resp    api.VendorResponse
}

func (f *fakeBackend) RespondAsVendor(_ context.Context, issueID string, resp api.VendorResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{issueID: issueID, resp: resp})
	return f.err
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		form Form
		want error
	}{
		{"missing issue", Form{Decision: DecisionAccept, AppointmentAt: "2026-03-01T09:30"}, ErrMissingIssue},
		{"blank issue", Form{IssueID: "  ", Decision: DecisionDecline}, ErrMissingIssue},
		{"accept without appointment", Form{IssueID: "i-1", Decision: DecisionAccept}, ErrMissingAppointment},
		{"accept with garbage", Form{IssueID: "i-1", Decision: DecisionAccept, AppointmentAt: "tomorrow"}, ErrInvalidAppointment},
		{"unknown decision", Form{IssueID: "i-1", Decision: "maybe"}, ErrInvalidDecision},
		{"accept ok", Form{IssueID: "i-1", Decision: DecisionAccept, AppointmentAt: "2026-03-01T09:30"}, nil},
		{"accept rfc3339", Form{IssueID: "i-1", Decision: DecisionAccept, AppointmentAt: "2026-03-01T09:30:00Z"}, nil},
		{"decline ignores appointment", Form{IssueID: "i-1", Decision: DecisionDecline, AppointmentAt: "tomorrow"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.form.Validate(time.UTC); !errors.Is(err, tt.want) {
				t.Errorf("Validate = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRequest_AcceptConvertsToUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+2", 2*60*60)
	req, err := Form{
		IssueID:       "i-1",
		Decision:      DecisionAccept,
		AppointmentAt: "2026-03-01T09:30",
		Notes:         "  bring a ladder  ",
	}.Request(loc)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !req.Accepted {
		t.Error("Accepted = false")
	}
	want := time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC)
	if req.AppointmentAt == nil || !req.AppointmentAt.Equal(want) || req.AppointmentAt.Location() != time.UTC {
		t.Errorf("AppointmentAt = %v, want %v", req.AppointmentAt, want)
	}
	if req.Notes == nil || *req.Notes != "bring a ladder" {
		t.Errorf("Notes = %v, want trimmed", req.Notes)
	}
}

func TestRequest_DeclineDropsAppointmentAndBlankNotes(t *testing.T) {
	t.Parallel()

	req, err := Form{
		IssueID:       "i-1",
		Decision:      DecisionDecline,
		AppointmentAt: "2026-03-01T09:30",
		Notes:         "   ",
	}.Request(time.UTC)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if req.Accepted || req.AppointmentAt != nil || req.Notes != nil {
		t.Errorf("req = %+v, want declined with no appointment or notes", req)
	}
}

func TestNewSubmitter_NilBackendPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil backend")
		}
	}()
	NewSubmitter(nil, log.Nop(), nil)
}

func TestSubmit_InvalidFormMakesNoCall(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{}
	s := NewSubmitter(b, log.Nop(), nil)

	err := s.Submit(context.Background(), Form{IssueID: "i-1", Decision: DecisionAccept})
	if !errors.Is(err, ErrMissingAppointment) {
		t.Fatalf("Submit = %v, want ErrMissingAppointment", err)
	}
	if len(b.calls) != 0 {
		t.Errorf("calls = %d, want 0", len(b.calls))
	}
}

func TestSubmit_Success(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{}
	s := NewSubmitter(b, log.Nop(), time.UTC)

	err := s.Submit(context.Background(), Form{IssueID: " i-9 ", Decision: DecisionDecline, Notes: "busy"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(b.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(b.calls))
	}
	if b.calls[0].issueID != "i-9" {
		t.Errorf("issueID = %q, want trimmed i-9", b.calls[0].issueID)
	}
	if b.calls[0].resp.Accepted {
		t.Error("Accepted = true for decline")
	}
}

func TestSubmit_FailureMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"api body surfaced", &api.StatusError{StatusCode: 409, Body: "issue already assigned"}, "issue already assigned"},
		{"empty body", &api.StatusError{StatusCode: 500}, DefaultFailure},
		{"transport", errors.New("connection refused"), DefaultFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewSubmitter(&fakeBackend{err: tt.err}, log.Nop(), nil)
			err := s.Submit(context.Background(), Form{IssueID: "i-1", Decision: DecisionDecline})

			var se *SubmitError
			if !errors.As(err, &se) {
				t.Fatalf("Submit = %v, want *SubmitError", err)
			}
			if se.Message != tt.want {
				t.Errorf("Message = %q, want %q", se.Message, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("SubmitError does not wrap the cause")
			}
		})
	}
}
