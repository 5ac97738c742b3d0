// Package tenant is the tenant home page controller: submitted issues,
// issues of the tenant's apartment, and upcoming vendor appointments.
package tenant

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/proco/internal/api"
	"github.com/linnemanlabs/proco/internal/display"
	"github.com/linnemanlabs/proco/internal/identity"
	"github.com/linnemanlabs/proco/internal/triage"
)

const (
	// DefaultName is shown until the tenant's user record loads.
	DefaultName = "Tenant"

	// AssignedVendor is shown when an appointment's vendor is unknown.
	AssignedVendor = "Assigned vendor"

	IssuePageSize       = 7
	AppointmentPageSize = 5
)

// ErrClosed is returned when a page is used after Close.
var ErrClosed = errors.New("page closed")

// Mode selects which issues the list shows.
type Mode string

const (
	ModeMine      Mode = "mine"
	ModeApartment Mode = "apartment"
)

// Backend is the subset of the API client a Page needs.
type Backend interface {
	GetUser(ctx context.Context, userID string) (*api.User, error)
	ListIssues(ctx context.Context) ([]api.Issue, error)
	ListVendors(ctx context.Context) ([]api.Vendor, error)
}

// Page holds the tenant home state of one page session.
type Page struct {
	backend Backend
	logger  log.Logger

	mu         sync.Mutex
	alive      bool
	id         identity.Identity
	name       string
	propertyID string
	issues     []api.Issue
	vendors    map[string]string
}

// NewPage creates an empty, live page. It panics if backend is nil.
func NewPage(backend Backend, logger log.Logger) *Page {
	if backend == nil {
		panic(xerrors.New("tenant: nil backend"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Page{
		backend: backend,
		logger:  logger,
		alive:   true,
		name:    DefaultName,
		issues:  []api.Issue{},
		vendors: map[string]string{},
	}
}

// Close tears the page down. Results of in-flight fetches are discarded.
func (p *Page) Close() {
	p.mu.Lock()
	p.alive = false
	p.mu.Unlock()
}

// Load fetches the tenant's user record, all issues, and vendors in parallel.
// Each fetch degrades on its own: the name falls back to DefaultName, issues
// to an empty list, vendors to an empty map. Without a tenant the page is empty.
func (p *Page) Load(ctx context.Context, id identity.Identity) error {
	if !id.Known() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.alive {
			return ErrClosed
		}
		p.id = id
		p.name = DefaultName
		p.propertyID = id.PropertyID
		p.issues = []api.Issue{}
		p.vendors = map[string]string{}
		return nil
	}

	var (
		name       = DefaultName
		propertyID = id.PropertyID
		issues     = []api.Issue{}
		vendors    = map[string]string{}
	)
	L := p.logger.With("tenant_id", id.TenantID)

	var g errgroup.Group
	g.Go(func() error {
		u, err := p.backend.GetUser(ctx, id.TenantID)
		if err != nil {
			L.Warn(ctx, "tenant lookup failed", "err", err)
			return nil
		}
		if u == nil {
			return nil
		}
		if u.Name != "" {
			name = u.Name
		}
		if u.PropertyID != nil {
			propertyID = *u.PropertyID
		}
		return nil
	})
	g.Go(func() error {
		all, err := p.backend.ListIssues(ctx)
		if err != nil {
			L.Error(ctx, err, "issue fetch failed")
			return nil
		}
		if all != nil {
			issues = all
		}
		return nil
	})
	g.Go(func() error {
		vs, err := p.backend.ListVendors(ctx)
		if err != nil {
			L.Error(ctx, err, "vendor fetch failed")
			return nil
		}
		for _, v := range vs {
			vendors[v.ID] = v.Name
		}
		return nil
	})
	_ = g.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.alive {
		return ErrClosed
	}
	p.id = id
	p.name = name
	p.propertyID = propertyID
	p.issues = issues
	p.vendors = vendors
	return nil
}

// Query selects the list mode, search filter and 1-based pages.
type Query struct {
	Mode             Mode
	Search           string
	Page             int
	AppointmentsPage int
}

// IssueRow is one line of the tenant's issue list.
type IssueRow struct {
	ID            string                 `json:"id"`
	Summary       string                 `json:"summary"`
	Status        triage.EffectiveStatus `json:"status"`
	DateSubmitted string                 `json:"date_submitted"`
}

// Appointment is an upcoming vendor visit.
type Appointment struct {
	IssueID    string `json:"issue_id"`
	IssueTitle string `json:"issue_title"`
	VendorName string `json:"vendor_name"`
	Date       string `json:"date"`
}

// View is the tenant home render model.
type View struct {
	TenantName        string        `json:"tenant_name"`
	PropertyID        string        `json:"property_id,omitempty"`
	Mode              Mode          `json:"mode"`
	Issues            []IssueRow    `json:"issues"`
	Page              int           `json:"page"`
	TotalPages        int           `json:"total_pages"`
	TotalIssues       int           `json:"total_issues"`
	Appointments      []Appointment `json:"appointments"`
	AppointmentsPage  int           `json:"appointments_page"`
	AppointmentsPages int           `json:"appointments_total_pages"`
	TotalAppointments int           `json:"total_appointments"`
}

// View derives the render model for q.
func (p *Page) View(q Query) View {
	p.mu.Lock()
	defer p.mu.Unlock()

	mode := q.Mode
	if mode != ModeApartment {
		mode = ModeMine
	}

	v := View{
		TenantName: p.name,
		PropertyID: p.propertyID,
		Mode:       mode,
	}

	var list []api.Issue
	if mode == ModeApartment {
		list = p.filterLocked(func(is api.Issue) bool {
			return p.propertyID != "" && is.PropertyID == p.propertyID
		})
	} else {
		list = p.filterLocked(func(is api.Issue) bool {
			return p.id.TenantID != "" && is.TenantID == p.id.TenantID
		})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })

	if term := display.Fold(strings.TrimSpace(q.Search)); term != "" {
		filtered := list[:0:0]
		for _, is := range list {
			if strings.Contains(display.Fold(is.Summary), term) {
				filtered = append(filtered, is)
			}
		}
		list = filtered
	}

	v.TotalIssues = len(list)
	v.TotalPages = pageCount(len(list), IssuePageSize)
	v.Page = clampPage(q.Page, v.TotalPages)
	lo, hi := bounds(v.Page, IssuePageSize, len(list))
	v.Issues = make([]IssueRow, 0, hi-lo)
	for _, is := range list[lo:hi] {
		v.Issues = append(v.Issues, IssueRow{
			ID:            is.ID,
			Summary:       is.Summary,
			Status:        triage.DisplayStatus(is.Status),
			DateSubmitted: display.FormatDate(is.CreatedAt),
		})
	}

	appts := p.appointmentsLocked()
	v.TotalAppointments = len(appts)
	v.AppointmentsPages = pageCount(len(appts), AppointmentPageSize)
	v.AppointmentsPage = clampPage(q.AppointmentsPage, v.AppointmentsPages)
	lo, hi = bounds(v.AppointmentsPage, AppointmentPageSize, len(appts))
	v.Appointments = append([]Appointment{}, appts[lo:hi]...)
	return v
}

// appointmentsLocked returns in-progress issues with a vendor and an appointment,
// scoped to the tenant's property when known and to the tenant otherwise.
// caller must hold p.mu
func (p *Page) appointmentsLocked() []Appointment {
	scoped := p.filterLocked(func(is api.Issue) bool {
		if p.propertyID != "" {
			return is.PropertyID == p.propertyID
		}
		return p.id.TenantID != "" && is.TenantID == p.id.TenantID
	})

	var due []api.Issue
	for _, is := range scoped {
		if is.VendorID != nil && *is.VendorID != "" && is.Status == api.IssueStatusInProgress && is.AppointmentAt != nil {
			due = append(due, is)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].AppointmentAt.Before(*due[j].AppointmentAt) })

	out := make([]Appointment, 0, len(due))
	for _, is := range due {
		name, ok := p.vendors[*is.VendorID]
		if !ok {
			name = AssignedVendor
		}
		out = append(out, Appointment{
			IssueID:    is.ID,
			IssueTitle: is.Summary,
			VendorName: name,
			Date:       display.FormatDate(*is.AppointmentAt),
		})
	}
	return out
}

// caller must hold p.mu
func (p *Page) filterLocked(keep func(api.Issue) bool) []api.Issue {
	out := make([]api.Issue, 0, len(p.issues))
	for _, is := range p.issues {
		if keep(is) {
			out = append(out, is)
		}
	}
	return out
}

func pageCount(n, size int) int {
	if n == 0 {
		return 1
	}
	return (n + size - 1) / size
}

func clampPage(page, total int) int {
	if page < 1 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}

func bounds(page, size, n int) (int, int) {
	lo := (page - 1) * size
	if lo > n {
		lo = n
	}
	hi := lo + size
	if hi > n {
		hi = n
	}
	return lo, hi
}
