// Package consoleapi exposes the page controllers as JSON under /api/v1.
// Each opened view is a server-side page session addressed by its ULID.
package consoleapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/proco/internal/api"
	"github.com/linnemanlabs/proco/internal/chat"
	"github.com/linnemanlabs/proco/internal/dashboard"
	"github.com/linnemanlabs/proco/internal/identity"
	"github.com/linnemanlabs/proco/internal/respond"
	"github.com/linnemanlabs/proco/internal/session"
	"github.com/linnemanlabs/proco/internal/tenant"
	"github.com/linnemanlabs/proco/internal/wallet"
)

const (
	maxBody     = 1 << 20
	maxChatBody = 10 << 20
)

// Backend is everything the page controllers need from the REST API.
type Backend interface {
	dashboard.Backend
	tenant.Backend
	chat.Backend
	respond.Backend
}

// Options configures an API.
type Options struct {
	// Dashboard is passed to every dashboard page.
	Dashboard dashboard.Options

	// SessionTTL is the idle lifetime of a page session. Zero disables expiry.
	SessionTTL time.Duration

	// Location is used to read vendor appointment times. Nil means UTC.
	Location *time.Location
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger    log.Logger
	backend   Backend
	dashOpts  dashboard.Options
	responder *respond.Submitter

	dashboards *session.Store[*dashboard.Page]
	tenants    *session.Store[*tenant.Page]
	chats      *session.Store[*chat.Session]
}

// New creates a new API handler.
func New(logger log.Logger, backend Backend, opts Options) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if backend == nil {
		panic(xerrors.New("api backend is required"))
	}
	return &API{
		logger:     logger,
		backend:    backend,
		dashOpts:   opts.Dashboard,
		responder:  respond.NewSubmitter(backend, logger.With("component", "respond"), opts.Location),
		dashboards: session.New[*dashboard.Page](opts.SessionTTL),
		tenants:    session.New[*tenant.Page](opts.SessionTTL),
		chats:      session.New[*chat.Session](opts.SessionTTL),
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/dashboards", func(r chi.Router) {
			r.Post("/", a.handleCreateDashboard)
			r.Route("/{sid}", func(r chi.Router) {
				r.Get("/", a.handleGetDashboard)
				r.Delete("/", a.handleDeleteDashboard)
				r.Post("/reload", a.handleReloadDashboard)
				r.Patch("/issues/{id}/status", a.handleStatusChange)
				r.Post("/issues/{id}/vendor-request", a.handleVendorRequest)
				r.Get("/issues/{id}/messages", a.handleTranscript)
				r.Post("/issues/{id}/messages", a.handlePostMessage)
				r.Get("/issues/{id}/report", a.handleReport)
				r.Put("/wallets/{propertyID}/balance", a.handleSaveBalance)
				r.Post("/wallets/{propertyID}/topup", a.handleTopUp)
			})
		})

		r.Route("/tenant-pages", func(r chi.Router) {
			r.Post("/", a.handleCreateTenantPage)
			r.Get("/{sid}", a.handleGetTenantPage)
			r.Delete("/{sid}", a.handleDeleteTenantPage)
		})

		r.Route("/chats", func(r chi.Router) {
			r.Post("/", a.handleCreateChat)
			r.Route("/{sid}", func(r chi.Router) {
				r.Get("/", a.handleGetChat)
				r.Delete("/", a.handleDeleteChat)
				r.Post("/messages", a.handleSendChat)
				r.Post("/select", a.handleSelectChat)
				r.Post("/reset", a.handleResetChat)
				r.Get("/history", a.handleChatHistory)
			})
		})

		r.Post("/vendor-responses", a.handleVendorResponse)
	})
}

// Sweep closes page sessions that have been idle longer than the TTL.
func (a *API) Sweep() int {
	return a.dashboards.Sweep() + a.tenants.Sweep() + a.chats.Sweep()
}

// Sessions returns the number of open page sessions.
func (a *API) Sessions() int {
	return a.dashboards.Len() + a.tenants.Len() + a.chats.Len()
}

// Shutdown closes every open page session.
func (a *API) Shutdown() {
	a.dashboards.CloseAll()
	a.tenants.CloseAll()
	a.chats.CloseAll()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeError maps controller errors onto HTTP statuses. Upstream failures are
// logged here; validation failures are returned to the caller as-is.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		submitErr *respond.SubmitError
		statusErr *api.StatusError
	)
	switch {
	case errors.Is(err, dashboard.ErrIssueNotFound):
		writeErrorMsg(w, http.StatusNotFound, err.Error())
	case errors.Is(err, dashboard.ErrClosed), errors.Is(err, tenant.ErrClosed), errors.Is(err, chat.ErrClosed):
		writeErrorMsg(w, http.StatusGone, err.Error())
	case errors.Is(err, dashboard.ErrDerivedStatus), errors.Is(err, dashboard.ErrVendorNotSuggested):
		writeErrorMsg(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, dashboard.ErrBudgetBlocked), errors.Is(err, chat.ErrReplyPending), errors.Is(err, chat.ErrSubmitted):
		writeErrorMsg(w, http.StatusConflict, err.Error())
	case errors.Is(err, wallet.ErrEmptyAmount), errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, dashboard.ErrEmptyMessage), errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, identity.ErrInvalidID),
		errors.Is(err, respond.ErrMissingIssue), errors.Is(err, respond.ErrMissingAppointment),
		errors.Is(err, respond.ErrInvalidAppointment), errors.Is(err, respond.ErrInvalidDecision):
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &submitErr):
		writeErrorMsg(w, http.StatusBadGateway, submitErr.Message)
	case errors.As(err, &statusErr):
		a.logger.Warn(r.Context(), "upstream rejected request", "route", statusErr.Route, "status", statusErr.StatusCode)
		writeErrorMsg(w, http.StatusBadGateway, "upstream error")
	default:
		a.logger.Error(r.Context(), err, "request failed", "path", r.URL.Path)
		writeErrorMsg(w, http.StatusBadGateway, "upstream unavailable")
	}
}

// decodeJSON reads a JSON body of at most limit bytes into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeErrorMsg(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	return true
}

func sessionNotFound(w http.ResponseWriter) {
	writeErrorMsg(w, http.StatusNotFound, "session not found")
}
