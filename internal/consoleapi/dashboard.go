package consoleapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/proco/internal/dashboard"
	"github.com/linnemanlabs/proco/internal/triage"
)

type dashboardResponse struct {
	ID        string         `json:"id"`
	View      dashboard.View `json:"view"`
	LoadError string         `json:"load_error,omitempty"`
}

type statusChangeRequest struct {
	Status string `json:"status"`
}

type statusChangeResponse struct {
	Accepted bool           `json:"accepted"`
	View     dashboard.View `json:"view"`
}

type vendorRequest struct {
	VendorID string `json:"vendor_id"`
}

type messageRequest struct {
	Content string `json:"content"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

// dashboardPage resolves {sid} and tags the request span with it.
func (a *API) dashboardPage(w http.ResponseWriter, r *http.Request) (*dashboard.Page, string, bool) {
	sid := chi.URLParam(r, "sid")
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("proco.session.id", sid))
	if id := chi.URLParam(r, "id"); id != "" {
		span.SetAttributes(attribute.String("proco.issue.id", id))
	}

	p, ok := a.dashboards.Get(sid)
	if !ok {
		sessionNotFound(w)
		return nil, sid, false
	}
	return p, sid, true
}

func (a *API) handleCreateDashboard(w http.ResponseWriter, r *http.Request) {
	p := dashboard.NewPage(a.backend, a.logger.With("component", "dashboard"), a.dashOpts)
	sid := a.dashboards.Create(p)

	resp := dashboardResponse{ID: sid}
	if err := p.Load(r.Context()); err != nil {
		resp.LoadError = "failed to load dashboard data"
	}
	resp.View = p.View()
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	p, sid, ok := a.dashboardPage(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{ID: sid, View: p.View()})
}

func (a *API) handleReloadDashboard(w http.ResponseWriter, r *http.Request) {
	p, sid, ok := a.dashboardPage(w, r)
	if !ok {
		return
	}
	resp := dashboardResponse{ID: sid}
	if err := p.Load(r.Context()); err != nil {
		resp.LoadError = "failed to load dashboard data"
	}
	resp.View = p.View()
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleDeleteDashboard(w http.ResponseWriter, r *http.Request) {
	if !a.dashboards.Delete(chi.URLParam(r, "sid")) {
		sessionNotFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleStatusChange(w http.ResponseWriter, r *http.Request) {
	p, _, ok := a.dashboardPage(w, r)
	if !ok {
		return
	}
	var req statusChangeRequest
	if !decodeJSON(w, r, maxBody, &req) {
		return
	}
	target, known := triage.ParseStatus(req.Status)
	if !known {
		writeErrorMsg(w, http.StatusBadRequest, "unknown status")
		return
	}

	accepted, err := p.RequestStatusChange(r.Context(), chi.URLParam(r, "id"), target)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusChangeResponse{Accepted: accepted, View: p.View()})
}

func (a *API) handleVendorRequest(w http.ResponseWriter, r *http.Request) {
	p, _, ok := a.dashboardPage(w, r)
	if !ok {
		return
	}
	var req vendorRequest
	if !decodeJSON(w, r, maxBody, &req) {
		return
	}
	ack, err := p.RequestVendor(r.Context(), chi.URLParam(r, "id"), req.VendorID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ack)
}

func (a *API) handleTranscript(w http.ResponseWriter, r *http.Request) {
	p, _, ok := a.dashboardPage(w, r)
	if !ok {
		return
	}
	msgs, err := p.Transcript(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (a *API) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	p, _, ok := a.dashboardPage(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if !decodeJSON(w, r, maxBody, &req) {
		return
	}
	msg, err := p.PostMessage(r.Context(), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	p, _, ok := a.dashboardPage(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	report, err := p.Report(id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="issue-report-`+id+`.txt"`)
	_, _ = w.Write([]byte(report))
}

func (a *API) handleSaveBalance(w http.ResponseWriter, r *http.Request) {
	a.walletMutation(w, r, (*dashboard.Page).SaveBalance)
}

func (a *API) handleTopUp(w http.ResponseWriter, r *http.Request) {
	a.walletMutation(w, r, (*dashboard.Page).TopUp)
}

// walletMutation runs a balance edit and answers with the refreshed view.
func (a *API) walletMutation(w http.ResponseWriter, r *http.Request, op func(*dashboard.Page, context.Context, string, string) error) {
	p, sid, ok := a.dashboardPage(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decodeJSON(w, r, maxBody, &req) {
		return
	}
	if err := op(p, r.Context(), chi.URLParam(r, "propertyID"), req.Amount); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{ID: sid, View: p.View()})
}
