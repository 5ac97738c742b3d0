package consoleapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/proco/internal/identity"
	"github.com/linnemanlabs/proco/internal/tenant"
)

type tenantResponse struct {
	ID   string      `json:"id"`
	View tenant.View `json:"view"`
}

func (a *API) handleCreateTenantPage(w http.ResponseWriter, r *http.Request) {
	id, err := identity.FromRequest(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	p := tenant.NewPage(a.backend, a.logger.With("component", "tenant"))
	sid := a.tenants.Create(p)
	if err := p.Load(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tenantResponse{ID: sid, View: p.View(tenantQuery(r))})
}

func (a *API) handleGetTenantPage(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	p, ok := a.tenants.Get(sid)
	if !ok {
		sessionNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, tenantResponse{ID: sid, View: p.View(tenantQuery(r))})
}

func (a *API) handleDeleteTenantPage(w http.ResponseWriter, r *http.Request) {
	if !a.tenants.Delete(chi.URLParam(r, "sid")) {
		sessionNotFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// tenantQuery reads mode, search, page and appointments_page. Bad page numbers
// fall back to the first page.
func tenantQuery(r *http.Request) tenant.Query {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	apptPage, _ := strconv.Atoi(q.Get("appointments_page"))
	return tenant.Query{
		Mode:             tenant.Mode(q.Get("mode")),
		Search:           q.Get("search"),
		Page:             page,
		AppointmentsPage: apptPage,
	}
}
