package consoleapi

import (
	"net/http"

	"github.com/linnemanlabs/proco/internal/respond"
)

func (a *API) handleVendorResponse(w http.ResponseWriter, r *http.Request) {
	var form respond.Form
	if !decodeJSON(w, r, maxBody, &form) {
		return
	}
	if err := a.responder.Submit(r.Context(), form); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
