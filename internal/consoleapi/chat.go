package consoleapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/proco/internal/chat"
	"github.com/linnemanlabs/proco/internal/identity"
)

type chatResponse struct {
	ID       string        `json:"id"`
	Snapshot chat.Snapshot `json:"snapshot"`
}

type chatSendRequest struct {
	Content     string  `json:"content"`
	ImageBase64 *string `json:"image_base64"`
}

type chatSelectRequest struct {
	IssueID string `json:"issue_id"`
}

func (a *API) chatSession(w http.ResponseWriter, r *http.Request) (*chat.Session, string, bool) {
	sid := chi.URLParam(r, "sid")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("proco.session.id", sid))
	s, ok := a.chats.Get(sid)
	if !ok {
		sessionNotFound(w)
		return nil, sid, false
	}
	return s, sid, true
}

// handleCreateChat opens a conversation for the tenant named in the identity
// headers. A missing tenant still opens one; sending then answers inline.
func (a *API) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	id, err := identity.FromRequest(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	s := chat.NewSession(a.backend, a.logger.With("component", "chat"), id)
	sid := a.chats.Create(s)
	writeJSON(w, http.StatusCreated, chatResponse{ID: sid, Snapshot: s.Snapshot()})
}

func (a *API) handleGetChat(w http.ResponseWriter, r *http.Request) {
	s, sid, ok := a.chatSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{ID: sid, Snapshot: s.Snapshot()})
}

func (a *API) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	if !a.chats.Delete(chi.URLParam(r, "sid")) {
		sessionNotFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSendChat(w http.ResponseWriter, r *http.Request) {
	s, sid, ok := a.chatSession(w, r)
	if !ok {
		return
	}
	var req chatSendRequest
	if !decodeJSON(w, r, maxChatBody, &req) {
		return
	}
	if err := s.Send(r.Context(), req.Content, req.ImageBase64); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{ID: sid, Snapshot: s.Snapshot()})
}

func (a *API) handleSelectChat(w http.ResponseWriter, r *http.Request) {
	s, sid, ok := a.chatSession(w, r)
	if !ok {
		return
	}
	var req chatSelectRequest
	if !decodeJSON(w, r, maxBody, &req) {
		return
	}
	if req.IssueID == "" {
		writeErrorMsg(w, http.StatusBadRequest, "issue_id is required")
		return
	}
	if err := s.Select(r.Context(), req.IssueID); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{ID: sid, Snapshot: s.Snapshot()})
}

func (a *API) handleResetChat(w http.ResponseWriter, r *http.Request) {
	s, sid, ok := a.chatSession(w, r)
	if !ok {
		return
	}
	s.Reset()
	writeJSON(w, http.StatusOK, chatResponse{ID: sid, Snapshot: s.Snapshot()})
}

func (a *API) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	s, _, ok := a.chatSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.History(r.Context()))
}
