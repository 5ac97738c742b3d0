// Package chat is the tenant's issue-reporting conversation with the assistant.
package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/proco/internal/api"
	"github.com/linnemanlabs/proco/internal/identity"
)

// Greeting opens every new conversation.
const Greeting = "Hello! I'm ProCo, your AI property assistant. I'm here to help you report any maintenance issues you're experiencing. What seems to be the problem?"

// Inline assistant replies for failures.
const (
	MissingTenantReply = "Missing tenant ID. Set the X-Tenant-Id header to continue."
	UnreachableReply   = "Sorry, I couldn't reach the server. Please try again."
)

// NewChatID is the active id of a conversation that has no issue yet.
const NewChatID = "new"

// History fallbacks.
const (
	DefaultTitle   = "Maintenance Issue"
	DefaultPreview = "Tap to view conversation"
	historyDate    = "Jan 2"
)

var (
	// ErrReplyPending is returned when a message is sent while a reply is outstanding.
	ErrReplyPending = errors.New("reply pending")

	// ErrSubmitted is returned when a message is sent after the issue was filed.
	ErrSubmitted = errors.New("issue already submitted")

	// ErrEmptyMessage is returned for a message with neither text nor image.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrClosed is returned when a session is used after Close.
	ErrClosed = errors.New("session closed")
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleLandlord  Role = "landlord"
	RoleAssistant Role = "assistant"
)

func roleOf(s string) Role {
	switch s {
	case string(RoleUser):
		return RoleUser
	case string(RoleLandlord):
		return RoleLandlord
	default:
		return RoleAssistant
	}
}

// Message is one line of the conversation.
type Message struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	ImageBase64 *string   `json:"image_base64,omitempty"`
	Role        Role      `json:"role"`
	Timestamp   time.Time `json:"timestamp"`
}

// Backend is the subset of the API client a Session needs.
type Backend interface {
	Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
	ListIssueMessages(ctx context.Context, issueID string) ([]api.ChatMessage, error)
	ListIssues(ctx context.Context) ([]api.Issue, error)
}

// Session is one tenant conversation.
type Session struct {
	backend Backend
	logger  log.Logger
	id      identity.Identity
	now     func() time.Time

	mu        sync.Mutex
	alive     bool
	gen       uint64 // bumped whenever the conversation is replaced
	active    string
	messages  []Message
	typing    bool
	submitted bool
	issueID   string
}

// NewSession starts a conversation with the greeting. It panics if backend is nil.
func NewSession(backend Backend, logger log.Logger, id identity.Identity) *Session {
	if backend == nil {
		panic(xerrors.New("chat: nil backend"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	s := &Session{
		backend: backend,
		logger:  logger.With("tenant_id", id.TenantID),
		id:      id,
		now:     time.Now,
		alive:   true,
	}
	s.resetLocked()
	return s
}

// Close tears the session down. Replies that arrive later are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	s.alive = false
	s.mu.Unlock()
}

// Reset starts a new conversation.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// caller must hold s.mu
func (s *Session) resetLocked() {
	s.gen++
	s.active = NewChatID
	s.messages = []Message{s.assistantLocked(Greeting)}
	s.typing = false
	s.submitted = false
	s.issueID = ""
}

// caller must hold s.mu
func (s *Session) assistantLocked(content string) Message {
	return Message{ID: ulid.Make().String(), Content: content, Role: RoleAssistant, Timestamp: s.now()}
}

// Send posts a tenant message and appends the assistant's reply. Messages are
// refused while a reply is pending and after an issue was filed. Without a
// tenant, and when the API cannot be reached, an inline assistant message is
// appended instead and the error is not returned. A reply that arrives after
// Reset or Select replaced the conversation is dropped.
func (s *Session) Send(ctx context.Context, content string, imageBase64 *string) error {
	content = strings.TrimSpace(content)
	if imageBase64 != nil && *imageBase64 == "" {
		imageBase64 = nil
	}
	if content == "" && imageBase64 == nil {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	switch {
	case !s.alive:
		s.mu.Unlock()
		return ErrClosed
	case s.submitted:
		s.mu.Unlock()
		return ErrSubmitted
	case s.typing:
		s.mu.Unlock()
		return ErrReplyPending
	}
	if !s.id.Known() {
		s.messages = append(s.messages, s.assistantLocked(MissingTenantReply))
		s.mu.Unlock()
		return nil
	}

	s.messages = append(s.messages, Message{
		ID:          ulid.Make().String(),
		Content:     content,
		ImageBase64: imageBase64,
		Role:        RoleUser,
		Timestamp:   s.now(),
	})
	s.typing = true
	gen := s.gen
	req := api.ChatRequest{TenantID: s.id.TenantID, Message: content, ImageBase64: imageBase64}
	if s.issueID != "" {
		issueID := s.issueID
		req.IssueID = &issueID
	}
	if s.id.PropertyID != "" {
		propertyID := s.id.PropertyID
		req.PropertyID = &propertyID
	}
	s.mu.Unlock()

	resp, err := s.backend.Chat(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.alive {
		s.typing = false
		return ErrClosed
	}
	if s.gen != gen {
		// The conversation was reset or switched while the reply was in flight.
		return nil
	}
	s.typing = false
	if err != nil {
		s.logger.Error(ctx, err, "chat request failed")
		s.messages = append(s.messages, s.assistantLocked(UnreachableReply))
		return nil
	}

	s.messages = append(s.messages, s.assistantLocked(resp.Response))
	if resp.IssueID != nil && *resp.IssueID != "" {
		s.issueID = *resp.IssueID
	}
	if resp.IssueCreated {
		s.submitted = true
		s.logger.Info(ctx, "issue filed from chat", "issue_id", s.issueID)
	}
	return nil
}

// Select switches to the conversation of an existing issue. Its transcript
// replaces the current messages when non-empty; a failed fetch keeps them.
func (s *Session) Select(ctx context.Context, issueID string) error {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return ErrClosed
	}
	s.gen++
	s.active = issueID
	s.issueID = issueID
	s.submitted = true
	s.typing = false
	gen := s.gen
	s.mu.Unlock()

	msgs, err := s.backend.ListIssueMessages(ctx, issueID)
	if err != nil {
		s.logger.Error(ctx, err, "transcript fetch failed", "issue_id", issueID)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.alive {
		return ErrClosed
	}
	if s.gen != gen || len(msgs) == 0 {
		return nil
	}
	mapped := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		mapped = append(mapped, Message{
			ID:          m.ID,
			Content:     m.Content,
			ImageBase64: m.ImageBase64,
			Role:        roleOf(m.Role),
			Timestamp:   m.CreatedAt,
		})
	}
	s.messages = mapped
	return nil
}

// HistoryEntry is one previous conversation in the sidebar.
type HistoryEntry struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Date    string `json:"date"`
	Preview string `json:"preview"`
}

// History lists the tenant's issues newest first, scoped to the tenant's
// property when one is set. A failed fetch yields an empty list.
func (s *Session) History(ctx context.Context) []HistoryEntry {
	out := []HistoryEntry{}
	if !s.id.Known() {
		return out
	}
	issues, err := s.backend.ListIssues(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "history fetch failed")
		return out
	}

	mine := make([]api.Issue, 0, len(issues))
	for _, is := range issues {
		if is.TenantID != s.id.TenantID {
			continue
		}
		if s.id.PropertyID != "" && is.PropertyID != s.id.PropertyID {
			continue
		}
		mine = append(mine, is)
	}
	sort.SliceStable(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })

	for _, is := range mine {
		e := HistoryEntry{
			ID:      is.ID,
			Title:   is.Summary,
			Date:    is.CreatedAt.Format(historyDate),
			Preview: is.Description,
		}
		if e.Title == "" {
			e.Title = DefaultTitle
		}
		if e.Preview == "" {
			e.Preview = DefaultPreview
		}
		out = append(out, e)
	}
	return out
}

// Snapshot is the render model of a session.
type Snapshot struct {
	Active    string    `json:"active"`
	Messages  []Message `json:"messages"`
	Typing    bool      `json:"typing"`
	Submitted bool      `json:"submitted"`
	IssueID   string    `json:"issue_id,omitempty"`
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Active:    s.active,
		Messages:  append([]Message(nil), s.messages...),
		Typing:    s.typing,
		Submitted: s.submitted,
		IssueID:   s.issueID,
	}
}
