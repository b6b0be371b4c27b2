// Package conversation runs chat turns on the client side: it keeps the
// conversation history, guards against overlapping turns and applies the
// files an assistant reply carries to the project store.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/faraday/faraday/internal/logging"
	"github.com/faraday/faraday/pkg/models"
	"github.com/faraday/faraday/pkg/protocol"
	"github.com/faraday/faraday/pkg/tree"
)

var (
	// ErrBusy is returned when a turn is submitted while another is in flight.
	ErrBusy = errors.New("a chat turn is already in progress")
	// ErrNoConversation is returned when no conversation is selected.
	ErrNoConversation = errors.New("no active conversation")
	// ErrUnknownConversation is returned for an ID the session does not hold.
	ErrUnknownConversation = errors.New("unknown conversation")
)

// Conversation titles.
const (
	InitialTitle = "Getting started with Faraday"
	NewTitle     = "New conversation"
	titleLength  = 40
)

// Role of a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat bubble.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
}

// Conversation is an ordered message history.
type Conversation struct {
	ID        string
	Title     string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Conversation) clone() Conversation {
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	return out
}

// Transport sends a chat turn; *client.Client implements it.
type Transport interface {
	Chat(ctx context.Context, req protocol.ChatRequest) (*protocol.ChatResponse, error)
}

// ProjectStore is the part of *project.Store a session needs.
type ProjectStore interface {
	ActiveFile() (models.ProjectFile, error)
	UpsertFile(ctx context.Context, file models.ProjectFile) (models.ProjectState, error)
}

// Turn is the result of one Send.
type Turn struct {
	User       Message
	Reply      Message
	Files      []string // paths applied to the store, in order
	Failed     bool     // the reply is an error bubble
	PersistErr error    // set when applying files could not be persisted
}

// Session holds conversations and runs chat turns against a transport.
type Session struct {
	transport Transport
	store     ProjectStore
	now       func() time.Time

	mu            sync.Mutex
	conversations []*Conversation // newest first
	activeID      string
	loading       bool
}

// NewSession creates a session with one empty conversation selected.
func NewSession(transport Transport, store ProjectStore) *Session {
	s := &Session{
		transport: transport,
		store:     store,
		now:       time.Now,
	}
	now := s.now()
	first := &Conversation{
		ID:        uuid.NewString(),
		Title:     InitialTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations = []*Conversation{first}
	s.activeID = first.ID
	return s
}

// Loading reports whether a turn is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Conversations returns copies of all conversations, newest first.
func (s *Session) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.clone()
	}
	return out
}

// Active returns a copy of the selected conversation.
func (s *Session) Active() (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.find(s.activeID); c != nil {
		return c.clone(), true
	}
	return Conversation{}, false
}

// NewConversation starts an empty conversation and selects it.
func (s *Session) NewConversation() Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	c := &Conversation{
		ID:        uuid.NewString(),
		Title:     NewTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations = append([]*Conversation{c}, s.conversations...)
	s.activeID = c.ID
	return c.clone()
}

// Select makes id the active conversation.
func (s *Session) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.find(id) == nil {
		return fmt.Errorf("%s: %w", id, ErrUnknownConversation)
	}
	s.activeID = id
	return nil
}

// Delete removes a conversation. Deleting the active one selects the newest
// remaining conversation, or none.
func (s *Session) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.conversations[:0]
	for _, c := range s.conversations {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.conversations = kept
	if s.activeID == id {
		s.activeID = ""
		if len(kept) > 0 {
			s.activeID = kept[0].ID
		}
	}
}

// Send runs one chat turn in the active conversation. The user message is
// recorded immediately. Transport and server failures never surface as
// errors: they become an assistant message reading "Request failed: ...".
// The returned error is ErrBusy or ErrNoConversation only.
func (s *Session) Send(ctx context.Context, content string) (Turn, error) {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return Turn{}, ErrBusy
	}
	conv := s.find(s.activeID)
	if conv == nil {
		s.mu.Unlock()
		return Turn{}, ErrNoConversation
	}
	convID := conv.ID

	user := Message{ID: uuid.NewString(), Role: RoleUser, Content: content, Timestamp: s.now()}
	if len(conv.Messages) == 0 {
		conv.Title = truncate(content, titleLength)
	}
	conv.Messages = append(conv.Messages, user)
	conv.UpdatedAt = user.Timestamp
	s.loading = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	turn := Turn{User: user}
	req := protocol.ChatRequest{Message: content, ConversationID: convID}
	if s.store != nil {
		if f, err := s.store.ActiveFile(); err == nil {
			req.ActiveFile = &protocol.ActiveFile{
				Path:     f.Path,
				Language: string(f.Language),
				Content:  f.Content,
			}
		}
	}

	resp, err := s.transport.Chat(ctx, req)
	var text string
	switch {
	case err != nil:
		logging.WithContext(ctx).Warn("chat turn failed", zap.Error(err))
		text = "Request failed: " + err.Error()
		turn.Failed = true
	case resp == nil:
		text = "(no response)"
	default:
		text = resp.Message
		turn.Files, turn.PersistErr = s.applyFiles(ctx, resp.Files)
	}

	turn.Reply = Message{ID: uuid.NewString(), Role: RoleAssistant, Content: text, Timestamp: s.now()}

	s.mu.Lock()
	if c := s.find(convID); c != nil {
		c.Messages = append(c.Messages, turn.Reply)
		c.UpdatedAt = turn.Reply.Timestamp
	}
	s.mu.Unlock()

	return turn, nil
}

// applyFiles upserts returned files in order. Files without a path are
// skipped; a missing language is recorded as text.
func (s *Session) applyFiles(ctx context.Context, files []protocol.ChatFile) ([]string, error) {
	if s.store == nil {
		return nil, nil
	}
	var (
		applied []string
		errs    []error
	)
	for _, f := range files {
		if len(tree.Split(f.Path)) == 0 {
			continue
		}
		lang := models.Language(f.Language)
		if lang == "" {
			lang = models.LanguageText
		}
		_, err := s.store.UpsertFile(ctx, models.ProjectFile{Path: f.Path, Content: f.Content, Language: lang})
		if err != nil {
			errs = append(errs, err)
		}
		applied = append(applied, f.Path)
	}
	return applied, errors.Join(errs...)
}

func (s *Session) find(id string) *Conversation {
	for _, c := range s.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
