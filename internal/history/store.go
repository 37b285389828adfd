// Package history owns the ordered conversation history: it builds message
// records, keeps them in insertion order and writes the full serialized
// history to a Persistence backend after every change.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/comigor/geminichat/internal/files"
	"github.com/comigor/geminichat/internal/logger"
)

// Persistence stores the serialized history as one opaque payload.
// Load reports ok=false when nothing has been saved yet.
type Persistence interface {
	Save(serialized string) error
	Load() (serialized string, ok bool, err error)
}

// Store is the single owner of the conversation history. Appends are
// serialized so the persisted payload always reflects a complete history.
type Store struct {
	mu       sync.Mutex
	messages []Message
	backend  Persistence

	now   func() time.Time
	newID func() string
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the creation-time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides message id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore returns an empty store backed by p. Call Restore to load what p
// already holds.
func NewStore(p Persistence, opts ...Option) *Store {
	s := &Store{
		backend: p,
		now:     time.Now,
		newID:   newID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) stamp() time.Time {
	return s.now().UTC().Round(0)
}

// CreateUserMessage builds a user turn. Surrounding whitespace is trimmed; the
// text may be blank only when a file is attached.
func (s *Store) CreateUserMessage(text string, attachment *files.FileRef) (Message, error) {
	content := strings.TrimSpace(text)
	if content == "" && attachment == nil {
		return Message{}, fmt.Errorf("%w: user message needs text or an attachment", ErrInvalidMessage)
	}
	m := Message{
		ID:        s.newID(),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: s.stamp(),
	}
	if attachment != nil {
		att := *attachment
		m.Attachment = &att
	}
	return m, nil
}

// CreateAssistantMessage builds an assistant turn from a completion.
func (s *Store) CreateAssistantMessage(text string) (Message, error) {
	if text == "" {
		return Message{}, fmt.Errorf("%w: assistant message is empty", ErrInvalidMessage)
	}
	return Message{
		ID:        s.newID(),
		Role:      RoleAssistant,
		Content:   text,
		CreatedAt: s.stamp(),
	}, nil
}

// Append adds m to the history and rewrites the persisted payload. The
// message stays in memory even when the write fails; the error is returned
// for the caller to report.
func (s *Store) Append(m Message) error {
	if err := m.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(m.ID) >= 0 {
		return fmt.Errorf("%w: duplicate id %q", ErrInvalidMessage, m.ID)
	}
	s.messages = append(s.messages, m.clone())
	return s.persistLocked()
}

// Restore replaces the in-memory history with the persisted one. A missing,
// unreadable or corrupt payload yields an empty history and is only logged.
func (s *Store) Restore() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	raw, ok, err := s.backend.Load()
	switch {
	case err != nil:
		logger.L.Warn("history load failed; starting empty", "error", err)
	case !ok:
		logger.L.Debug("no persisted history")
	default:
		msgs, err := Decode(raw)
		if err != nil {
			logger.L.Warn("persisted history is corrupt; starting empty", "error", err)
			break
		}
		s.messages = msgs
		logger.L.Info("history restored", "count", len(msgs))
	}
	return s.snapshotLocked()
}

// Clear empties the history and persists the empty state.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	return s.persistLocked()
}

// Messages returns a copy of the history in conversation order.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len reports the number of messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Get looks a message up by id.
func (s *Store) Get(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.messages[i].clone(), true
	}
	return Message{}, false
}

func (s *Store) indexLocked(id string) int {
	for i, m := range s.messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Last returns the most recent message with the given role.
func (s *Store) Last(role Role) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == role {
			return s.messages[i].clone(), true
		}
	}
	return Message{}, false
}

func (s *Store) snapshotLocked() []Message {
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.clone()
	}
	return out
}

func (s *Store) persistLocked() error {
	raw, err := Encode(s.messages)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.backend.Save(raw); err != nil {
		logger.L.Error("failed to persist history", "error", err, "count", len(s.messages))
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}

// Encode serializes messages as a JSON array. A nil slice encodes as [].
func Encode(msgs []Message) (string, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ErrCorruptHistory marks a payload that cannot be turned back into messages.
var ErrCorruptHistory = errors.New("corrupt history payload")

// Decode parses a payload produced by Encode. Any record that breaks the
// message invariants makes the whole payload corrupt.
func Decode(raw string) ([]Message, error) {
	var msgs []Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptHistory, err)
	}
	seen := make(map[string]struct{}, len(msgs))
	for i, m := range msgs {
		if err := m.validate(); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrCorruptHistory, i, err)
		}
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("%w: record %d: duplicate id %q", ErrCorruptHistory, i, m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	return msgs, nil
}
