package history

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/comigor/geminichat/internal/files"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ErrInvalidMessage is returned when a message would violate the record
// invariants: known role, an id, and non-empty content unless a file is attached.
var ErrInvalidMessage = errors.New("invalid message")

// Message is a single conversational turn. It is treated as immutable once
// created; the store hands out copies.
type Message struct {
	ID         string         `json:"id"`
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	Attachment *files.FileRef `json:"attachment,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func (m Message) clone() Message {
	if m.Attachment != nil {
		att := *m.Attachment
		m.Attachment = &att
	}
	return m
}

func (m Message) validate() error {
	switch {
	case m.ID == "":
		return errors.Join(ErrInvalidMessage, errors.New("missing id"))
	case m.Role != RoleUser && m.Role != RoleAssistant:
		return errors.Join(ErrInvalidMessage, errors.New("unknown role "+string(m.Role)))
	case m.Content == "" && m.Attachment == nil:
		return errors.Join(ErrInvalidMessage, errors.New("empty content without attachment"))
	case m.Role == RoleAssistant && m.Attachment != nil:
		return errors.Join(ErrInvalidMessage, errors.New("assistant messages cannot carry attachments"))
	}
	return nil
}

const idPrefix = "msg_"

// newID returns a prefixed random identifier. 122 random bits make reuse
// within a process, and across restored histories, negligible.
func newID() string {
	return idPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
