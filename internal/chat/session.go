// Package chat runs a conversation turn: it validates the pending attachment,
// records the user message, calls the completion API once and records the
// reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/qmuntal/stateless"

	"github.com/comigor/geminichat/internal/files"
	"github.com/comigor/geminichat/internal/history"
	"github.com/comigor/geminichat/internal/llm"
	"github.com/comigor/geminichat/internal/logger"
)

// Turn lifecycle states
const (
	StateIdle          = "Idle"
	StateAwaitingReply = "AwaitingReply"
)

// Turn lifecycle triggers
const (
	TriggerSend          = "Send"
	TriggerReplyReceived = "ReplyReceived"
	TriggerReplyFailed   = "ReplyFailed"
)

// ErrBusy is returned when a turn is started while another awaits its reply.
var ErrBusy = errors.New("a reply is still pending")

// Turn holds the messages recorded by one Send. Assistant is the zero value
// when the remote call failed.
type Turn struct {
	User      history.Message
	Assistant history.Message
}

// Session drives turns against a store and a completion client.
type Session struct {
	store     *history.Store
	client    llm.Client
	validator *files.Validator

	mu  sync.Mutex
	fsm *stateless.StateMachine
}

// NewSession wires a session. A nil validator means files.Default().
func NewSession(store *history.Store, client llm.Client, validator *files.Validator) *Session {
	if validator == nil {
		validator = files.Default()
	}
	fsm := stateless.NewStateMachine(StateIdle)
	fsm.Configure(StateIdle).
		Permit(TriggerSend, StateAwaitingReply)
	fsm.Configure(StateAwaitingReply).
		OnEntry(func(ctx context.Context, args ...any) error {
			logger.L.Debug("awaiting reply")
			return nil
		}).
		Permit(TriggerReplyReceived, StateIdle).
		Permit(TriggerReplyFailed, StateIdle)

	return &Session{store: store, client: client, validator: validator, fsm: fsm}
}

// Store exposes the history the session writes to.
func (s *Session) Store() *history.Store { return s.store }

// Pending reports whether a reply is outstanding.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fsm.MustState() == StateAwaitingReply
}

func (s *Session) fire(ctx context.Context, trigger string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fsm.FireCtx(ctx, trigger)
}

// Send runs one turn for text plus the state's pending attachment.
//
// Invalid input returns history.ErrInvalidMessage and an invalid attachment
// a *files.ValidationError; in both cases nothing is recorded and the state
// is returned unchanged. Once the user message is recorded the attachment is
// cleared. A failed remote call returns an llm.ErrRemoteCall error together
// with the recorded user message.
func (s *Session) Send(ctx context.Context, st State, text string) (State, Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" && st.Attachment == nil {
		return st, Turn{}, fmt.Errorf("%w: nothing to send", history.ErrInvalidMessage)
	}
	if st.Attachment != nil {
		if err := s.validator.Validate(*st.Attachment).Err(); err != nil {
			return st, Turn{}, err
		}
	}

	user, err := s.store.CreateUserMessage(text, st.Attachment)
	if err != nil {
		return st, Turn{}, err
	}
	if err := s.fire(ctx, TriggerSend); err != nil {
		return st, Turn{}, ErrBusy
	}

	if err := s.store.Append(user); err != nil {
		logger.L.Warn("user message kept in memory only", "error", err, "id", user.ID)
	}
	st = st.Detach()
	turn := Turn{User: user}

	resp, err := s.client.Complete(ctx, llm.Request{Text: promptFor(user)})
	if err != nil {
		s.settle(ctx, TriggerReplyFailed)
		return st, turn, err
	}

	reply, err := s.store.CreateAssistantMessage(resp.Text)
	if err != nil {
		s.settle(ctx, TriggerReplyFailed)
		return st, turn, &llm.RemoteError{Kind: llm.KindPayload, Err: err}
	}
	if err := s.store.Append(reply); err != nil {
		logger.L.Warn("assistant message kept in memory only", "error", err, "id", reply.ID)
	}
	s.settle(ctx, TriggerReplyReceived)

	turn.Assistant = reply
	return st, turn, nil
}

func (s *Session) settle(ctx context.Context, trigger string) {
	if err := s.fire(context.WithoutCancel(ctx), trigger); err != nil {
		logger.L.Warn("turn state transition failed", "trigger", trigger, "error", err)
	}
}

// promptFor returns the text sent to the completion API. Files are attached
// as metadata only, so an attachment-only message is described in words.
func promptFor(m history.Message) string {
	if m.Attachment == nil {
		return m.Content
	}
	note := fmt.Sprintf("[Attached file: %s, %s, %s]",
		m.Attachment.Name, files.FormatSize(m.Attachment.SizeBytes), mimeOrUnknown(m.Attachment.MimeType))
	if m.Content == "" {
		return note
	}
	return m.Content + "\n\n" + note
}

func mimeOrUnknown(mt string) string {
	if mt == "" {
		return "unknown type"
	}
	return mt
}
