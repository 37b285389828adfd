package history

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comigor/geminichat/internal/files"
)

type failingPersistence struct {
	saveErr error
	loadErr error
	raw     string
	ok      bool
	saves   int
}

func (f *failingPersistence) Save(s string) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.raw, f.ok = s, true
	return nil
}

func (f *failingPersistence) Load() (string, bool, error) {
	return f.raw, f.ok, f.loadErr
}

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

func TestCreateUserMessage(t *testing.T) {
	s := NewStore(&MemoryPersistence{})

	_, err := s.CreateUserMessage("", nil)
	require.ErrorIs(t, err, ErrInvalidMessage)

	_, err = s.CreateUserMessage("   \n\t", nil)
	require.ErrorIs(t, err, ErrInvalidMessage)

	ref := &files.FileRef{Name: "a.png", SizeBytes: 10, MimeType: "image/png"}
	m, err := s.CreateUserMessage("", ref)
	require.NoError(t, err)
	require.Equal(t, RoleUser, m.Role)
	require.Empty(t, m.Content)
	require.Equal(t, *ref, *m.Attachment)

	ref.Name = "changed.png"
	require.Equal(t, "a.png", m.Attachment.Name, "attachment must be copied")

	m, err = s.CreateUserMessage("  hello  ", nil)
	require.NoError(t, err)
	require.Equal(t, "hello", m.Content)
	require.Nil(t, m.Attachment)
	require.True(t, strings.HasPrefix(m.ID, "msg_"))
	require.False(t, m.CreatedAt.IsZero())
}

func TestCreateAssistantMessage(t *testing.T) {
	s := NewStore(&MemoryPersistence{})
	_, err := s.CreateAssistantMessage("")
	require.ErrorIs(t, err, ErrInvalidMessage)

	m, err := s.CreateAssistantMessage("Hi there")
	require.NoError(t, err)
	require.Equal(t, RoleAssistant, m.Role)
	require.Equal(t, "Hi there", m.Content)
	require.Nil(t, m.Attachment)
}

func TestIDsAreUnique(t *testing.T) {
	s := NewStore(&MemoryPersistence{})
	seen := make(map[string]bool)
	for i := 0; i < 5000; i++ {
		m, err := s.CreateAssistantMessage("x")
		require.NoError(t, err)
		require.False(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
	}
}

func TestAppendPersistsFullHistory(t *testing.T) {
	p := &failingPersistence{}
	s := NewStore(p, WithClock(fixedClock()))

	u, _ := s.CreateUserMessage("Hello", nil)
	a, _ := s.CreateAssistantMessage("Hi there")
	require.NoError(t, s.Append(u))
	require.NoError(t, s.Append(a))

	require.Equal(t, 2, p.saves)
	decoded, err := Decode(p.raw)
	require.NoError(t, err)
	require.Equal(t, []Message{u, a}, decoded)
	require.Equal(t, []Message{u, a}, s.Messages())
	require.Equal(t, 2, s.Len())
}

func TestAppendRejectsInvalidRecords(t *testing.T) {
	s := NewStore(&MemoryPersistence{})
	require.ErrorIs(t, s.Append(Message{Role: RoleUser, Content: "x"}), ErrInvalidMessage)
	require.ErrorIs(t, s.Append(Message{ID: "msg_1", Role: "system", Content: "x"}), ErrInvalidMessage)
	require.ErrorIs(t, s.Append(Message{ID: "msg_1", Role: RoleUser}), ErrInvalidMessage)
	require.ErrorIs(t, s.Append(Message{
		ID: "msg_1", Role: RoleAssistant, Content: "x",
		Attachment: &files.FileRef{Name: "a.txt", SizeBytes: 1},
	}), ErrInvalidMessage)
	require.Zero(t, s.Len())
}

func TestAppendRejectsDuplicateID(t *testing.T) {
	p := &failingPersistence{}
	s := NewStore(p)
	m, err := s.CreateUserMessage("hi", nil)
	require.NoError(t, err)

	require.NoError(t, s.Append(m))
	require.ErrorIs(t, s.Append(m), ErrInvalidMessage)
	require.Equal(t, 1, s.Len())
	require.Equal(t, 1, p.saves, "a rejected message must not be persisted")

	msgs, err := Decode(p.raw)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestDecodeRejectsDuplicateIDs(t *testing.T) {
	m := Message{ID: "msg_1", Role: RoleUser, Content: "a", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	raw, err := Encode([]Message{m, m})
	require.NoError(t, err)

	_, err = Decode(raw)
	require.ErrorIs(t, err, ErrCorruptHistory)
}

func TestAppendKeepsMessageWhenSaveFails(t *testing.T) {
	p := &failingPersistence{saveErr: errors.New("disk full")}
	s := NewStore(p)
	m, _ := s.CreateUserMessage("hello", nil)

	err := s.Append(m)
	require.ErrorContains(t, err, "disk full")
	require.Equal(t, 1, s.Len())
}

func TestRoundTrip(t *testing.T) {
	p := &MemoryPersistence{}
	s := NewStore(p)

	u, _ := s.CreateUserMessage("look", &files.FileRef{Name: "cat.png", SizeBytes: 2048, MimeType: "image/png"})
	a, _ := s.CreateAssistantMessage("**Nice** cat\nwith `code`")
	f, _ := s.CreateUserMessage("", &files.FileRef{Name: "notes.md", SizeBytes: 1})
	for _, m := range []Message{u, a, f} {
		require.NoError(t, s.Append(m))
	}
	want := s.Messages()

	restored := NewStore(p).Restore()
	require.Equal(t, want, restored)

	// A history that was itself restored survives another cycle.
	s2 := NewStore(p)
	s2.Restore()
	require.NoError(t, s2.Clear())
	for _, m := range restored {
		require.NoError(t, s2.Append(m))
	}
	require.Equal(t, want, NewStore(p).Restore())
}

func TestRestoreCorruptOrMissing(t *testing.T) {
	cases := map[string]*failingPersistence{
		"missing":      {},
		"not json":     {raw: "{oops", ok: true},
		"wrong shape":  {raw: `{"id":"x"}`, ok: true},
		"bad record":   {raw: `[{"id":"","role":"user","content":"x","createdAt":"2026-01-01T00:00:00Z"}]`, ok: true},
		"load error":   {loadErr: errors.New("locked"), ok: true},
		"empty string": {raw: "", ok: true},
		"duplicate id": {raw: `[{"id":"msg_1","role":"user","content":"a","createdAt":"2026-01-01T00:00:00Z"},` +
			`{"id":"msg_1","role":"assistant","content":"b","createdAt":"2026-01-01T00:00:01Z"}]`, ok: true},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			s := NewStore(p)
			got := s.Restore()
			require.Empty(t, got)
			require.Zero(t, s.Len())
		})
	}
}

func TestRestoreReplacesHistory(t *testing.T) {
	p := &MemoryPersistence{}
	s := NewStore(p)
	m, _ := s.CreateUserMessage("persisted", nil)
	require.NoError(t, s.Append(m))

	other := NewStore(p)
	extra, _ := other.CreateUserMessage("unsaved", nil)
	other.messages = append(other.messages, extra)

	got := other.Restore()
	require.Len(t, got, 1)
	require.Equal(t, "persisted", got[0].Content)
}

func TestClearTwice(t *testing.T) {
	p := &MemoryPersistence{}
	s := NewStore(p)
	m, _ := s.CreateUserMessage("hello", nil)
	require.NoError(t, s.Append(m))

	require.NoError(t, s.Clear())
	require.Empty(t, s.Messages())
	require.NoError(t, s.Clear())
	require.Empty(t, s.Messages())

	raw, ok, err := p.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "[]", raw)
	require.Empty(t, NewStore(p).Restore())
}

func TestGetAndLast(t *testing.T) {
	s := NewStore(&MemoryPersistence{})
	_, ok := s.Last(RoleAssistant)
	require.False(t, ok)

	u, _ := s.CreateUserMessage("q1", nil)
	a1, _ := s.CreateAssistantMessage("a1")
	a2, _ := s.CreateAssistantMessage("a2")
	for _, m := range []Message{u, a1, a2} {
		require.NoError(t, s.Append(m))
	}

	last, ok := s.Last(RoleAssistant)
	require.True(t, ok)
	require.Equal(t, "a2", last.Content)

	got, ok := s.Get(u.ID)
	require.True(t, ok)
	require.Equal(t, u, got)
	_, ok = s.Get("msg_missing")
	require.False(t, ok)
}

func TestMessagesReturnsCopies(t *testing.T) {
	s := NewStore(&MemoryPersistence{})
	m, _ := s.CreateUserMessage("x", &files.FileRef{Name: "a.txt", SizeBytes: 1})
	require.NoError(t, s.Append(m))

	out := s.Messages()
	out[0].Content = "mutated"
	out[0].Attachment.Name = "mutated"

	again := s.Messages()
	require.Equal(t, "x", again[0].Content)
	require.Equal(t, "a.txt", again[0].Attachment.Name)
}

func TestEncodeOmitsMissingAttachment(t *testing.T) {
	s := NewStore(&MemoryPersistence{}, WithIDGenerator(func() string { return "msg_fixed" }), WithClock(fixedClock()))
	m, _ := s.CreateAssistantMessage("hi")

	raw, err := Encode([]Message{m})
	require.NoError(t, err)
	require.Equal(t, `[{"id":"msg_fixed","role":"assistant","content":"hi","createdAt":"2026-10-19T09:30:01Z"}]`, raw)

	empty, err := Encode(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", empty)
}

func TestSQLitePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	p := NewSQLitePersistence(path)
	t.Cleanup(func() { p.Close() })

	_, ok, err := p.Load()
	require.NoError(t, err)
	require.False(t, ok)

	s := NewStore(p)
	for i := 0; i < 3; i++ {
		m, _ := s.CreateUserMessage(fmt.Sprintf("message %d", i), nil)
		require.NoError(t, s.Append(m))
	}
	want := s.Messages()

	reopened := NewSQLitePersistence(path)
	t.Cleanup(func() { reopened.Close() })
	require.Equal(t, want, NewStore(reopened).Restore())

	require.NoError(t, s.Clear())
	raw, ok, err := reopened.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "[]", raw)
}
