package actions

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClipboard struct {
	text string
	err  error
}

func (f *fakeClipboard) WriteAll(text string) error {
	if f.err != nil {
		return f.err
	}
	f.text = text
	return nil
}

type fakeSharer struct {
	err   error
	title string
}

func (f *fakeSharer) Share(ctx context.Context, title, text string) error {
	f.title = title
	return f.err
}

func TestCopy(t *testing.T) {
	clip := &fakeClipboard{}
	require.NoError(t, New(clip, nil, t.TempDir()).Copy("hello"))
	require.Equal(t, "hello", clip.text)

	err := New(&fakeClipboard{err: errors.New("no display")}, nil, "").Copy("x")
	require.ErrorContains(t, err, "no display")
}

func TestFallbackClipboard(t *testing.T) {
	var buf bytes.Buffer
	fb := FallbackClipboard{&fakeClipboard{err: errors.New("xclip missing")}, TerminalClipboard{Out: &buf}}
	require.NoError(t, fb.WriteAll("hi"))
	require.Contains(t, buf.String(), base64.StdEncoding.EncodeToString([]byte("hi")))

	require.Error(t, FallbackClipboard{}.WriteAll("x"))
	err := FallbackClipboard{&fakeClipboard{err: errors.New("a")}, &fakeClipboard{err: errors.New("b")}}.WriteAll("x")
	require.ErrorContains(t, err, "a")
	require.ErrorContains(t, err, "b")
}

func TestShare(t *testing.T) {
	ctx := context.Background()

	t.Run("native", func(t *testing.T) {
		sh := &fakeSharer{}
		res := New(&fakeClipboard{}, sh, "").Share(ctx, "text", "")
		require.Equal(t, ShareResult{Success: true, Method: MethodNative, Message: "Message shared successfully"}, res)
		require.Equal(t, "Gemini Chat Response", sh.title)
	})

	t.Run("cancelled does not fall back", func(t *testing.T) {
		clip := &fakeClipboard{}
		res := New(clip, &fakeSharer{err: ErrShareCancelled}, "").Share(ctx, "text", "t")
		require.False(t, res.Success)
		require.Equal(t, MethodNative, res.Method)
		require.Equal(t, "Share cancelled", res.Message)
		require.Empty(t, clip.text)
	})

	t.Run("native failure falls back", func(t *testing.T) {
		clip := &fakeClipboard{}
		res := New(clip, &fakeSharer{err: errors.New("boom")}, "").Share(ctx, "text", "t")
		require.True(t, res.Success)
		require.Equal(t, MethodClipboard, res.Method)
		require.Equal(t, "text", clip.text)
	})

	t.Run("no sharer", func(t *testing.T) {
		res := New(&fakeClipboard{}, nil, "").Share(ctx, "text", "")
		require.Equal(t, ShareResult{Success: true, Method: MethodClipboard, Message: "Content copied to clipboard for sharing"}, res)
	})

	t.Run("everything fails", func(t *testing.T) {
		res := New(&fakeClipboard{err: errors.New("x")}, &fakeSharer{err: errors.New("y")}, "").Share(ctx, "text", "")
		require.Equal(t, ShareResult{Success: false, Method: MethodClipboard, Message: "Share failed"}, res)

		res = New(&fakeClipboard{err: errors.New("x")}, nil, "").Share(ctx, "text", "")
		require.Equal(t, "Failed to copy content", res.Message)
	})
}

func TestDownloadMessage(t *testing.T) {
	dir := t.TempDir()
	a := New(&fakeClipboard{}, nil, dir)
	a.now = func() time.Time { return time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC) }

	path, err := a.DownloadMessage("**answer**", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "gemini-response-2026-10-19.txt"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "**answer**", string(data))

	path, err = a.DownloadMessage("x", "mine.txt")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "mine.txt"), path)
}
