// Package actions implements the per-message actions: copy, share and
// download.
package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/atotto/clipboard"
	"github.com/aymanbagabas/go-osc52/v2"

	"github.com/comigor/geminichat/internal/export"
	"github.com/comigor/geminichat/internal/logger"
)

// Clipboard receives copied text.
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard uses the OS clipboard tools.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return errors.New("system clipboard unavailable")
	}
	return clipboard.WriteAll(text)
}

// TerminalClipboard asks the terminal emulator to set the clipboard with an
// OSC 52 sequence. It works over SSH where no system clipboard exists.
type TerminalClipboard struct {
	Out io.Writer
}

func (c TerminalClipboard) WriteAll(text string) error {
	_, err := osc52.New(text).WriteTo(c.Out)
	return err
}

// FallbackClipboard tries each clipboard in order until one succeeds.
type FallbackClipboard []Clipboard

func (f FallbackClipboard) WriteAll(text string) error {
	var errs []error
	for _, c := range f {
		err := c.WriteAll(text)
		if err == nil {
			return nil
		}
		logger.L.Debug("clipboard attempt failed", "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return errors.New("no clipboard configured")
	}
	return errors.Join(errs...)
}

// ErrShareCancelled is returned by a Sharer when the user dismissed it.
var ErrShareCancelled = errors.New("share cancelled")

// Sharer hands content to a native share target.
type Sharer interface {
	Share(ctx context.Context, title, text string) error
}

// ShareMethod reports which path a share took.
type ShareMethod string

const (
	MethodNative    ShareMethod = "native"
	MethodClipboard ShareMethod = "clipboard"
)

// ShareResult is the outcome of Share.
type ShareResult struct {
	Success bool
	Method  ShareMethod
	Message string
}

// Actions performs message actions.
type Actions struct {
	clip   Clipboard
	sharer Sharer
	dir    string
	now    func() time.Time
}

// New returns Actions writing downloads to dir. sharer may be nil.
func New(clip Clipboard, sharer Sharer, dir string) *Actions {
	return &Actions{clip: clip, sharer: sharer, dir: dir, now: time.Now}
}

// Copy puts text on the clipboard.
func (a *Actions) Copy(text string) error {
	if err := a.clip.WriteAll(text); err != nil {
		logger.L.Error("failed to copy to clipboard", "error", err)
		return fmt.Errorf("copy: %w", err)
	}
	return nil
}

// Share uses the native sharer when present and falls back to the clipboard.
// A cancelled native share does not fall back.
func (a *Actions) Share(ctx context.Context, content, title string) ShareResult {
	if title == "" {
		title = "Gemini Chat Response"
	}
	if a.sharer != nil {
		err := a.sharer.Share(ctx, title, content)
		switch {
		case err == nil:
			return ShareResult{Success: true, Method: MethodNative, Message: "Message shared successfully"}
		case errors.Is(err, ErrShareCancelled):
			return ShareResult{Success: false, Method: MethodNative, Message: "Share cancelled"}
		default:
			logger.L.Error("share failed", "error", err)
		}
	}

	if err := a.Copy(content); err != nil {
		msg := "Failed to copy content"
		if a.sharer != nil {
			msg = "Share failed"
		}
		return ShareResult{Success: false, Method: MethodClipboard, Message: msg}
	}
	return ShareResult{Success: true, Method: MethodClipboard, Message: "Content copied to clipboard for sharing"}
}

// DownloadMessage saves one message's raw content as a text file. An empty
// filename becomes gemini-response-<date>.txt.
func (a *Actions) DownloadMessage(content, filename string) (string, error) {
	if filename == "" {
		filename = "gemini-response-" + a.now().UTC().Format("2006-01-02") + ".txt"
	}
	path, err := export.WriteFile(a.dir, filename, []byte(content))
	if err != nil {
		logger.L.Error("download failed", "error", err)
		return "", err
	}
	return path, nil
}
