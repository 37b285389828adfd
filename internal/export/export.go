// Package export serializes the conversation history to a plain-text
// transcript or a structured JSON document and writes exports to disk.
// Exports never modify the history they read.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/comigor/geminichat/internal/history"
)

// Exporter converts a history to one file format.
type Exporter interface {
	// Export converts the messages to the target format.
	Export(msgs []history.Message) ([]byte, error)

	// ExportAt is Export with the export time supplied by the caller.
	ExportAt(msgs []history.Message, at time.Time) ([]byte, error)

	// FileExtension returns the file extension including the dot.
	FileExtension() string

	// MimeType returns the MIME type of the exported format.
	MimeType() string
}

// Options configures labels and clocks shared by the exporters.
type Options struct {
	// Title is the transcript header line.
	Title string
	// UserLabel and AssistantLabel name the senders in transcripts.
	UserLabel      string
	AssistantLabel string
	// Location is used for the human-readable timestamps in transcripts.
	Location *time.Location
	// Now stamps JSON exports and default file names.
	Now func() time.Time
}

// DefaultOptions returns the labels used by the chat client.
func DefaultOptions() Options {
	return Options{
		Title:          "Gemini Chat Conversation",
		UserLabel:      "You",
		AssistantLabel: "Gemini",
		Location:       time.Local,
		Now:            time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Title == "" {
		o.Title = d.Title
	}
	if o.UserLabel == "" {
		o.UserLabel = d.UserLabel
	}
	if o.AssistantLabel == "" {
		o.AssistantLabel = d.AssistantLabel
	}
	if o.Location == nil {
		o.Location = d.Location
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// Format names an export format.
type Format string

const (
	FormatText Format = "txt"
	FormatJSON Format = "json"
)

// ForFormat returns the exporter for f.
func ForFormat(f Format, opts Options) (Exporter, error) {
	switch Format(strings.ToLower(string(f))) {
	case FormatText, "text", "":
		return NewTextExporter(opts), nil
	case FormatJSON:
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}

// DefaultFilename derives a name like gemini-conversation-2026-10-19T09-30-00.txt
// from the UTC time.
func DefaultFilename(prefix string, now time.Time, ext string) string {
	stamp := now.UTC().Format("2006-01-02T15-04-05")
	return prefix + "-" + stamp + ext
}

// ToFile exports msgs with exp and writes the result under dir. An empty name
// gets a timestamp-derived default. now stamps both the document and the
// default name. It returns the written path.
func ToFile(exp Exporter, msgs []history.Message, dir, name string, now time.Time) (string, error) {
	data, err := exp.ExportAt(msgs, now)
	if err != nil {
		return "", err
	}
	if name == "" {
		name = DefaultFilename("gemini-conversation", now, exp.FileExtension())
	}
	return WriteFile(dir, name, data)
}

// exportPerm is the mode of written exports.
const exportPerm = 0o644

// WriteFile writes data to dir/name through a temporary file so a partial
// export never replaces an existing one.
func WriteFile(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))

	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Chmod(exportPerm); err != nil {
		tmp.Close()
		return "", fmt.Errorf("chmod export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename export: %w", err)
	}
	return path, nil
}
