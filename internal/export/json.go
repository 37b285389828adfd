package export

import (
	"encoding/json"
	"time"

	"github.com/comigor/geminichat/internal/files"
	"github.com/comigor/geminichat/internal/history"
)

// Document is the structured export.
type Document struct {
	ExportDate   time.Time `json:"exportDate"`
	MessageCount int       `json:"messageCount"`
	Messages     []Summary `json:"messages"`
}

// Summary is one exported message. Attachment is omitted, not null, when the
// message has none.
type Summary struct {
	ID         string         `json:"id"`
	Role       history.Role   `json:"role"`
	Content    string         `json:"content"`
	Timestamp  time.Time      `json:"timestamp"`
	Attachment *files.FileRef `json:"attachment,omitempty"`
}

// JSONExporter exports conversations to indented JSON.
type JSONExporter struct {
	options Options
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(opts Options) *JSONExporter {
	return &JSONExporter{options: opts.withDefaults()}
}

// Build assembles the export document without serializing it.
func (e *JSONExporter) Build(msgs []history.Message) Document {
	return e.BuildAt(msgs, e.options.Now())
}

// BuildAt is Build with the export date supplied by the caller.
func (e *JSONExporter) BuildAt(msgs []history.Message, at time.Time) Document {
	doc := Document{
		ExportDate:   at.UTC(),
		MessageCount: len(msgs),
		Messages:     make([]Summary, 0, len(msgs)),
	}
	for _, m := range msgs {
		s := Summary{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.CreatedAt,
		}
		if m.Attachment != nil {
			att := *m.Attachment
			s.Attachment = &att
		}
		doc.Messages = append(doc.Messages, s)
	}
	return doc
}

// Export converts the messages to JSON with two-space indentation.
func (e *JSONExporter) Export(msgs []history.Message) ([]byte, error) {
	return e.ExportAt(msgs, e.options.Now())
}

// ExportAt is Export with the export date supplied by the caller.
func (e *JSONExporter) ExportAt(msgs []history.Message, at time.Time) ([]byte, error) {
	return json.MarshalIndent(e.BuildAt(msgs, at), "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
