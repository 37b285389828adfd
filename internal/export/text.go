package export

import (
	"strings"
	"time"

	"github.com/comigor/geminichat/internal/history"
)

const timestampLayout = "1/2/2006, 3:04:05 PM"

// TextExporter writes a plain-text transcript of the raw message contents.
type TextExporter struct {
	options Options
}

// NewTextExporter creates a transcript exporter.
func NewTextExporter(opts Options) *TextExporter {
	return &TextExporter{options: opts.withDefaults()}
}

// Export renders the header, a rule, then one block per message.
func (e *TextExporter) Export(msgs []history.Message) ([]byte, error) {
	return e.ExportAt(msgs, e.options.Now())
}

// ExportAt is Export. Transcripts carry no export time.
func (e *TextExporter) ExportAt(msgs []history.Message, _ time.Time) ([]byte, error) {
	var b strings.Builder
	b.WriteString(e.options.Title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", 50))
	b.WriteString("\n\n")

	for _, m := range msgs {
		sender := e.options.AssistantLabel
		if m.Role == history.RoleUser {
			sender = e.options.UserLabel
		}
		b.WriteString(sender)
		b.WriteString(" (")
		b.WriteString(m.CreatedAt.In(e.options.Location).Format(timestampLayout))
		b.WriteString("):\n")
		b.WriteString(strings.Repeat("-", 30))
		b.WriteString("\n")
		b.WriteString(m.Content)
		b.WriteString("\n")
		if m.Attachment != nil {
			b.WriteString("[File: ")
			b.WriteString(m.Attachment.Name)
			b.WriteString("]\n")
		}
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}

// FileExtension returns the file extension for transcripts.
func (e *TextExporter) FileExtension() string {
	return ".txt"
}

// MimeType returns the MIME type for transcripts.
func (e *TextExporter) MimeType() string {
	return "text/plain; charset=utf-8"
}
