package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/comigor/geminichat/internal/files"
	"github.com/comigor/geminichat/internal/history"
)

// stripControl drops terminal control characters so model output cannot move
// the cursor or change colors on its own. Newlines and tabs survive.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f || (r >= 0x80 && r < 0xa0) {
			return -1
		}
		return r
	}, s)
}

// Theme holds the colors used for terminal output.
type Theme struct {
	User      *color.Color
	Assistant *color.Color
	Meta      *color.Color
	Strong    *color.Color
	Emphasis  *color.Color
	Code      *color.Color
	Block     *color.Color
}

// LightTheme suits terminals with a light background.
func LightTheme() Theme {
	return Theme{
		User:      color.New(color.FgGreen, color.Bold),
		Assistant: color.New(color.FgBlue, color.Bold),
		Meta:      color.New(color.FgHiBlack),
		Strong:    color.New(color.Bold),
		Emphasis:  color.New(color.Italic),
		Code:      color.New(color.FgMagenta),
		Block:     color.New(color.FgBlack, color.BgHiWhite),
	}
}

// DarkTheme suits terminals with a dark background.
func DarkTheme() Theme {
	return Theme{
		User:      color.New(color.FgHiGreen, color.Bold),
		Assistant: color.New(color.FgHiCyan, color.Bold),
		Meta:      color.New(color.FgHiBlack),
		Strong:    color.New(color.Bold),
		Emphasis:  color.New(color.Italic),
		Code:      color.New(color.FgHiYellow),
		Block:     color.New(color.FgHiWhite, color.BgBlack),
	}
}

// TerminalMarkup writes the markup constructs as ANSI styles from t.
func TerminalMarkup(t Theme) Markup {
	return Markup{
		Escape:   stripControl,
		Block:    func(s string) string { return "\n" + t.Block.Sprint(s) + "\n" },
		Strong:   sprint(t.Strong),
		Emphasis: sprint(t.Emphasis),
		Code:     sprint(t.Code),
		Break:    "\n",
	}
}

func sprint(c *color.Color) func(string) string {
	return func(s string) string { return c.Sprint(s) }
}

// MessageView renders whole messages for the REPL.
type MessageView struct {
	theme         Theme
	body          *Formatter
	userName      string
	assistantName string
	now           func() time.Time
}

// NewMessageView builds a view with the given sender labels.
func NewMessageView(t Theme, userName, assistantName string) *MessageView {
	return &MessageView{
		theme:         t,
		body:          New(TerminalMarkup(t)),
		userName:      userName,
		assistantName: assistantName,
		now:           time.Now,
	}
}

// Render returns the header line, the formatted body and an attachment line.
func (v *MessageView) Render(m history.Message) string {
	var b strings.Builder

	sender, c := v.assistantName, v.theme.Assistant
	if m.Role == history.RoleUser {
		sender, c = v.userName, v.theme.User
	}
	b.WriteString(c.Sprint(sender))
	b.WriteString(" ")
	b.WriteString(v.theme.Meta.Sprint(humanize.RelTime(m.CreatedAt, v.now(), "ago", "from now")))
	b.WriteString("\n")

	if m.Content != "" {
		b.WriteString(string(v.body.Render(m.Content)))
		b.WriteString("\n")
	}
	if m.Attachment != nil {
		b.WriteString(v.theme.Meta.Sprint(AttachmentLine(*m.Attachment)))
		b.WriteString("\n")
	}
	return b.String()
}

// AttachmentLine describes a file for previews and message footers.
func AttachmentLine(f files.FileRef) string {
	return fmt.Sprintf("📎 %s (%s)", f.Name, files.FormatSize(f.SizeBytes))
}
