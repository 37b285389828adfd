// Package format turns raw message text with lightweight markup into a
// display-safe rich form.
//
// Transforms run in a fixed order: fenced blocks, bold, italic, inline code,
// line breaks. Fenced block bodies are emitted verbatim and never seen by the
// later rules. Unbalanced delimiters stay as literal characters.
package format

import (
	"html"
	"regexp"
	"strings"
)

// RichText is rendered output, safe for the target it was rendered for.
type RichText string

// Markup decides how each construct is written out. Escape is applied to the
// raw input before any transform.
type Markup struct {
	Escape   func(string) string
	Block    func(string) string
	Strong   func(string) string
	Emphasis func(string) string
	Code     func(string) string
	Break    string
}

var (
	fenceRe  = regexp.MustCompile("```([\\s\\S]*?)```")
	boldRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe = regexp.MustCompile(`\*([^*\n]+?)\*`)
	codeRe   = regexp.MustCompile("`([^`\\n]+?)`")
)

// HTMLMarkup emits escaped HTML using pre, strong, em, code and br elements.
var HTMLMarkup = Markup{
	Escape:   html.EscapeString,
	Block:    wrap("<pre><code>", "</code></pre>"),
	Strong:   wrap("<strong>", "</strong>"),
	Emphasis: wrap("<em>", "</em>"),
	Code:     wrap("<code>", "</code>"),
	Break:    "<br>",
}

func wrap(open, close string) func(string) string {
	return func(s string) string { return open + s + close }
}

// Formatter applies the markup rules with one Markup.
type Formatter struct {
	markup Markup
}

// New returns a Formatter for m.
func New(m Markup) *Formatter {
	return &Formatter{markup: m}
}

var htmlFormatter = New(HTMLMarkup)

// Render converts raw text to HTML. Apply it once, to raw text only.
func Render(raw string) RichText {
	return htmlFormatter.Render(raw)
}

// Render converts raw text using the formatter's markup.
func (f *Formatter) Render(raw string) RichText {
	s := raw
	if f.markup.Escape != nil {
		s = f.markup.Escape(raw)
	}

	var b strings.Builder
	last := 0
	for _, loc := range fenceRe.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(f.inline(s[last:loc[0]]))
		b.WriteString(f.markup.Block(s[loc[2]:loc[3]]))
		last = loc[1]
	}
	b.WriteString(f.inline(s[last:]))
	return RichText(b.String())
}

func (f *Formatter) inline(s string) string {
	if s == "" {
		return s
	}
	s = replaceGroup(boldRe, s, f.markup.Strong, closesCode)
	s = replaceGroup(italicRe, s, f.markup.Emphasis, closesCode)
	s = replaceGroup(codeRe, s, f.markup.Code, nil)
	return strings.ReplaceAll(s, "\n", f.markup.Break)
}

// closesCode reports whether every backtick in s has a partner, so a span
// wrapped around s cannot straddle an inline code span.
func closesCode(s string) bool {
	return strings.Count(s, "`")%2 == 0
}

// replaceGroup substitutes every match of re with fn(first capture group).
// Matches whose group fails keep are left as literal text.
func replaceGroup(re *regexp.Regexp, s string, fn func(string) string, keep func(string) bool) string {
	matches := re.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, loc := range matches {
		if keep != nil && !keep(s[loc[2]:loc[3]]) {
			continue
		}
		b.WriteString(s[last:loc[0]])
		b.WriteString(fn(s[loc[2]:loc[3]]))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}
