package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/comigor/geminichat/internal/actions"
	"github.com/comigor/geminichat/internal/chat"
	"github.com/comigor/geminichat/internal/config"
	"github.com/comigor/geminichat/internal/export"
	"github.com/comigor/geminichat/internal/files"
	"github.com/comigor/geminichat/internal/format"
	"github.com/comigor/geminichat/internal/history"
	"github.com/comigor/geminichat/internal/llm"
	"github.com/comigor/geminichat/internal/logger"
	"github.com/comigor/geminichat/internal/speech"
)

const listenTimeout = 30 * time.Second

var commands = []string{
	"/attach", "/detach", "/export", "/copy", "/share", "/download",
	"/clear", "/theme", "/voice", "/listen", "/speak", "/help", "/exit",
}

var suggestions = []string{
	"Explain a concept in simple terms",
	"Help me write or review some code",
	"Summarize a document I attach",
	"Brainstorm ideas for a project",
}

var (
	errorColor  = color.New(color.FgRed)
	noticeColor = color.New(color.FgYellow)
)

// app holds the REPL's wiring and the current chat.State.
type app struct {
	out         io.Writer
	cfg         *config.Config
	session     *chat.Session
	state       chat.State
	view        *format.MessageView
	actions     *actions.Actions
	recognizer  speech.Recognizer
	synthesizer speech.Synthesizer
	now         func() time.Time
	dictated    string
}

func newApp(out io.Writer, cfg *config.Config, session *chat.Session) *app {
	a := &app{
		out:     out,
		cfg:     cfg,
		session: session,
		state:   chat.InitialState(cfg.Chat),
		now:     time.Now,
	}
	a.applyTheme()
	return a
}

func (a *app) applyTheme() {
	theme := format.LightTheme()
	if a.state.DarkMode {
		theme = format.DarkTheme()
	}
	a.view = format.NewMessageView(theme, a.cfg.Chat.UserName, a.cfg.Chat.AssistantName)
}

func (a *app) notice(msg string, args ...any) {
	noticeColor.Fprintf(a.out, msg+"\n", args...)
}

func (a *app) fail(msg string, args ...any) {
	errorColor.Fprintf(a.out, msg+"\n", args...)
}

// takeDictation returns and clears text heard by /listen so it can prefill
// the next prompt.
func (a *app) takeDictation() string {
	s := a.dictated
	a.dictated = ""
	return s
}

// greet shows the restored history, or the welcome screen when empty.
func (a *app) greet() {
	msgs := a.session.Store().Messages()
	if len(msgs) == 0 {
		fmt.Fprintf(a.out, "Hello! I'm %s. How can I help you today?\n\n", a.cfg.Chat.AssistantName)
		fmt.Fprintln(a.out, "Try asking:")
		for _, s := range suggestions {
			fmt.Fprintf(a.out, "  • %s\n", s)
		}
		fmt.Fprintln(a.out, "\nType /help for commands.")
		return
	}
	for _, m := range msgs {
		fmt.Fprintln(a.out, a.view.Render(m))
	}
}

// handle runs one line of input and reports whether the REPL should exit.
func (a *app) handle(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		a.send(ctx, input)
		return false
	}

	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/exit", "/quit":
		return true
	case "/help":
		a.help()
	case "/attach":
		a.attach(arg)
	case "/detach":
		a.state = a.state.Detach()
		a.notice("Attachment removed.")
	case "/export":
		a.export(arg)
	case "/copy":
		a.copyLast()
	case "/share":
		a.shareLast(ctx)
	case "/download":
		a.downloadLast(arg)
	case "/clear":
		if err := a.session.Store().Clear(); err != nil {
			a.fail("Failed to clear history: %v", err)
			return false
		}
		a.notice("Conversation cleared.")
	case "/theme":
		a.state = a.state.ToggleDarkMode()
		a.applyTheme()
		a.notice("Dark mode: %t", a.state.DarkMode)
	case "/voice":
		a.toggleVoice()
	case "/listen":
		a.listen(ctx)
	case "/speak":
		a.speakLast(ctx)
	default:
		a.fail("Unknown command %s. Type /help for commands.", cmd)
	}
	return false
}

func (a *app) help() {
	fmt.Fprintln(a.out, `Commands:
  /attach <path>          attach a file to the next message
  /detach                 remove the pending attachment
  /export [txt|json] [name]  save the conversation
  /copy                   copy the last reply
  /share                  share the last reply
  /download [name]        save the last reply as a text file
  /clear                  delete the conversation
  /theme                  toggle dark mode
  /voice                  toggle voice input
  /listen                 dictate the next message
  /speak                  read the last reply aloud
  /exit                   quit`)
	fmt.Fprintln(a.out, "\nSupported files:")
	fmt.Fprintln(a.out, files.SupportedTypesSummary())
}

func (a *app) send(ctx context.Context, text string) {
	if a.session.Pending() {
		a.fail("Please wait for the current reply.")
		return
	}
	noticeColor.Fprintln(a.out, "Thinking...")

	st, turn, err := a.session.Send(ctx, a.state, text)
	a.state = st

	var verr *files.ValidationError
	switch {
	case errors.Is(err, history.ErrInvalidMessage):
		return
	case errors.As(err, &verr):
		a.fail("File validation failed:")
		for _, r := range verr.Reasons {
			a.fail("  - %s", r)
		}
		return
	case errors.Is(err, chat.ErrBusy):
		a.fail("Please wait for the current reply.")
		return
	case errors.Is(err, llm.ErrRemoteCall):
		logger.L.Error("send failed", "error", err)
		a.fail("Failed to send message. Please try again.")
		return
	case err != nil:
		logger.L.Error("send failed", "error", err)
		a.fail("Something went wrong: %v", err)
		return
	}
	fmt.Fprintln(a.out, a.view.Render(turn.Assistant))
}

func (a *app) attach(path string) {
	if path == "" {
		a.fail("Usage: /attach <path>")
		return
	}
	ref, err := files.FromPath(path)
	if err != nil {
		a.fail("Cannot read %s: %v", path, err)
		return
	}
	st, err := a.state.Attach(ref)
	if err != nil {
		a.fail("%v", err)
		return
	}
	a.state = st
	a.notice("%s", format.AttachmentLine(ref))
}

func (a *app) export(arg string) {
	fields := strings.Fields(arg)
	f := export.FormatText
	if len(fields) > 0 {
		f = export.Format(fields[0])
	}
	name := ""
	if len(fields) > 1 {
		name = fields[1]
	}

	msgs := a.session.Store().Messages()
	if len(msgs) == 0 {
		a.fail("Nothing to export yet.")
		return
	}
	opts := export.DefaultOptions()
	opts.UserLabel = a.cfg.Chat.UserName
	opts.AssistantLabel = a.cfg.Chat.AssistantName
	exp, err := export.ForFormat(f, opts)
	if err != nil {
		a.fail("%v", err)
		return
	}
	path, err := export.ToFile(exp, msgs, a.cfg.Export.Dir, name, a.now())
	if err != nil {
		a.fail("Export failed: %v", err)
		return
	}
	a.notice("Conversation exported to %s", path)
}

func (a *app) lastReply() (history.Message, bool) {
	m, ok := a.session.Store().Last(history.RoleAssistant)
	if !ok {
		a.fail("No reply yet.")
	}
	return m, ok
}

func (a *app) copyLast() {
	m, ok := a.lastReply()
	if !ok {
		return
	}
	if err := a.actions.Copy(m.Content); err != nil {
		a.fail("Failed to copy message")
		return
	}
	a.notice("Message copied to clipboard")
}

func (a *app) shareLast(ctx context.Context) {
	m, ok := a.lastReply()
	if !ok {
		return
	}
	res := a.actions.Share(ctx, m.Content, "")
	if !res.Success {
		a.fail("%s", res.Message)
		return
	}
	a.notice("%s", res.Message)
}

func (a *app) downloadLast(name string) {
	m, ok := a.lastReply()
	if !ok {
		return
	}
	path, err := a.actions.DownloadMessage(m.Content, name)
	if err != nil {
		a.fail("Download failed: %v", err)
		return
	}
	a.notice("Saved to %s", path)
}

func (a *app) toggleVoice() {
	if a.recognizer == nil {
		a.fail("%v", speech.ErrUnsupported)
		return
	}
	a.state = a.state.ToggleVoice()
	if !a.state.VoiceEnabled {
		_ = a.recognizer.Stop()
	}
	a.notice("Voice input: %t", a.state.VoiceEnabled)
}

// listen records one utterance and leaves it in the next prompt for editing.
func (a *app) listen(ctx context.Context) {
	if a.recognizer == nil {
		a.fail("%v", speech.ErrUnsupported)
		return
	}
	st, err := a.state.StartRecording()
	if err != nil {
		a.fail("%v", err)
		return
	}
	a.state = st
	defer func() { a.state = a.state.StopRecording() }()

	ctx, cancel := context.WithTimeout(ctx, listenTimeout)
	defer cancel()
	if err := a.recognizer.Start(ctx, speech.Options{Language: a.cfg.Speech.Language}); err != nil {
		a.fail("%s", speech.ErrorMessage("audio-capture"))
		return
	}
	defer a.recognizer.Stop()
	a.notice("Listening...")

	select {
	case r := <-a.recognizer.Results():
		a.dictated = strings.TrimSpace(r.Final)
	case e := <-a.recognizer.Errors():
		a.fail("%s", speech.ErrorMessage(e.Code))
	case <-ctx.Done():
		a.fail("%s", speech.ErrorMessage("no-speech"))
	}
}

func (a *app) speakLast(ctx context.Context) {
	if a.synthesizer == nil {
		a.fail("%v", speech.ErrUnsupported)
		return
	}
	m, ok := a.lastReply()
	if !ok {
		return
	}
	if err := a.synthesizer.Speak(ctx, m.Content); err != nil {
		logger.L.Error("speech synthesis failed", "error", err)
		a.fail("Speech playback failed")
	}
}

// completeCommand offers slash commands to liner's tab completion.
func completeCommand(line string) []string {
	if !strings.HasPrefix(line, "/") {
		return nil
	}
	var out []string
	for _, c := range commands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}
