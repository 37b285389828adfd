// Package speech exposes dictation and read-aloud as capabilities the chat
// session can start and stop. Recognizers report through channels instead of
// callbacks, so callers select on them alongside their own events.
package speech

import (
	"context"
	"errors"
	"strings"
)

// ErrUnsupported is returned when no speech backend is configured.
var ErrUnsupported = errors.New("speech is not supported in this environment")

// Options tune a recognition run.
type Options struct {
	Language string
	// Continuous keeps listening after the first final transcript.
	Continuous bool
}

// Result is a transcript fragment. Final text is treated exactly like typed input.
type Result struct {
	Final      string
	Interim    string
	Confidence float64
}

// Error is a recognition failure with a platform code and user-facing text.
type Error struct {
	Code    string
	Message string
}

func (e Error) Error() string { return e.Code + ": " + e.Message }

// NewError builds an Error whose message comes from ErrorMessage.
func NewError(code string) Error {
	return Error{Code: code, Message: ErrorMessage(code)}
}

// Recognizer turns speech into text.
type Recognizer interface {
	// Start begins listening. Starting while already listening stops the
	// previous run first.
	Start(ctx context.Context, opts Options) error
	// Stop ends the current run, if any. It is safe to call repeatedly.
	Stop() error
	Listening() bool
	Results() <-chan Result
	Errors() <-chan Error
}

// Synthesizer reads text aloud.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// ErrorMessage maps recognition error codes to user-facing text.
func ErrorMessage(code string) string {
	switch code {
	case "no-speech":
		return "No speech detected. Please try again."
	case "audio-capture":
		return "Audio capture failed. Check your microphone."
	case "not-allowed":
		return "Microphone access denied. Please enable microphone permissions."
	case "network":
		return "Network error occurred during speech recognition."
	case "language-not-supported":
		return "Language not supported for speech recognition."
	default:
		return "Speech recognition failed"
	}
}

var markupStripper = strings.NewReplacer("```", "", "**", "", "*", "", "`", "")

// SpeakableText drops markup delimiters so they are not read aloud.
func SpeakableText(raw string) string {
	return strings.TrimSpace(markupStripper.Replace(raw))
}
