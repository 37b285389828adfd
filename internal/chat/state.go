package chat

import (
	"errors"

	"github.com/comigor/geminichat/internal/config"
	"github.com/comigor/geminichat/internal/files"
)

// State is the per-session UI state. Handlers take a State and return the
// updated copy; nothing here is global.
type State struct {
	Attachment   *files.FileRef
	DarkMode     bool
	VoiceEnabled bool
	Recording    bool
}

// InitialState seeds a session from configuration.
func InitialState(cfg config.ChatConfig) State {
	return State{DarkMode: cfg.DarkMode, VoiceEnabled: cfg.VoiceEnabled}
}

// Attach makes f the pending attachment. Files over files.SelectionLimit are
// refused at selection time and leave the state unchanged.
func (s State) Attach(f files.FileRef) (State, error) {
	if err := files.CheckSelection(f); err != nil {
		return s, err
	}
	s.Attachment = &f
	return s, nil
}

// Detach drops the pending attachment.
func (s State) Detach() State {
	s.Attachment = nil
	return s
}

// ToggleDarkMode flips the theme flag.
func (s State) ToggleDarkMode() State {
	s.DarkMode = !s.DarkMode
	return s
}

// ToggleVoice flips voice input. Disabling it also ends any recording.
func (s State) ToggleVoice() State {
	s.VoiceEnabled = !s.VoiceEnabled
	if !s.VoiceEnabled {
		s.Recording = false
	}
	return s
}

// ErrVoiceDisabled is returned when recording is requested with voice off.
var ErrVoiceDisabled = errors.New("voice input is disabled")

// StartRecording marks dictation as active.
func (s State) StartRecording() (State, error) {
	if !s.VoiceEnabled {
		return s, ErrVoiceDisabled
	}
	s.Recording = true
	return s, nil
}

// StopRecording marks dictation as finished.
func (s State) StopRecording() State {
	s.Recording = false
	return s
}
