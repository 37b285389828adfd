package speech

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/comigor/geminichat/internal/logger"
)

// CommandRecognizer runs an external dictation program and treats every
// non-empty line it prints as a final transcript. The language is passed in
// the SPEECH_LANG environment variable.
type CommandRecognizer struct {
	argv []string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	results chan Result
	errs    chan Error
}

// NewCommandRecognizer parses command into program and arguments.
func NewCommandRecognizer(command string) (*CommandRecognizer, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, ErrUnsupported
	}
	return &CommandRecognizer{
		argv:    argv,
		results: make(chan Result, 8),
		errs:    make(chan Error, 8),
	}, nil
}

func (r *CommandRecognizer) Results() <-chan Result { return r.results }
func (r *CommandRecognizer) Errors() <-chan Error   { return r.errs }

func (r *CommandRecognizer) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

func (r *CommandRecognizer) Start(ctx context.Context, opts Options) error {
	if err := r.Stop(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, r.argv[0], r.argv[1:]...)
	cmd.Env = append(os.Environ(), "SPEECH_LANG="+opts.Language)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("recognizer pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start recognizer: %w", err)
	}
	logger.L.Debug("speech recognition started", "command", r.argv[0], "language", opts.Language)

	done := make(chan struct{})
	r.cancel, r.done = cancel, done
	go r.run(runCtx, cancel, cmd, stdout, opts, done)
	return nil
}

func (r *CommandRecognizer) run(ctx context.Context, cancel context.CancelFunc, cmd *exec.Cmd, stdout io.Reader, opts Options, done chan struct{}) {
	defer close(done)
	defer cancel()

	heard := false
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		heard = true
		select {
		case r.results <- Result{Final: line, Confidence: 1}:
		case <-ctx.Done():
		}
		if !opts.Continuous {
			break
		}
	}
	stoppedEarly := heard && !opts.Continuous
	if stoppedEarly {
		cancel()
	}
	err := cmd.Wait()

	switch {
	case stoppedEarly || ctx.Err() != nil:
	case err != nil:
		logger.L.Warn("speech recognizer exited", "error", err)
		r.report(NewError("audio-capture"))
	case !heard:
		r.report(NewError("no-speech"))
	}
	logger.L.Debug("speech recognition ended")
}

func (r *CommandRecognizer) report(e Error) {
	select {
	case r.errs <- e:
	default:
		logger.L.Warn("speech error dropped", "code", e.Code)
	}
}

func (r *CommandRecognizer) Stop() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// CommandSynthesizer pipes text to an external text-to-speech program.
type CommandSynthesizer struct {
	argv []string
}

// NewCommandSynthesizer parses command into program and arguments.
func NewCommandSynthesizer(command string) (*CommandSynthesizer, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, ErrUnsupported
	}
	return &CommandSynthesizer{argv: argv}, nil
}

// Speak blocks until the program has consumed the text and exited.
func (s *CommandSynthesizer) Speak(ctx context.Context, text string) error {
	text = SpeakableText(text)
	if text == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("speak: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
