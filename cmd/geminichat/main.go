package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterh/liner"

	"github.com/comigor/geminichat/internal/actions"
	"github.com/comigor/geminichat/internal/chat"
	"github.com/comigor/geminichat/internal/config"
	"github.com/comigor/geminichat/internal/history"
	"github.com/comigor/geminichat/internal/llm"
	"github.com/comigor/geminichat/internal/logger"
	"github.com/comigor/geminichat/internal/speech"
)

func main() {
	if err := run(); err != nil {
		slog.Error("geminichat failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger.SetLevel(cfg.Log.Level)
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logger.SetOutput(f)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize completion client
	client, closeClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("init completion client: %w", err)
	}
	defer closeClient()

	// Initialize history
	var backend history.Persistence
	switch cfg.History.Driver {
	case config.DriverMemory:
		backend = &history.MemoryPersistence{}
	default:
		sqlite := history.NewSQLitePersistence(cfg.History.Path)
		defer sqlite.Close()
		backend = sqlite
	}
	store := history.NewStore(backend)
	store.Restore()

	a := newApp(os.Stdout, cfg, chat.NewSession(store, client, nil))
	a.actions = actions.New(
		actions.FallbackClipboard{actions.SystemClipboard{}, actions.TerminalClipboard{Out: os.Stderr}},
		nil, cfg.Export.Dir,
	)
	if r, err := speech.NewCommandRecognizer(cfg.Speech.ListenCommand); err == nil {
		a.recognizer = r
		defer r.Stop()
	} else {
		a.state.VoiceEnabled = false
	}
	if s, err := speech.NewCommandSynthesizer(cfg.Speech.SpeakCommand); err == nil {
		a.synthesizer = s
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeCommand)

	logger.L.Info("geminichat started", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model, "messages", store.Len())
	a.greet()

	for ctx.Err() == nil {
		input, err := line.PromptWithSuggestion(cfg.Chat.UserName+"> ", a.takeDictation(), -1)
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if input != "" {
			line.AppendHistory(input)
		}
		if quit := a.handle(ctx, input); quit {
			break
		}
	}
	fmt.Fprintln(a.out, "\nGoodbye.")
	return nil
}
