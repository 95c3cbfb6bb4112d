package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"golang.org/x/term"

	"textrefine/internal/chat"
	"textrefine/internal/config"
	"textrefine/internal/logging"
	"textrefine/internal/provider"
	"textrefine/internal/refiner"
	"textrefine/internal/router"
	"textrefine/internal/tracing"
	"textrefine/internal/ui"
)

// app bundles the components every command shares.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	router *router.Router
	close  func()
}

// loadConfig reads path, or falls back to built-in defaults when path is empty.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func newApp(cfg config.Config) (*app, error) {
	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	shutdownTracing, err := tracing.Setup(cfg.Tracing)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	shutdown := func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
		_ = closeLog()
	}

	registry, err := provider.NewRegistryFromConfig(cfg)
	if err != nil {
		shutdown()
		return nil, err
	}

	var completer chat.Completer = chat.NewTransport(chat.NewHTTPClient(cfg.Chat.Timeout), logger)
	if cfg.Chat.CircuitBreaker.Enabled {
		completer = chat.NewBreaker("refine", completer, cfg.Chat.CircuitBreaker, logger)
	}
	service := refiner.New(completer, refiner.OptionsFromConfig(cfg.Chat), logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		router: router.New(registry, service),
		close:  shutdown,
	}, nil
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// readText returns the positional arguments joined by spaces, or stdin when
// it is not a terminal.
func readText(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func copyToClipboard(text string) {
	if err := clipboard.WriteAll(text); err != nil {
		ui.ShowError(fmt.Sprintf("Failed to copy to clipboard: %v", err))
		return
	}
	ui.ShowSuccess("Copied to clipboard!")
}

var errNoText = errors.New("no text given: pass it as arguments or on stdin")
