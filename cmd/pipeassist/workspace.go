package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/artifacts"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/config"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/connectors"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/logger"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/runtime"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/scriptrunner"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/store"
)

// workspace is everything a command needs to work on stored pipelines.
type workspace struct {
	settings     *config.Settings
	repo         *store.Repository
	layout       *artifacts.Layout
	sheets       *connectors.SheetsAdapter
	registry     *connectors.Registry
	orchestrator *runtime.Orchestrator
}

// loadSettings reads the settings and configures logging from them. The
// --verbose and --quiet flags override LOG_LEVEL.
func loadSettings() (*config.Settings, error) {
	s, err := config.LoadSettings(envFile)
	if err != nil {
		return nil, err
	}

	level := logger.ParseLevel(s.LogLevel)
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}
	opts := logger.Options{Level: level, Format: logger.ParseFormat(s.LogFormat), File: s.LogFile}
	if err := logger.Configure(opts); err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}
	return s, nil
}

// openWorkspace loads the store and wires the execution engine.
func openWorkspace(ctx context.Context) (*workspace, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}

	backend, err := store.OpenBackend(ctx, s)
	if err != nil {
		return nil, err
	}
	repo, err := store.NewRepository(ctx, backend)
	if err != nil {
		return nil, err
	}

	layout := artifacts.NewLayout(s.ArtifactsDir)
	sheets := connectors.NewSheetsAdapter(
		connectors.WithCredentialsDir(s.CredentialsDir),
		connectors.WithRateLimit(s.SheetsRatePerMinute),
	)
	runner := scriptrunner.New(layout, scriptrunner.Options{
		Interpreter:           s.PythonExecutable,
		Timeout:               s.ScriptTimeout,
		SharedCredentialsPath: s.SharedCredentialsPath,
	})

	registry := connectors.DefaultRegistry(sheets)
	return &workspace{
		settings:     s,
		repo:         repo,
		layout:       layout,
		sheets:       sheets,
		registry:     registry,
		orchestrator: runtime.New(repo, registry, layout, runner),
	}, nil
}

func (w *workspace) Close() {
	if err := w.repo.Close(); err != nil {
		logger.Warn("closing store failed", slog.String("error", err.Error()))
	}
	logger.CloseLogFile()
}
