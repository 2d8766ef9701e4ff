package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/assist"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/logger"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/scheduler"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/server"
)

const shutdownTimeout = 15 * time.Second

func runServe(parent context.Context) int {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ws, err := openWorkspace(ctx)
	if err != nil {
		logger.Error("startup failed", slog.String("error", err.Error()))
		return ExitRuntimeError
	}
	defer ws.Close()

	if n := ws.repo.ReconcileRunning(ctx); n > 0 {
		logger.Warn("marked interrupted pipelines as failed", slog.Int("count", n))
	}

	deps := server.Deps{
		Store:     ws.repo,
		Runner:    ws.orchestrator,
		Artifacts: ws.layout,
		Sheets:    ws.sheets,
	}

	ai, err := assist.NewClient(ctx, ws.settings)
	if err != nil {
		logger.Warn("AI assistance disabled",
			slog.String("provider", ws.settings.AIProvider),
			slog.String("error", err.Error()),
		)
	} else {
		defer ai.Close()
		deps.AI = ai
	}

	var sched *scheduler.Scheduler
	if ws.settings.SchedulerEnabled {
		sched = scheduler.New(ws.orchestrator)
		sched.Sync(ws.repo.List())
		if err := sched.Start(ctx); err != nil {
			logger.Error("starting scheduler failed", slog.String("error", err.Error()))
			return ExitRuntimeError
		}
		deps.Scheduler = sched
	}

	srv := &http.Server{
		Addr:              ws.settings.HTTPAddr,
		Handler:           server.New(deps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening",
			slog.String("addr", srv.Addr),
			slog.Any("connectors", ws.registry.Kinds()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		var errs []error
		if sched != nil {
			errs = append(errs, sched.Stop(shutdownCtx))
		}
		errs = append(errs, srv.Shutdown(shutdownCtx))
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", slog.String("error", err.Error()))
		return ExitRuntimeError
	}
	logger.Info("server stopped")
	return ExitSuccess
}
