package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"relay/pkg/directory"
	"relay/pkg/httpapi"
	"relay/pkg/protocol"
	"relay/pkg/question"
	"relay/pkg/queue"
	"relay/pkg/router"
	"relay/pkg/session"
	"relay/pkg/store"
	"relay/pkg/supervisor"
)

// shutdownTimeout bounds graceful HTTP shutdown on SIGTERM.
const shutdownTimeout = 10 * time.Second

// newServeCmd creates the "relay serve" subcommand: the long-running daemon
// hosting the HTTP API, session sweeper, queue janitor, and registry watch.
func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay daemon",
		Long:  "Starts the bridge daemon: HTTP API, session registry,\ntask queues, and the worker process supervisor.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return err
			}
			if err := paths.EnsureHome(); err != nil {
				return err
			}
			cfg, err := LoadConfig(paths.ConfigPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			return runServe(cmd.Context(), paths, cfg)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP API bind address (overrides config)")
	return cmd
}

// runServe wires the bridge components together and blocks until the
// context is cancelled or a termination signal arrives.
func runServe(parent context.Context, paths *Paths, cfg Config) error {
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- State ---

	db, err := store.Open(paths.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	projects, err := directory.Load(paths.ProjectsPath)
	if err != nil {
		return err
	}

	tasks, err := queue.NewStore(paths.QueueDir, logger)
	if err != nil {
		return err
	}

	sessions := session.NewRegistry(cfg.SessionTTL())

	// --- Processes ---

	sink := make(chan protocol.OutputLine, cfg.OutputBuffer)
	sup := supervisor.New(projects, cfg.WorkerCmd, logger)
	sup.SetOnExit(func(projectName string, exitErr error) {
		// Keep the registry honest: a dead worker's session must not
		// swallow routed messages.
		if s, ok := sessions.FindByProject(projectName); ok {
			sessions.Evict(s.ID)
		}
		payload := ""
		if exitErr != nil {
			payload = fmt.Sprintf(`{"error":%q}`, exitErr.Error())
		}
		if err := db.LogEvent(context.Background(), "worker_exit", projectName, "", payload); err != nil {
			logger.Warn("event log write failed", "type", "worker_exit", "error", err)
		}
	})

	// --- Questions ---

	questions := question.NewRegistry(func(ctx context.Context, text string) error {
		// Outward question delivery: surface through the log and event
		// stream for the chat-side poller.
		logger.Info("question pending", "text", text)
		return db.LogEvent(ctx, "question_asked", "", "", fmt.Sprintf(`{"question":%q}`, text))
	})

	// --- Routing ---

	rt := router.New(router.Config{
		Sessions:   sessions,
		Supervisor: sup,
		Directory:  projects,
		Tasks:      tasks,
		Questions:  questions,
		Inbox:      db,
		Events:     db,
		Deliverer:  &queueDeliverer{tasks: tasks},
		Sink:       sink,
		Logger:     logger,
	})

	api := httpapi.NewServer(httpapi.Config{
		Sessions:  sessions,
		Tasks:     tasks,
		Processes: sup,
		Projects:  projects,
		Router:    rt,
		Questions: questions,
		Mailbox:   db,
		Events:    db,
		Sink:      sink,
		Logger:    logger,
	})

	// --- Background loops ---

	go sessions.RunSweeper(ctx, cfg.SweepInterval(), logger)
	go tasks.RunJanitor(ctx, time.Hour, cfg.QueueRetentionDays)
	go projects.Watch(ctx, logger)
	go drainOutput(ctx, sink, logger)

	// --- HTTP ---

	if err := WritePIDFile(paths.PIDPath, os.Getpid()); err != nil {
		return err
	}
	defer func() { _ = RemovePIDFile(paths.PIDPath) }()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay daemon listening", "addr", cfg.Listen, "home", paths.RelayHome)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// queueDeliverer hands routed messages to a live session through its
// project queue: workers poll pending tasks and acknowledge delivery, so a
// crash between routing and pickup loses nothing.
type queueDeliverer struct {
	tasks *queue.Store
}

func (d *queueDeliverer) Deliver(ctx context.Context, s protocol.Session, from, text string) error {
	_, err := d.tasks.Enqueue(ctx, queue.EnqueueParams{
		ProjectName: s.ProjectName,
		ProjectPath: s.ProjectPath,
		Message:     text,
		From:        from,
		Priority:    protocol.PriorityHigh,
	})
	return err
}

// drainOutput consumes worker output lines, logging them so operator-facing
// tails show worker activity.
func drainOutput(ctx context.Context, sink <-chan protocol.OutputLine, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-sink:
			if line.Stderr {
				logger.Warn("worker stderr", "project", line.ProjectName, "line", line.Text)
			} else {
				logger.Debug("worker stdout", "project", line.ProjectName, "line", line.Text)
			}
		}
	}
}

// newLogger builds the daemon's structured logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
