package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/St1cky1/vfx-tracker/internal/api"
	grpcapi "github.com/St1cky1/vfx-tracker/internal/api/grpc"
	"github.com/St1cky1/vfx-tracker/internal/config"
	"github.com/St1cky1/vfx-tracker/internal/infrastructure/client"
	"github.com/St1cky1/vfx-tracker/internal/repository"
	"github.com/St1cky1/vfx-tracker/internal/usecase"
	"github.com/St1cky1/vfx-tracker/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runMigrations(cfg.Database.Migrations, cfg.Database.URL, logger); err != nil {
		return err
	}

	db, err := client.NewPostgresClient(ctx, client.PostgresConfig{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to postgres")

	store := repository.Store{
		Shows:     repository.NewShowRepository(db.Pool),
		Shots:     repository.NewShotRepository(db.Pool),
		Tasks:     repository.NewTaskRepository(db.Pool),
		Feedback:  repository.NewFeedbackRepository(db.Pool),
		ChangeLog: repository.NewChangeLogRepository(db.Pool),
	}

	var wg sync.WaitGroup
	var publisher usecase.ChangePublisher
	if cfg.RabbitMQ.Enabled {
		feed := client.NewChangeFeedPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, logger)
		defer feed.Close()
		publisher = feed
		if feed.Connected() {
			logger.Info("connected to rabbitmq", zap.String("queue", feed.QueueName()))
		}

		feedWorker := worker.NewChangeFeedWorker(worker.Config{
			URL:   cfg.RabbitMQ.URL,
			Queue: cfg.RabbitMQ.Queue,
		}, worker.LogHandler(logger.Named("change_feed")), logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			feedWorker.Start(ctx)
		}()
	}

	recorder := usecase.NewRecorder(store.ChangeLog, publisher, logger)
	logService := usecase.NewChangeLogService(store, cfg.ChangeLog.DefaultLimit, cfg.ChangeLog.MaxLimit)
	locker, err := client.NewAdvisoryLocker(ctx, client.PostgresConfig{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.LockConns,
	}, logger)
	if err != nil {
		return err
	}
	defer locker.Close()
	undo := usecase.NewUndoEngine(store, recorder, locker, logger)

	router := api.NewRouter(api.Services{
		Shows:     usecase.NewShowService(store, recorder),
		Shots:     usecase.NewShotService(store, recorder),
		Tasks:     usecase.NewTaskService(store.Tasks, store.Shots, recorder),
		Feedback:  usecase.NewFeedbackService(store.Feedback, recorder),
		ChangeLog: logService,
		Undo:      undo,
		Health:    db.HealthCheck,
	}, logger)

	grpcServer := grpcapi.NewServer(logService, undo, logger)
	conn, err := grpcapi.Dial(dialAddr(cfg.Server.GRPCAddr))
	if err != nil {
		return err
	}
	defer conn.Close()
	gateway, err := grpcapi.NewGatewayHandler(grpcapi.NewChangeLogClient(conn))
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: cfg.Server.HTTPAddr, Handler: router}
	gatewayServer := &http.Server{Addr: cfg.Server.GatewayAddr, Handler: gateway}

	errCh := make(chan error, 3)
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := grpcServer.Listen(cfg.Server.GRPCAddr); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		logger.Info("grpc gateway listening", zap.String("addr", cfg.Server.GatewayAddr))
		if err := gatewayServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("grpc gateway: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Error("server failed", zap.Error(runErr))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", zap.Error(err))
	}
	if err := gatewayServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("grpc gateway shutdown", zap.Error(err))
	}
	grpcServer.Stop()
	wg.Wait()

	logger.Info("server stopped")
	return runErr
}

// dialAddr turns a listen address such as ":50051" into one a client can dial.
func dialAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil || host == "" || host == "0.0.0.0" || host == "::" {
		return net.JoinHostPort("localhost", port)
	}
	return listen
}

func runMigrations(source, dbURL string, logger *zap.Logger) error {
	m, err := migrate.New(source, dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Info("migrations applied", zap.String("source", source))
	return nil
}
