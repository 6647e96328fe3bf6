package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chatwire/chatwire/api/ws"
	"github.com/chatwire/chatwire/config"
	"github.com/chatwire/chatwire/internal/nats"
	"github.com/chatwire/chatwire/internal/router"
	"github.com/chatwire/chatwire/internal/session"
	"github.com/chatwire/chatwire/internal/store"
	"github.com/chatwire/chatwire/internal/websocket"
	"github.com/chatwire/chatwire/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// App represents the main application structure holding all dependencies.
type App struct {
	cfg        config.Config
	logger     logger.Logger
	natsClient *nats.Client
	messageLog store.MessageStore
	router     *router.Router
	hub        *websocket.Hub
	httpServer *http.Server
	rootCtx    context.Context
	cancel     context.CancelFunc
}

// NewApp initializes and connects all application dependencies.
func NewApp(cfg config.Config) (*App, error) {
	baseLogger := logger.NewLogger(cfg.LogLevel, cfg.LogFile)
	rootCtx := logger.NewContext(context.Background(), baseLogger)
	rootCtx, cancel := context.WithCancel(rootCtx)

	log := baseLogger.WithModule("app")
	log.Infof("Initializing application components...")

	natsClient, err := nats.NewClient(cfg.NATSURL)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	messageLog, err := newMessageStore(rootCtx, cfg)
	if err != nil {
		cancel()
		natsClient.Close()
		return nil, err
	}
	log.Infof("Message log backend: %s", cfg.Storage)

	registry := session.NewRegistry()
	members := session.NewMembership()

	rt := router.New(router.Config{
		Rooms:            cfg.Rooms,
		DefaultRoom:      cfg.DefaultRoom,
		HistoryLimit:     cfg.HistoryLimit,
		MaxMessageLength: cfg.MaxMessageLength,
	}, registry, members, messageLog, natsClient, baseLogger)

	hub := websocket.NewHub()

	httpServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: ws.SetupRoutes(ws.Config{
			Hub:    hub,
			Router: rt,
			Rooms:  cfg.Rooms,
			Logger: baseLogger,
		}),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	app := &App{
		cfg:        cfg,
		logger:     log,
		natsClient: natsClient,
		messageLog: messageLog,
		router:     rt,
		hub:        hub,
		httpServer: httpServer,
		rootCtx:    rootCtx,
		cancel:     cancel,
	}

	log.Infof("Application initialized successfully")
	return app, nil
}

func newMessageStore(ctx context.Context, cfg config.Config) (store.MessageStore, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		s, err := store.NewPostgresStore(ctx, cfg.PostgresURL, cfg.SearchLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to open Postgres store: %w", err)
		}
		return s, nil
	case config.StorageMemory:
		return store.NewMemoryStore(cfg.SearchLimit), nil
	default:
		s, err := store.NewRedisStore(ctx, cfg.RedisURL, cfg.SearchLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to open Redis store: %w", err)
		}
		return s, nil
	}
}

// Start runs the application and handles graceful shutdown on signal.
func (a *App) Start() error {
	log := a.logger.WithFields(map[string]interface{}{"port": a.cfg.Port})
	log.Infof("Starting application server")

	go a.hub.Run()

	g, ctx := errgroup.WithContext(a.rootCtx)

	g.Go(func() error {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			log.Warnf("Received shutdown signal: %s", sig)
		case <-ctx.Done():
		}
		return a.Stop()
	})

	return g.Wait()
}

// Stop gracefully shuts down the server and closes all connections.
func (a *App) Stop() error {
	a.logger.Infof("Initiating graceful shutdown")

	a.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Errorf("HTTP server shutdown error: %v", err)
	}

	a.hub.Close()

	a.logger.Infof("Draining room append queues")
	a.router.Stop()

	a.logger.Infof("Closing NATS connection")
	a.natsClient.Close()

	a.logger.Infof("Closing message log")
	if err := a.messageLog.Close(); err != nil {
		a.logger.Errorf("message log close error: %v", err)
	}

	a.logger.Infof("Shutdown completed successfully")
	return nil
}
