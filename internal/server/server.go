package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/choresync/internal/auth"
	"github.com/dukerupert/choresync/internal/backup"
	"github.com/dukerupert/choresync/internal/handler"
	"github.com/dukerupert/choresync/internal/middleware"
	"github.com/dukerupert/choresync/internal/push"
	"github.com/dukerupert/choresync/internal/replication"
	"github.com/dukerupert/choresync/internal/revision"
	"github.com/dukerupert/choresync/internal/store"
	ws "github.com/dukerupert/choresync/internal/websocket"
)

const (
	notificationQueueSize = 256
	requestLimit          = 300
	requestWindow         = time.Minute
)

// Config holds the server settings read from the environment.
type Config struct {
	APIToken        string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string
	Location        *time.Location
	Backup          backup.Config
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	counter       *revision.Counter
	engine        *replication.Engine
	syncH         *handler.SyncHandler
	deviceH       *handler.DeviceHandler
	validator     *auth.TokenValidator
	rateLimiter   *middleware.RateLimiter
	dispatcher    *push.Dispatcher
	reminders     *push.ReminderScheduler
	backupManager *backup.Manager
	logger        *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	counter := revision.NewCounter()
	devices := store.NewDeviceStore(db)

	pushLogger := logger.With("component", "push")
	var sender push.Sender
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		sender = push.NewWebPushSender(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)
	} else {
		pushLogger.Info("VAPID keys not configured, notifications will be logged only")
		sender = push.LogSender{Logger: pushLogger}
	}

	dispatcher := push.NewDispatcher(sender, devices, loc, notificationQueueSize, pushLogger)
	engine := replication.New(db, counter, dispatcher, hub, logger)

	return &Server{
		db:            db,
		hub:           hub,
		counter:       counter,
		engine:        engine,
		syncH:         handler.NewSyncHandler(engine, logger.With("component", "sync")),
		deviceH:       handler.NewDeviceHandler(db, logger.With("component", "devices")),
		validator:     auth.NewTokenValidator(cfg.APIToken),
		rateLimiter:   middleware.NewRateLimiter(requestLimit, requestWindow),
		dispatcher:    dispatcher,
		reminders:     push.NewReminderScheduler(sender, store.NewReminderStore(db), devices, loc, pushLogger),
		backupManager: backup.NewManager(cfg.Backup, db, logger.With("component", "backup")),
		logger:        logger,
	}
}

// Start primes the websocket hub with the current revision and launches the
// background workers.
func (s *Server) Start(ctx context.Context) error {
	rev, err := s.counter.Current(ctx, s.db)
	if err != nil {
		return fmt.Errorf("read current revision: %w", err)
	}
	s.hub.SetRevision(rev)

	s.dispatcher.Start(ctx)
	s.reminders.Start(ctx)
	s.backupManager.Start(ctx)
	s.logger.Info("server started", "revision", rev)
	return nil
}

// Stop stops the background workers.
func (s *Server) Stop() {
	s.backupManager.Stop()
	s.reminders.Stop()
	s.dispatcher.Stop()
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// Engine returns the replication engine.
func (s *Server) Engine() *replication.Engine {
	return s.engine
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", handler.Health)

	// Protected routes: rate limited, then bearer token, before any handler runs
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	outerMux.Handle("/", middleware.Chain(protectedMux,
		middleware.RateLimit(s.rateLimiter, middleware.RealIP),
		middleware.RequireBearer(s.validator),
	))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /sync", s.syncH.Pull)
	mux.HandleFunc("POST /sync", s.syncH.Push)
	mux.HandleFunc("POST /devices", s.deviceH.Register)
	mux.HandleFunc("DELETE /devices", s.deviceH.Unregister)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
