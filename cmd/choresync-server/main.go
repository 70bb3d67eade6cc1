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

	"github.com/dukerupert/choresync/internal/backup"
	"github.com/dukerupert/choresync/internal/database"
	"github.com/dukerupert/choresync/internal/logging"
	"github.com/dukerupert/choresync/internal/push"
	"github.com/dukerupert/choresync/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("CHORESYNC_LOG_LEVEL"))

	if len(os.Args) > 1 {
		if err := runCommand(os.Args[1], os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	port := envOr("CHORESYNC_PORT", "8080")
	dbPath := envOr("CHORESYNC_DB_PATH", "choresync.db")

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cfg := server.Config{
		APIToken:        os.Getenv("CHORESYNC_API_TOKEN"),
		VAPIDPublicKey:  os.Getenv("CHORESYNC_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("CHORESYNC_VAPID_PRIVATE_KEY"),
		VAPIDSubscriber: envOr("CHORESYNC_VAPID_SUBSCRIBER", "mailto:admin@localhost"),
		Location:        loadLocation(logger, os.Getenv("CHORESYNC_TZ")),
		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  os.Getenv("CHORESYNC_BACKUP_ENDPOINT"),
				Bucket:    os.Getenv("CHORESYNC_BACKUP_BUCKET"),
				Region:    envOr("CHORESYNC_BACKUP_REGION", "us-east-1"),
				AccessKey: os.Getenv("CHORESYNC_BACKUP_ACCESS_KEY"),
				SecretKey: os.Getenv("CHORESYNC_BACKUP_SECRET_KEY"),
			},
			Passphrase: os.Getenv("CHORESYNC_BACKUP_PASSPHRASE"),
			Prefix:     os.Getenv("CHORESYNC_BACKUP_PREFIX"),
			Interval:   envDuration(logger, "CHORESYNC_BACKUP_INTERVAL"),
			Retention:  envDuration(logger, "CHORESYNC_BACKUP_RETENTION"),
		},
	}
	if cfg.APIToken == "" {
		logger.Warn("CHORESYNC_API_TOKEN is empty, every protected request will be rejected")
	}

	srv := server.New(db, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logger.Error("failed to start background workers", "error", err)
		os.Exit(1)
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := srv.RateLimiter().Cleanup(); n > 0 {
					logger.Debug("rate limiter cleanup", "removed", n)
				}
			}
		}
	}()

	httpServer := &http.Server{
		Addr:        ":" + port,
		Handler:     srv.Router(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info("choresync server listening", "addr", httpServer.Addr, "db", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	srv.Stop()
}

// runCommand handles the maintenance subcommands.
func runCommand(name string, args []string) error {
	switch name {
	case "vapid-keys":
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		fmt.Printf("CHORESYNC_VAPID_PUBLIC_KEY=%s\nCHORESYNC_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return nil
	case "decrypt-backup":
		if len(args) != 2 {
			return errors.New("usage: choresync-server decrypt-backup <sealed-file> <output-db>")
		}
		passphrase := os.Getenv("CHORESYNC_BACKUP_PASSPHRASE")
		if passphrase == "" {
			return errors.New("CHORESYNC_BACKUP_PASSPHRASE is required")
		}
		return backup.DecryptFile(args[0], args[1], passphrase)
	default:
		return fmt.Errorf("unknown command %q (want vapid-keys or decrypt-backup)", name)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(logger *slog.Logger, key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn("ignoring invalid duration", "key", key, "value", v, "error", err)
		return 0
	}
	return d
}

func loadLocation(logger *slog.Logger, name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("unknown time zone, using local", "tz", name, "error", err)
		return time.Local
	}
	return loc
}
