package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	defaultInterval  = 24 * time.Hour
	defaultRetention = 30 * 24 * time.Hour
	keyTimeLayout    = "2006-01-02T150405Z"
)

// ErrDisabled is returned by RunOnce when storage or the passphrase is missing.
var ErrDisabled = errors.New("backup not configured")

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration.
type Config struct {
	S3         S3Config
	Passphrase string
	Prefix     string
	Interval   time.Duration
	Retention  time.Duration
}

// Enabled reports whether storage credentials and a passphrase are present.
func (c Config) Enabled() bool {
	return c.S3.Bucket != "" && c.S3.AccessKey != "" && c.S3.SecretKey != "" && c.Passphrase != ""
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	LastKey    string     `json:"last_key,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Manager snapshots the server database, seals it and uploads it on an interval.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	status Status

	db     *sql.DB
	client s3Client
	logger *slog.Logger
	now    func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a backup manager. It stays disabled unless cfg.Enabled().
func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	m := &Manager{
		cfg:    cfg,
		db:     db,
		logger: logger,
		now:    time.Now,
		status: Status{State: StateDisabled},
	}
	if cfg.Enabled() {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Start begins the scheduled backup loop. It is a no-op when disabled.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.status.State == StateDisabled {
		m.mu.Unlock()
		m.logger.Info("backups disabled")
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	interval := m.cfg.Interval
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.RunOnce(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// RunOnce takes one snapshot, uploads it and prunes expired snapshots.
// It returns the object key of the upload.
func (m *Manager) RunOnce(ctx context.Context) (string, error) {
	m.mu.RLock()
	client := m.client
	cfg := m.cfg
	prev := m.status
	m.mu.RUnlock()

	if client == nil {
		return "", ErrDisabled
	}

	m.setStatus(Status{State: StateRunning, LastBackup: prev.LastBackup, LastKey: prev.LastKey})
	fail := func(err error) (string, error) {
		m.setStatus(Status{State: StateError, LastBackup: prev.LastBackup, LastKey: prev.LastKey, Error: err.Error()})
		return "", err
	}

	snapshot, err := m.snapshot(ctx)
	if err != nil {
		return fail(err)
	}
	sealed, err := Seal(snapshot, cfg.Passphrase)
	if err != nil {
		return fail(fmt.Errorf("seal snapshot: %w", err))
	}

	now := m.now().UTC()
	key := cfg.Prefix + "choresync-" + now.Format(keyTimeLayout) + ".db.enc"
	if _, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	}); err != nil {
		return fail(fmt.Errorf("upload to s3: %w", err))
	}

	m.setStatus(Status{State: StateIdle, LastBackup: &now, LastKey: key})
	m.logger.Info("backup uploaded", "key", key, "bytes", len(sealed))

	removed, err := m.prune(ctx, client, cfg, now)
	if err != nil {
		m.logger.Warn("prune backups", "error", err)
	} else if removed > 0 {
		m.logger.Info("pruned backups", "removed", removed)
	}
	return key, nil
}

// snapshot writes a consistent copy of the database with VACUUM INTO and reads it back.
func (m *Manager) snapshot(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "choresync-backup-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// prune deletes snapshots under the prefix older than the retention window.
func (m *Manager) prune(ctx context.Context, client s3Client, cfg Config, now time.Time) (int, error) {
	cutoff := now.Add(-cfg.Retention)
	prefix := cfg.Prefix + "choresync-"

	removed := 0
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(cfg.S3.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return removed, fmt.Errorf("list backups: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			taken, ok := keyTime(key, prefix)
			if !ok || !taken.Before(cutoff) {
				continue
			}
			if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(cfg.S3.Bucket),
				Key:    aws.String(key),
			}); err != nil {
				m.logger.Warn("delete backup", "key", key, "error", err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// keyTime recovers the snapshot time encoded in an object key.
func keyTime(key, prefix string) (time.Time, bool) {
	stamp, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return time.Time{}, false
	}
	stamp, ok = strings.CutSuffix(stamp, ".db.enc")
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(keyTimeLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
