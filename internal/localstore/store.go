// Package localstore keeps a device's copy of the household in a JSON file.
//
// Mutations change the in-memory document only; Save persists it. Callers
// decide when a batch of changes is durable. Several processes may hold the
// same file open: Save merges whatever another process wrote since this
// handle last read or wrote the file.
package localstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/dukerupert/choresync/internal/model"
)

const (
	formatVersion = 1
	lockTimeout   = 3 * time.Second
	lockRetry     = 100 * time.Millisecond
)

// ErrLocked is returned when another process holds the store file lock.
var ErrLocked = errors.New("local store is locked by another process")

// document is the on-disk layout.
type document struct {
	Version               int                     `json:"version"`
	LastAppliedRevision   int64                   `json:"lastAppliedRevision"`
	RegisteredDeviceToken string                  `json:"registeredDeviceToken,omitempty"`
	Members               []model.Member          `json:"members"`
	Templates             []model.TaskTemplate    `json:"templates"`
	Occurrences           []model.TaskOccurrence  `json:"occurrences"`
	Completions           []model.CompletionEvent `json:"completions"`
}

type Store struct {
	path  string
	lock  *flock.Flock
	mu    sync.RWMutex
	doc   document
	saved []byte // file contents as last read or written by this handle
}

// Open loads the store at path. A missing or empty file yields an empty store.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	s := &Store{
		path: path,
		lock: flock.New(path + ".lock"),
		doc:  document{Version: formatVersion},
	}

	unlock, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("parse store: %w", err)
	}
	s.saved = data
	return s, nil
}

func (s *Store) acquire() (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := s.lock.TryLockContext(ctx, lockRetry)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return func() { _ = s.lock.Unlock() }, nil
}

// Save writes the document atomically. If the file changed since this handle
// last read or wrote it, the two versions are merged by record id first and
// the in-memory document adopts the result.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquire()
	if err != nil {
		return err
	}
	defer unlock()

	disk, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read store: %w", err)
	}

	doc := s.doc
	if !bytes.Equal(disk, s.saved) {
		theirs, err := decode(disk)
		if err != nil {
			return fmt.Errorf("parse store: %w", err)
		}
		prev, err := decode(s.saved)
		if err != nil {
			return fmt.Errorf("parse previous store: %w", err)
		}
		doc = merge(prev, s.doc, theirs)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename store file: %w", err)
	}
	s.doc = doc
	s.saved = data
	return nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// LastAppliedRevision is the sync watermark.
func (s *Store) LastAppliedRevision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.LastAppliedRevision
}

func (s *Store) SetLastAppliedRevision(rev int64) {
	s.mu.Lock()
	s.doc.LastAppliedRevision = rev
	s.mu.Unlock()
}

// DeviceToken is the push token last registered with the server, if any.
func (s *Store) DeviceToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.RegisteredDeviceToken
}

func (s *Store) SetDeviceToken(token string) {
	s.mu.Lock()
	s.doc.RegisteredDeviceToken = token
	s.mu.Unlock()
}

// Snapshot returns copies of every record, with the watermark as base revision.
func (s *Store) Snapshot() model.PushRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.PushRequest{
		BaseRevision: s.doc.LastAppliedRevision,
		Members:      slices.Clone(s.doc.Members),
		Templates:    slices.Clone(s.doc.Templates),
		Occurrences:  slices.Clone(s.doc.Occurrences),
		Completions:  slices.Clone(s.doc.Completions),
	}
}

// Members returns all members, oldest first.
func (s *Store) Members() []model.Member {
	s.mu.RLock()
	out := slices.Clone(s.doc.Members)
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b model.Member) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (s *Store) Member(id uuid.UUID) (model.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.doc.Members, id, memberID)
}

// Templates returns templates matching pred, most recently updated first.
// A nil pred matches everything.
func (s *Store) Templates(pred func(model.TaskTemplate) bool) []model.TaskTemplate {
	s.mu.RLock()
	out := filter(s.doc.Templates, pred)
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b model.TaskTemplate) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out
}

func (s *Store) Template(id uuid.UUID) (model.TaskTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.doc.Templates, id, templateID)
}

// Occurrences returns occurrences matching pred, earliest due first.
func (s *Store) Occurrences(pred func(model.TaskOccurrence) bool) []model.TaskOccurrence {
	s.mu.RLock()
	out := filter(s.doc.Occurrences, pred)
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b model.TaskOccurrence) int { return a.DueDate.Compare(b.DueDate) })
	return out
}

func (s *Store) Occurrence(id uuid.UUID) (model.TaskOccurrence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.doc.Occurrences, id, occurrenceID)
}

// Completions returns completions matching pred, newest first.
func (s *Store) Completions(pred func(model.CompletionEvent) bool) []model.CompletionEvent {
	s.mu.RLock()
	out := filter(s.doc.Completions, pred)
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b model.CompletionEvent) int { return b.Timestamp.Compare(a.Timestamp) })
	return out
}

func (s *Store) UpsertMember(m model.Member) {
	s.mu.Lock()
	s.doc.Members = upsert(s.doc.Members, m, memberID)
	s.mu.Unlock()
}

func (s *Store) UpsertTemplate(t model.TaskTemplate) {
	s.mu.Lock()
	s.doc.Templates = upsert(s.doc.Templates, t, templateID)
	s.mu.Unlock()
}

func (s *Store) UpsertOccurrence(o model.TaskOccurrence) {
	s.mu.Lock()
	s.doc.Occurrences = upsert(s.doc.Occurrences, o, occurrenceID)
	s.mu.Unlock()
}

func (s *Store) UpsertCompletion(c model.CompletionEvent) {
	s.mu.Lock()
	s.doc.Completions = upsert(s.doc.Completions, c, completionID)
	s.mu.Unlock()
}

// DeleteMember removes a member. It reports whether the member existed.
func (s *Store) DeleteMember(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.doc.Members, ok = remove(s.doc.Members, id, memberID)
	return ok
}

func (s *Store) DeleteTemplate(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.doc.Templates, ok = remove(s.doc.Templates, id, templateID)
	return ok
}

func (s *Store) DeleteOccurrences(pred func(model.TaskOccurrence) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.doc.Occurrences)
	s.doc.Occurrences = slices.DeleteFunc(s.doc.Occurrences, pred)
	return before - len(s.doc.Occurrences)
}

func (s *Store) DeleteCompletions(pred func(model.CompletionEvent) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.doc.Completions)
	s.doc.Completions = slices.DeleteFunc(s.doc.Completions, pred)
	return before - len(s.doc.Completions)
}

// The methods below let the occurrence scheduler work directly on the store.

func (s *Store) OccurrencesForTemplate(_ context.Context, id uuid.UUID) ([]model.TaskOccurrence, error) {
	return s.Occurrences(func(o model.TaskOccurrence) bool { return o.TemplateID == id }), nil
}

func (s *Store) CompletionsForOccurrences(_ context.Context, ids []uuid.UUID) ([]model.CompletionEvent, error) {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return s.Completions(func(c model.CompletionEvent) bool { return set[c.OccurrenceID] }), nil
}

func (s *Store) InsertOccurrence(_ context.Context, occ model.TaskOccurrence) error {
	s.UpsertOccurrence(occ)
	return nil
}

func (s *Store) SaveTemplate(_ context.Context, tmpl model.TaskTemplate) error {
	s.UpsertTemplate(tmpl)
	return nil
}

func (s *Store) DeleteOccurrence(_ context.Context, id uuid.UUID) error {
	s.DeleteOccurrences(func(o model.TaskOccurrence) bool { return o.ID == id })
	return nil
}

func memberID(m model.Member) uuid.UUID { return m.ID }
func templateID(t model.TaskTemplate) uuid.UUID { return t.ID }
func occurrenceID(o model.TaskOccurrence) uuid.UUID { return o.ID }
func completionID(c model.CompletionEvent) uuid.UUID { return c.ID }

func find[T any](items []T, id uuid.UUID, key func(T) uuid.UUID) (T, bool) {
	for _, item := range items {
		if key(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func filter[T any](items []T, pred func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if pred == nil || pred(item) {
			out = append(out, item)
		}
	}
	return out
}

func upsert[T any](items []T, item T, key func(T) uuid.UUID) []T {
	id := key(item)
	for i := range items {
		if key(items[i]) == id {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}

func remove[T any](items []T, id uuid.UUID, key func(T) uuid.UUID) ([]T, bool) {
	for i := range items {
		if key(items[i]) == id {
			return slices.Delete(items, i, i+1), true
		}
	}
	return items, false
}
