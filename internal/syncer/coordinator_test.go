package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/choresync/internal/database"
	"github.com/dukerupert/choresync/internal/localstore"
	"github.com/dukerupert/choresync/internal/model"
	"github.com/dukerupert/choresync/internal/remote"
	"github.com/dukerupert/choresync/internal/server"
)

type fakeRemote struct {
	mu     sync.Mutex
	pulls  []int64
	pushes []model.PushRequest
	resp   model.PullResponse
	err    error
	block  chan struct{}
}

func (f *fakeRemote) Pull(ctx context.Context, since int64) (model.PullResponse, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls = append(f.pulls, since)
	return f.resp, f.err
}

func (f *fakeRemote) Push(ctx context.Context, req model.PushRequest) (model.PullResponse, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, req)
	return f.resp, f.err
}

func (f *fakeRemote) wait() {
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeRemote) counts() (pulls, pushes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pulls), len(f.pushes)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T) *localstore.Store {
	t.Helper()
	s, err := localstore.Open(filepath.Join(t.TempDir(), "household.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

var now = time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)

func TestSyncNowPullsWhenClean(t *testing.T) {
	store := openStore(t)
	store.UpsertMember(model.Member{ID: uuid.New(), DisplayName: "Alex", SyncRevision: 3})
	store.SetLastAppliedRevision(3)

	fr := &fakeRemote{resp: model.PullResponse{Revision: 3}}
	c := New(fr, store, discardLogger())
	if err := c.SyncNow(context.Background(), "test"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	pulls, pushes := fr.counts()
	if pulls != 1 || pushes != 0 {
		t.Errorf("pulls=%d pushes=%d, want 1 pull", pulls, pushes)
	}
	if fr.pulls[0] != 3 {
		t.Errorf("pulled since %d, want 3", fr.pulls[0])
	}
}

func TestSyncNowPushesWhenDirty(t *testing.T) {
	store := openStore(t)
	alex := model.Member{ID: uuid.New(), DisplayName: "Alex"}
	store.UpsertMember(alex)
	store.SetLastAppliedRevision(5)

	stamped := alex
	stamped.SyncRevision = 6
	fr := &fakeRemote{resp: model.PullResponse{Revision: 6, Members: []model.Member{stamped}}}
	c := New(fr, store, discardLogger())
	if err := c.SyncNow(context.Background(), "member-add"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	pulls, pushes := fr.counts()
	if pulls != 0 || pushes != 1 {
		t.Fatalf("pulls=%d pushes=%d, want 1 push", pulls, pushes)
	}
	if fr.pushes[0].BaseRevision != 5 || len(fr.pushes[0].Members) != 1 {
		t.Errorf("push = %+v, want base 5 with Alex", fr.pushes[0])
	}
	if store.LastAppliedRevision() != 6 {
		t.Errorf("watermark = %d, want 6", store.LastAppliedRevision())
	}
	if m, _ := store.Member(alex.ID); m.SyncRevision != 6 {
		t.Errorf("member revision = %d, want 6", m.SyncRevision)
	}

	reopened, err := localstore.Open(store.Path())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.LastAppliedRevision() != 6 {
		t.Errorf("persisted watermark = %d, want 6", reopened.LastAppliedRevision())
	}
}

func TestSyncFailureKeepsWatermark(t *testing.T) {
	store := openStore(t)
	store.SetLastAppliedRevision(4)

	fr := &fakeRemote{err: errors.New("connection refused")}
	c := New(fr, store, discardLogger())
	if err := c.SyncNow(context.Background(), "test"); err == nil {
		t.Error("expected sync error")
	}
	if err := c.PullIfNeeded(context.Background()); err == nil {
		t.Error("expected pull error")
	}
	if store.LastAppliedRevision() != 4 {
		t.Errorf("watermark = %d, want 4", store.LastAppliedRevision())
	}
	if c.Busy() {
		t.Error("coordinator still busy after failure")
	}
}

func TestSingleFlight(t *testing.T) {
	store := openStore(t)
	fr := &fakeRemote{block: make(chan struct{}), resp: model.PullResponse{Revision: 1}}
	c := New(fr, store, discardLogger())

	done := make(chan error, 1)
	go func() { done <- c.PullIfNeeded(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !c.Busy() {
		if time.Now().After(deadline) {
			t.Fatal("first pull never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := c.SyncNow(context.Background(), "concurrent"); err != nil {
		t.Errorf("concurrent sync = %v, want nil", err)
	}
	if err := c.PullIfNeeded(context.Background()); err != nil {
		t.Errorf("concurrent pull = %v, want nil", err)
	}

	close(fr.block)
	if err := <-done; err != nil {
		t.Fatalf("first pull: %v", err)
	}
	if pulls, pushes := fr.counts(); pulls != 1 || pushes != 0 {
		t.Errorf("pulls=%d pushes=%d, want exactly one pull", pulls, pushes)
	}
}

func TestApplyOverwritesIncludingCompletions(t *testing.T) {
	store := openStore(t)
	occID := uuid.New()
	local := model.CompletionEvent{ID: uuid.New(), OccurrenceID: occID, Timestamp: now}
	store.UpsertCompletion(local)

	stamped := local
	stamped.SyncRevision = 8
	c := New(&fakeRemote{}, store, discardLogger())
	if err := c.Apply(model.PullResponse{Revision: 8, Completions: []model.CompletionEvent{stamped}}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got := store.Completions(nil)
	if len(got) != 1 || got[0].SyncRevision != 8 {
		t.Errorf("completions = %+v, want one at revision 8", got)
	}
	if _, dirty := c.CaptureSnapshot(8); dirty {
		t.Error("snapshot still dirty after apply")
	}
}

func newDevice(t *testing.T, url string) (*Coordinator, *localstore.Store) {
	t.Helper()
	store := openStore(t)
	return New(remote.NewClient(url, "household-token", nil), store, discardLogger()), store
}

func TestTwoDevicesConverge(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	srv := server.New(db, server.Config{APIToken: "household-token", Location: time.UTC}, discardLogger())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	ctx := context.Background()

	phone, phoneStore := newDevice(t, ts.URL)
	tablet, tabletStore := newDevice(t, ts.URL)

	alex := model.Member{ID: uuid.New(), DisplayName: "Alex", CreatedAt: now, UpdatedAt: now}
	phoneStore.UpsertMember(alex)
	if err := phone.SyncNow(ctx, "member-add"); err != nil {
		t.Fatalf("phone sync: %v", err)
	}

	if err := tablet.PullIfNeeded(ctx); err != nil {
		t.Fatalf("tablet pull: %v", err)
	}
	got, ok := tabletStore.Member(alex.ID)
	if !ok || got.DisplayName != "Alex" || got.SyncRevision == 0 {
		t.Fatalf("tablet member = %+v, %v", got, ok)
	}

	// Pulling again from the new watermark yields nothing.
	watermark := tabletStore.LastAppliedRevision()
	resp, err := remote.NewClient(ts.URL, "household-token", nil).Pull(ctx, watermark)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if !resp.IsEmpty() {
		t.Errorf("second pull = %+v, want empty", resp)
	}

	got.DisplayName = "Alexandra"
	got.SyncRevision = 0
	tabletStore.UpsertMember(got)
	if err := tablet.SyncNow(ctx, "member-update"); err != nil {
		t.Fatalf("tablet sync: %v", err)
	}
	if err := phone.SyncNow(ctx, "refresh"); err != nil {
		t.Fatalf("phone refresh: %v", err)
	}
	if m, _ := phoneStore.Member(alex.ID); m.DisplayName != "Alexandra" {
		t.Errorf("phone member = %q, want Alexandra", m.DisplayName)
	}
	if phoneStore.LastAppliedRevision() != tabletStore.LastAppliedRevision() {
		t.Errorf("watermarks differ: phone %d tablet %d", phoneStore.LastAppliedRevision(), tabletStore.LastAppliedRevision())
	}
}
