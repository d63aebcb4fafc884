package dispatch

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/deltasync/internal/storage/sqlite"
	"github.com/louisbranch/deltasync/internal/sync/engine"
	"github.com/louisbranch/deltasync/internal/sync/record"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "sync.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	eng := engine.New(store, engine.Config{
		ChangeLogWindow: 30 * time.Minute,
		BaseTableTTL:    30 * 24 * time.Hour,
	})
	return New(eng)
}

func dispatchJSON(t *testing.T, d *Dispatcher, operation, arguments string) Response {
	t.Helper()
	return d.Dispatch(context.Background(), Request{
		OperationName: operation,
		Arguments:     json.RawMessage(arguments),
	})
}

func TestDispatchUnknownOperation(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)
	resp := dispatchJSON(t, d, "mergePosts", `{}`)
	if resp.ErrorKind != KindUnknownOperation {
		t.Fatalf("error kind = %q, want %q", resp.ErrorKind, KindUnknownOperation)
	}
	if resp.Data != nil {
		t.Fatalf("data = %v, want nil", resp.Data)
	}
}

func TestDispatchCreateThenSync(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)
	created := dispatchJSON(t, d, "createPost", `{"input": {"title": "hello", "content": "world"}}`)
	if created.ErrorKind != "" {
		t.Fatalf("create error kind = %q: %s", created.ErrorKind, created.ErrorMessage)
	}
	rec, ok := created.Data.(record.Record)
	if !ok {
		t.Fatalf("create data type = %T", created.Data)
	}
	if rec["title"] != "hello" {
		t.Fatalf("title = %v, want hello", rec["title"])
	}

	synced := dispatchJSON(t, d, "syncPosts", `{}`)
	if synced.ErrorKind != "" {
		t.Fatalf("sync error kind = %q: %s", synced.ErrorKind, synced.ErrorMessage)
	}
	page, ok := synced.Data.(*engine.SyncPage)
	if !ok {
		t.Fatalf("sync data type = %T", synced.Data)
	}
	if len(page.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(page.Items))
	}
	if page.NextCursor != nil {
		t.Fatal("short page must not carry a cursor")
	}
}

func TestDispatchConflictEnvelope(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)
	created := dispatchJSON(t, d, "createPost", `{"input": {"external_id": "p1", "title": "v1"}}`)
	if created.ErrorKind != "" {
		t.Fatalf("create failed: %s", created.ErrorMessage)
	}

	first := dispatchJSON(t, d, "updatePost", `{"input": {"external_id": "p1", "version": 1, "title": "v2"}}`)
	if first.ErrorKind != "" {
		t.Fatalf("first update failed: %s", first.ErrorMessage)
	}

	stale := dispatchJSON(t, d, "updatePost", `{"input": {"external_id": "p1", "version": 1, "title": "late"}}`)
	if stale.ErrorKind != KindConflict {
		t.Fatalf("error kind = %q, want %q", stale.ErrorKind, KindConflict)
	}
	rec, ok := stale.Data.(record.Record)
	if !ok {
		t.Fatalf("conflict data type = %T", stale.Data)
	}
	if rec["version"] != int64(2) {
		t.Fatalf("conflict version = %v, want stored 2", rec["version"])
	}
}

func TestDispatchMissingRowReturnsNullData(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)
	resp := dispatchJSON(t, d, "deletePost", `{"input": {"external_id": "ghost", "version": 1}}`)
	if resp.ErrorKind != "" {
		t.Fatalf("error kind = %q, want none", resp.ErrorKind)
	}
	if resp.Data != nil {
		t.Fatalf("data = %v, want nil", resp.Data)
	}
}

func TestDispatchBadArgumentsBecomesInternalFailure(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)
	resp := dispatchJSON(t, d, "syncPosts", `{"cursor": 42}`)
	if resp.ErrorKind != KindInternalFailure {
		t.Fatalf("error kind = %q, want %q", resp.ErrorKind, KindInternalFailure)
	}
	if resp.ErrorMessage == "" {
		t.Fatal("expected a human-readable error message")
	}
}
