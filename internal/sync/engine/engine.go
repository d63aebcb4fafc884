// Package engine implements the sync scan and mutation core.
//
// Scans serve the client's reconciliation loop from either the primary table
// or the change-log table depending on how stale the client's recency marker
// is. Mutations enforce optimistic concurrency on a version column inside an
// immediate transaction and mirror every accepted write into the change log.
package engine

import (
	"context"
	"time"

	"github.com/louisbranch/deltasync/internal/storage/sqlite"
	"github.com/louisbranch/deltasync/internal/sync/cursor"
	"github.com/louisbranch/deltasync/internal/sync/record"
	"github.com/louisbranch/deltasync/internal/sync/schema"
	"github.com/google/uuid"
)

// DefaultScanLimit caps a scan page when the client does not supply a limit.
const DefaultScanLimit = 1000

// Config holds the engine retention windows.
type Config struct {
	// ChangeLogWindow is how long change-log entries remain queryable.
	ChangeLogWindow time.Duration
	// BaseTableTTL is how long tombstoned rows remain in the primary table.
	BaseTableTTL time.Duration
}

// Engine executes sync scans and version-checked mutations against the store.
type Engine struct {
	store *sqlite.Store
	cfg   Config
	now   func() time.Time
	newID func() string
}

// New creates an engine over the given store.
func New(store *sqlite.Store, cfg Config) *Engine {
	return &Engine{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// SyncArgs carries the client's scan parameters.
type SyncArgs struct {
	// Limit caps the page size; zero means DefaultScanLimit.
	Limit int `json:"limit"`
	// RecencyMarker is the client's last-synced timestamp in epoch millis.
	// Nil requests a full scan.
	RecencyMarker *int64 `json:"recency_marker"`
	// Cursor is the opaque pagination token from the previous page.
	Cursor string `json:"cursor"`
}

// SyncPage is a single scan response page.
type SyncPage struct {
	Items      []record.Record `json:"items"`
	StartedAt  int64           `json:"started_at"`
	NextCursor *string         `json:"next_cursor"`
}

// Sync scans an entity table and returns one page of normalized records.
func (e *Engine) Sync(ctx context.Context, ent schema.Entity, args SyncArgs) (*SyncPage, error) {
	startedAt := e.now().UTC()

	limit := args.Limit
	if limit <= 0 {
		limit = DefaultScanLimit
	}
	offset := 0
	if args.Cursor != "" {
		c, err := cursor.Decode(args.Cursor)
		if err != nil {
			return nil, err
		}
		offset = c.Offset
	}

	windowStart := startedAt.Add(-e.cfg.ChangeLogWindow).UnixMilli()
	query, params := planScan(ent, args.RecencyMarker, windowStart, offset, limit)

	rows, err := e.store.DB().QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	raw, err := scanRows(rows)
	if err != nil {
		return nil, err
	}

	items := make([]record.Record, 0, len(raw))
	for _, row := range raw {
		items = append(items, record.Normalize(row, ent.Relation))
	}

	page := &SyncPage{Items: items, StartedAt: startedAt.UnixMilli()}
	if len(items) >= limit {
		token, err := cursor.Encode(cursor.Cursor{Offset: offset + len(items)})
		if err != nil {
			return nil, err
		}
		page.NextCursor = &token
	}
	return page, nil
}
