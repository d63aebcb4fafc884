package engine

import (
	"context"
	"log"
	"strings"

	"github.com/louisbranch/deltasync/internal/sync/record"
	"github.com/louisbranch/deltasync/internal/sync/schema"
)

// mirror copies a freshly mutated row into the entity's change-log table so a
// client syncing right after the write observes it. It runs synchronously
// before the mutation response is returned, but the change log is best-effort
// relative to the primary table: a failure is logged and never alters the
// mutation outcome.
func (e *Engine) mirror(ctx context.Context, ent schema.Entity, row map[string]any) {
	if err := e.writeChangeLogEntry(ctx, ent, row); err != nil {
		log.Printf("mirror %s external_id=%v to %s: %v", ent.Name, row["external_id"], ent.ChangeLog, err)
	}
}

func (e *Engine) writeChangeLogEntry(ctx context.Context, ent schema.Entity, row map[string]any) error {
	expiresAt := e.now().Add(e.cfg.ChangeLogWindow).UnixMilli()

	columns := make([]string, 0, len(row))
	values := make([]any, 0, len(row))
	for column, value := range row {
		switch column {
		case record.InternalKeyColumn, record.ParentIDColumn, record.ParentDeletedColumn:
			// the log entry has its own key; join-only columns are computed
		case "expires_at":
			// overridden below with the change-log retention window
		default:
			columns = append(columns, column)
			values = append(values, value)
		}
	}
	columns = append(columns, "expires_at")
	values = append(values, expiresAt)

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(ent.ChangeLog)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES (")
	b.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))
	b.WriteString(")")

	_, err := e.store.DB().ExecContext(ctx, b.String(), values...)
	return err
}
