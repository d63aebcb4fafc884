package engine

import (
	"strings"

	"github.com/louisbranch/deltasync/internal/sync/schema"
)

// planScan selects the scan access path and builds the query for it.
//
// No recency marker means a full scan of the primary table, tombstones
// included so the client can reconcile deletions. A marker older than the
// change-log retention window cannot be served from the change log (entries
// have expired) and falls back to an incremental primary-table scan. A marker
// inside the window reads the smaller change-log table. The boundary is
// half-open: marker < windowStart scans the primary table, marker >=
// windowStart scans the change log.
//
// When the entity has a parent relation the scan joins the parent's primary
// table; the parent is always looked up live, never through its own change log.
func planScan(ent schema.Entity, marker *int64, windowStart int64, offset, limit int) (string, []any) {
	table := ent.Table
	if marker != nil && *marker >= windowStart {
		table = ent.ChangeLog
	}

	var b strings.Builder
	b.WriteString("SELECT t.*")
	if ent.Relation != nil {
		b.WriteString(", p.external_id AS parent_external_id, p.deleted AS parent_deleted")
	}
	b.WriteString(" FROM ")
	b.WriteString(table)
	b.WriteString(" t")
	if ent.Relation != nil {
		b.WriteString(" INNER JOIN ")
		b.WriteString(ent.Relation.ParentTable)
		b.WriteString(" p ON t.")
		b.WriteString(ent.Relation.Column)
		b.WriteString(" = p.external_id")
	}

	var params []any
	if marker != nil {
		b.WriteString(" WHERE t.last_changed_at > ?")
		params = append(params, *marker)
	}
	b.WriteString(" ORDER BY t.id LIMIT ? OFFSET ?")
	params = append(params, limit, offset)

	return b.String(), params
}
