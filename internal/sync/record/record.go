// Package record maps stored rows to the wire record shape the sync client reconciles.
package record

import (
	"fmt"

	"github.com/louisbranch/deltasync/internal/sync/schema"
)

// Columns injected by the scan join for parent denormalization. They never
// appear in the wire record directly.
const (
	ParentIDColumn      = "parent_external_id"
	ParentDeletedColumn = "parent_deleted"
)

// InternalKeyColumn is the primary-key column of every synced table.
const InternalKeyColumn = "id"

// RowIDField exposes the internal numeric key as a secondary wire field.
const RowIDField = "row_id"

// Record is a normalized wire record.
type Record map[string]any

// Normalize maps a raw stored row (plus optional joined parent columns) to the
// wire record shape. The external id always comes back non-empty: rows that
// predate the sync overlay get one synthesized from the internal key.
// last_changed_at is converted from stored epoch milliseconds to truncated
// epoch seconds.
func Normalize(row map[string]any, rel *schema.Relation) Record {
	out := make(Record, len(row)+2)
	for column, value := range row {
		switch column {
		case InternalKeyColumn, ParentIDColumn, ParentDeletedColumn:
			// re-emitted under their wire names below
		case "last_changed_at":
			out[column] = AsInt64(value) / 1000
		case "deleted":
			out[column] = AsBool(value)
		default:
			out[column] = value
		}
	}

	rowID := AsInt64(row[InternalKeyColumn])
	out[RowIDField] = rowID
	external, _ := row["external_id"].(string)
	if external == "" {
		external = fmt.Sprintf("row-%d", rowID)
	}
	out["external_id"] = external

	if rel != nil {
		if parentID, ok := row[ParentIDColumn].(string); ok && parentID != "" {
			out[rel.Name] = map[string]any{
				"id":      parentID,
				"deleted": AsBool(row[ParentDeletedColumn]),
			}
		}
	}
	return out
}

// AsInt64 coerces SQLite scan values and JSON numbers to int64.
func AsInt64(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// AsBool coerces SQLite integer booleans and JSON booleans to bool.
func AsBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case float64:
		return v != 0
	default:
		return false
	}
}
