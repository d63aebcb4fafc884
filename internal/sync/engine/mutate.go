package engine

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/louisbranch/deltasync/internal/storage/sqlite"
	"github.com/louisbranch/deltasync/internal/sync/record"
	"github.com/louisbranch/deltasync/internal/sync/schema"
)

// MutationResult is the outcome of a create, update, or delete.
type MutationResult struct {
	// Record is the row's current normalized state. Nil when no row exists
	// for the given external id.
	Record record.Record
	// Conflict reports that the version predicate did not match; Record then
	// holds the stored state the caller should re-synchronize against.
	Conflict bool
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// managedColumns are owned by the engine or the store and never accepted as
// client-supplied mutable fields. The internal key and its wire alias are
// derived, not stored state.
var managedColumns = map[string]struct{}{
	record.InternalKeyColumn: {},
	record.RowIDField:        {},
	"external_id":            {},
	"version":                {},
	"deleted":                {},
	"last_changed_at":        {},
	"expires_at":             {},
}

// mutableFields extracts the client-writable columns from input in
// deterministic order, rejecting anything that is not a plain identifier.
func mutableFields(input map[string]any) ([]string, []any, error) {
	columns := make([]string, 0, len(input))
	for column := range input {
		if _, managed := managedColumns[column]; managed {
			continue
		}
		if !identPattern.MatchString(column) {
			return nil, nil, fmt.Errorf("invalid field name %q", column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)
	values := make([]any, 0, len(columns))
	for _, column := range columns {
		values = append(values, input[column])
	}
	return columns, values, nil
}

func inputString(input map[string]any, key string) string {
	value, _ := input[key].(string)
	return value
}

func inputVersion(input map[string]any) int64 {
	value, ok := input["version"]
	if !ok {
		return 0
	}
	return record.AsInt64(value)
}

// selectOne builds the single-row lookup, joined to the parent table when the
// entity has a relation configured.
func selectOne(ent schema.Entity, whereColumn string) string {
	var b strings.Builder
	b.WriteString("SELECT t.*")
	if ent.Relation != nil {
		b.WriteString(", p.external_id AS parent_external_id, p.deleted AS parent_deleted")
	}
	b.WriteString(" FROM ")
	b.WriteString(ent.Table)
	b.WriteString(" t")
	if ent.Relation != nil {
		b.WriteString(" LEFT JOIN ")
		b.WriteString(ent.Relation.ParentTable)
		b.WriteString(" p ON t.")
		b.WriteString(ent.Relation.Column)
		b.WriteString(" = p.external_id")
	}
	b.WriteString(" WHERE t.")
	b.WriteString(whereColumn)
	b.WriteString(" = ?")
	return b.String()
}

func readOne(ctx context.Context, q sqlite.Querier, ent schema.Entity, whereColumn string, key any) (map[string]any, error) {
	rows, err := q.QueryContext(ctx, selectOne(ent, whereColumn), key)
	if err != nil {
		return nil, err
	}
	scanned, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(scanned) == 0 {
		return nil, nil
	}
	return scanned[0], nil
}

// Create inserts a new row. A missing external id is generated. Constraint
// violations bubble up as plain errors.
func (e *Engine) Create(ctx context.Context, ent schema.Entity, input map[string]any) (*MutationResult, error) {
	externalID := inputString(input, "external_id")
	if externalID == "" {
		externalID = e.newID()
	}

	columns, values, err := mutableFields(input)
	if err != nil {
		return nil, err
	}
	columns = append(columns, "external_id")
	values = append(values, externalID)

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(ent.Table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES (")
	b.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))
	b.WriteString(")")

	result, err := e.store.DB().ExecContext(ctx, b.String(), values...)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", ent.Name, err)
	}
	rowID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("resolve inserted %s id: %w", ent.Name, err)
	}

	row, err := readOne(ctx, e.store.DB(), ent, record.InternalKeyColumn, rowID)
	if err != nil {
		return nil, fmt.Errorf("read inserted %s: %w", ent.Name, err)
	}
	if row == nil {
		return nil, fmt.Errorf("inserted %s row %d not found", ent.Name, rowID)
	}

	e.mirror(ctx, ent, row)
	return &MutationResult{Record: record.Normalize(row, ent.Relation)}, nil
}

// Update applies a version-checked field update inside a locking transaction.
func (e *Engine) Update(ctx context.Context, ent schema.Entity, input map[string]any) (*MutationResult, error) {
	columns, values, err := mutableFields(input)
	if err != nil {
		return nil, err
	}
	var setClauses []string
	for _, column := range columns {
		setClauses = append(setClauses, column+" = ?")
	}
	setClauses = append(setClauses, "version = version + 1")
	return e.mutateLocked(ctx, ent, input, setClauses, values)
}

// Delete tombstones a row under the same version check as Update. The row is
// never physically removed here; expires_at hands it to the storage engine's
// TTL sweep once the base-table retention window passes.
func (e *Engine) Delete(ctx context.Context, ent schema.Entity, input map[string]any) (*MutationResult, error) {
	expiresAt := e.now().Add(e.cfg.BaseTableTTL).UnixMilli()
	setClauses := []string{"deleted = 1", "version = version + 1", "expires_at = ?"}
	return e.mutateLocked(ctx, ent, input, setClauses, []any{expiresAt})
}

// mutateLocked runs the shared conditional-write sequence: lock the row via
// the pre-image read, attempt the version-predicated write, re-read, commit.
// Outcomes: success (one row affected), conflict (zero affected, row exists),
// or not found (no row for the external id).
func (e *Engine) mutateLocked(ctx context.Context, ent schema.Entity, input map[string]any, setClauses []string, setValues []any) (*MutationResult, error) {
	externalID := inputString(input, "external_id")
	if externalID == "" {
		return nil, fmt.Errorf("external_id is required")
	}
	version := inputVersion(input)

	var out *MutationResult
	var mirrorRow map[string]any
	err := e.store.WithImmediateTx(ctx, func(q sqlite.Querier) error {
		preImage, err := readOne(ctx, q, ent, "external_id", externalID)
		if err != nil {
			return fmt.Errorf("read %s pre-image: %w", ent.Name, err)
		}
		if preImage == nil {
			out = &MutationResult{}
			return nil
		}

		query := fmt.Sprintf(
			"UPDATE %s SET %s WHERE external_id = ? AND version = ?",
			ent.Table, strings.Join(setClauses, ", "),
		)
		args := append(append([]any{}, setValues...), externalID, version)
		result, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update %s: %w", ent.Name, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("resolve %s rows affected: %w", ent.Name, err)
		}
		if affected == 0 {
			out = &MutationResult{Record: record.Normalize(preImage, ent.Relation), Conflict: true}
			return nil
		}

		row, err := readOne(ctx, q, ent, "external_id", externalID)
		if err != nil {
			return fmt.Errorf("re-read %s: %w", ent.Name, err)
		}
		if row == nil {
			return fmt.Errorf("%s %q vanished mid-transaction", ent.Name, externalID)
		}
		mirrorRow = row
		out = &MutationResult{Record: record.Normalize(row, ent.Relation)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if mirrorRow != nil {
		e.mirror(ctx, ent, mirrorRow)
	}
	return out, nil
}
