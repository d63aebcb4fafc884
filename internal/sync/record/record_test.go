package record

import (
	"testing"

	"github.com/louisbranch/deltasync/internal/sync/schema"
)

func TestNormalizePlainRow(t *testing.T) {
	t.Parallel()

	row := map[string]any{
		"id":              int64(7),
		"external_id":     "post-abc",
		"title":           "hello",
		"version":         int64(3),
		"deleted":         int64(0),
		"last_changed_at": int64(1_700_000_123_999),
		"expires_at":      nil,
	}
	got := Normalize(row, nil)

	if got["external_id"] != "post-abc" {
		t.Fatalf("external_id = %v, want post-abc", got["external_id"])
	}
	if got[RowIDField] != int64(7) {
		t.Fatalf("row_id = %v, want 7", got[RowIDField])
	}
	if got["title"] != "hello" {
		t.Fatalf("title = %v, want hello", got["title"])
	}
	if got["deleted"] != false {
		t.Fatalf("deleted = %v, want false", got["deleted"])
	}
	// Millis are truncated, not rounded, to seconds.
	if got["last_changed_at"] != int64(1_700_000_123) {
		t.Fatalf("last_changed_at = %v, want 1700000123", got["last_changed_at"])
	}
	if _, present := got["id"]; present {
		t.Fatal("internal key must not leak under its column name")
	}
}

func TestNormalizeSynthesizesExternalID(t *testing.T) {
	t.Parallel()

	row := map[string]any{
		"id":              int64(42),
		"external_id":     nil,
		"last_changed_at": int64(0),
	}
	got := Normalize(row, nil)
	if got["external_id"] != "row-42" {
		t.Fatalf("external_id = %v, want row-42", got["external_id"])
	}
}

func TestNormalizeEmbedsParentRelation(t *testing.T) {
	t.Parallel()

	row := map[string]any{
		"id":                 int64(1),
		"external_id":        "comment-1",
		"post_id":            "post-9",
		"content":            "hi",
		"deleted":            int64(0),
		"last_changed_at":    int64(5000),
		"parent_external_id": "post-9",
		"parent_deleted":     int64(1),
	}
	got := Normalize(row, schema.Comments.Relation)

	parent, ok := got["post"].(map[string]any)
	if !ok {
		t.Fatalf("expected embedded post relation, got %T", got["post"])
	}
	if parent["id"] != "post-9" {
		t.Fatalf("parent id = %v, want post-9", parent["id"])
	}
	if parent["deleted"] != true {
		t.Fatalf("parent deleted = %v, want true", parent["deleted"])
	}
	if _, present := got[ParentIDColumn]; present {
		t.Fatal("join columns must not leak into the record")
	}
}

func TestNormalizeOmitsRelationWhenParentColumnsAbsent(t *testing.T) {
	t.Parallel()

	row := map[string]any{
		"id":              int64(2),
		"external_id":     "comment-2",
		"last_changed_at": int64(0),
	}
	got := Normalize(row, schema.Comments.Relation)
	if _, present := got["post"]; present {
		t.Fatal("relation field must be omitted, not emitted as null")
	}
}
