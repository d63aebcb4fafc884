// Package schema declares the synced entity types and the closed operation registry.
//
// The registry is a compile-time enumeration rather than a string-keyed map of
// handler functions: each operation carries its kind, target entity, and
// optional parent relation as data, so adding an entity type is a matter of
// declaring it here and the dispatcher stays exhaustive over Kind.
package schema

// Kind identifies what an operation does to its entity.
type Kind int

const (
	// KindSync scans an entity table for reconciliation.
	KindSync Kind = iota
	// KindCreate inserts a new entity row.
	KindCreate
	// KindUpdate applies a version-checked field update.
	KindUpdate
	// KindDelete tombstones a row under a version check.
	KindDelete
)

// String returns the wire-facing name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSync:
		return "sync"
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Relation describes a belongsTo association denormalized into the child's sync payload.
type Relation struct {
	// Name is the embedded wire field, e.g. "post".
	Name string
	// Column is the child foreign-key column holding the parent's external id.
	Column string
	// ParentTable is the parent's primary table. Parents are always read live,
	// never through their change log.
	ParentTable string
}

// Entity describes one synced entity type.
type Entity struct {
	// Name is the singular entity name used in logs.
	Name string
	// Table is the primary table.
	Table string
	// ChangeLog is the TTL-bounded change-log table mirroring recent mutations.
	ChangeLog string
	// Relation is the optional parent association.
	Relation *Relation
}

// Operation binds a wire operation name to a kind and entity.
type Operation struct {
	Name   string
	Kind   Kind
	Entity Entity
}

// Posts is the parent entity type.
var Posts = Entity{
	Name:      "post",
	Table:     "posts",
	ChangeLog: "posts_changes",
}

// Comments is the child entity type; each comment belongs to a post.
var Comments = Entity{
	Name:      "comment",
	Table:     "comments",
	ChangeLog: "comments_changes",
	Relation: &Relation{
		Name:        "post",
		Column:      "post_id",
		ParentTable: "posts",
	},
}

var operations = []Operation{
	{Name: "syncPosts", Kind: KindSync, Entity: Posts},
	{Name: "syncComments", Kind: KindSync, Entity: Comments},
	{Name: "createPost", Kind: KindCreate, Entity: Posts},
	{Name: "createComment", Kind: KindCreate, Entity: Comments},
	{Name: "updatePost", Kind: KindUpdate, Entity: Posts},
	{Name: "updateComment", Kind: KindUpdate, Entity: Comments},
	{Name: "deletePost", Kind: KindDelete, Entity: Posts},
	{Name: "deleteComment", Kind: KindDelete, Entity: Comments},
}

var operationsByName = func() map[string]Operation {
	byName := make(map[string]Operation, len(operations))
	for _, op := range operations {
		byName[op.Name] = op
	}
	return byName
}()

// Resolve looks up an operation by wire name.
func Resolve(name string) (Operation, bool) {
	op, ok := operationsByName[name]
	return op, ok
}

// Operations returns the full registry in declaration order.
func Operations() []Operation {
	out := make([]Operation, len(operations))
	copy(out, operations)
	return out
}
