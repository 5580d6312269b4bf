// Package planshim defines the external contract the core consumes from
// the SQL parser/planner — out of scope per spec §1 ("the core consumes a
// StatementTree and a QueryPlanNode"). Only the minimal shapes views and
// the catalog layer need to pass plan trees around are defined here; there
// is no grammar or planner behind them.
package planshim

import "ponydb/internal/types"

// NodeKind distinguishes a QueryPlanNode's role in the tree.
type NodeKind int

const (
	NodeBase NodeKind = iota
	NodeFilter
	NodeJoin
	NodeUnion
	NodeIntersect
	NodeExcept
	NodeOuterJoin
	NodeProject
)

// QueryPlanNode is a deserialized query plan tree, the shape a view's
// stored definition decodes into (spec §4.J: "createViewQueryPlanNode
// returns a fresh, deserialized plan tree"). The planner this core does
// not implement is responsible for producing these; in the core only
// catalog.ViewManager returns them, and no code walks them to build a
// table.Expression.
type QueryPlanNode struct {
	Kind     NodeKind
	Table    string   // for NodeBase: the underlying table name
	Columns  []string // projected/exposed column names, in order
	Children []*QueryPlanNode
	Predicate string // opaque predicate text for NodeFilter; unevaluated here
}

// StatementTree is the parsed-statement shape the core consumes for DML
// (spec §1). Only the fields the storage/execution core itself reads are
// modeled; the rest of a real statement tree lives entirely in the parser.
type StatementTree struct {
	Kind   StatementKind
	Table  string
	Values []types.TObject
	Where  *QueryPlanNode
}

// StatementKind is the DML operation a StatementTree carries.
type StatementKind int

const (
	StatementInsert StatementKind = iota
	StatementUpdate
	StatementDelete
	StatementSelect
)
