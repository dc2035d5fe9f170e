package compiler

import "github.com/minitalklang/minitalk/pkg/ast"

// maxLiteralSize bounds the number of distinct literal-table entries a
// single method may reference, matching the source's
// MAX_LITERAL_SIZE.
const maxLiteralSize = 256

// literalTable assigns each literal occurrence the generator walks
// past a zero-based index into the method's eventual literal array. It
// performs no deduplication: the resolver and parser are trusted to
// hand the generator one AST node per literal occurrence, so two
// syntactically identical literals appearing twice in the source
// intern as two separate table entries. Because the assigned indices
// are embedded directly into the emitted bytecode, table ordering is
// part of the method's observable encoding, not an implementation
// detail — two syntactically identical methods must produce the same
// ordering to produce byte-identical code.
type literalTable struct {
	nodes []ast.Node
}

func newLiteralTable() *literalTable {
	return &literalTable{nodes: make([]ast.Node, 0, 8)}
}

// intern appends node to the table and returns its index.
func (t *literalTable) intern(node ast.Node) (int, error) {
	if len(t.nodes) >= maxLiteralSize {
		return 0, ErrLiteralTableFull
	}
	t.nodes = append(t.nodes, node)
	return len(t.nodes) - 1, nil
}
