// Package nodes defines the template syntax tree shared by the parser and
// the compiler passes.
package nodes

import (
	"github.com/deicod/jinjac/diag"
	"github.com/deicod/jinjac/schema"
)

// Node represents the base interface for all AST nodes
type Node interface {
	// GetSpan returns the source span of the node
	GetSpan() diag.Span

	// GetChildren returns all child nodes in source order
	GetChildren() []Node

	// Type returns the node type for identification
	Type() string
}

// BaseNode provides the source span for all nodes
type BaseNode struct {
	Span diag.Span
}

// GetSpan returns the span information
func (n *BaseNode) GetSpan() diag.Span {
	return n.Span
}

// Stmt is a template-level node. The set of statements is closed.
type Stmt interface {
	Node
	isStmt()
}

// BaseStmt provides common functionality for statement nodes
type BaseStmt struct {
	BaseNode
}

func (n *BaseStmt) isStmt() {}

// Expr is an expression node. The set of expressions is closed.
type Expr interface {
	Node
	isExpr()

	// StaticType returns the type inferred by the binder (nil before binding).
	StaticType() *schema.Type

	// SetStaticType records the inferred type.
	SetStaticType(t *schema.Type)
}

// BaseExpr provides common functionality for expression nodes
type BaseExpr struct {
	BaseNode
	Static *schema.Type
}

func (n *BaseExpr) isExpr() {}

func (n *BaseExpr) StaticType() *schema.Type {
	if n.Static == nil {
		return schema.AnyType
	}
	return n.Static
}

func (n *BaseExpr) SetStaticType(t *schema.Type) {
	n.Static = t
}

// Visitor implements the visitor pattern for AST traversal
type Visitor interface {
	Visit(node Node) interface{}
}

// NodeVisitorFunc is a function adapter for Visitor interface
type NodeVisitorFunc func(node Node) interface{}

func (f NodeVisitorFunc) Visit(node Node) interface{} {
	return f(node)
}

// Walk traverses the AST depth first. A visitor returning non-nil stops
// the descent into that node's children.
func Walk(visitor Visitor, node Node) {
	if node == nil {
		return
	}
	if visitor.Visit(node) != nil {
		return
	}
	for _, child := range node.GetChildren() {
		Walk(visitor, child)
	}
}

// FindAll collects every node for which match returns true.
func FindAll(node Node, match func(Node) bool) []Node {
	var results []Node
	Walk(NodeVisitorFunc(func(n Node) interface{} {
		if match(n) {
			results = append(results, n)
		}
		return nil
	}), node)
	return results
}

func stmtsAsNodes(stmts []Stmt) []Node {
	out := make([]Node, len(stmts))
	for i, s := range stmts {
		out[i] = s
	}
	return out
}

func exprsAsNodes(exprs ...Expr) []Node {
	out := make([]Node, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}
