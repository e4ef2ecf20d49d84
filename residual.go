// Copyright 2024 echo304. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package prepack

import "strconv"

// Node is a residual expression: the code a later emission pass writes
// out to recompute an abstract value at run time.
type Node interface {
	String() string
}

// BuildFunc synthesizes the residual node for an abstract value from
// its operands' residual forms. It must be side-effect free; it is
// called at most once per abstract value (the result is memoized).
type BuildFunc func(operands []Node) Node

// IdentNode re-emits as a bare identifier.
type IdentNode struct {
	Name string
}

func (n IdentNode) String() string { return n.Name }

// LiteralNode re-emits a concrete value as a literal.
type LiteralNode struct {
	Value Value
}

func (n LiteralNode) String() string {
	if n.Value.kind == strKind {
		return strconv.Quote(n.Value.strVal)
	}
	return toString(n.Value)
}

// BinaryNode re-emits a binary operator application.
type BinaryNode struct {
	Op    Op
	Left  Node
	Right Node
}

func (n BinaryNode) String() string {
	return group(n.Left) + " " + string(n.Op) + " " + group(n.Right)
}

// UnaryNode re-emits a prefix operator application.
type UnaryNode struct {
	Op      string
	Operand Node
}

func (n UnaryNode) String() string {
	return n.Op + group(n.Operand)
}

// CondNode re-emits a conditional expression.
type CondNode struct {
	Cond Node
	Then Node
	Else Node
}

func (n CondNode) String() string {
	return group(n.Cond) + " ? " + group(n.Then) + " : " + group(n.Else)
}

// group parenthesizes compound children so the rendered source keeps
// the tree's grouping regardless of operator precedence.
func group(n Node) string {
	switch n := n.(type) {
	case BinaryNode:
		return "(" + n.String() + ")"
	case CondNode:
		return "(" + n.String() + ")"
	default:
		return n.String()
	}
}

// Residual returns the expression that recomputes the value at run
// time. Concrete values render as literals; an abstract value invokes
// its builder on the residuals of its operands, exactly once.
func (a Value) Residual() Node {
	if a.kind != abstractKind {
		return LiteralNode{Value: a}
	}
	if a.abs.node == nil {
		args := make([]Node, len(a.abs.Args))
		for i, v := range a.abs.Args {
			args[i] = v.Residual()
		}
		a.abs.node = a.abs.build(args)
	}
	return a.abs.node
}
