// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

package loadsim

// NodeType distinguishes the two kinds of work item in a dependency graph.
// The set is closed: the scheduler selects behavior with a type switch over
// the concrete node types rather than virtual dispatch.
type NodeType int

const (
	// NetworkNodeType marks a node wrapping a recorded network request.
	NetworkNodeType NodeType = iota
	// CPUNodeType marks a node wrapping a block of main-thread execution.
	CPUNodeType
)

func (t NodeType) String() string {
	switch t {
	case NetworkNodeType:
		return "network"
	case CPUNodeType:
		return "cpu"
	default:
		return "unknown"
	}
}

// A Node is a unit of recorded work in a dependency graph: either a
// [*NetworkNode] or a [*CPUNode]. Nodes carry identity and structure only;
// predicted timing is scoped to a simulation run and lives in the
// [Result] returned by [Simulator.Simulate], never on the node itself.
//
// Edge bookkeeping is symmetric: [AddDependency] records both directions of
// the relationship, so a node's Dependents always mirrors its dependencies'
// Dependencies.
type Node interface {
	// ID returns the node's stable identity within its graph.
	ID() string
	// Type reports whether the node is network or CPU work.
	Type() NodeType
	// Dependencies returns the nodes that must complete before this one may
	// start. The returned slice is owned by the node; callers must not
	// modify it.
	Dependencies() []Node
	// Dependents returns the nodes waiting on this one.
	Dependents() []Node

	base() *baseNode
}

// baseNode carries the structure shared by both node kinds.
type baseNode struct {
	id         string
	deps       []Node
	dependents []Node
}

func (b *baseNode) ID() string           { return b.id }
func (b *baseNode) Dependencies() []Node { return b.deps }
func (b *baseNode) Dependents() []Node   { return b.dependents }
func (b *baseNode) base() *baseNode      { return b }

// AddDependency records that node depends on dep: dep must complete before
// node may start. The reverse dependent edge is recorded at the same time.
// Self-edges panic immediately since they could never be satisfied;
// duplicate edges are ignored.
func AddDependency(node, dep Node) {
	if node == dep {
		panic("loadsim: node cannot depend on itself")
	}
	nb := node.base()
	for _, d := range nb.deps {
		if d == dep {
			return
		}
	}
	nb.deps = append(nb.deps, dep)
	db := dep.base()
	db.dependents = append(db.dependents, node)
}

// RemoveDependency removes the edge recorded by [AddDependency], in both
// directions. Removing an edge that does not exist is a no-op.
func RemoveDependency(node, dep Node) {
	nb := node.base()
	for i, d := range nb.deps {
		if d == dep {
			nb.deps = append(nb.deps[:i], nb.deps[i+1:]...)
			break
		}
	}
	db := dep.base()
	for i, d := range db.dependents {
		if d == node {
			db.dependents = append(db.dependents[:i], db.dependents[i+1:]...)
			break
		}
	}
}
