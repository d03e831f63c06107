// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

package loadsim

import (
	"github.com/gammazero/deque"
)

// TraverseFrom visits every node reachable from root along dependent edges,
// breadth first, calling visit exactly once per node. Traversal tolerates
// cycles (each node is visited once), so it is safe to call before the
// graph has been validated.
func TraverseFrom(root Node, visit func(Node)) {
	seen := map[Node]bool{root: true}
	var queue deque.Deque[Node]
	queue.PushBack(root)
	for queue.Len() > 0 {
		node := queue.PopFront()
		visit(node)
		for _, dep := range node.Dependents() {
			if !seen[dep] {
				seen[dep] = true
				queue.PushBack(dep)
			}
		}
	}
}

// ReachableFrom returns the closure of all nodes reachable from root,
// including root itself, in breadth-first order.
func ReachableFrom(root Node) []Node {
	var nodes []Node
	TraverseFrom(root, func(n Node) {
		nodes = append(nodes, n)
	})
	return nodes
}

// DFS coloring for cycle detection.
const (
	colorWhite = iota // unvisited
	colorGrey         // on the current path
	colorBlack        // fully explored
)

// HasCycle reports whether any dependency cycle exists among the nodes
// reachable from root. It runs an iterative depth-first search with
// white/grey/black coloring over dependent edges and never recurses, so it
// is safe on arbitrarily deep graphs.
func HasCycle(root Node) bool {
	color := make(map[Node]int)

	type frame struct {
		node Node
		next int
	}
	var stack []frame

	for _, start := range ReachableFrom(root) {
		if color[start] != colorWhite {
			continue
		}
		color[start] = colorGrey
		stack = append(stack[:0], frame{node: start})
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			dependents := top.node.Dependents()
			if top.next < len(dependents) {
				child := dependents[top.next]
				top.next++
				switch color[child] {
				case colorGrey:
					return true
				case colorWhite:
					color[child] = colorGrey
					stack = append(stack, frame{node: child})
				}
				continue
			}
			color[top.node] = colorBlack
			stack = stack[:len(stack)-1]
		}
	}
	return false
}

// CloneWithRelationships produces an independent copy of the subgraph
// reachable from root, keeping every node for which keep returns true along
// with all of its ancestors (so each kept node remains reachable from the
// cloned root). A nil keep clones the whole graph. Edges between retained
// nodes are preserved; cloned nodes share no structure with the originals,
// so the clone can be simulated or mutated freely.
//
// What-if callers use this to ask questions like "how fast would the page
// load without these requests" by cloning with a filtering predicate.
func CloneWithRelationships(root Node, keep func(Node) bool) Node {
	reachable := ReachableFrom(root)

	include := make(map[Node]bool, len(reachable))
	if keep == nil {
		for _, n := range reachable {
			include[n] = true
		}
	} else {
		// Mark kept nodes, then walk each one's dependency ancestry so the
		// paths connecting them to the root survive the clone.
		var stack []Node
		for _, n := range reachable {
			if keep(n) {
				stack = append(stack, n)
			}
		}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if include[n] {
				continue
			}
			include[n] = true
			stack = append(stack, n.Dependencies()...)
		}
	}
	include[root] = true

	clones := make(map[Node]Node, len(include))
	cloneOf := func(n Node) Node {
		if c, ok := clones[n]; ok {
			return c
		}
		var c Node
		switch n := n.(type) {
		case *NetworkNode:
			c = NewNetworkNode(n.ID(), n.Request)
		case *CPUNode:
			c = NewCPUNode(n.ID(), n.Task)
		default:
			panic("loadsim: unknown node type")
		}
		clones[n] = c
		return c
	}

	for _, n := range reachable {
		if !include[n] {
			continue
		}
		c := cloneOf(n)
		for _, dep := range n.Dependencies() {
			if include[dep] {
				AddDependency(c, cloneOf(dep))
			}
		}
	}
	return clones[root]
}
