// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

package loadsim

// Task is the immutable record of one contiguous block of main-thread
// execution. Tasks on the same thread are mutually exclusive in time: the
// scheduler admits at most one per thread and queues the rest in the order
// their dependencies complete.
type Task struct {
	// Thread identifies the executing thread. All tasks sharing a Thread
	// value form a single sequential queue.
	Thread int
	// ObservedStartMs is the timestamp at which the task was recorded.
	ObservedStartMs float64
	// DurationMs is the observed duration. The simulated duration is this
	// value multiplied by the configured CPU slowdown; non-positive values
	// are clamped to zero rather than rejected.
	DurationMs float64
}

// CPUNode wraps a [Task] in a dependency graph.
type CPUNode struct {
	baseNode
	Task Task
}

// NewCPUNode creates a CPU node with the given stable identity.
func NewCPUNode(id string, task Task) *CPUNode {
	return &CPUNode{baseNode: baseNode{id: id}, Task: task}
}

func (n *CPUNode) Type() NodeType { return CPUNodeType }
