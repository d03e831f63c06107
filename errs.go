// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

package loadsim

type constError string

func (e constError) Error() string {
	return string(e)
}

// ErrCycleDetected is returned by [Simulator.Simulate] when the dependency
// graph reachable from the root node contains a cycle. The run is aborted
// with no partial result.
const ErrCycleDetected = constError("dependency graph contains a cycle")

// ErrNoProgress indicates that the scheduler could not start any node even
// though work remains. It cannot occur for graphs produced by a conforming
// builder and exists to guarantee termination instead of looping.
const ErrNoProgress = constError("simulation failed to start a node")
