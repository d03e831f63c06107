// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

package loadsim

// Timing is the predicted schedule of one node, in milliseconds relative to
// simulation start.
type Timing struct {
	// QueuedMs is when the node's last dependency completed and it became
	// eligible to start.
	QueuedMs float64
	// StartMs is when resource limits allowed the node to begin.
	StartMs float64
	// EndMs is when the node's work completed.
	EndMs float64
	// DurationMs is EndMs - StartMs.
	DurationMs float64
}

// Result is the outcome of one simulation run.
type Result struct {
	// TimeMs is the total predicted duration of the graph: the maximum end
	// time over all nodes.
	TimeMs float64
	// Timings maps every node reachable from the root to its predicted
	// schedule.
	Timings map[Node]Timing
}

// nodeState tracks a node through one run.
type nodeState int

const (
	stateNotReady nodeState = iota
	stateReady
	stateInProgress
	stateComplete
)

// nodeTiming is the per-run scratch for one node. It lives in a side table
// keyed by node, created fresh for every Simulate call, so nodes themselves
// stay immutable and runs cannot contaminate each other.
type nodeTiming struct {
	state    nodeState
	queuedMs float64
	startMs  float64
	endMs    float64

	// elapsedMs is time the node has spent on its own work. For network
	// nodes it can run ahead of the clock by overshootMs when a round trip
	// straddles a scheduling period boundary; the overshoot is amortized
	// against later periods.
	elapsedMs   float64
	overshootMs float64
	// bytesDownloaded is payload delivered so far for network nodes.
	bytesDownloaded int64
	// estimatedRemainingMs is the clock time until completion computed in
	// the current scheduling round.
	estimatedRemainingMs float64
}
