// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

// Package loadsim predicts how a recorded page load would behave under a
// different network and CPU condition. The input is a dependency graph of
// work items observed during a real load: network requests and contiguous
// blocks of main-thread execution, wired together by "must finish before"
// edges. Given that graph and a set of resource constraints (round-trip
// time, total throughput, concurrent-request limit, CPU slowdown), the
// simulator computes a synthetic timeline: a start and end time for every
// node plus the total completion time of the whole graph.
//
// Rather than replaying the recorded numbers, the simulator re-derives them
// from first principles. Network requests pay for DNS resolution, TCP and
// TLS handshakes, origin server latency, and a congestion window that grows
// geometrically from its initial size (TCP slow start) toward the fair
// share of the configured throughput. CPU tasks execute one at a time per
// thread, scaled by the configured slowdown multiplier. All of this plays
// out on a virtual clock; a call to [Simulator.Simulate] performs no real
// I/O and spawns no goroutines, so results are fully deterministic and the
// same [Simulator] can be asked many what-if questions in sequence.
//
// The graph is supplied by an external builder (typically derived from a
// network log and an execution trace) and is required to be acyclic;
// Simulate verifies this and fails with [ErrCycleDetected] rather than
// looping. Timing state lives in a per-run side table, never on the nodes
// themselves, so simulating the same graph twice cannot leak state from
// one run into the next.
package loadsim
