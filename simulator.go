// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

package loadsim

import (
	"cmp"
	"math"
	"slices"

	"github.com/addrummond/heap"
	"github.com/gammazero/deque"

	"github.com/loadgraph/loadsim/internal/minheap"
)

const (
	// maxCPUTaskDurationMs caps a single simulated CPU task. Traces
	// occasionally contain pathological multi-second tasks; letting one
	// dominate the timeline hides everything else.
	maxCPUTaskDurationMs = 10_000

	// diskCacheSeekMs and diskCacheMsPerMB approximate seeking to a cached
	// resource on disk and reading it sequentially.
	diskCacheSeekMs  = 8
	diskCacheMsPerMB = 20
	dataURIBaseMs    = 2
	dataURIMsPerMB   = 10
	bytesPerMB       = 1024 * 1024
)

// Simulator predicts the timeline of a dependency graph under one set of
// resource constraints. A single Simulator can run many graphs (or the same
// graph repeatedly): every [Simulator.Simulate] call builds its own
// connection pool, DNS cache, and timing table, so runs are deterministic
// and isolated.
type Simulator struct {
	settings Settings
	// throughputBps is the effective link throughput for the network model;
	// unlike Settings.ThroughputBps it is never zero.
	throughputBps float64
	dns           *DNSCache
	debugf        func(format string, args ...any)
}

// New creates a Simulator for the given settings. Unset settings fields
// take their defaults.
func New(settings Settings) *Simulator {
	normalized := settings.withDefaults()
	throughput := normalized.ThroughputBps
	if throughput <= 0 {
		throughput = DefaultThroughputBps
	}
	return &Simulator{
		settings:      normalized,
		throughputBps: throughput,
	}
}

// Settings returns the simulator's normalized settings.
func (s *Simulator) Settings() Settings { return s.settings }

// SetDNSCache installs a warm DNS cache to be shared by subsequent runs,
// for callers chaining simulations that model one continuing browsing
// session. Passing nil restores the default of a fresh cache per run; the
// caller owns the consistency of any shared cache.
func (s *Simulator) SetDNSCache(c *DNSCache) { s.dns = c }

// SetDebugf installs a printf-style sink for scheduling diagnostics. No
// diagnostics are produced when unset.
func (s *Simulator) SetDebugf(f func(format string, args ...any)) { s.debugf = f }

func (s *Simulator) logf(format string, args ...any) {
	if s.debugf != nil {
		s.debugf(format, args...)
	}
}

// queuedRequest orders eligible network nodes for admission: earliest
// observed start first, then highest announced priority, then node ID so
// that ordering is total.
type queuedRequest struct {
	node *NetworkNode
}

func (a *queuedRequest) Cmp(b *queuedRequest) int {
	if d := cmp.Compare(a.node.Request.ObservedStartMs, b.node.Request.ObservedStartMs); d != 0 {
		return d
	}
	if d := cmp.Compare(b.node.Request.Priority, a.node.Request.Priority); d != 0 {
		return d
	}
	return cmp.Compare(a.node.ID(), b.node.ID())
}

// activeNode is a heap entry for one in-progress node, ordered by estimated
// clock time until completion.
type activeNode struct {
	node    Node
	timing  *nodeTiming
	heapPos int
}

func (a *activeNode) Less(b *activeNode) bool {
	if a.timing.estimatedRemainingMs != b.timing.estimatedRemainingMs {
		return a.timing.estimatedRemainingMs < b.timing.estimatedRemainingMs
	}
	return a.node.ID() < b.node.ID()
}

func (a *activeNode) SetPosition(i int) { a.heapPos = i }
func (a *activeNode) Position() int     { return a.heapPos }

// run holds all state for one Simulate call.
type run struct {
	sim     *Simulator
	pool    *ConnectionPool
	dns     *DNSCache
	timings map[Node]*nodeTiming

	clockMs float64

	readyNetwork heap.Heap[queuedRequest, heap.Min]
	readyCount   int // ready nodes of both kinds, including deferred
	deferred     []*NetworkNode

	cpuQueues   map[int]*deque.Deque[*CPUNode]
	cpuThreads  []int // keys of cpuQueues in ascending order
	cpuBusy     map[int]bool
	activeOrder []*activeNode
	activeHeap  minheap.Heap[*activeNode]
	networkBusy int
}

// Simulate computes the predicted timeline of the graph reachable from
// root. It fails with [ErrCycleDetected] when the graph contains a cycle
// and never otherwise; configuration gaps fall back to defaults and
// degenerate durations are clamped to zero.
func (s *Simulator) Simulate(root Node) (*Result, error) {
	if HasCycle(root) {
		return nil, ErrCycleDetected
	}

	nodes := ReachableFrom(root)
	var networkNodes []*NetworkNode
	for _, n := range nodes {
		if nn, ok := n.(*NetworkNode); ok {
			networkNodes = append(networkNodes, nn)
		}
	}

	dns := s.dns
	if dns == nil {
		dns = NewDNSCache(s.settings.RTTMs, s.settings.DNSResolutionRTTMultiplier)
	}

	r := &run{
		sim:       s,
		pool:      NewConnectionPool(networkNodes, &s.settings),
		dns:       dns,
		timings:   make(map[Node]*nodeTiming, len(nodes)),
		cpuQueues: make(map[int]*deque.Deque[*CPUNode]),
		cpuBusy:   make(map[int]bool),
	}
	for _, n := range nodes {
		r.timings[n] = &nodeTiming{}
	}

	r.markReady(root, 0)

	// Every pass completes at least the node with the smallest remaining
	// estimate, so a run can never need more passes than it has nodes.
	for iter := 0; r.readyCount > 0 || len(r.activeOrder) > 0; iter++ {
		if iter > len(nodes) {
			return nil, ErrNoProgress
		}

		r.admit()
		if len(r.activeOrder) == 0 {
			return nil, ErrNoProgress
		}

		r.pool.SetFairShares(s.throughputBps)

		periodMs := r.nextCompletionIn()
		if math.IsInf(periodMs, 0) || math.IsNaN(periodMs) {
			return nil, ErrNoProgress
		}
		r.clockMs += periodMs
		s.logf("t=%.1fms advancing %.1fms across %d active nodes", r.clockMs, periodMs, len(r.activeOrder))

		// Completions mutate activeOrder; walk a snapshot.
		active := append([]*activeNode(nil), r.activeOrder...)
		for _, a := range active {
			r.updateProgress(a, periodMs)
		}
	}

	result := &Result{
		TimeMs:  r.clockMs,
		Timings: make(map[Node]Timing, len(nodes)),
	}
	for n, t := range r.timings {
		if t.state != stateComplete {
			return nil, ErrNoProgress
		}
		result.Timings[n] = Timing{
			QueuedMs:   t.queuedMs,
			StartMs:    t.startMs,
			EndMs:      t.endMs,
			DurationMs: t.endMs - t.startMs,
		}
	}
	return result, nil
}

func (r *run) markReady(n Node, atMs float64) {
	t := r.timings[n]
	t.state = stateReady
	t.queuedMs = atMs
	r.readyCount++
	switch n := n.(type) {
	case *NetworkNode:
		heap.PushOrderable(&r.readyNetwork, queuedRequest{node: n})
	case *CPUNode:
		q := r.cpuQueues[n.Task.Thread]
		if q == nil {
			q = new(deque.Deque[*CPUNode])
			r.cpuQueues[n.Task.Thread] = q
			i, _ := slices.BinarySearch(r.cpuThreads, n.Task.Thread)
			r.cpuThreads = slices.Insert(r.cpuThreads, i, n.Task.Thread)
		}
		q.PushBack(n)
	}
}

// admit moves as many ready nodes into progress as resource limits allow:
// one CPU task per thread, and network requests up to the concurrency limit
// with an available connection.
func (r *run) admit() {
	// Threads are visited in ascending order so that admission, and with it
	// the order dependents later join shared queues, is the same on every
	// run.
	for _, thread := range r.cpuThreads {
		q := r.cpuQueues[thread]
		if r.cpuBusy[thread] || q.Len() == 0 {
			continue
		}
		r.start(q.PopFront())
	}

	r.deferred = r.deferred[:0]
	for r.networkBusy < r.sim.settings.MaxConcurrentRequests && heap.Len(&r.readyNetwork) > 0 {
		qr, _ := heap.PopOrderable(&r.readyNetwork)
		n := qr.node
		if n.IsNonNetwork() || n.Request.FromDiskCache {
			r.start(n)
			continue
		}
		if r.pool.Acquire(n) == nil {
			// Connection busy; retry after the next release. Deferral never
			// blocks nodes already in progress, so the run still advances.
			r.deferred = append(r.deferred, n)
			continue
		}
		r.start(n)
	}
	for _, n := range r.deferred {
		heap.PushOrderable(&r.readyNetwork, queuedRequest{node: n})
	}
}

func (r *run) start(n Node) {
	t := r.timings[n]
	t.state = stateInProgress
	t.startMs = r.clockMs
	r.readyCount--
	a := &activeNode{node: n, timing: t}
	r.activeOrder = append(r.activeOrder, a)
	switch n := n.(type) {
	case *NetworkNode:
		if !n.IsNonNetwork() && !n.Request.FromDiskCache {
			r.networkBusy++
		}
	case *CPUNode:
		r.cpuBusy[n.Task.Thread] = true
	}
	r.sim.logf("t=%.1fms starting %s node %s", r.clockMs, n.Type(), n.ID())
}

// nextCompletionIn re-estimates every active node and returns the smallest
// clock time until one of them completes. Estimates are recomputed each
// round because the fair throughput share shifts as network concurrency
// changes.
func (r *run) nextCompletionIn() float64 {
	for _, a := range r.activeOrder {
		a.timing.estimatedRemainingMs = r.estimateRemaining(a)
		r.activeHeap.Push(a)
	}
	return r.activeHeap.Peek().timing.estimatedRemainingMs
}

// estimateRemaining returns the clock time until a's completion assuming
// current resource shares hold.
func (r *run) estimateRemaining(a *activeNode) float64 {
	t := a.timing
	var remaining float64
	switch n := a.node.(type) {
	case *CPUNode:
		remaining = cpuTaskDurationMs(n, r.sim.settings.CPUSlowdownMultiplier) - t.elapsedMs
	case *NetworkNode:
		switch {
		case n.Request.FromDiskCache:
			sizeMB := float64(n.Request.ResourceSize) / bytesPerMB
			remaining = diskCacheSeekMs + diskCacheMsPerMB*sizeMB - t.elapsedMs
		case n.IsNonNetwork():
			sizeMB := float64(n.Request.ResourceSize) / bytesPerMB
			remaining = dataURIBaseMs + dataURIMsPerMB*sizeMB - t.elapsedMs
		default:
			conn := r.pool.Acquire(n)
			dnsMs := r.dns.TimeUntilResolved(n.Origin(), t.startMs)
			progress := conn.SimulateDownloadUntil(
				n.Request.TransferSize-t.bytesDownloaded,
				t.elapsedMs,
				math.Inf(1),
				dnsMs,
			)
			remaining = progress.TimeElapsedMs
		}
	}
	// overshootMs is how far the node's own work ran ahead of the clock;
	// the clock still has to catch up before the node can finish.
	return math.Max(remaining, 0) + t.overshootMs
}

// updateProgress applies one scheduling period to an active node,
// completing it when its estimate says the period covers the rest of its
// work.
func (r *run) updateProgress(a *activeNode, periodMs float64) {
	t := a.timing
	finished := t.estimatedRemainingMs <= periodMs+1e-9

	n, isNetwork := a.node.(*NetworkNode)
	if !isNetwork || n.Request.FromDiskCache || n.IsNonNetwork() {
		if finished {
			r.complete(a)
		} else {
			t.elapsedMs += periodMs
		}
		return
	}

	conn := r.pool.Acquire(n)
	dnsMs := r.dns.TimeUntilResolved(n.Origin(), t.startMs)
	progress := conn.SimulateDownloadUntil(
		n.Request.TransferSize-t.bytesDownloaded,
		t.elapsedMs,
		periodMs-t.overshootMs,
		dnsMs,
	)
	conn.SetCongestionWindow(progress.CongestionWindow)
	conn.SetH2OverflowBytes(progress.ExtraBytes)

	if finished {
		conn.SetWarmed(true)
		r.pool.Release(n)
		r.complete(a)
		return
	}
	t.elapsedMs += progress.TimeElapsedMs
	t.overshootMs += progress.TimeElapsedMs - periodMs
	// The consumed overflow credit counts as progress too: SetH2OverflowBytes
	// above replaced it, so it must not be charged again next period.
	t.bytesDownloaded += progress.BytesDownloaded + progress.CreditedBytes
}

func (r *run) complete(a *activeNode) {
	t := a.timing
	t.state = stateComplete
	t.endMs = r.clockMs

	for i, other := range r.activeOrder {
		if other == a {
			r.activeOrder = append(r.activeOrder[:i], r.activeOrder[i+1:]...)
			break
		}
	}
	r.activeHeap.Remove(a)

	switch n := a.node.(type) {
	case *NetworkNode:
		if !n.IsNonNetwork() && !n.Request.FromDiskCache {
			r.networkBusy--
		}
	case *CPUNode:
		r.cpuBusy[n.Task.Thread] = false
	}
	r.sim.logf("t=%.1fms completed %s node %s", r.clockMs, a.node.Type(), a.node.ID())

	for _, dep := range a.node.Dependents() {
		if r.timings[dep].state != stateNotReady {
			continue
		}
		allDone := true
		for _, d := range dep.Dependencies() {
			if r.timings[d].state != stateComplete {
				allDone = false
				break
			}
		}
		if allDone {
			r.markReady(dep, r.clockMs)
		}
	}
}

// cpuTaskDurationMs converts an observed task duration to simulated time:
// scaled by the slowdown multiplier, clamped below at zero and above at the
// task-duration cap.
func cpuTaskDurationMs(n *CPUNode, multiplier float64) float64 {
	d := n.Task.DurationMs * multiplier
	if d <= 0 {
		return 0
	}
	return math.Min(d, maxCPUTaskDurationMs)
}

// CriticalPath returns the chain of nodes whose durations determine the
// total simulated time, ending at the node that finishes last. Useful for
// attributing the predicted load time to individual resources and tasks.
func (r *Result) CriticalPath() []Node {
	var last Node
	for n, t := range r.Timings {
		if last == nil || t.EndMs > r.Timings[last].EndMs ||
			(t.EndMs == r.Timings[last].EndMs && n.ID() < last.ID()) {
			last = n
		}
	}
	if last == nil {
		return nil
	}

	var path []Node
	for n := last; n != nil; {
		path = append(path, n)
		var next Node
		for _, dep := range n.Dependencies() {
			if next == nil || r.Timings[dep].EndMs > r.Timings[next].EndMs ||
				(r.Timings[dep].EndMs == r.Timings[next].EndMs && dep.ID() < next.ID()) {
				next = dep
			}
		}
		n = next
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
