// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

package loadsim_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/loadgraph/loadsim"
)

// randomGraph draws a connected acyclic dependency graph. Node 0 is always
// the root document request; every later node depends on at least one
// earlier node, so the whole graph is reachable from the root.
func randomGraph(t *rapid.T) []loadsim.Node {
	origins := []string{"http://example.com", "https://cdn.example", "https://api.example"}
	protocols := []string{"http/1.1", "h2"}

	n := rapid.IntRange(1, 25).Draw(t, "nodeCount")
	nodes := make([]loadsim.Node, 0, n)

	rootReq := loadsim.Request{
		URL:          "http://example.com/",
		Protocol:     "http/1.1",
		TransferSize: 12000,
		Priority:     loadsim.VeryHigh,
		ConnectionID: "0",
	}
	nodes = append(nodes, loadsim.NewNetworkNode("n0", rootReq))

	for i := 1; i < n; i++ {
		id := fmt.Sprintf("n%d", i)
		var node loadsim.Node
		if rapid.Bool().Draw(t, "isCPU") {
			node = loadsim.NewCPUNode(id, loadsim.Task{
				Thread:     rapid.IntRange(1, 3).Draw(t, "thread"),
				DurationMs: float64(rapid.IntRange(0, 500).Draw(t, "duration")),
			})
		} else {
			origin := rapid.SampledFrom(origins).Draw(t, "origin")
			req := loadsim.Request{
				URL:             origin + "/" + id,
				Protocol:        rapid.SampledFrom(protocols).Draw(t, "protocol"),
				TransferSize:    int64(rapid.IntRange(0, 200000).Draw(t, "transferSize")),
				Priority:        loadsim.Priority(rapid.IntRange(0, 4).Draw(t, "priority")),
				ConnectionID:    fmt.Sprintf("%s#%d", origin, rapid.IntRange(0, 2).Draw(t, "connectionID")),
				ObservedStartMs: float64(rapid.IntRange(0, 5000).Draw(t, "observedStart")),
			}
			if rapid.Bool().Draw(t, "reused") {
				req.ConnectionReused = true
			}
			if rapid.IntRange(0, 9).Draw(t, "diskCache") == 0 {
				req.FromDiskCache = true
				req.ResourceSize = req.TransferSize
			}
			node = loadsim.NewNetworkNode(id, req)
		}
		depCount := rapid.IntRange(1, min(3, i)).Draw(t, "depCount")
		seen := map[int]bool{}
		for d := 0; d < depCount; d++ {
			j := rapid.IntRange(0, i-1).Draw(t, "dep")
			if seen[j] {
				continue
			}
			seen[j] = true
			loadsim.AddDependency(node, nodes[j])
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func TestBySimulation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chk := require.New(t)

		nodes := randomGraph(t)
		root := nodes[0]

		settings := loadsim.DefaultSettings()
		settings.MaxConcurrentRequests = rapid.IntRange(1, 10).Draw(t, "maxRequests")
		settings.H2FlexibleOrdering = rapid.Bool().Draw(t, "flexibleOrdering")

		sim := loadsim.New(settings)
		result, err := sim.Simulate(root)
		chk.NoError(err)
		chk.False(math.IsInf(result.TimeMs, 0) || math.IsNaN(result.TimeMs))
		chk.GreaterOrEqual(result.TimeMs, 0.0)

		maxEnd := 0.0
		for _, node := range nodes {
			timing, ok := result.Timings[node]
			chk.True(ok, "no timing recorded for %s", node.ID())
			chk.GreaterOrEqual(timing.QueuedMs, 0.0)
			chk.GreaterOrEqual(timing.StartMs, timing.QueuedMs)
			chk.GreaterOrEqual(timing.EndMs, timing.StartMs)
			maxEnd = max(maxEnd, timing.EndMs)

			// A node can only be queued once everything it depends on has
			// finished.
			for _, dep := range node.Dependencies() {
				chk.GreaterOrEqual(timing.QueuedMs, result.Timings[dep].EndMs,
					"%s queued before dependency %s finished", node.ID(), dep.ID())
			}
		}
		chk.Equal(maxEnd, result.TimeMs)

		// The same graph through the same simulator must reproduce exactly.
		again, err := sim.Simulate(root)
		chk.NoError(err)
		chk.Equal(result.TimeMs, again.TimeMs)
		for _, node := range nodes {
			chk.Equal(result.Timings[node], again.Timings[node])
		}

		// A full clone is an independent graph with identical behavior.
		clone := loadsim.CloneWithRelationships(root, nil)
		cloneResult, err := sim.Simulate(clone)
		chk.NoError(err)
		chk.Equal(result.TimeMs, cloneResult.TimeMs)

		// The critical path must be a real dependency chain ending at the
		// node that determines the overall time.
		path := result.CriticalPath()
		chk.NotEmpty(path)
		chk.Equal(result.TimeMs, result.Timings[path[len(path)-1]].EndMs)
		for i := 1; i < len(path); i++ {
			chk.Contains(path[i].Dependencies(), path[i-1])
		}
	})
}
