// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/loadgraph/loadsim"
	"github.com/loadgraph/loadsim/internal/recording"
)

var (
	recordingFile string
	rttMs         float64
	throughputBps float64
	cpuMultiplier float64
	maxRequests   int
	showWaterfall bool
	showCritical  bool
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "loadsim",
	Short: "Page-load what-if simulator",
	Long: `Replays a recorded page-load dependency graph under configurable
network and CPU throttling and prints the predicted timeline.

The recording file describes the requests, main-thread tasks, and
dependency edges observed during a real page load. The simulator then
predicts how the same page would load under the given round-trip time,
throughput, connection limit, and CPU slowdown.`,
	RunE: runSimulation,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&recordingFile, "recording", "r", "recording.yaml", "Path to the recorded graph file")
	rootCmd.Flags().Float64Var(&rttMs, "rtt", 0, "Round-trip time in ms (0 = recording/default)")
	rootCmd.Flags().Float64Var(&throughputBps, "throughput", 0, "Link throughput in bits/sec (0 = recording/default)")
	rootCmd.Flags().Float64Var(&cpuMultiplier, "cpu-multiplier", 0, "CPU slowdown multiplier (0 = recording/default)")
	rootCmd.Flags().IntVar(&maxRequests, "max-requests", 0, "Maximum concurrent requests (0 = recording/default)")
	rootCmd.Flags().BoolVarP(&showWaterfall, "waterfall", "w", true, "Print the per-node waterfall")
	rootCmd.Flags().BoolVarP(&showCritical, "critical-path", "c", false, "Print the critical path")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print scheduling diagnostics")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	rec, err := recording.Load(recordingFile)
	if err != nil {
		return fmt.Errorf("failed to load recording: %w", err)
	}
	root, err := rec.BuildGraph()
	if err != nil {
		return fmt.Errorf("failed to build graph: %w", err)
	}

	settings := rec.ApplySettings(loadsim.DefaultSettings())
	if rttMs > 0 {
		settings.RTTMs = rttMs
	}
	if throughputBps > 0 {
		settings.ThroughputBps = throughputBps
	}
	if cpuMultiplier > 0 {
		settings.CPUSlowdownMultiplier = cpuMultiplier
	}
	if maxRequests > 0 {
		settings.MaxConcurrentRequests = maxRequests
	}

	sim := loadsim.New(settings)
	if verbose {
		sim.SetDebugf(func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		})
	}

	result, err := sim.Simulate(root)
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	fmt.Printf("Simulated %d nodes from %s\n", len(result.Timings), recordingFile)
	fmt.Printf("  RTT %.0fms, throughput %.0f bit/s, CPU x%.1f, %d concurrent requests\n",
		sim.Settings().RTTMs, sim.Settings().ThroughputBps,
		sim.Settings().CPUSlowdownMultiplier, sim.Settings().MaxConcurrentRequests)
	fmt.Printf("Predicted load time: %.0fms\n\n", result.TimeMs)

	if showWaterfall {
		printWaterfall(result)
	}
	if showCritical {
		printCriticalPath(result)
	}
	return nil
}

func printWaterfall(result *loadsim.Result) {
	type row struct {
		node   loadsim.Node
		timing loadsim.Timing
	}
	rows := make([]row, 0, len(result.Timings))
	for n, t := range result.Timings {
		rows = append(rows, row{n, t})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].timing.StartMs != rows[j].timing.StartMs {
			return rows[i].timing.StartMs < rows[j].timing.StartMs
		}
		return rows[i].node.ID() < rows[j].node.ID()
	})

	fmt.Printf("%-28s %-8s %10s %10s %10s\n", "NODE", "TYPE", "QUEUED", "START", "END")
	for _, r := range rows {
		fmt.Printf("%-28s %-8s %9.0fms %9.0fms %9.0fms\n",
			r.node.ID(), r.node.Type(), r.timing.QueuedMs, r.timing.StartMs, r.timing.EndMs)
	}
	fmt.Println()
}

func printCriticalPath(result *loadsim.Result) {
	fmt.Println("Critical path:")
	for _, n := range result.CriticalPath() {
		t := result.Timings[n]
		fmt.Printf("  %8.0fms  %-8s %s (+%.0fms)\n", t.StartMs, n.Type(), n.ID(), t.DurationMs)
	}
}
