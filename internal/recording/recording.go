// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

// Package recording loads recorded page-load graphs from YAML files and
// assembles them into simulatable dependency graphs. The format is the
// offline hand-off between the browser-side recorder and the simulator:
// network requests, main-thread tasks, dependency edges, and optional
// throttling overrides.
package recording

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/loadgraph/loadsim"
)

// Recording is the on-disk description of one recorded page load.
type Recording struct {
	Settings *SettingsOverrides `yaml:"settings,omitempty"`
	Requests []RequestEntry     `yaml:"requests"`
	Tasks    []TaskEntry        `yaml:"tasks,omitempty"`
	Edges    []Edge             `yaml:"edges,omitempty"`
}

// SettingsOverrides carries throttling fields the recording wants to pin;
// unset fields keep the simulator's defaults or CLI-provided values.
type SettingsOverrides struct {
	RTTMs                 float64            `yaml:"rttMs,omitempty"`
	ThroughputBps         float64            `yaml:"throughputBps,omitempty"`
	ObservedThroughputBps float64            `yaml:"observedThroughputBps,omitempty"`
	MaxConcurrentRequests int                `yaml:"maxConcurrentRequests,omitempty"`
	CPUSlowdownMultiplier float64            `yaml:"cpuSlowdownMultiplier,omitempty"`
	DNSRTTMultiplier      float64            `yaml:"dnsRttMultiplier,omitempty"`
	ServerResponseTimeMs  map[string]float64 `yaml:"serverResponseTimeMs,omitempty"`
	AdditionalRTTMs       map[string]float64 `yaml:"additionalRttMs,omitempty"`
	H2FlexibleOrdering    bool               `yaml:"h2FlexibleOrdering,omitempty"`
}

// RequestEntry describes one observed network request.
type RequestEntry struct {
	ID               string  `yaml:"id"`
	URL              string  `yaml:"url"`
	Protocol         string  `yaml:"protocol,omitempty"`
	TransferSize     int64   `yaml:"transferSize"`
	ResourceSize     int64   `yaml:"resourceSize,omitempty"`
	Priority         string  `yaml:"priority,omitempty"`
	FromDiskCache    bool    `yaml:"fromDiskCache,omitempty"`
	ConnectionID     string  `yaml:"connectionId,omitempty"`
	ConnectionReused bool    `yaml:"connectionReused,omitempty"`
	StartMs          float64 `yaml:"startMs"`
	EndMs            float64 `yaml:"endMs"`
}

// TaskEntry describes one observed main-thread task.
type TaskEntry struct {
	ID         string  `yaml:"id"`
	Thread     int     `yaml:"thread"`
	StartMs    float64 `yaml:"startMs"`
	DurationMs float64 `yaml:"durationMs"`
}

// Edge declares that To depends on From: From must finish before To starts.
type Edge struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Load reads and validates a recording file.
func Load(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a recording document.
func Parse(data []byte) (*Recording, error) {
	var rec Recording
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse recording: %w", err)
	}
	if err := validate(&rec); err != nil {
		return nil, fmt.Errorf("invalid recording: %w", err)
	}
	return &rec, nil
}

func validate(rec *Recording) error {
	if len(rec.Requests) == 0 {
		return fmt.Errorf("at least one request is required")
	}
	ids := make(map[string]bool, len(rec.Requests)+len(rec.Tasks))
	for i, req := range rec.Requests {
		if req.ID == "" {
			return fmt.Errorf("request %d: id is required", i)
		}
		if ids[req.ID] {
			return fmt.Errorf("duplicate node id %q", req.ID)
		}
		ids[req.ID] = true
		if req.URL == "" {
			return fmt.Errorf("request %s: url is required", req.ID)
		}
		if req.TransferSize < 0 {
			return fmt.Errorf("request %s: transferSize must not be negative", req.ID)
		}
	}
	for i, task := range rec.Tasks {
		if task.ID == "" {
			return fmt.Errorf("task %d: id is required", i)
		}
		if ids[task.ID] {
			return fmt.Errorf("duplicate node id %q", task.ID)
		}
		ids[task.ID] = true
	}
	for i, edge := range rec.Edges {
		if !ids[edge.From] || !ids[edge.To] {
			return fmt.Errorf("edge %d: both endpoints must name declared nodes", i)
		}
		if edge.From == edge.To {
			return fmt.Errorf("edge %d: node %s cannot depend on itself", i, edge.From)
		}
	}
	return nil
}

// BuildGraph assembles the recording into a dependency graph and returns
// its root: the unique node with no dependencies. Multiple dependency-free
// nodes mean the recording is missing edges and cannot be simulated.
func (rec *Recording) BuildGraph() (loadsim.Node, error) {
	nodes := make(map[string]loadsim.Node, len(rec.Requests)+len(rec.Tasks))
	for _, req := range rec.Requests {
		nodes[req.ID] = loadsim.NewNetworkNode(req.ID, loadsim.Request{
			URL:              req.URL,
			Protocol:         req.Protocol,
			TransferSize:     req.TransferSize,
			ResourceSize:     req.ResourceSize,
			Priority:         loadsim.ParsePriority(req.Priority),
			FromDiskCache:    req.FromDiskCache,
			ConnectionID:     req.ConnectionID,
			ConnectionReused: req.ConnectionReused,
			ObservedStartMs:  req.StartMs,
			ObservedEndMs:    req.EndMs,
		})
	}
	for _, task := range rec.Tasks {
		nodes[task.ID] = loadsim.NewCPUNode(task.ID, loadsim.Task{
			Thread:          task.Thread,
			ObservedStartMs: task.StartMs,
			DurationMs:      task.DurationMs,
		})
	}
	for _, edge := range rec.Edges {
		loadsim.AddDependency(nodes[edge.To], nodes[edge.From])
	}

	var root loadsim.Node
	for _, req := range rec.Requests {
		n := nodes[req.ID]
		if len(n.Dependencies()) == 0 {
			if root != nil {
				return nil, fmt.Errorf("recording has more than one root node (%s and %s)", root.ID(), n.ID())
			}
			root = n
		}
	}
	for _, task := range rec.Tasks {
		n := nodes[task.ID]
		if len(n.Dependencies()) == 0 {
			if root != nil {
				return nil, fmt.Errorf("recording has more than one root node (%s and %s)", root.ID(), n.ID())
			}
			root = n
		}
	}
	if root == nil {
		return nil, fmt.Errorf("recording has no root node; the edge set is cyclic")
	}
	return root, nil
}

// ApplySettings layers the recording's overrides onto base and returns the
// result.
func (rec *Recording) ApplySettings(base loadsim.Settings) loadsim.Settings {
	o := rec.Settings
	if o == nil {
		return base
	}
	if o.RTTMs > 0 {
		base.RTTMs = o.RTTMs
	}
	if o.ThroughputBps > 0 {
		base.ThroughputBps = o.ThroughputBps
	}
	if o.ObservedThroughputBps > 0 {
		base.ObservedThroughputBps = o.ObservedThroughputBps
	}
	if o.MaxConcurrentRequests > 0 {
		base.MaxConcurrentRequests = o.MaxConcurrentRequests
	}
	if o.CPUSlowdownMultiplier > 0 {
		base.CPUSlowdownMultiplier = o.CPUSlowdownMultiplier
	}
	if o.DNSRTTMultiplier > 0 {
		base.DNSResolutionRTTMultiplier = o.DNSRTTMultiplier
	}
	if len(o.ServerResponseTimeMs) > 0 {
		base.ServerResponseTimeMsByOrigin = o.ServerResponseTimeMs
	}
	if len(o.AdditionalRTTMs) > 0 {
		base.AdditionalRTTMsByOrigin = o.AdditionalRTTMs
	}
	if o.H2FlexibleOrdering {
		base.H2FlexibleOrdering = true
	}
	return base
}
