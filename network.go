// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

package loadsim

import (
	"fmt"
	"net/url"
	"strings"
)

// Priority is the fetch priority announced by the browser for a request.
// Higher values are more urgent. It participates only in tie-breaking when
// several requests become eligible at the same virtual-clock instant; it
// never preempts work already in flight.
type Priority int

const (
	VeryLow Priority = iota
	Low
	Medium
	High
	VeryHigh
)

var priorityNames = map[Priority]string{
	VeryLow:  "VeryLow",
	Low:      "Low",
	Medium:   "Medium",
	High:     "High",
	VeryHigh: "VeryHigh",
}

func (p Priority) String() string {
	if s, ok := priorityNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// ParsePriority converts the wire names used by browser network logs
// ("VeryHigh".."VeryLow") into a [Priority]. Unknown names map to
// [Medium], matching how logs treat requests with no announced priority.
func ParsePriority(s string) Priority {
	for p, name := range priorityNames {
		if strings.EqualFold(name, s) {
			return p
		}
	}
	return Medium
}

// Request is the immutable record of one observed network request. The
// observed start and end times order tie-broken admissions; they never feed
// into predicted timing directly.
type Request struct {
	URL           string
	Protocol      string // e.g. "http/1.1", "h2"
	TransferSize  int64  // bytes on the wire
	ResourceSize  int64  // decoded body bytes
	Priority      Priority
	FromDiskCache bool

	// ConnectionID names the real-world connection the request was observed
	// on. ConnectionReused marks requests the browser explicitly served on
	// an already-open connection; without it, concurrent same-origin
	// requests are modeled on separate connections.
	ConnectionID     string
	ConnectionReused bool

	ObservedStartMs float64
	ObservedEndMs   float64
}

// NetworkNode wraps a [Request] in a dependency graph.
type NetworkNode struct {
	baseNode
	Request Request
}

// NewNetworkNode creates a network node with the given stable identity.
func NewNetworkNode(id string, req Request) *NetworkNode {
	return &NetworkNode{baseNode: baseNode{id: id}, Request: req}
}

func (n *NetworkNode) Type() NodeType { return NetworkNodeType }

// Origin returns the scheme://host[:port] prefix of the request URL, or ""
// when the URL does not name a network origin (e.g. data: URIs).
func (n *NetworkNode) Origin() string {
	u, err := url.Parse(n.Request.URL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// IsNonNetwork reports whether the request bypasses the network entirely:
// data: URIs and similar in-memory schemes resolve without a connection.
func (n *NetworkNode) IsNonNetwork() bool {
	scheme, _, ok := strings.Cut(n.Request.URL, ":")
	if !ok {
		return false
	}
	switch strings.ToLower(scheme) {
	case "data", "blob", "about", "filesystem", "chrome", "chrome-extension":
		return true
	default:
		return false
	}
}

// IsSSL reports whether the connection carrying this request performs a TLS
// handshake.
func (n *NetworkNode) IsSSL() bool {
	return strings.HasPrefix(strings.ToLower(n.Request.URL), "https://") ||
		strings.HasPrefix(strings.ToLower(n.Request.URL), "wss://")
}

// IsH2 reports whether the request was served over a multiplexing protocol,
// allowing additional logical streams on an open connection at no handshake
// cost.
func (n *NetworkNode) IsH2() bool {
	switch strings.ToLower(n.Request.Protocol) {
	case "h2", "h3", "http/2", "http/2+quic/43", "spdy/3.1":
		return true
	default:
		return false
	}
}
