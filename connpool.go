// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

package loadsim

import (
	"fmt"
	"math"
)

// ConnectionPool owns every simulated connection for one run. It answers
// "which connection carries this request", enforcing real browser behavior:
// a request rides an existing connection only when its record explicitly
// says so (or when H2 flexible ordering applies), and two concurrent
// same-origin requests without reuse markers get separate connections.
type ConnectionPool struct {
	settings *Settings

	connByID     map[string]*Connection
	connByOrigin map[string][]*Connection
	active       map[*NetworkNode]*Connection
	anonSeq      int
}

// NewConnectionPool builds the pool for the given network nodes, creating
// one cold connection per distinct observed connection ID. Nodes without an
// ID are assigned private connections on acquisition.
func NewConnectionPool(nodes []*NetworkNode, settings *Settings) *ConnectionPool {
	p := &ConnectionPool{
		settings:     settings,
		connByID:     make(map[string]*Connection),
		connByOrigin: make(map[string][]*Connection),
		active:       make(map[*NetworkNode]*Connection),
	}
	for _, n := range nodes {
		id := n.Request.ConnectionID
		if id == "" || n.IsNonNetwork() || n.Request.FromDiskCache {
			continue
		}
		if existing := p.connByID[id]; existing != nil {
			// An h1 connection observed carrying any multiplexed-protocol
			// request is promoted; the reverse never happens.
			if n.IsH2() {
				existing.h2 = true
			}
			continue
		}
		p.addConnection(id, n)
	}
	return p
}

func (p *ConnectionPool) addConnection(id string, n *NetworkNode) *Connection {
	origin := n.Origin()
	c := NewConnection(
		origin,
		p.settings.rttMsForOrigin(origin),
		p.settings.serverResponseTimeMs(origin),
		n.IsSSL(),
		n.IsH2(),
	)
	p.connByID[id] = c
	p.connByOrigin[origin] = append(p.connByOrigin[origin], c)
	return c
}

// Acquire reserves a connection for node, or returns nil when every usable
// connection is busy and the node must wait for a release. Acquiring on
// behalf of an already-active node returns its current connection, which is
// how the scheduler re-finds connections mid-download.
func (p *ConnectionPool) Acquire(node *NetworkNode) *Connection {
	if c := p.active[node]; c != nil {
		return c
	}

	c := p.connByID[node.Request.ConnectionID]
	if c == nil {
		// No observed connection: the request opens its own.
		p.anonSeq++
		c = p.addConnection(fmt.Sprintf("anon#%d", p.anonSeq), node)
	}

	reused := node.Request.ConnectionReused
	if p.settings.H2FlexibleOrdering && c.h2 {
		// Multiplexed origins may reorder independent downloads freely.
		reused = true
	}

	switch {
	case c.inUse == 0:
		// Free connection. A request without a reuse marker must not
		// inherit another request's warm-up; it observes a cold start.
		if c.warmed && !reused {
			c.SetWarmed(false)
			c.SetCongestionWindow(initialCongestionWindow)
			c.SetH2OverflowBytes(0)
		}
	case c.h2:
		// Busy H2 connection: new logical stream, no handshake.
	default:
		// Busy h1 connection; under flexible ordering any other free
		// connection to the origin may substitute.
		if !p.settings.H2FlexibleOrdering {
			return nil
		}
		c = p.freeConnectionTo(c.origin)
		if c == nil {
			return nil
		}
	}

	c.inUse++
	p.active[node] = c
	return c
}

func (p *ConnectionPool) freeConnectionTo(origin string) *Connection {
	var fallback *Connection
	for _, c := range p.connByOrigin[origin] {
		if c.inUse > 0 {
			continue
		}
		if c.warmed {
			return c
		}
		if fallback == nil {
			fallback = c
		}
	}
	return fallback
}

// Release returns node's connection to the pool. The caller is responsible
// for warming the connection and carrying its congestion window forward
// first.
func (p *ConnectionPool) Release(node *NetworkNode) {
	c := p.active[node]
	if c == nil {
		return
	}
	c.inUse--
	delete(p.active, node)
}

// ActiveCount returns the number of requests currently holding connections.
func (p *ConnectionPool) ActiveCount() int {
	return len(p.active)
}

// SetFairShares divides the total throughput across all connections with
// active requests for the next scheduling period. Each in-flight request
// contributes one share; the congestion-window ceiling then limits how much
// of a share a freshly opened connection can actually use, which is what
// weights the split toward connections that have already ramped up.
func (p *ConnectionPool) SetFairShares(totalBps float64) {
	n := len(p.active)
	if n == 0 {
		return
	}
	share := totalBps / float64(n)
	for _, c := range p.active {
		c.SetThroughput(math.Max(share, 1))
	}
}
