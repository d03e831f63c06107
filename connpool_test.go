// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

package loadsim_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loadgraph/loadsim"
)

func poolSettings() loadsim.Settings {
	s := loadsim.DefaultSettings()
	s.ServerResponseTimeMsByOrigin = map[string]float64{"http://example.com": 500}
	return s
}

func netNode(id, url, connID string, reused bool, protocol string) *loadsim.NetworkNode {
	return loadsim.NewNetworkNode(id, loadsim.Request{
		URL:              url,
		Protocol:         protocol,
		TransferSize:     1000,
		Priority:         loadsim.Medium,
		ConnectionID:     connID,
		ConnectionReused: reused,
	})
}

func TestPoolSeparateConnectionsForSeparateIDs(t *testing.T) {
	chk := require.New(t)
	a := netNode("a", "http://example.com/a", "1", false, "http/1.1")
	b := netNode("b", "http://example.com/b", "2", false, "http/1.1")
	settings := poolSettings()
	pool := loadsim.NewConnectionPool([]*loadsim.NetworkNode{a, b}, &settings)

	ca := pool.Acquire(a)
	cb := pool.Acquire(b)
	chk.NotNil(ca)
	chk.NotNil(cb)
	chk.NotSame(ca, cb)
	chk.Equal(2, pool.ActiveCount())
}

func TestPoolBusyH1ConnectionDefers(t *testing.T) {
	chk := require.New(t)
	a := netNode("a", "http://example.com/a", "1", false, "http/1.1")
	b := netNode("b", "http://example.com/b", "1", false, "http/1.1")
	settings := poolSettings()
	pool := loadsim.NewConnectionPool([]*loadsim.NetworkNode{a, b}, &settings)

	chk.NotNil(pool.Acquire(a))
	chk.Nil(pool.Acquire(b))

	pool.Release(a)
	chk.NotNil(pool.Acquire(b))
}

func TestPoolNoImplicitWarmReuse(t *testing.T) {
	chk := require.New(t)
	a := netNode("a", "http://example.com/a", "1", false, "http/1.1")
	b := netNode("b", "http://example.com/b", "1", false, "http/1.1")
	reusing := netNode("c", "http://example.com/c", "1", true, "http/1.1")
	settings := poolSettings()
	pool := loadsim.NewConnectionPool([]*loadsim.NetworkNode{a, b, reusing}, &settings)

	c := pool.Acquire(a)
	c.SetWarmed(true)
	pool.Release(a)

	// Without an explicit reuse marker the next request observes a cold
	// connection even though the previous one warmed it up.
	chk.False(pool.Acquire(b).IsWarm())
	pool.Release(b)

	c = pool.Acquire(b)
	c.SetWarmed(true)
	pool.Release(b)

	// With the marker, warm-up carries over.
	chk.True(pool.Acquire(reusing).IsWarm())
}

func TestPoolH2Multiplexing(t *testing.T) {
	chk := require.New(t)
	a := netNode("a", "https://example.com/a", "1", false, "h2")
	b := netNode("b", "https://example.com/b", "1", true, "h2")
	settings := poolSettings()
	pool := loadsim.NewConnectionPool([]*loadsim.NetworkNode{a, b}, &settings)

	ca := pool.Acquire(a)
	cb := pool.Acquire(b)
	chk.NotNil(cb)
	chk.Same(ca, cb)
}

func TestPoolAnonymousConnection(t *testing.T) {
	chk := require.New(t)
	a := netNode("a", "http://example.com/a", "", false, "http/1.1")
	settings := poolSettings()
	pool := loadsim.NewConnectionPool([]*loadsim.NetworkNode{a}, &settings)

	c := pool.Acquire(a)
	chk.NotNil(c)
	// Re-acquiring an active node returns its current connection.
	chk.Same(c, pool.Acquire(a))
}

func TestPoolFlexibleOrderingSubstitutesConnection(t *testing.T) {
	chk := require.New(t)
	a := netNode("a", "http://example.com/a", "1", false, "http/1.1")
	b := netNode("b", "http://example.com/b", "1", false, "http/1.1")
	c := netNode("c", "http://example.com/c", "2", false, "http/1.1")
	settings := poolSettings()
	settings.H2FlexibleOrdering = true
	pool := loadsim.NewConnectionPool([]*loadsim.NetworkNode{a, b, c}, &settings)

	chk.NotNil(pool.Acquire(a))
	// Connection 1 is busy, but connection 2 to the same origin is free.
	cb := pool.Acquire(b)
	chk.NotNil(cb)
	chk.Equal("http://example.com", cb.Origin())
}
