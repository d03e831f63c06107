// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

package loadsim_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loadgraph/loadsim"
)

func TestDNSCacheColdLookup(t *testing.T) {
	chk := require.New(t)
	cache := loadsim.NewDNSCache(150, 2)

	chk.Equal(300.0, cache.TimeUntilResolved("http://example.com", 0))
}

func TestDNSCacheInFlightCoalescing(t *testing.T) {
	chk := require.New(t)
	cache := loadsim.NewDNSCache(150, 2)

	chk.Equal(300.0, cache.TimeUntilResolved("http://example.com", 0))
	// A request issued mid-resolution waits for the same completion instant.
	chk.Equal(200.0, cache.TimeUntilResolved("http://example.com", 100))
	// After resolution the lookup is free.
	chk.Equal(0.0, cache.TimeUntilResolved("http://example.com", 300))
	chk.Equal(0.0, cache.TimeUntilResolved("http://example.com", 5000))
}

func TestDNSCachePerOrigin(t *testing.T) {
	chk := require.New(t)
	cache := loadsim.NewDNSCache(150, 1)

	chk.Equal(150.0, cache.TimeUntilResolved("http://example.com", 0))
	chk.Equal(150.0, cache.TimeUntilResolved("http://cdn.example.com", 0))
	chk.Equal(0.0, cache.TimeUntilResolved("", 0))
}
