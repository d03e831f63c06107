// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

package loadsim

// DNSCache tracks which origins have already been resolved within one
// simulated run. The first lookup for an origin pays a fixed cost (the DNS
// RTT multiplier times the base round-trip time); lookups requested while
// that resolution is still in flight wait for the same completion instant,
// and lookups after it cost nothing. This is same-run memoization, not a
// model of real DNS TTLs.
//
// A fresh cache is created for each [Simulator.Simulate] call unless the
// caller installs a warm one with [Simulator.SetDNSCache] to chain runs.
type DNSCache struct {
	rttMs      float64
	multiplier float64
	resolvedAt map[string]float64
}

// NewDNSCache creates an empty cache resolving names in
// rttMs * multiplier milliseconds.
func NewDNSCache(rttMs, multiplier float64) *DNSCache {
	if multiplier <= 0 {
		multiplier = DefaultDNSRTTMultiplier
	}
	return &DNSCache{
		rttMs:      rttMs,
		multiplier: multiplier,
		resolvedAt: make(map[string]float64),
	}
}

// TimeUntilResolved returns how many milliseconds a request issued at
// requestedAtMs must wait for origin's name to resolve, starting a new
// resolution if none is in flight. Resolved origins return 0.
func (c *DNSCache) TimeUntilResolved(origin string, requestedAtMs float64) float64 {
	if origin == "" {
		return 0
	}
	doneAt, ok := c.resolvedAt[origin]
	if !ok {
		doneAt = requestedAtMs + c.rttMs*c.multiplier
		c.resolvedAt[origin] = doneAt
	}
	if remaining := doneAt - requestedAtMs; remaining > 0 {
		return remaining
	}
	return 0
}
