// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

package loadsim

// Settings holds every resource constraint for one simulation. A Settings
// value is passed explicitly to [New]; there is no ambient or global
// configuration, so repeated simulations with different settings cannot
// interfere with each other.
type Settings struct {
	// RTTMs is the simulated network round-trip time in milliseconds.
	RTTMs float64

	// ThroughputBps is the total link throughput in bits per second, shared
	// fairly among concurrently active connections.
	ThroughputBps float64

	// ObservedThroughputBps is the throughput measured from the original
	// recording, in bits per second. It is used only as the fallback for
	// [Simulator.WastedMsFromWastedBytes] when ThroughputBps is unset.
	ObservedThroughputBps float64

	// MaxConcurrentRequests caps the number of network requests in flight
	// at once. Values below one are treated as the default.
	MaxConcurrentRequests int

	// CPUSlowdownMultiplier scales every CPU task's observed duration.
	CPUSlowdownMultiplier float64

	// DNSResolutionRTTMultiplier expresses the cost of a cold DNS lookup in
	// round trips. Lookups for an origin are paid once per run.
	DNSResolutionRTTMultiplier float64

	// ServerResponseTimeMsByOrigin supplies the per-origin delay between the
	// end of the request and the first byte of the response. Origins not
	// present fall back to DefaultServerResponseTimeMs.
	ServerResponseTimeMsByOrigin map[string]float64

	// AdditionalRTTMsByOrigin adds origin-specific latency on top of RTTMs,
	// for origins observed to be farther away than the simulated link.
	AdditionalRTTMsByOrigin map[string]float64

	// H2FlexibleOrdering lets independent downloads sharing one H2
	// connection be reordered by the scheduler without penalty, since the
	// underlying connection multiplexes.
	H2FlexibleOrdering bool
}

// Defaults approximating a throttled mobile connection.
const (
	DefaultRTTMs                 = 150
	DefaultThroughputBps         = 1_638_400 // 1.6 Mbps
	DefaultMaxConcurrentRequests = 10
	DefaultCPUSlowdownMultiplier = 5
	DefaultDNSRTTMultiplier      = 1
	DefaultServerResponseTimeMs  = 30
)

// DefaultSettings returns the standard throttling profile. Callers mutate
// the returned value freely; each call returns a fresh copy.
func DefaultSettings() Settings {
	return Settings{
		RTTMs:                      DefaultRTTMs,
		ThroughputBps:              DefaultThroughputBps,
		MaxConcurrentRequests:      DefaultMaxConcurrentRequests,
		CPUSlowdownMultiplier:      DefaultCPUSlowdownMultiplier,
		DNSResolutionRTTMultiplier: DefaultDNSRTTMultiplier,
	}
}

// withDefaults fills unset fields so the scheduler never has to re-check.
func (s Settings) withDefaults() Settings {
	if s.RTTMs <= 0 {
		s.RTTMs = DefaultRTTMs
	}
	if s.MaxConcurrentRequests < 1 {
		s.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}
	if s.CPUSlowdownMultiplier <= 0 {
		s.CPUSlowdownMultiplier = DefaultCPUSlowdownMultiplier
	}
	if s.DNSResolutionRTTMultiplier <= 0 {
		s.DNSResolutionRTTMultiplier = DefaultDNSRTTMultiplier
	}
	return s
}

// serverResponseTimeMs resolves the configured server response time for an
// origin, falling back to the default when no figure is configured.
func (s *Settings) serverResponseTimeMs(origin string) float64 {
	if ms, ok := s.ServerResponseTimeMsByOrigin[origin]; ok {
		return ms
	}
	return DefaultServerResponseTimeMs
}

// rttMsForOrigin returns the round-trip time for connections to origin,
// including any configured origin-specific additional latency.
func (s *Settings) rttMsForOrigin(origin string) float64 {
	return s.RTTMs + s.AdditionalRTTMsByOrigin[origin]
}
