// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

package loadsim

import "math"

const (
	// tcpSegmentSizeBytes is the payload carried by one TCP segment.
	tcpSegmentSizeBytes = 1460
	// initialCongestionWindow is the slow-start starting window, in
	// segments.
	initialCongestionWindow = 10
)

// Connection models one TCP or H2 connection over the course of a run. It
// is transient simulation state and is never persisted on a node: the pool
// creates connections for a run, and the scheduler drives their warm-up and
// congestion-window growth as requests complete on them.
type Connection struct {
	origin          string
	rttMs           float64
	serverLatencyMs float64
	ssl             bool
	h2              bool

	warmed           bool
	congestionWindow float64 // segments
	throughputBps    float64 // current fair share
	h2OverflowBytes  int64   // bytes delivered past the previous stream's end
	inUse            int     // concurrent streams (always 0 or 1 for h1)
}

// NewConnection creates a cold connection to origin.
func NewConnection(origin string, rttMs, serverLatencyMs float64, ssl, h2 bool) *Connection {
	return &Connection{
		origin:           origin,
		rttMs:            rttMs,
		serverLatencyMs:  serverLatencyMs,
		ssl:              ssl,
		h2:               h2,
		congestionWindow: initialCongestionWindow,
	}
}

func (c *Connection) Origin() string { return c.origin }
func (c *Connection) IsH2() bool     { return c.h2 }
func (c *Connection) IsWarm() bool   { return c.warmed }

// SetThroughput assigns the connection's share of the total link
// throughput, in bits per second, for the upcoming scheduling period.
func (c *Connection) SetThroughput(bps float64) { c.throughputBps = bps }

// SetWarmed marks the connection's handshake as already paid. Subsequent
// requests skip DNS, TCP, and TLS setup.
func (c *Connection) SetWarmed(warmed bool) { c.warmed = warmed }

// SetCongestionWindow carries ramp-up progress forward between requests on
// the same connection.
func (c *Connection) SetCongestionWindow(segments float64) {
	c.congestionWindow = math.Max(1, segments)
}

// SetH2OverflowBytes records bytes that arrived past the end of the
// previous multiplexed stream; the next stream on the connection gets them
// for free.
func (c *Connection) SetH2OverflowBytes(bytes int64) { c.h2OverflowBytes = bytes }

// maxCongestionWindow caps the window at the number of segments the
// connection's throughput share can deliver in one round trip.
func (c *Connection) maxCongestionWindow() float64 {
	bytesPerRoundTrip := c.throughputBps / 8 * (c.rttMs / 1000)
	return math.Max(1, math.Floor(bytesPerRoundTrip/tcpSegmentSizeBytes))
}

// DownloadProgress reports how far a (possibly partial) download advanced.
type DownloadProgress struct {
	// TimeElapsedMs is simulated time consumed, measured from where the
	// request left off.
	TimeElapsedMs float64
	// BytesDownloaded is payload delivered toward the requested byte count.
	BytesDownloaded int64
	// CreditedBytes is the part of the requested count covered by the
	// connection's H2 overflow credit rather than downloaded. Callers
	// tracking cumulative progress must count it alongside BytesDownloaded,
	// since the credit is consumed by the call.
	CreditedBytes int64
	// ExtraBytes is payload delivered past the requested count on an H2
	// connection; zero for h1.
	ExtraBytes int64
	// CongestionWindow is the window, in segments, at the end of the
	// period.
	CongestionWindow float64
	// RoundTrips counts full round trips consumed, handshake included.
	RoundTrips int
}

// SimulateDownloadUntil computes how long delivering bytesToDownload takes
// on this connection, or how far the download gets within maxTimeMs when
// that is finite. timeAlreadyElapsedMs carries the progress a request has
// already made in earlier scheduling periods, and dnsMs is any outstanding
// name-resolution cost (zero once the origin is resolved or the connection
// is warm).
//
// A cold connection pays the handshake before its first byte: DNS, then
// three one-way trips for SYN, SYN-ACK, and ACK-plus-request, then a full
// round trip more for TLS. After the origin's server response time, data
// drains in round-trip-sized steps: the congestion window starts at
// initialCongestionWindow segments and doubles each round trip until it
// reaches the throughput-share ceiling. A warm H2 connection starts a new
// stream with no setup cost at all.
func (c *Connection) SimulateDownloadUntil(bytesToDownload int64, timeAlreadyElapsedMs, maxTimeMs, dnsMs float64) DownloadProgress {
	var credited int64
	if c.warmed && c.h2 {
		credited = min(c.h2OverflowBytes, bytesToDownload)
		if credited < 0 {
			credited = 0
		}
		bytesToDownload -= c.h2OverflowBytes
	}
	twoWayMs := c.rttMs
	oneWayMs := twoWayMs / 2
	maxWindow := c.maxCongestionWindow()

	handshakeAndRequestMs := oneWayMs
	if !c.warmed {
		handshakeAndRequestMs = dnsMs +
			oneWayMs + // SYN
			oneWayMs + // SYN-ACK
			oneWayMs // ACK + initial request
		if c.ssl {
			handshakeAndRequestMs += twoWayMs
		}
	}

	roundTrips := int(math.Ceil(handshakeAndRequestMs / twoWayMs))
	timeToFirstByteMs := handshakeAndRequestMs + c.serverLatencyMs + oneWayMs
	if c.warmed && c.h2 {
		timeToFirstByteMs = 0
	}

	ttfbMs := math.Max(timeToFirstByteMs-timeAlreadyElapsedMs, 0)
	maxDownloadMs := maxTimeMs - ttfbMs

	window := math.Min(c.congestionWindow, maxWindow)
	var totalBytes int64
	if ttfbMs > 0 {
		// The first window of data rides in with the first byte.
		totalBytes = int64(window * tcpSegmentSizeBytes)
	} else {
		roundTrips = 0
	}

	downloadMs := 0.0
	bytesRemaining := bytesToDownload - totalBytes
	for bytesRemaining > 0 && downloadMs <= maxDownloadMs {
		roundTrips++
		downloadMs += twoWayMs
		window = math.Max(math.Min(maxWindow, window*2), 1)
		delivered := int64(window * tcpSegmentSizeBytes)
		totalBytes += delivered
		bytesRemaining -= delivered
	}

	var extra int64
	if c.h2 && totalBytes > bytesToDownload {
		extra = totalBytes - bytesToDownload
	}
	delivered := min(totalBytes, bytesToDownload)
	if delivered < 0 {
		delivered = 0
	}

	return DownloadProgress{
		TimeElapsedMs:    ttfbMs + downloadMs,
		BytesDownloaded:  delivered,
		CreditedBytes:    credited,
		ExtraBytes:       extra,
		CongestionWindow: window,
		RoundTrips:       roundTrips,
	}
}
