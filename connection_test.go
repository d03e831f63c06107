// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

package loadsim_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loadgraph/loadsim"
)

const testThroughputBps = 1_638_400 // 1.6 Mbps

func newTestConnection(ssl, h2 bool) *loadsim.Connection {
	c := loadsim.NewConnection("http://example.com", 150, 500, ssl, h2)
	c.SetThroughput(testThroughputBps)
	return c
}

func TestColdConnectionHandshake(t *testing.T) {
	chk := require.New(t)
	c := newTestConnection(false, false)

	// DNS (150) + SYN (75) + SYN-ACK (75) + ACK/request (75)
	// + server latency (500) + first byte in flight (75) = 950.
	p := c.SimulateDownloadUntil(1000, 0, math.Inf(1), 150)
	chk.Equal(950.0, p.TimeElapsedMs)
	chk.Equal(3, p.RoundTrips)
	chk.Equal(int64(1000), p.BytesDownloaded)
}

func TestColdConnectionTLSAddsRoundTrip(t *testing.T) {
	chk := require.New(t)
	c := newTestConnection(true, false)

	p := c.SimulateDownloadUntil(1000, 0, math.Inf(1), 150)
	chk.Equal(1100.0, p.TimeElapsedMs)
}

func TestWarmConnectionSkipsHandshake(t *testing.T) {
	chk := require.New(t)
	c := newTestConnection(false, false)
	c.SetWarmed(true)

	// Request (75) + server latency (500) + first byte (75).
	p := c.SimulateDownloadUntil(1000, 0, math.Inf(1), 0)
	chk.Equal(650.0, p.TimeElapsedMs)
}

func TestWarmH2StreamHasNoSetupCost(t *testing.T) {
	chk := require.New(t)
	c := newTestConnection(true, true)
	c.SetWarmed(true)

	// No handshake, no server wait: the stream drains in round trips only.
	p := c.SimulateDownloadUntil(1000, 0, math.Inf(1), 0)
	chk.Equal(150.0, p.TimeElapsedMs)
}

func TestH2OverflowCreditsNextStream(t *testing.T) {
	chk := require.New(t)
	c := newTestConnection(true, true)
	c.SetWarmed(true)
	c.SetH2OverflowBytes(1000)

	p := c.SimulateDownloadUntil(1000, 0, math.Inf(1), 0)
	chk.Equal(0.0, p.TimeElapsedMs)
	chk.Equal(int64(0), p.BytesDownloaded)
	chk.Equal(int64(1000), p.CreditedBytes)
}

func TestSlowStartRampUp(t *testing.T) {
	chk := require.New(t)
	c := newTestConnection(false, false)

	// At 1.6 Mbps and 150ms RTT the window ceiling is
	// floor(204800 * 0.15 / 1460) = 21 segments. The first 10-segment
	// window (14600 bytes) rides in with the first byte, the next round
	// trip doubles to 20 segments (29200), and the one after caps at 21
	// (30660). 74000 bytes therefore need two extra round trips.
	p := c.SimulateDownloadUntil(74000, 0, math.Inf(1), 150)
	chk.Equal(950.0+300.0, p.TimeElapsedMs)
	chk.Equal(int64(74000), p.BytesDownloaded)
	chk.Equal(21.0, p.CongestionWindow)
}

func TestThroughputShareLimitsWindow(t *testing.T) {
	chk := require.New(t)
	full := newTestConnection(false, false)
	half := newTestConnection(false, false)
	half.SetThroughput(testThroughputBps / 2)

	bytes := int64(200_000)
	pFull := full.SimulateDownloadUntil(bytes, 0, math.Inf(1), 150)
	pHalf := half.SimulateDownloadUntil(bytes, 0, math.Inf(1), 150)
	chk.Greater(pHalf.TimeElapsedMs, pFull.TimeElapsedMs)
}

func TestPartialDownloadWithinPeriod(t *testing.T) {
	chk := require.New(t)
	c := newTestConnection(false, false)

	// Cap the period at exactly the time to first byte: the first window
	// arrives with it and one more round trip may start.
	p := c.SimulateDownloadUntil(74000, 0, 950, 150)
	chk.Equal(1100.0, p.TimeElapsedMs)
	chk.Equal(int64(14600+29200), p.BytesDownloaded)

	// Resuming where the download left off costs only the remaining round
	// trip.
	c.SetCongestionWindow(p.CongestionWindow)
	rest := c.SimulateDownloadUntil(74000-p.BytesDownloaded, p.TimeElapsedMs, math.Inf(1), 0)
	chk.Equal(150.0, rest.TimeElapsedMs)
}
