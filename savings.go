// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

package loadsim

import "math"

// WastedMsFromWastedBytes converts bytes that could be avoided into an
// estimate of milliseconds that could be saved, using the configured
// throughput, or the observed throughput from the recording when none is
// configured. When both are unset the answer is 0. The estimate is
// rounded to the nearest 10ms.
func (s *Simulator) WastedMsFromWastedBytes(wastedBytes int64) float64 {
	throughputBps := s.settings.ThroughputBps
	if throughputBps <= 0 {
		throughputBps = s.settings.ObservedThroughputBps
	}
	if throughputBps <= 0 || wastedBytes <= 0 {
		return 0
	}
	wastedBits := float64(wastedBytes) * 8
	wastedMs := wastedBits / throughputBps * 1000
	return math.Round(wastedMs/10) * 10
}
