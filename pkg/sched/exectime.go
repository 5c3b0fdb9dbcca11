// Copyright The NRI Plugins Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sched

import "time"

// CPUUsage reports t's cumulative execution time and, given a wall
// clock window, the fraction of it t actually spent running. It is
// built directly on Thread.Stats.ExecTime (accumulated by
// switchedIn/switchedOut in scheduler.go's Run) rather than any
// OS-level accounting, since under the dual-kernel model the primary
// domain's clock is the only one this package has access to.
func CPUUsage(t *Thread, window time.Duration) (exec time.Duration, fraction float64) {
	exec = t.Stats.ExecTime
	if window <= 0 {
		return exec, 0
	}
	fraction = float64(exec) / float64(window)
	if fraction > 1 {
		fraction = 1
	}
	return exec, fraction
}

// ResetStats zeroes t's counters without touching its scheduling
// state, for periodic usage reporting windows.
func ResetStats(t *Thread) {
	t.Stats.Msw, t.Stats.Csw, t.Stats.Xsc, t.Stats.Pf = 0, 0, 0, 0
	t.Stats.ExecTime = 0
}
