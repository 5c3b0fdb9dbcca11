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

package main

import (
	"time"

	"github.com/dualkernel/rtcore/pkg/sched"
)

// noopArch stands in for the hardware context-switch primitive: this
// simulation harness has no real threads to switch between, only the
// engine's bookkeeping.
type noopArch struct{}

func (noopArch) SwitchTo(cpu int, prev, next *sched.Thread) {}

// noopRootDomain stands in for the dual-kernel root domain bridge.
type noopRootDomain struct{}

func (noopRootDomain) EnterRoot(cpu int) {}
func (noopRootDomain) LeaveRoot(cpu int) {}

// noopIPI stands in for cross-CPU interrupt delivery: Run is driven
// directly by the simulation rather than by real interrupts, so there
// is nothing to kick.
type noopIPI struct{}

func (noopIPI) Send(cpu int) {}

// realTimerHandle wraps a *time.Timer or *time.Ticker as a
// sched.TimerHandle.
type realTimerHandle struct {
	ticker *time.Ticker
	timer  *time.Timer
}

func (h *realTimerHandle) Stop() {
	if h.ticker != nil {
		h.ticker.Stop()
	}
	if h.timer != nil {
		h.timer.Stop()
	}
}

// realTimers implements sched.TimerService against the wall clock,
// for running the engine outside of a test.
type realTimers struct{}

func newRealTimers() *realTimers { return &realTimers{} }

func (t *realTimers) StartPeriodic(interval time.Duration, fn func()) sched.TimerHandle {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			fn()
		}
	}()
	return &realTimerHandle{ticker: ticker}
}

func (t *realTimers) StartOneShot(d time.Duration, fn func()) sched.TimerHandle {
	timer := time.AfterFunc(d, fn)
	return &realTimerHandle{timer: timer}
}

func (t *realTimers) Now() time.Time { return time.Now() }
