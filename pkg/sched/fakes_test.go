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

// fakeArch records every switch it is asked to perform, for assertions
// in scheduler tests. It performs no actual register/stack switching,
// since there is none to do in a test process.
type fakeArch struct {
	switches []fakeSwitch
}

type fakeSwitch struct {
	cpu        int
	prev, next ID
}

func (f *fakeArch) SwitchTo(cpu int, prev, next *Thread) {
	f.switches = append(f.switches, fakeSwitch{cpu: cpu, prev: prev.ID, next: next.ID})
}

// fakeRoot records root domain enter/leave calls.
type fakeRoot struct {
	entered, left []int
}

func (f *fakeRoot) EnterRoot(cpu int) { f.entered = append(f.entered, cpu) }
func (f *fakeRoot) LeaveRoot(cpu int) { f.left = append(f.left, cpu) }

// fakeTimers is a manually-driven TimerService: nothing fires on its
// own, tests call Fire to invoke armed callbacks deterministically.
type fakeTimers struct {
	now      time.Time
	periodic []*fakeTimerHandle
	oneShot  []*fakeTimerHandle
}

type fakeTimerHandle struct {
	fn      func()
	stopped bool
}

func (h *fakeTimerHandle) Stop() { h.stopped = true }

func newFakeTimers() *fakeTimers {
	return &fakeTimers{now: time.Unix(0, 0)}
}

func (f *fakeTimers) StartPeriodic(interval time.Duration, fn func()) TimerHandle {
	h := &fakeTimerHandle{fn: fn}
	f.periodic = append(f.periodic, h)
	return h
}

func (f *fakeTimers) StartOneShot(d time.Duration, fn func()) TimerHandle {
	h := &fakeTimerHandle{fn: fn}
	f.oneShot = append(f.oneShot, h)
	return h
}

func (f *fakeTimers) Now() time.Time { return f.now }

func (f *fakeTimers) Advance(d time.Duration) { f.now = f.now.Add(d) }

// FirePeriodic invokes every still-armed periodic timer's callback
// once, simulating a tick.
func (f *fakeTimers) FirePeriodic() {
	for _, h := range f.periodic {
		if !h.stopped {
			h.fn()
		}
	}
}

// FireLastOneShot invokes the most recently armed, still-active
// one-shot timer's callback, simulating its expiry. Tests use this to
// drive the round-robin and time-partition timers deterministically.
func (f *fakeTimers) FireLastOneShot() {
	for i := len(f.oneShot) - 1; i >= 0; i-- {
		if !f.oneShot[i].stopped {
			f.oneShot[i].fn()
			return
		}
	}
}

// fakeIPI records which CPUs were kicked.
type fakeIPI struct {
	sent []int
}

func (f *fakeIPI) Send(cpu int) { f.sent = append(f.sent, cpu) }
