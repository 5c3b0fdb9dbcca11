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

// ArchSwitcher is the hardware/arch-specific context-switch primitive,
// the one boundary spec.md explicitly keeps out of scope: FPU lazy
// save/restore, stack pointer exchange, TLB/MMU handling. The core
// calls SwitchTo exactly once per Run() iteration that changes curr.
type ArchSwitcher interface {
	// SwitchTo performs the actual register/stack switch from prev to
	// next, both of which are guaranteed non-nil and resident on the
	// calling CPU. It returns once next has been resumed, which for the
	// calling goroutine means "some later switch back to prev".
	SwitchTo(cpu int, prev, next *Thread)
}

// RootDomainBridge models the Cobalt-style root domain the nucleus
// hands control back to whenever the idle/root thread is picked, and
// reclaims control from whenever a real-time thread is picked. Dual
// kernels use this to suspend/resume the regular OS scheduler on the
// CPU; a single-kernel embedding can make both calls no-ops.
type RootDomainBridge interface {
	// EnterRoot is called just before switching into the root thread.
	EnterRoot(cpu int)
	// LeaveRoot is called just before switching out of the root thread
	// into a real-time thread.
	LeaveRoot(cpu int)
}

// TimerService abstracts the periodic and one-shot timers the nucleus
// needs: the round-robin tick, the watchdog tick and the time-partition
// window timer. Implementations are expected to deliver ticks by
// calling back into the engine. Apart from the sporadic class's rate
// limiter, which reads the wall clock itself, the core takes time only
// from this service.
type TimerService interface {
	// StartPeriodic arms a periodic timer with the given interval,
	// invoking fn on every tick until Stop is called. It returns a
	// handle for cancellation.
	StartPeriodic(interval time.Duration, fn func()) TimerHandle
	// StartOneShot arms a single firing after d, invoking fn once.
	StartOneShot(d time.Duration, fn func()) TimerHandle
	// Now returns the timer service's notion of current time, so tests
	// can inject a fake clock.
	Now() time.Time
}

// TimerHandle cancels a timer previously armed through TimerService.
type TimerHandle interface {
	Stop()
}

// IPISender delivers an inter-processor interrupt to a remote CPU so it
// re-evaluates its need-resched flag without waiting for its next
// natural entry into Run(). A single-CPU embedding can make Send a
// no-op since there are no remote CPUs to kick.
type IPISender interface {
	Send(cpu int)
}
