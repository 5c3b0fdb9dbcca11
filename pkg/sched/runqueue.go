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

import "github.com/dualkernel/rtcore/pkg/utils/cpuset"

// rqStatus bits mirror the per-run-queue flags from spec.md's Data
// Model: Resched decouples "something changed" from "a switch actually
// happened", InSwitch marks a switch in progress inside Run(), InLock
// makes Run() hold off while a thread holds the scheduler lock.
// HTick/HDefer are carried but not acted on: nothing here sets HDefer,
// and unlocking only turns a pending HDefer into HTick.
type rqStatus uint32

const (
	rqResched rqStatus = 1 << iota
	rqInSwitch
	rqInLock
	rqHTick
	rqHDefer
)

// RunQueue is the per-CPU scheduling state: the single point every
// class's Pick/Enqueue/Dequeue methods operate against for that CPU.
type RunQueue struct {
	CPU int

	engine *Engine

	current *Thread // thread currently resident on the CPU, never nil once started
	last    *Thread // thread resident immediately prior to current, for exec-time bookkeeping
	root    *Thread // this CPU's idle/root thread, always ready

	status rqStatus

	// reschedMask records which other CPUs this CPU has asked to
	// re-evaluate their need_resched flag but has not yet IPI'd,
	// coalescing repeated migrate-and-kick calls between Run() passes.
	reschedMask cpuset.CPUSet

	watchdogTicks uint32

	// rrHandle is the round-robin quantum timer armed for the current
	// thread when it has RRB set, per spec.md §4.3 step 5 ("(re)start
	// the round-robin timer with rr_period; else stop that timer").
	rrHandle TimerHandle

	classData map[Class]interface{} // per-class private run-queue state, e.g. *MLQ for rt
}

func newRunQueue(e *Engine, cpu int) *RunQueue {
	return &RunQueue{
		CPU:       cpu,
		engine:    e,
		classData: make(map[Class]interface{}),
	}
}

func (rq *RunQueue) setResched()        { rq.status |= rqResched }
func (rq *RunQueue) clearResched()      { rq.status &^= rqResched }
func (rq *RunQueue) needResched() bool  { return rq.status&rqResched != 0 }
func (rq *RunQueue) inSwitch() bool     { return rq.status&rqInSwitch != 0 }
func (rq *RunQueue) locked() bool       { return rq.status&rqInLock != 0 }

// Current returns the thread presently resident on this run-queue's
// CPU. It is never nil after the engine has been started.
func (rq *RunQueue) Current() *Thread { return rq.current }

// Root returns this run-queue's idle/root thread.
func (rq *RunQueue) Root() *Thread { return rq.root }
