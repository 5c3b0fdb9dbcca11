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

import (
	"strconv"

	"github.com/dualkernel/rtcore/pkg/utils/cpuset"
)

// noLocalCPU marks a reschedule request that did not originate from any
// managed CPU's own Run() pass (e.g. an external admin call): there is
// no local run-queue to coalesce the notification into, so it always
// falls back to an immediate IPI.
const noLocalCPU = -1

// Run is the rescheduling entry point, called whenever the host ISR
// epilogue, a blocking syscall return, or an IPI wants the CPU to
// re-evaluate what should run. It implements spec.md §4.3 steps 1-13
// and returns true if it actually performed a context switch.
//
// Run is not reentrant for a given CPU: the caller is responsible for
// ensuring it is not invoked concurrently with itself on the same rq,
// typically by calling it only from the CPU's own interrupt/return
// path.
func (e *Engine) Run(cpu int) bool {
	e.mu.Lock()
	rq := e.runqueues[cpu]
	if rq == nil {
		e.mu.Unlock()
		raiseInvariantViolation(newInvariantViolation("run() on unmanaged cpu %d", cpu))
		return false
	}

	// Step 3 (cross-CPU): flush any reschedule requests this CPU owed
	// other CPUs, coalesced since this run-queue's last pass, as real
	// IPIs now.
	e.flushReschedMaskLocked(rq)

	// Step 1: an ISR that did not itself request a reschedule is a
	// pure no-op; this is the fast path taken on the overwhelming
	// majority of interrupt returns.
	if !rq.needResched() {
		e.mu.Unlock()
		return false
	}
	e.metrics.reschedulePasses.Inc()

	// Step 2: clear need_resched before picking, not after: any class
	// callback invoked below (Dequeue/Enqueue/Requeue) that itself
	// calls setResched must be able to re-arm it and have that stick.
	rq.clearResched()

	// Steps 3-4: retire threads the watchdog condemned before picking,
	// so a cancelled thread is never re-selected.
	e.reapCancelledLocked(rq)

	prev := rq.current

	// Step 5: a thread holding the scheduler lock cannot be
	// involuntarily preempted on its own CPU. Re-arm Resched so the
	// request is not lost, and leave prev running.
	if rq.locked() {
		rq.setResched()
		e.updateQueueDepthMetricsLocked(rq)
		e.mu.Unlock()
		return false
	}

	next := e.classes.pick(rq)
	if next == nil {
		next = rq.root
	}

	// Step 5: curr == next is the common case under a stable
	// workload: update accounting but skip the switch primitive
	// entirely.
	if next == prev {
		e.updateQueueDepthMetricsLocked(rq)
		e.mu.Unlock()
		return false
	}

	if debugBuild {
		e.auditPick(rq, next)
	}

	// Step 6: mark the run-queue as mid-switch until the switch below
	// completes.
	rq.status |= rqInSwitch
	rq.current = next
	rq.last = prev

	now := e.timers.Now()
	if prev != nil {
		prev.switchedOut(now)
	}
	next.switchedIn(now)

	// Step 5 (continued): (re)arm the round-robin timer for the newly
	// chosen thread, or stop whatever was armed for prev.
	e.armRoundRobinLocked(rq, next)

	wasRoot := prev != nil && prev.state.Has(Root)
	isRoot := next.state.Has(Root)

	// Step 7-8: root-domain bridge hooks bracket the switch itself,
	// never the accounting above or the finish-up below.
	if isRoot && !wasRoot && e.root != nil {
		e.root.EnterRoot(cpu)
	} else if wasRoot && !isRoot && e.root != nil {
		e.root.LeaveRoot(cpu)
	}

	if e.arch != nil && prev != nil {
		e.arch.SwitchTo(cpu, prev, next)
	}

	e.metrics.contextSwitches.WithLabelValues(strconv.Itoa(cpu)).Inc()

	// Step 9: complete any migration that was deferred while prev was
	// running, now that it has safely stopped.
	if prev != nil {
		e.finishUnlockedSwitch(prev)
	}

	rq.status &^= rqInSwitch

	// Steps 10-13: a switch can itself leave need_resched set again
	// (e.g. a class's Enqueue callback invoked mid-switch asked for
	// another pass); loop until the run-queue is quiescent rather than
	// waiting for the next external trigger.
	for rq.needResched() {
		rq.clearResched()
		e.reapCancelledLocked(rq)
		if rq.locked() {
			rq.setResched()
			break
		}
		again := e.classes.pick(rq)
		if again == nil || again == rq.current {
			break
		}
		rq.setResched()
		e.mu.Unlock()
		e.Run(cpu)
		return true
	}

	e.updateQueueDepthMetricsLocked(rq)
	e.mu.Unlock()
	return true
}

// ticker is implemented by scheduling classes that support a
// round-robin quantum expiry hook (currently only rt). Engine.Tick
// delegates to it when the round-robin timer armed by
// armRoundRobinLocked fires.
type ticker interface {
	Tick(rq *RunQueue)
}

// armRoundRobinLocked stops whatever round-robin timer was armed for
// rq's previous current thread and, if next has RRB set, arms a new
// one-shot timer for next.rrPeriod that calls back into Engine.Tick.
// Caller must hold e.mu.
func (e *Engine) armRoundRobinLocked(rq *RunQueue, next *Thread) {
	if rq.rrHandle != nil {
		rq.rrHandle.Stop()
		rq.rrHandle = nil
	}
	if e.timers == nil || !next.state.Has(RRB) || next.rrPeriod <= 0 {
		return
	}
	cpu := rq.CPU
	rq.rrHandle = e.timers.StartOneShot(next.rrPeriod, func() { e.Tick(cpu) })
}

// Tick is the external entry point named in spec.md §6, invoked by the
// round-robin timer armed for rq's current thread. It delegates to the
// current thread's class to decide whether to rotate it, then runs a
// reschedule pass so any rotation the class requested takes effect
// immediately rather than waiting for the next natural trigger.
func (e *Engine) Tick(cpu int) {
	e.mu.Lock()
	rq := e.runqueues[cpu]
	if rq == nil {
		e.mu.Unlock()
		return
	}
	current := rq.current
	if current == nil || current.class == nil {
		e.mu.Unlock()
		return
	}
	if tk, ok := current.class.(ticker); ok {
		tk.Tick(rq)
	}
	// The thread that was ticked is still current until Run() below
	// actually switches; re-arm its timer for the next quantum so a
	// rotation decision that left it in place doesn't starve the timer.
	e.armRoundRobinLocked(rq, current)
	e.mu.Unlock()

	e.Run(cpu)
}

// reapCancelledLocked removes any ready thread marked Kicked|Cancelled
// from its class before picking, per the watchdog escalation path in
// watchdog.go. Caller must hold e.mu.
func (e *Engine) reapCancelledLocked(rq *RunQueue) {
	for _, t := range e.threads {
		if t.rq != rq || t.class == nil {
			continue
		}
		if t.state.Has(Kicked) && t.state.Has(Cancelled) && t.state.Has(Ready) {
			t.class.Dequeue(t)
			t.clearState(Ready)
			t.setState(Zombie)
		}
	}
}

// auditPick re-derives the pick in a debug build and panics if it
// disagrees with the one already made, per spec.md §9's discussion of
// a debug-only need_resched audit.
func (e *Engine) auditPick(rq *RunQueue, chosen *Thread) {
	again := e.classes.pick(rq)
	if again != nil && again != chosen && again.weightedPrio > chosen.weightedPrio {
		raiseInvariantViolation(newInvariantViolation(
			"pick audit mismatch on cpu %d: chose thread %d (prio %d) but thread %d (prio %d) outranks it",
			rq.CPU, chosen.ID, chosen.weightedPrio, again.ID, again.weightedPrio))
	}
}

// Kick marks t with the watchdog's hard-escalation bits and requests a
// reschedule on its run-queue, without waiting for the next natural
// tick. It is exposed so external collaborators (e.g. an admin command
// to kill a runaway thread) can reuse the same retirement path the
// watchdog uses.
func (e *Engine) Kick(t *Thread) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t.setState(Kicked | Cancelled)
	if t.rq == nil {
		return
	}
	if t.rq.current == t {
		e.requestReschedLocked(t.rq, noLocalCPU)
	} else {
		t.rq.setResched()
	}
}

// RequestReschedule sets the need_resched flag on rq and, if rq is not
// the calling CPU, notifies the remote CPU so it re-enters Run()
// promptly instead of waiting for its next natural trigger.
func (e *Engine) RequestReschedule(rq *RunQueue, fromCPU int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requestReschedLocked(rq, fromCPU)
}

// requestReschedLocked sets rq's need_resched flag and, if rq belongs
// to a CPU other than fromCPU, arranges for that CPU to be notified.
// Per spec.md §3's run-queue data model and §4.3 step 3, the
// notification is posted into fromCPU's own run-queue reschedMask
// rather than IPI'd immediately: this coalesces several cross-CPU
// reschedule requests issued during the same Run() pass into a single
// IPI per target, flushed by flushReschedMaskLocked at the start of
// fromCPU's next Run() pass. Callers with no CPU context of their own
// (fromCPU == noLocalCPU) fall back to an immediate IPI since there is
// no local run-queue to coalesce into. Caller must hold e.mu.
func (e *Engine) requestReschedLocked(rq *RunQueue, fromCPU int) {
	rq.setResched()
	if rq.CPU == fromCPU {
		return
	}
	if local := e.runqueues[fromCPU]; local != nil {
		local.reschedMask = local.reschedMask.Union(cpuset.New(rq.CPU))
		return
	}
	if e.ipi != nil {
		e.ipi.Send(rq.CPU)
	}
}

// flushReschedMaskLocked sends a real IPI for every CPU rq has queued a
// reschedule notification for since its last Run() pass, then clears
// the mask. Caller must hold e.mu.
func (e *Engine) flushReschedMaskLocked(rq *RunQueue) {
	if rq.reschedMask.IsEmpty() {
		return
	}
	if e.ipi != nil {
		for _, target := range rq.reschedMask.List() {
			e.ipi.Send(target)
		}
	}
	rq.reschedMask = cpuset.New()
}
