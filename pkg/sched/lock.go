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

// Lock increments t's scheduler-lock nesting depth. While lockDepth is
// nonzero, Run() skips picking entirely and leaves t current on its
// run-queue: per spec.md §4.3 step 5, a locked thread cannot be
// involuntarily preempted, even by a higher-priority thread becoming
// ready. Any reschedule request that arrives during the locked region
// is remembered (rq.Resched stays set) and honored as soon as the
// matching Unlock drops the depth back to zero.
func (e *Engine) Lock(t *Thread) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t.lockDepth++
	t.setState(Lock)
	if rq := t.rq; rq != nil {
		rq.status |= rqInLock
	}
}

// Unlock decrements t's scheduler-lock nesting depth by one. When it
// reaches zero, t's Lock bit and the run-queue's InLock bit are
// cleared, a pending HDefer bit becomes HTick, and the run-queue's
// Resched flag is set so the next Run() performs any switch that was
// held back. Unlock does not call Run() itself.
func (e *Engine) Unlock(t *Thread) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t.lockDepth == 0 {
		raiseInvariantViolation(newInvariantViolation("unlock of thread %d with zero lock depth", t.ID))
		return
	}
	t.lockDepth--
	if t.lockDepth == 0 {
		e.unlockFullyLocked(t)
	}
}

// UnlockFully drops t's lock depth to zero regardless of its current
// nesting, mirroring xnlock_clear's "fully unlock" behavior used during
// thread teardown.
func (e *Engine) UnlockFully(t *Thread) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t.lockDepth == 0 {
		return
	}
	t.lockDepth = 0
	e.unlockFullyLocked(t)
}

// unlockFullyLocked performs the bookkeeping common to both Unlock
// reaching zero and UnlockFully. Caller must hold e.mu.
func (e *Engine) unlockFullyLocked(t *Thread) {
	rq := t.rq
	if rq == nil {
		return
	}
	t.clearState(Lock)
	rq.status &^= rqInLock
	if rq.status&rqHDefer != 0 {
		rq.status &^= rqHDefer
		rq.status |= rqHTick
	}
	rq.setResched()
}
